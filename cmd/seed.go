package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/jmehdipour/billing-backend/internal/config"
	"github.com/jmehdipour/billing-backend/internal/db"
	"github.com/jmehdipour/billing-backend/internal/repository"
	"github.com/jmehdipour/billing-backend/internal/service/tenant"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

type demoTenant struct {
	subject string
	email   string
	bills   []demoBill
}

type demoBill struct {
	name    string
	contact string
	email   string
	amount  float64
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo tenants and bills",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo tenants...")

		if err := seedTenants(cmd.Context(), sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

// seedTenants registers each demo tenant through the resolver (so its
// tables provision) and inserts sample bills only when the tenant has
// none yet, keeping the command idempotent.
func seedTenants(ctx context.Context, dbx *sqlx.DB) error {
	demo := []demoTenant{
		{
			subject: "seed-acme",
			email:   "billing@acme.test",
			bills: []demoBill{
				{name: "Alice Doe", contact: "555-0101", email: "alice@acme.test", amount: 42.50},
				{name: "Bob Roe", contact: "555-0102", email: "bob@acme.test", amount: 120.00},
			},
		},
		{
			subject: "seed-foobar",
			email:   "billing@foobar.test",
			bills: []demoBill{
				{name: "Carol Poe", contact: "555-0201", email: "carol@foobar.test", amount: 9.99},
			},
		},
	}

	tenantsRepo := repository.NewTenantsRepository(dbx)
	provisionRepo := repository.NewProvisionRepository(dbx)
	billsRepo := repository.NewBillsRepository(dbx)
	resolver := tenant.NewService(tenantsRepo, provisionRepo, tenant.NewCache())
	gw := db.NewGateway(dbx)

	for _, d := range demo {
		id, err := resolver.Resolve(ctx, d.subject, d.email)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", d.subject, err)
		}

		existing, err := billsRepo.List(ctx, id)
		if err != nil {
			return fmt.Errorf("list bills for %q: %w", d.subject, err)
		}
		if len(existing) > 0 {
			continue
		}

		err = gw.RunInTx(ctx, func(tx *sqlx.Tx) error {
			for _, b := range d.bills {
				customerID, err := billsRepo.InsertCustomer(ctx, tx, id, b.name, b.contact, b.email)
				if err != nil {
					return err
				}
				if _, err := billsRepo.InsertBill(ctx, tx, id, customerID, b.amount); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("seed bills for %q: %w", d.subject, err)
		}
	}

	return nil
}
