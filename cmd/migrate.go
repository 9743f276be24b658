package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmehdipour/billing-backend/internal/config"
	"github.com/jmehdipour/billing-backend/internal/db"
	"github.com/spf13/cobra"
)

// migrateCmd rebuilds the shared base tables (tenants, outbox) from
// migrations/001_init.sql. Per-tenant customers_<id>/bills_<id> tables
// are provisioned lazily at runtime and are never part of this script;
// a dev reset leaves existing ones orphaned until their tenant
// re-registers or deletes the account. The ClickHouse audit table has
// its own script under migrations/clickhouse, applied with
// clickhouse-client.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Rebuild the shared MySQL base tables (dev: DROP & CREATE)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		conn, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer conn.Close()

		scriptPath := filepath.Join("migrations", "001_init.sql")
		script, err := os.ReadFile(scriptPath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", scriptPath, err)
		}

		// Leftover tenant-table constraints from a previous run would
		// block the DROPs, so FK checks go off for the duration.
		if _, err := conn.Exec("SET FOREIGN_KEY_CHECKS = 0"); err != nil {
			return fmt.Errorf("disable fk checks: %w", err)
		}
		if _, err := conn.Exec(string(script)); err != nil {
			_, _ = conn.Exec("SET FOREIGN_KEY_CHECKS = 1")
			return fmt.Errorf("exec migration: %w", err)
		}
		if _, err := conn.Exec("SET FOREIGN_KEY_CHECKS = 1"); err != nil {
			return fmt.Errorf("enable fk checks: %w", err)
		}

		fmt.Println(">> Base tables migrated (tenant tables provision at runtime)")
		return nil
	},
}
