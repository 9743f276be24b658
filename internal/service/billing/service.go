package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmehdipour/billing-backend/internal/db"
	"github.com/jmehdipour/billing-backend/internal/identity"
	"github.com/jmehdipour/billing-backend/internal/metrics"
	"github.com/jmehdipour/billing-backend/internal/model"
	"github.com/jmehdipour/billing-backend/internal/repository"
	"github.com/jmehdipour/billing-backend/internal/util"
	"github.com/jmoiron/sqlx"
)

// Dropper removes a tenant's private tables and probes their existence.
type Dropper interface {
	TablesExist(ctx context.Context, tenantID int64) (bool, error)
	DropTenantTables(ctx context.Context, tenantID int64) error
}

// Evicter removes a tenant id from the provisioning cache.
type Evicter interface {
	Evict(id int64)
}

const eventAggregate = "bill"

// Service implements the billing operations over a tenant's private
// tables. Mutations write an audit event to the outbox within the same
// transaction.
type Service struct {
	runner   db.TxRunner
	bills    repository.BillsRepository
	tenants  repository.TenantsRepository
	schema   Dropper
	outbox   repository.OutboxRepository
	provider identity.Provider
	cache    Evicter
	topic    string
}

func New(
	runner db.TxRunner,
	billsRepo repository.BillsRepository,
	tenantsRepo repository.TenantsRepository,
	schema Dropper,
	outboxRepo repository.OutboxRepository,
	provider identity.Provider,
	cache Evicter,
	topic string,
) *Service {
	return &Service{
		runner:   runner,
		bills:    billsRepo,
		tenants:  tenantsRepo,
		schema:   schema,
		outbox:   outboxRepo,
		provider: provider,
		cache:    cache,
		topic:    topic,
	}
}

func (s *Service) writeEvent(ctx context.Context, tx *sqlx.Tx, ev model.Event) error {
	ev.ID = util.New()
	ev.At = time.Now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.outbox.Insert(ctx, tx, eventAggregate, ev.ID, s.topic, payload)
}

// ListBills returns the tenant's bills joined with their customers.
// Row order is unspecified.
func (s *Service) ListBills(ctx context.Context, tenantID int64) ([]model.Bill, error) {
	out, err := s.bills.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	metrics.BillOpsTotal.WithLabelValues("list").Inc()
	return out, nil
}

// AddBill creates a new customer row and a bill referencing it. A new
// customer is created on every call, even when one with the same name
// exists.
func (s *Service) AddBill(ctx context.Context, tenantID int64, name, contact, email string, amount float64) (int64, error) {
	var billID int64
	err := s.runner.RunInTx(ctx, func(tx *sqlx.Tx) error {
		customerID, err := s.bills.InsertCustomer(ctx, tx, tenantID, name, contact, email)
		if err != nil {
			return fmt.Errorf("insert customer: %w", err)
		}

		billID, err = s.bills.InsertBill(ctx, tx, tenantID, customerID, amount)
		if err != nil {
			return fmt.Errorf("insert bill: %w", err)
		}

		return s.writeEvent(ctx, tx, model.Event{
			TenantID: tenantID,
			Op:       model.OpBillAdded,
			BillID:   billID,
			Amount:   amount,
		})
	})
	if err != nil {
		return 0, err
	}

	metrics.BillOpsTotal.WithLabelValues("add").Inc()
	return billID, nil
}

// UpdateBill updates the bill's amount when supplied and only the
// supplied subset of customer fields on the bill's customer. Returns
// repository.ErrNotFound when the bill does not exist.
func (s *Service) UpdateBill(ctx context.Context, tenantID, billID int64, patch model.BillPatch) error {
	err := s.runner.RunInTx(ctx, func(tx *sqlx.Tx) error {
		customerID, err := s.bills.CustomerIDForBill(ctx, tx, tenantID, billID)
		if err != nil {
			return err
		}

		if patch.Amount != nil {
			if err := s.bills.UpdateAmount(ctx, tx, tenantID, billID, *patch.Amount); err != nil {
				return fmt.Errorf("update amount: %w", err)
			}
		}

		if err := s.bills.UpdateCustomerFields(ctx, tx, tenantID, customerID, patch); err != nil {
			return fmt.Errorf("update customer: %w", err)
		}

		ev := model.Event{TenantID: tenantID, Op: model.OpBillUpdated, BillID: billID}
		if patch.Amount != nil {
			ev.Amount = *patch.Amount
		}
		return s.writeEvent(ctx, tx, ev)
	})
	if err != nil {
		return err
	}

	metrics.BillOpsTotal.WithLabelValues("update").Inc()
	return nil
}

// DeleteBill deletes the bill; when it was the customer's last bill the
// customer row is deleted too (cascade by policy, not by constraint).
// Returns repository.ErrNotFound when the bill does not exist.
func (s *Service) DeleteBill(ctx context.Context, tenantID, billID int64) error {
	err := s.runner.RunInTx(ctx, func(tx *sqlx.Tx) error {
		customerID, err := s.bills.CustomerIDForBill(ctx, tx, tenantID, billID)
		if err != nil {
			return err
		}

		if err := s.bills.DeleteBill(ctx, tx, tenantID, billID); err != nil {
			return fmt.Errorf("delete bill: %w", err)
		}

		n, err := s.bills.CountBillsForCustomer(ctx, tx, tenantID, customerID)
		if err != nil {
			return fmt.Errorf("count remaining bills: %w", err)
		}
		if n == 0 {
			if err := s.bills.DeleteCustomer(ctx, tx, tenantID, customerID); err != nil {
				return fmt.Errorf("delete orphaned customer: %w", err)
			}
		}

		return s.writeEvent(ctx, tx, model.Event{
			TenantID: tenantID,
			Op:       model.OpBillDeleted,
			BillID:   billID,
		})
	})
	if err != nil {
		return err
	}

	metrics.BillOpsTotal.WithLabelValues("delete").Inc()
	return nil
}

// UserStats returns the tenant's aggregate counts; total amount is 0
// when no bills exist.
func (s *Service) UserStats(ctx context.Context, tenantID int64) (model.Stats, error) {
	stats, err := s.bills.Stats(ctx, tenantID)
	if err != nil {
		return model.Stats{}, err
	}
	metrics.BillOpsTotal.WithLabelValues("stats").Inc()
	return stats, nil
}

// DeleteAccount removes the user at the identity provider, drops the
// tenant's tables, deletes the tenant row, and finally evicts the
// provisioning cache entry. A provider failure aborts before any data
// loss; eviction happens last so a retry after partial failure
// re-provisions instead of skipping.
func (s *Service) DeleteAccount(ctx context.Context, tenantID int64, subject string) error {
	if err := s.provider.DeleteUser(ctx, subject); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}

	if err := s.schema.DropTenantTables(ctx, tenantID); err != nil {
		return err
	}

	err := s.runner.RunInTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.tenants.Delete(ctx, tx, tenantID); err != nil {
			return err
		}
		return s.writeEvent(ctx, tx, model.Event{
			TenantID: tenantID,
			Op:       model.OpAccountDeleted,
		})
	})
	if err != nil {
		return err
	}

	s.cache.Evict(tenantID)
	return nil
}

// ViewAllData reports every tenant's bills. Tenants whose tables were
// never provisioned are listed with no bills. Callers are expected to
// hold a valid credential; there is deliberately no further role check.
func (s *Service) ViewAllData(ctx context.Context) (model.AdminReport, error) {
	ts, err := s.tenants.ListAll(ctx)
	if err != nil {
		return model.AdminReport{}, err
	}

	report := model.AdminReport{
		TotalUsers: len(ts),
		Data:       make([]model.TenantData, 0, len(ts)),
	}

	for _, t := range ts {
		entry := model.TenantData{UserID: t.ID, Email: t.Email, Bills: []model.Bill{}}

		exists, err := s.schema.TablesExist(ctx, t.ID)
		if err != nil {
			return model.AdminReport{}, err
		}
		if exists {
			bills, err := s.bills.List(ctx, t.ID)
			if err != nil {
				return model.AdminReport{}, err
			}
			if bills != nil {
				entry.Bills = bills
			}
			report.TotalRecords += len(bills)
		}

		report.Data = append(report.Data, entry)
	}

	return report, nil
}
