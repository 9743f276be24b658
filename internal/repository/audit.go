package repository

import (
	"context"

	"github.com/jmehdipour/billing-backend/internal/model"
	"github.com/jmoiron/sqlx"
)

// AuditRepository appends billing events to the ClickHouse retention table.
type AuditRepository interface {
	Insert(ctx context.Context, ev model.Event) error
}

type auditRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewAuditRepository(ch *sqlx.DB) AuditRepository {
	return &auditRepository{ch: ch}
}

func (r *auditRepository) Insert(ctx context.Context, ev model.Event) error {
	const q = `
		INSERT INTO billing.events_audit (id, tenant_id, op, bill_id, amount, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.ch.ExecContext(ctx, q, ev.ID, ev.TenantID, ev.Op, ev.BillID, ev.Amount, ev.At)
	return err
}
