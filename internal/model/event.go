package model

import "time"

// Billing event ops recorded in the outbox.
const (
	OpBillAdded      = "bill_added"
	OpBillUpdated    = "bill_updated"
	OpBillDeleted    = "bill_deleted"
	OpAccountDeleted = "account_deleted"
)

// Event is the audit payload written to the outbox and published to Kafka.
type Event struct {
	ID       string    `json:"id"` // ULID
	TenantID int64     `json:"tenant_id"`
	Op       string    `json:"op"`
	BillID   int64     `json:"bill_id,omitempty"`
	Amount   float64   `json:"amount,omitempty"`
	At       time.Time `json:"at"`
}

// OutboxRow is a pending outbox record awaiting publication.
type OutboxRow struct {
	ID          int64  `db:"id"`
	Aggregate   string `db:"aggregate"`
	AggregateID string `db:"aggregate_id"`
	Topic       string `db:"topic"`
	Payload     []byte `db:"payload"`
}
