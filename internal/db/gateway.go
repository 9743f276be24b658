package db

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// TxRunner runs a function inside a single database transaction. The
// transaction is rolled back when fn returns an error and committed
// otherwise; rollback on every exit path is guaranteed.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// Gateway is the sqlx-backed TxRunner used by the services.
type Gateway struct {
	db *sqlx.DB
}

func NewGateway(db *sqlx.DB) *Gateway { return &Gateway{db: db} }

var _ TxRunner = (*Gateway)(nil)

func (g *Gateway) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
