package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmehdipour/billing-backend/internal/model"
	"github.com/jmoiron/sqlx"
)

// BillsRepository runs tenant-scoped SQL against the tenant's private
// tables. Every method derives (and re-validates) the table names from
// the numeric tenant id.
type BillsRepository interface {
	// List joins bills to customers. Row order is unspecified; callers
	// must not assume one.
	List(ctx context.Context, tenantID int64) ([]model.Bill, error)
	InsertCustomer(ctx context.Context, tx *sqlx.Tx, tenantID int64, name, contact, email string) (int64, error)
	InsertBill(ctx context.Context, tx *sqlx.Tx, tenantID, customerID int64, amount float64) (int64, error)
	// CustomerIDForBill returns ErrNotFound when the bill is absent.
	CustomerIDForBill(ctx context.Context, tx *sqlx.Tx, tenantID, billID int64) (int64, error)
	UpdateAmount(ctx context.Context, tx *sqlx.Tx, tenantID, billID int64, amount float64) error
	// UpdateCustomerFields applies only the supplied subset of fields;
	// an empty patch is a no-op, never a NULL write.
	UpdateCustomerFields(ctx context.Context, tx *sqlx.Tx, tenantID, customerID int64, patch model.BillPatch) error
	DeleteBill(ctx context.Context, tx *sqlx.Tx, tenantID, billID int64) error
	CountBillsForCustomer(ctx context.Context, tx *sqlx.Tx, tenantID, customerID int64) (int64, error)
	DeleteCustomer(ctx context.Context, tx *sqlx.Tx, tenantID, customerID int64) error
	Stats(ctx context.Context, tenantID int64) (model.Stats, error)
}

type BillsRepositoryImpl struct {
	db *sqlx.DB
}

func NewBillsRepository(db *sqlx.DB) *BillsRepositoryImpl {
	return &BillsRepositoryImpl{db: db}
}

var _ BillsRepository = (*BillsRepositoryImpl)(nil)

func (r *BillsRepositoryImpl) execer(tx *sqlx.Tx) sqlx.ExecerContext {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *BillsRepositoryImpl) queryer(tx *sqlx.Tx) sqlx.QueryerContext {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *BillsRepositoryImpl) List(ctx context.Context, tenantID int64) ([]model.Bill, error) {
	customers, bills, err := tenantTables(tenantID)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		SELECT b.id, c.name, c.contact, c.email, b.amount, b.date
		  FROM %s b
		  JOIN %s c ON b.customer_id = c.id
	`, bills, customers)

	var out []model.Bill
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *BillsRepositoryImpl) InsertCustomer(ctx context.Context, tx *sqlx.Tx, tenantID int64, name, contact, email string) (int64, error) {
	customers, _, err := tenantTables(tenantID)
	if err != nil {
		return 0, err
	}

	q := fmt.Sprintf(`INSERT INTO %s (name, contact, email) VALUES (?, ?, ?)`, customers)
	res, err := r.execer(tx).ExecContext(ctx, q, name, contact, email)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *BillsRepositoryImpl) InsertBill(ctx context.Context, tx *sqlx.Tx, tenantID, customerID int64, amount float64) (int64, error) {
	_, bills, err := tenantTables(tenantID)
	if err != nil {
		return 0, err
	}

	q := fmt.Sprintf(`INSERT INTO %s (customer_id, amount) VALUES (?, ?)`, bills)
	res, err := r.execer(tx).ExecContext(ctx, q, customerID, amount)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *BillsRepositoryImpl) CustomerIDForBill(ctx context.Context, tx *sqlx.Tx, tenantID, billID int64) (int64, error) {
	_, bills, err := tenantTables(tenantID)
	if err != nil {
		return 0, err
	}

	var customerID int64
	q := fmt.Sprintf(`SELECT customer_id FROM %s WHERE id = ?`, bills)
	err = sqlx.GetContext(ctx, r.queryer(tx), &customerID, q, billID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return customerID, nil
}

func (r *BillsRepositoryImpl) UpdateAmount(ctx context.Context, tx *sqlx.Tx, tenantID, billID int64, amount float64) error {
	_, bills, err := tenantTables(tenantID)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`UPDATE %s SET amount = ? WHERE id = ?`, bills)
	_, err = r.execer(tx).ExecContext(ctx, q, amount, billID)
	return err
}

func (r *BillsRepositoryImpl) UpdateCustomerFields(ctx context.Context, tx *sqlx.Tx, tenantID, customerID int64, patch model.BillPatch) error {
	if patch.Empty() {
		return nil
	}

	customers, _, err := tenantTables(tenantID)
	if err != nil {
		return err
	}

	var sets []string
	var args []any
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Contact != nil {
		sets = append(sets, "contact = ?")
		args = append(args, *patch.Contact)
	}
	if patch.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *patch.Email)
	}
	args = append(args, customerID)

	q := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, customers, strings.Join(sets, ", "))
	_, err = r.execer(tx).ExecContext(ctx, q, args...)
	return err
}

func (r *BillsRepositoryImpl) DeleteBill(ctx context.Context, tx *sqlx.Tx, tenantID, billID int64) error {
	_, bills, err := tenantTables(tenantID)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, bills)
	_, err = r.execer(tx).ExecContext(ctx, q, billID)
	return err
}

func (r *BillsRepositoryImpl) CountBillsForCustomer(ctx context.Context, tx *sqlx.Tx, tenantID, customerID int64) (int64, error) {
	_, bills, err := tenantTables(tenantID)
	if err != nil {
		return 0, err
	}

	var n int64
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE customer_id = ?`, bills)
	if err := sqlx.GetContext(ctx, r.queryer(tx), &n, q, customerID); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *BillsRepositoryImpl) DeleteCustomer(ctx context.Context, tx *sqlx.Tx, tenantID, customerID int64) error {
	customers, _, err := tenantTables(tenantID)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, customers)
	_, err = r.execer(tx).ExecContext(ctx, q, customerID)
	return err
}

func (r *BillsRepositoryImpl) Stats(ctx context.Context, tenantID int64) (model.Stats, error) {
	customers, bills, err := tenantTables(tenantID)
	if err != nil {
		return model.Stats{}, err
	}

	var s model.Stats
	if err := r.db.GetContext(ctx, &s.CustomerCount, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, customers)); err != nil {
		return model.Stats{}, fmt.Errorf("customer count: %w", err)
	}
	if err := r.db.GetContext(ctx, &s.BillCount, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, bills)); err != nil {
		return model.Stats{}, fmt.Errorf("bill count: %w", err)
	}
	// COALESCE: SUM over zero rows is NULL
	if err := r.db.GetContext(ctx, &s.TotalAmount, fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0) FROM %s`, bills)); err != nil {
		return model.Stats{}, fmt.Errorf("total amount: %w", err)
	}
	return s, nil
}
