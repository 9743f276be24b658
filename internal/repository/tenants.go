package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/billing-backend/internal/model"
	"github.com/jmoiron/sqlx"
)

// Authentication is external, so the tenants table carries a fixed
// credential marker instead of a real password hash.
const placeholderCredential = "external-identity"

// mysqlDupEntry is MySQL error 1062 (duplicate key).
const mysqlDupEntry = 1062

// TenantsRepository is the tenant directory: it maps external identity
// subjects to internal tenant ids.
type TenantsRepository interface {
	// FindBySubject returns nil, nil when the subject is unknown.
	FindBySubject(ctx context.Context, tx *sqlx.Tx, subject string) (*model.Tenant, error)
	// Create inserts a new tenant row. Returns ErrConflict when the
	// subject is already registered.
	Create(ctx context.Context, tx *sqlx.Tx, subject, email string) (int64, error)
	// FindOrCreate runs the find/create/re-fetch sequence in one
	// transaction. A duplicate-key race means another request won; the
	// winner's id is returned.
	FindOrCreate(ctx context.Context, subject, email string) (int64, error)
	// Delete removes the tenant row. Returns ErrNotFound when absent.
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
	ListAll(ctx context.Context) ([]model.Tenant, error)
	// EnsureSubjectColumn is startup-time schema evolution: adds the
	// nullable unique subject column when an older tenants table
	// predates it. Run once at process start.
	EnsureSubjectColumn(ctx context.Context) error
}

type TenantsRepositoryImpl struct {
	db *sqlx.DB
}

func NewTenantsRepository(db *sqlx.DB) *TenantsRepositoryImpl {
	return &TenantsRepositoryImpl{db: db}
}

var _ TenantsRepository = (*TenantsRepositoryImpl)(nil)

func (r *TenantsRepositoryImpl) queryer(tx *sqlx.Tx) sqlx.QueryerContext {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *TenantsRepositoryImpl) execer(tx *sqlx.Tx) sqlx.ExecerContext {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *TenantsRepositoryImpl) FindBySubject(ctx context.Context, tx *sqlx.Tx, subject string) (*model.Tenant, error) {
	var t model.Tenant
	err := sqlx.GetContext(ctx, r.queryer(tx), &t, `
		SELECT id, subject, email, created_at
		  FROM tenants
		 WHERE subject = ? LIMIT 1
	`, subject)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TenantsRepositoryImpl) Create(ctx context.Context, tx *sqlx.Tx, subject, email string) (int64, error) {
	res, err := r.execer(tx).ExecContext(ctx, `
		INSERT INTO tenants (subject, email, password, created_at)
		VALUES (?, ?, ?, NOW())
	`, subject, email, placeholderCredential)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDupEntry {
			return 0, ErrConflict
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (r *TenantsRepositoryImpl) FindOrCreate(ctx context.Context, subject, email string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}

	t, err := r.FindBySubject(ctx, tx, subject)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("find tenant: %w", err)
	}
	if t != nil {
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		return t.ID, nil
	}

	id, err := r.Create(ctx, tx, subject, email)
	if errors.Is(err, ErrConflict) {
		// Lost the registration race. The transaction's REPEATABLE READ
		// snapshot predates the winner's commit, so a re-SELECT inside
		// it would still see no row; roll back and read on the pool.
		_ = tx.Rollback()
		t, err := r.FindBySubject(ctx, nil, subject)
		if err != nil {
			return 0, fmt.Errorf("re-fetch tenant after conflict: %w", err)
		}
		if t == nil {
			return 0, fmt.Errorf("tenant missing after duplicate-subject conflict")
		}
		return t.ID, nil
	}
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("create tenant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *TenantsRepositoryImpl) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	res, err := r.execer(tx).ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TenantsRepositoryImpl) ListAll(ctx context.Context) ([]model.Tenant, error) {
	var ts []model.Tenant
	err := r.db.SelectContext(ctx, &ts, `
		SELECT id, COALESCE(subject, '') AS subject, email, created_at
		  FROM tenants
	`)
	if err != nil {
		return nil, err
	}
	return ts, nil
}

func (r *TenantsRepositoryImpl) EnsureSubjectColumn(ctx context.Context) error {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*)
		  FROM information_schema.columns
		 WHERE table_schema = DATABASE()
		   AND table_name = 'tenants'
		   AND column_name = 'subject'
	`)
	if err != nil {
		return fmt.Errorf("probe subject column: %w", err)
	}
	if n > 0 {
		return nil
	}

	_, err = r.db.ExecContext(ctx, `
		ALTER TABLE tenants
		  ADD COLUMN subject VARCHAR(191) NULL,
		  ADD UNIQUE KEY uq_tenants_subject (subject)
	`)
	if err != nil {
		return fmt.Errorf("add subject column: %w", err)
	}
	return nil
}
