package repository

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/jmoiron/sqlx"
)

// Tenant table names embed the numeric tenant id. The suffix is
// whitelisted to digits before any interpolation so a manipulated
// identity claim can never reach a statement as an identifier.
var tenantSuffixRE = regexp.MustCompile(`^[0-9]+$`)

// tenantTables derives the per-tenant table names for a tenant id.
func tenantTables(tenantID int64) (customers, bills string, err error) {
	if tenantID <= 0 {
		return "", "", fmt.Errorf("invalid tenant id %d", tenantID)
	}
	sfx := strconv.FormatInt(tenantID, 10)
	if !tenantSuffixRE.MatchString(sfx) {
		return "", "", fmt.Errorf("invalid tenant table suffix %q", sfx)
	}
	return "customers_" + sfx, "bills_" + sfx, nil
}

// ProvisionRepository owns the lifecycle of a tenant's private tables.
// MySQL auto-commits DDL, so these run on the pool handle rather than
// inside the directory transaction; safety under concurrent first-time
// provisioning comes from CREATE TABLE IF NOT EXISTS idempotency.
type ProvisionRepository interface {
	// TablesExist probes both tenant tables by name.
	TablesExist(ctx context.Context, tenantID int64) (bool, error)
	// EnsureTenantTables creates the customer table first, then the bill
	// table with a cascading foreign key. Safe to call when they exist.
	EnsureTenantTables(ctx context.Context, tenantID int64) error
	// DropTenantTables drops bills first (FK), then customers.
	DropTenantTables(ctx context.Context, tenantID int64) error
}

type ProvisionRepositoryImpl struct {
	db *sqlx.DB
}

func NewProvisionRepository(db *sqlx.DB) *ProvisionRepositoryImpl {
	return &ProvisionRepositoryImpl{db: db}
}

var _ ProvisionRepository = (*ProvisionRepositoryImpl)(nil)

func (r *ProvisionRepositoryImpl) TablesExist(ctx context.Context, tenantID int64) (bool, error) {
	customers, bills, err := tenantTables(tenantID)
	if err != nil {
		return false, err
	}

	var n int
	err = r.db.GetContext(ctx, &n, `
		SELECT COUNT(*)
		  FROM information_schema.tables
		 WHERE table_schema = DATABASE()
		   AND table_name IN (?, ?)
	`, customers, bills)
	if err != nil {
		return false, fmt.Errorf("probe tenant tables: %w", err)
	}
	return n == 2, nil
}

func (r *ProvisionRepositoryImpl) EnsureTenantTables(ctx context.Context, tenantID int64) error {
	customers, bills, err := tenantTables(tenantID)
	if err != nil {
		return err
	}

	exists, err := r.TablesExist(ctx, tenantID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	createCustomers := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT,
			name VARCHAR(255) NOT NULL,
			contact VARCHAR(255) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id)
		) ENGINE=InnoDB
	`, customers)
	if _, err := r.db.ExecContext(ctx, createCustomers); err != nil {
		return fmt.Errorf("create %s: %w", customers, err)
	}

	createBills := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT,
			customer_id INT UNSIGNED NOT NULL,
			amount DECIMAL(10,2) NOT NULL,
			date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			KEY idx_customer (customer_id),
			CONSTRAINT fk_%s_customer FOREIGN KEY (customer_id)
				REFERENCES %s (id) ON DELETE CASCADE
		) ENGINE=InnoDB
	`, bills, bills, customers)
	if _, err := r.db.ExecContext(ctx, createBills); err != nil {
		return fmt.Errorf("create %s: %w", bills, err)
	}

	return nil
}

func (r *ProvisionRepositoryImpl) DropTenantTables(ctx context.Context, tenantID int64) error {
	customers, bills, err := tenantTables(tenantID)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", bills)); err != nil {
		return fmt.Errorf("drop %s: %w", bills, err)
	}
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", customers)); err != nil {
		return fmt.Errorf("drop %s: %w", customers, err)
	}
	return nil
}
