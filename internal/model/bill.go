package model

import "time"

// Bill is a bill row joined with its customer, as returned by get_bills.
type Bill struct {
	ID      int64     `db:"id" json:"id"`
	Name    string    `db:"name" json:"name"`
	Contact string    `db:"contact" json:"contact"`
	Email   string    `db:"email" json:"email"`
	Amount  float64   `db:"amount" json:"amount"`
	Date    time.Time `db:"date" json:"date"`
}

// BillPatch carries the optional fields of update_bill. Nil means the
// field was not supplied and must be left untouched.
type BillPatch struct {
	Amount  *float64 `json:"amount"`
	Name    *string  `json:"name"`
	Contact *string  `json:"contact"`
	Email   *string  `json:"email"`
}

// Empty reports whether no customer field was supplied.
func (p BillPatch) Empty() bool {
	return p.Name == nil && p.Contact == nil && p.Email == nil
}

// Stats is the per-tenant aggregate view.
type Stats struct {
	CustomerCount int64   `json:"customer_count"`
	BillCount     int64   `json:"bill_count"`
	TotalAmount   float64 `json:"total_amount"`
}

// TenantData is one tenant's slice of the admin report.
type TenantData struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Bills  []Bill `json:"bills"`
}

// AdminReport is the view-all-data payload.
type AdminReport struct {
	TotalUsers   int          `json:"total_users"`
	TotalRecords int          `json:"total_records"`
	Data         []TenantData `json:"data"`
}
