package model

import "time"

// Tenant maps one external identity subject to an internal account.
// Its per-tenant tables (customers_<id>, bills_<id>) are created lazily
// on first resolve, not at registration time.
type Tenant struct {
	ID        int64     `db:"id"`
	Subject   string    `db:"subject"` // unique identity-provider subject
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}
