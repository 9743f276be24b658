package repository

import "testing"

func TestTenantTables(t *testing.T) {
	t.Run("Valid ID", func(t *testing.T) {
		customers, bills, err := tenantTables(42)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if customers != "customers_42" {
			t.Errorf("expected customers_42, got %q", customers)
		}
		if bills != "bills_42" {
			t.Errorf("expected bills_42, got %q", bills)
		}
	})

	t.Run("Rejects Non-Positive IDs", func(t *testing.T) {
		for _, id := range []int64{0, -1, -42} {
			if _, _, err := tenantTables(id); err == nil {
				t.Errorf("expected an error for id %d", id)
			}
		}
	})
}

func TestTenantSuffixRE(t *testing.T) {
	valid := []string{"1", "42", "9007199254740993"}
	for _, s := range valid {
		if !tenantSuffixRE.MatchString(s) {
			t.Errorf("expected %q to match", s)
		}
	}

	invalid := []string{"", "1; DROP TABLE tenants", "42 OR 1=1", "-1", "4a2"}
	for _, s := range invalid {
		if tenantSuffixRE.MatchString(s) {
			t.Errorf("expected %q not to match", s)
		}
	}
}
