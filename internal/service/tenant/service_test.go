package tenant

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type mockDirectory struct {
	mu   sync.Mutex
	ids  map[string]int64
	next int64
	err  error
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{ids: make(map[string]int64)}
}

func (m *mockDirectory) FindOrCreate(ctx context.Context, subject, email string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.ids[subject]; ok {
		return id, nil
	}
	m.next++
	m.ids[subject] = m.next
	return m.next, nil
}

type mockProvisioner struct {
	mu    sync.Mutex
	calls map[int64]int
	err   error
}

func newMockProvisioner() *mockProvisioner {
	return &mockProvisioner{calls: make(map[int64]int)}
}

func (m *mockProvisioner) EnsureTenantTables(ctx context.Context, tenantID int64) error {
	m.mu.Lock()
	m.calls[tenantID]++
	m.mu.Unlock()
	return m.err
}

func (m *mockProvisioner) callCount(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

func TestService_Resolve(t *testing.T) {
	t.Run("Idempotent Registration", func(t *testing.T) {
		dir := newMockDirectory()
		prov := newMockProvisioner()
		svc := NewService(dir, prov, NewCache())

		first, err := svc.Resolve(context.Background(), "sub-1", "a@x.com")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := svc.Resolve(context.Background(), "sub-1", "a@x.com")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if first != second {
			t.Errorf("expected same tenant id, got %d and %d", first, second)
		}
	})

	t.Run("Provisions Once When Cached", func(t *testing.T) {
		dir := newMockDirectory()
		prov := newMockProvisioner()
		svc := NewService(dir, prov, NewCache())

		id, err := svc.Resolve(context.Background(), "sub-1", "a@x.com")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := svc.Resolve(context.Background(), "sub-1", "a@x.com"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := prov.callCount(id); got != 1 {
			t.Errorf("expected 1 provisioning call, got %d", got)
		}
	})

	t.Run("Eviction Forces Re-Provisioning", func(t *testing.T) {
		dir := newMockDirectory()
		prov := newMockProvisioner()
		cache := NewCache()
		svc := NewService(dir, prov, cache)

		id, err := svc.Resolve(context.Background(), "sub-1", "a@x.com")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		cache.Evict(id)
		if _, err := svc.Resolve(context.Background(), "sub-1", "a@x.com"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := prov.callCount(id); got != 2 {
			t.Errorf("expected 2 provisioning calls after eviction, got %d", got)
		}
	})

	t.Run("Empty Subject Rejected", func(t *testing.T) {
		svc := NewService(newMockDirectory(), newMockProvisioner(), NewCache())
		if _, err := svc.Resolve(context.Background(), "", "a@x.com"); err == nil {
			t.Fatal("expected an error, got nil")
		}
	})

	t.Run("Directory Error Propagates", func(t *testing.T) {
		dir := newMockDirectory()
		dir.err = errors.New("db down")
		svc := NewService(dir, newMockProvisioner(), NewCache())
		if _, err := svc.Resolve(context.Background(), "sub-1", "a@x.com"); err == nil {
			t.Fatal("expected an error, got nil")
		}
	})

	t.Run("Provisioner Error Leaves Cache Cold", func(t *testing.T) {
		dir := newMockDirectory()
		prov := newMockProvisioner()
		prov.err = errors.New("ddl failed")
		cache := NewCache()
		svc := NewService(dir, prov, cache)

		if _, err := svc.Resolve(context.Background(), "sub-1", "a@x.com"); err == nil {
			t.Fatal("expected an error, got nil")
		}

		// retry succeeds once provisioning recovers
		prov.err = nil
		id, err := svc.Resolve(context.Background(), "sub-1", "a@x.com")
		if err != nil {
			t.Fatalf("expected no error on retry, got %v", err)
		}
		if !cache.Has(id) {
			t.Error("expected cache entry after successful retry")
		}
	})

	t.Run("Concurrent First Resolve", func(t *testing.T) {
		dir := newMockDirectory()
		prov := newMockProvisioner()
		svc := NewService(dir, prov, NewCache())

		const n = 16
		ids := make([]int64, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i], errs[i] = svc.Resolve(context.Background(), "sub-race", "r@x.com")
			}(i)
		}
		wg.Wait()

		for i := 0; i < n; i++ {
			if errs[i] != nil {
				t.Fatalf("resolve %d failed: %v", i, errs[i])
			}
			if ids[i] != ids[0] {
				t.Fatalf("resolve %d returned id %d, want %d", i, ids[i], ids[0])
			}
		}
		if got := prov.callCount(ids[0]); got < 1 {
			t.Errorf("expected at least one provisioning call, got %d", got)
		}
	})
}

func TestCache(t *testing.T) {
	c := NewCache()

	if c.Has(1) {
		t.Error("fresh cache should be empty")
	}
	c.Add(1)
	if !c.Has(1) {
		t.Error("expected id 1 after Add")
	}
	c.Evict(1)
	if c.Has(1) {
		t.Error("expected id 1 gone after Evict")
	}

	c.Add(2)
	c.Add(3)
	c.Reset()
	if c.Has(2) || c.Has(3) {
		t.Error("expected empty cache after Reset")
	}
}
