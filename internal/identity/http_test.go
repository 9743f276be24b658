package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProvider_Verify(t *testing.T) {
	t.Run("Valid Token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/user" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
				t.Errorf("unexpected authorization header %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"sub-1","email":"a@x.com"}`))
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, "svc-key", 0, 0, 0)
		ident, err := p.Verify(context.Background(), "tok-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ident.Subject != "sub-1" || ident.Email != "a@x.com" {
			t.Errorf("unexpected identity %+v", ident)
		}
	})

	t.Run("Rejected Token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, "svc-key", 0, 0, 0)
		_, err := p.Verify(context.Background(), "bad")
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("Missing Subject", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"email":"a@x.com"}`))
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, "svc-key", 0, 0, 0)
		if _, err := p.Verify(context.Background(), "tok"); err == nil {
			t.Fatal("expected an error for a response without a subject")
		}
	})

	t.Run("Breaker Opens After Repeated Failures", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, "svc-key", 0, 2, 60000)
		for i := 0; i < 2; i++ {
			if _, err := p.Verify(context.Background(), "tok"); err == nil {
				t.Fatal("expected an error from the failing provider")
			}
		}

		_, err := p.Verify(context.Background(), "tok")
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable once open, got %v", err)
		}
	})

	t.Run("Rejections Do Not Trip The Breaker", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, "svc-key", 0, 2, 60000)
		for i := 0; i < 5; i++ {
			_, err := p.Verify(context.Background(), "bad")
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized on attempt %d, got %v", i, err)
			}
		}
	})
}

func TestHTTPProvider_DeleteUser(t *testing.T) {
	t.Run("Deleted", func(t *testing.T) {
		var gotPath, gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			if r.Method != http.MethodDelete {
				t.Errorf("unexpected method %s", r.Method)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, "svc-key", 0, 0, 0)
		if err := p.DeleteUser(context.Background(), "sub-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if gotPath != "/admin/users/sub-1" {
			t.Errorf("unexpected path %q", gotPath)
		}
		if gotAuth != "Bearer svc-key" {
			t.Errorf("expected the service key, got %q", gotAuth)
		}
	})

	t.Run("Already Deleted", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, "svc-key", 0, 0, 0)
		if err := p.DeleteUser(context.Background(), "gone"); err != nil {
			t.Fatalf("expected 404 to be treated as success, got %v", err)
		}
	})

	t.Run("Server Error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		p := NewHTTPProvider(srv.URL, "svc-key", 0, 0, 0)
		if err := p.DeleteUser(context.Background(), "sub-1"); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestBreaker(t *testing.T) {
	br := newBreaker(2, time.Minute)

	if !br.allow() {
		t.Fatal("closed breaker must allow")
	}

	br.failure()
	if !br.allow() {
		t.Fatal("one failure below the threshold must not open the breaker")
	}

	br.failure()
	if br.allow() {
		t.Fatal("breaker must open at the threshold")
	}

	// a success resets the count once the breaker lets a probe through
	br2 := newBreaker(2, time.Minute)
	br2.failure()
	br2.success()
	br2.failure()
	if !br2.allow() {
		t.Fatal("success must reset the failure count")
	}
}
