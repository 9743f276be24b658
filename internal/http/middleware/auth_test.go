package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmehdipour/billing-backend/internal/identity"
	echo "github.com/labstack/echo/v4"
)

type fakeProvider struct {
	ident identity.Identity
	err   error
	token string
}

func (p *fakeProvider) Verify(ctx context.Context, token string) (identity.Identity, error) {
	p.token = token
	return p.ident, p.err
}

func (p *fakeProvider) DeleteUser(ctx context.Context, subject string) error { return nil }

func invoke(t *testing.T, provider identity.Provider, authHeader string) (*httptest.ResponseRecorder, identity.Identity, bool) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/get_bills", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var ident identity.Identity
	var ok bool
	h := BearerAuth(provider)(func(c echo.Context) error {
		ident, ok = IdentityFromCtx(c)
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec, ident, ok
}

func TestBearerAuth(t *testing.T) {
	t.Run("Valid Token", func(t *testing.T) {
		p := &fakeProvider{ident: identity.Identity{Subject: "sub-1", Email: "a@x.com"}}

		rec, ident, ok := invoke(t, p, "Bearer tok-1")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if p.token != "tok-1" {
			t.Errorf("expected the raw token forwarded, got %q", p.token)
		}
		if !ok || ident.Subject != "sub-1" {
			t.Errorf("expected identity in context, got ok=%v ident=%+v", ok, ident)
		}
	})

	t.Run("Missing Header", func(t *testing.T) {
		rec, _, ok := invoke(t, &fakeProvider{}, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if ok {
			t.Error("expected no identity in context")
		}
	})

	t.Run("Non-Bearer Scheme", func(t *testing.T) {
		rec, _, _ := invoke(t, &fakeProvider{}, "Basic dXNlcjpwYXNz")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("Empty Token", func(t *testing.T) {
		rec, _, _ := invoke(t, &fakeProvider{}, "Bearer   ")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("Rejected Token", func(t *testing.T) {
		p := &fakeProvider{err: identity.ErrUnauthorized}

		rec, _, _ := invoke(t, p, "Bearer expired")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "invalid or expired token") {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
	})

	t.Run("Provider Unavailable", func(t *testing.T) {
		p := &fakeProvider{err: identity.ErrUnavailable}

		rec, _, _ := invoke(t, p, "Bearer tok-1")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}
