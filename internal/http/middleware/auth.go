package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jmehdipour/billing-backend/internal/identity"
	"github.com/jmehdipour/billing-backend/internal/metrics"
	echo "github.com/labstack/echo/v4"
)

const ctxIdentityKey = "identity"

// IdentityFromCtx extracts the verified identity set by BearerAuth.
func IdentityFromCtx(c echo.Context) (identity.Identity, bool) {
	v := c.Get(ctxIdentityKey)
	ident, ok := v.(identity.Identity)
	return ident, ok
}

// BearerAuth authenticates requests by handing the Authorization bearer
// token to the external identity provider. On success it stores the
// verified identity in context.
func BearerAuth(provider identity.Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := strings.TrimSpace(c.Request().Header.Get("Authorization"))
			if h == "" || !strings.HasPrefix(h, "Bearer ") {
				metrics.AuthFailuresTotal.Inc()
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}
			token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			if token == "" {
				metrics.AuthFailuresTotal.Inc()
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}

			ident, err := provider.Verify(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, identity.ErrUnauthorized) {
					metrics.AuthFailuresTotal.Inc()
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
				}
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}

			c.Set(ctxIdentityKey, ident)
			return next(c)
		}
	}
}
