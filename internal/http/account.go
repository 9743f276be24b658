package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/billing-backend/internal/http/middleware"
	"github.com/jmehdipour/billing-backend/internal/repository"
	"github.com/jmoiron/sqlx"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

func dbCheckHandler(dbx *sqlx.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := dbx.PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"status":  "error",
				"message": "Failed to connect to MySQL database.",
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "success",
			"message": "Connected to MySQL database successfully.",
		})
	}
}

// checkAuthHandler doubles as the registration probe: the first
// authenticated call creates the tenant row and its tables.
func checkAuthHandler(resolver Resolver) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, ok := middleware.IdentityFromCtx(c)
		if !ok || ident.Subject == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		if _, err := resolver.Resolve(c.Request().Context(), ident.Subject, ident.Email); err != nil {
			log.Errorf("resolve tenant failed: %v", err)
			return internalError(c, err)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"authenticated": true,
			"user": map[string]string{
				"id":    ident.Subject,
				"email": ident.Email,
			},
		})
	}
}

func userStatsHandler(resolver Resolver, svc BillingService) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, _, err := resolveTenant(c, resolver)
		if err != nil {
			return internalError(c, err)
		}

		stats, err := svc.UserStats(c.Request().Context(), tenantID)
		if err != nil {
			log.Errorf("user stats failed: %v", err)
			return internalError(c, err)
		}
		return c.JSON(http.StatusOK, stats)
	}
}

func deleteAccountHandler(resolver Resolver, svc BillingService) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, subject, err := resolveTenant(c, resolver)
		if err != nil {
			return internalError(c, err)
		}

		if err := svc.DeleteAccount(c.Request().Context(), tenantID, subject); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]any{
					"success": false,
					"message": "Account not found",
				})
			}
			log.Errorf("delete account failed: %v", err)
			return internalError(c, err)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"message": "Account deleted successfully",
		})
	}
}
