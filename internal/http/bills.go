package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/billing-backend/internal/http/middleware"
	"github.com/jmehdipour/billing-backend/internal/model"
	"github.com/jmehdipour/billing-backend/internal/repository"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type addBillReq struct {
	Name    string  `json:"name"`
	Contact string  `json:"contact"`
	Email   string  `json:"email"`
	Amount  float64 `json:"amount"`
}

// resolveTenant runs the bearer identity through the tenant resolver.
func resolveTenant(c echo.Context, resolver Resolver) (int64, string, error) {
	ident, ok := middleware.IdentityFromCtx(c)
	if !ok || ident.Subject == "" {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := resolver.Resolve(c.Request().Context(), ident.Subject, ident.Email)
	if err != nil {
		return 0, "", err
	}
	return id, ident.Subject, nil
}

func getBillsHandler(resolver Resolver, svc BillingService) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, _, err := resolveTenant(c, resolver)
		if err != nil {
			return internalError(c, err)
		}

		bills, err := svc.ListBills(c.Request().Context(), tenantID)
		if err != nil {
			log.Errorf("list bills failed: %v", err)
			return internalError(c, err)
		}
		if bills == nil {
			bills = []model.Bill{}
		}
		return c.JSON(http.StatusOK, bills)
	}
}

func addBillHandler(resolver Resolver, svc BillingService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req addBillReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
		}

		tenantID, _, err := resolveTenant(c, resolver)
		if err != nil {
			return internalError(c, err)
		}

		if _, err := svc.AddBill(c.Request().Context(), tenantID, req.Name, req.Contact, req.Email, req.Amount); err != nil {
			log.Errorf("add bill failed: %v", err)
			return internalError(c, err)
		}
		return c.JSON(http.StatusCreated, map[string]string{"message": "Bill added successfully"})
	}
}

func updateBillHandler(resolver Resolver, svc BillingService) echo.HandlerFunc {
	return func(c echo.Context) error {
		billID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || billID <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid bill id"})
		}

		var patch model.BillPatch
		if err := c.Bind(&patch); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		tenantID, _, err := resolveTenant(c, resolver)
		if err != nil {
			return internalError(c, err)
		}

		if err := svc.UpdateBill(c.Request().Context(), tenantID, billID, patch); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"message": "Bill not found"})
			}
			log.Errorf("update bill failed: %v", err)
			return internalError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "Bill updated successfully"})
	}
}

func deleteBillHandler(resolver Resolver, svc BillingService) echo.HandlerFunc {
	return func(c echo.Context) error {
		billID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || billID <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid bill id"})
		}

		tenantID, _, err := resolveTenant(c, resolver)
		if err != nil {
			return internalError(c, err)
		}

		if err := svc.DeleteBill(c.Request().Context(), tenantID, billID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"message": "Bill not found"})
			}
			log.Errorf("delete bill failed: %v", err)
			return internalError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "Bill deleted successfully"})
	}
}

// internalError maps non-business errors to a 500 with the raw message
// echoed (internal-tool posture) while letting echo HTTP errors pass.
func internalError(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
