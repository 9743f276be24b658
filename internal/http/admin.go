package http

import (
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// viewAllDataHandler requires only a valid credential, not an admin
// role. Add a role check before exposing this publicly.
func viewAllDataHandler(svc BillingService) echo.HandlerFunc {
	return func(c echo.Context) error {
		report, err := svc.ViewAllData(c.Request().Context())
		if err != nil {
			log.Errorf("view all data failed: %v", err)
			return internalError(c, err)
		}
		return c.JSON(http.StatusOK, report)
	}
}
