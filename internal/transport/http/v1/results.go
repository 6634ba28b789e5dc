package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListResults returns every stored record of a customer, oldest first.
// GET /v1/customers/:customer_id/results
func (h *Handler) ListResults(c echo.Context) error {
	ctx := c.Request().Context()
	customerID := c.Param("customer_id")

	results, err := h.service.ListResults(ctx, customerID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"customer_id": customerID,
		"results":     results,
	})
}

// ListNotifications returns the notifications queued for a customer.
// GET /v1/customers/:customer_id/notifications
func (h *Handler) ListNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	customerID := c.Param("customer_id")

	notes, err := h.service.ListNotifications(ctx, customerID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"customer_id":   customerID,
		"notifications": notes,
	})
}
