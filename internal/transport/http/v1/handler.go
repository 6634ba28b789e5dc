// Package v1 provides the versioned HTTP API of the loan orchestrator.
package v1

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/globaltrustbank/loanorch/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Conversation API
	e.POST("/v1/chat", h.Chat)
	e.GET("/v1/sessions/:session_id", h.GetSession)

	// Pipeline API
	e.POST("/v1/pipeline/runs", h.StartPipeline)
	e.GET("/v1/pipeline/runs/:run_id", h.GetPipelineRun)

	// Stored records
	e.GET("/v1/customers/:customer_id/results", h.ListResults)
	e.GET("/v1/customers/:customer_id/notifications", h.ListNotifications)

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCustomerID), errors.Is(err, service.ErrEmptyMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorJSON reports client errors as-is; server errors are only logged.
func errorJSON(c echo.Context, err error) error {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("ERROR: %s %s failed: %v", c.Request().Method, c.Request().URL.Path, err)
		return c.JSON(status, map[string]string{"error": "internal server error"})
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
