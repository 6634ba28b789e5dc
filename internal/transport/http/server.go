// Package http provides the HTTP server implementation for the loan orchestrator.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/globaltrustbank/loanorch/internal/service"
	v1 "github.com/globaltrustbank/loanorch/internal/transport/http/v1"
	"github.com/globaltrustbank/loanorch/internal/transport/ws"
)

// NewServer creates and configures the HTTP server: the v1 API, the chat
// websocket, health and metrics.
func NewServer(svc *service.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)
	wsHandler := ws.NewHandler(svc)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	wsHandler.RegisterRoutes(e)

	return e
}
