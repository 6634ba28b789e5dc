package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

// Chat handles one conversational turn.
// POST /v1/chat
//
// Turns where the agent failed still answer 200 with status "error".
func (h *Handler) Chat(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.HandleTurn(ctx, req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetSession returns a conversation session.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	info, err := h.service.GetSession(ctx, sessionID)
	if err != nil {
		return errorJSON(c, err)
	}
	if info == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	return c.JSON(http.StatusOK, info)
}
