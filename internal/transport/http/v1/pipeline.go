package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PipelineRequest starts a verification pipeline.
type PipelineRequest struct {
	CustomerID string `json:"customer_id"`
}

// StartPipeline starts a pipeline run. With ?wait=true the request blocks
// until the final recommendation is stored.
// POST /v1/pipeline/runs
func (h *Handler) StartPipeline(c echo.Context) error {
	ctx := c.Request().Context()

	var req PipelineRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.CustomerID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "customer_id is required"})
	}

	if c.QueryParam("wait") == "true" {
		result, err := h.service.RunPipeline(ctx, req.CustomerID)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, result)
	}

	run, err := h.service.StartPipeline(ctx, req.CustomerID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusAccepted, run)
}

// GetPipelineRun returns a pipeline run.
// GET /v1/pipeline/runs/:run_id
func (h *Handler) GetPipelineRun(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	run, err := h.service.GetPipelineRun(ctx, runID)
	if err != nil {
		return errorJSON(c, err)
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	return c.JSON(http.StatusOK, run)
}
