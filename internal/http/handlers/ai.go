package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// @Summary AI insights
// @Description Runs the analysis over the whole current state. Falls back to a heuristic insight when the model is unavailable.
// @Tags ai
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Failure 500 {object} map[string]any
// @Router /api/ai/insights [get]
func (h *Handler) AIInsights(c *gin.Context) {
	report, err := h.Insights.Insights(c.Request.Context())
	if err != nil {
		handleError(c, err, "Insights not found")
		return
	}
	writeOK(c, http.StatusOK, report)
}

// @Summary Detected conflicts
// @Description Deterministic over-allocation, overlap and under-utilisation report.
// @Tags ai
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /api/ai/conflicts [get]
func (h *Handler) AIConflicts(c *gin.Context) {
	report, err := h.Insights.Conflicts(c.Request.Context())
	if err != nil {
		handleError(c, err, "Conflicts not found")
		return
	}
	writeOK(c, http.StatusOK, report)
}

// @Summary Persisted conflicts
// @Description Conflicts recorded by the nightly deep analysis, newest first.
// @Tags ai
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max records" default(50)
// @Success 200 {object} map[string]any
// @Router /api/ai/conflicts/history [get]
func (h *Handler) AIConflictHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		writeError(c, http.StatusBadRequest, "limit must be between 1 and 500", nil)
		return
	}
	list, err := h.Insights.History(c.Request.Context(), limit)
	if err != nil {
		handleError(c, err, "Conflicts not found")
		return
	}
	writeOK(c, http.StatusOK, list)
}
