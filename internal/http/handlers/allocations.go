package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allocai/backend/internal/http/middleware"
	"github.com/allocai/backend/internal/models"
	"github.com/allocai/backend/internal/service"
)

const allocationNotFound = "Allocation not found"

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		if day, dayErr := time.Parse(time.DateOnly, raw); dayErr == nil {
			t, err = day, nil
		}
	}
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// @Summary List allocations
// @Description Employee and project are expanded. startDate/endDate select allocations overlapping the window.
// @Tags allocations
// @Produce json
// @Security BearerAuth
// @Param startDate query string false "Window start (RFC3339 or YYYY-MM-DD)"
// @Param endDate query string false "Window end (RFC3339 or YYYY-MM-DD)"
// @Param employeeId query string false "Employee ID"
// @Param projectId query string false "Project ID"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/allocations [get]
func (h *Handler) AllocationsList(c *gin.Context) {
	start, err := parseDate(c.Query("startDate"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid startDate", err.Error())
		return
	}
	end, err := parseDate(c.Query("endDate"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid endDate", err.Error())
		return
	}
	list, err := h.Allocations.List(c.Request.Context(), models.AllocationFilter{
		Start:      start,
		End:        end,
		EmployeeID: c.Query("employeeId"),
		ProjectID:  c.Query("projectId"),
	})
	if err != nil {
		handleError(c, err, allocationNotFound)
		return
	}
	writeOK(c, http.StatusOK, list)
}

// @Summary Create allocation
// @Description Publishes allocation:created, which schedules a debounced re-analysis.
// @Tags allocations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.AllocationInput true "Allocation"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/allocations [post]
func (h *Handler) AllocationCreate(c *gin.Context) {
	var req service.AllocationInput
	if !h.bind(c, &req) {
		return
	}
	u, _ := middleware.CurrentUser(c)
	a, err := h.Allocations.Create(c.Request.Context(), req, u.ID)
	if err != nil {
		handleError(c, err, allocationNotFound)
		return
	}
	writeOK(c, http.StatusCreated, a)
}

// @Summary Update allocation
// @Tags allocations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Allocation ID"
// @Param body body service.AllocationPatch true "Changed fields"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/allocations/{id} [put]
func (h *Handler) AllocationUpdate(c *gin.Context) {
	var req service.AllocationPatch
	if !h.bind(c, &req) {
		return
	}
	a, err := h.Allocations.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		handleError(c, err, allocationNotFound)
		return
	}
	writeOK(c, http.StatusOK, a)
}

// @Summary Delete allocation
// @Tags allocations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Allocation ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/allocations/{id} [delete]
func (h *Handler) AllocationDelete(c *gin.Context) {
	if err := h.Allocations.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err, allocationNotFound)
		return
	}
	writeMessage(c, "Allocation deleted")
}
