package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allocai/backend/internal/service"
)

const employeeNotFound = "Employee not found"

// @Summary List employees
// @Tags employees
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Failure 403 {object} map[string]any
// @Router /api/employees [get]
func (h *Handler) EmployeesList(c *gin.Context) {
	list, err := h.Employees.List(c.Request.Context())
	if err != nil {
		handleError(c, err, employeeNotFound)
		return
	}
	writeOK(c, http.StatusOK, list)
}

// @Summary Get employee
// @Tags employees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Employee ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/employees/{id} [get]
func (h *Handler) EmployeeGet(c *gin.Context) {
	e, err := h.Employees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err, employeeNotFound)
		return
	}
	writeOK(c, http.StatusOK, e)
}

// @Summary Create employee
// @Description Publishes employee:joined.
// @Tags employees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.EmployeeInput true "Employee"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Failure 403 {object} map[string]any
// @Router /api/employees [post]
func (h *Handler) EmployeeCreate(c *gin.Context) {
	var req service.EmployeeInput
	if !h.bind(c, &req) {
		return
	}
	e, err := h.Employees.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, employeeNotFound)
		return
	}
	writeOK(c, http.StatusCreated, e)
}

// @Summary Update employee
// @Tags employees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Employee ID"
// @Param body body service.EmployeePatch true "Changed fields"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/employees/{id} [put]
func (h *Handler) EmployeeUpdate(c *gin.Context) {
	var req service.EmployeePatch
	if !h.bind(c, &req) {
		return
	}
	e, err := h.Employees.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		handleError(c, err, employeeNotFound)
		return
	}
	writeOK(c, http.StatusOK, e)
}

// @Summary Delete employee
// @Description Also removes the employee's allocations.
// @Tags employees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Employee ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/employees/{id} [delete]
func (h *Handler) EmployeeDelete(c *gin.Context) {
	if err := h.Employees.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err, employeeNotFound)
		return
	}
	writeMessage(c, "Employee deleted successfully")
}
