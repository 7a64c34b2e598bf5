package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allocai/backend/internal/service"
)

const projectNotFound = "Project not found"

// @Summary List projects
// @Description Employees only see projects they are allocated to.
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /api/projects [get]
func (h *Handler) ProjectsList(c *gin.Context) {
	list, err := h.Projects.List(c.Request.Context(), caller(c))
	if err != nil {
		handleError(c, err, projectNotFound)
		return
	}
	writeOK(c, http.StatusOK, list)
}

// @Summary Get project
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} map[string]any
// @Failure 403 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/projects/{id} [get]
func (h *Handler) ProjectGet(c *gin.Context) {
	p, err := h.Projects.Get(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		handleError(c, err, projectNotFound)
		return
	}
	writeOK(c, http.StatusOK, p)
}

// @Summary Create project
// @Description Publishes project:created.
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.ProjectInput true "Project"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/projects [post]
func (h *Handler) ProjectCreate(c *gin.Context) {
	var req service.ProjectInput
	if !h.bind(c, &req) {
		return
	}
	p, err := h.Projects.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, projectNotFound)
		return
	}
	writeOK(c, http.StatusCreated, p)
}

// @Summary Update project
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param body body service.ProjectPatch true "Changed fields"
// @Success 200 {object} map[string]any
// @Failure 403 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/projects/{id} [put]
func (h *Handler) ProjectUpdate(c *gin.Context) {
	var req service.ProjectPatch
	if !h.bind(c, &req) {
		return
	}
	p, err := h.Projects.Update(c.Request.Context(), caller(c), c.Param("id"), req)
	if err != nil {
		handleError(c, err, projectNotFound)
		return
	}
	writeOK(c, http.StatusOK, p)
}

// @Summary Delete project
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/projects/{id} [delete]
func (h *Handler) ProjectDelete(c *gin.Context) {
	if err := h.Projects.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err, projectNotFound)
		return
	}
	writeMessage(c, "Project deleted successfully")
}
