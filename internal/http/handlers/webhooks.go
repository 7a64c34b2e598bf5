package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allocai/backend/internal/service"
)

// @Summary List webhooks
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /api/webhooks [get]
func (h *Handler) WebhooksList(c *gin.Context) {
	list, err := h.Webhooks.List(c.Request.Context())
	if err != nil {
		handleError(c, err, "Webhook not found")
		return
	}
	writeOK(c, http.StatusOK, list)
}

// @Summary Register webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.WebhookInput true "Webhook"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/webhooks [post]
func (h *Handler) WebhookCreate(c *gin.Context) {
	var req service.WebhookInput
	if !h.bind(c, &req) {
		return
	}
	w, err := h.Webhooks.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, "Webhook not found")
		return
	}
	writeOK(c, http.StatusCreated, w)
}

// @Summary Delete webhook
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Webhook ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/webhooks/{id} [delete]
func (h *Handler) WebhookDelete(c *gin.Context) {
	if err := h.Webhooks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err, "Webhook not found")
		return
	}
	writeMessage(c, "Webhook deleted successfully")
}
