package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/allocai/backend/internal/http/middleware"
	"github.com/allocai/backend/internal/realtime"
	"github.com/allocai/backend/internal/sentinel"
	"github.com/allocai/backend/internal/service"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Store       Pinger
	Auth        *service.AuthService
	Employees   *service.EmployeeService
	Projects    *service.ProjectService
	Allocations *service.AllocationService
	Insights    *service.InsightService
	Webhooks    *service.WebhookService
	Hub         *realtime.Hub
	Validator   *validator.Validate
	Logger      zerolog.Logger
	Now         func() time.Time
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/health [get]
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	now := h.now()
	if err := h.Store.Ping(ctx); err != nil {
		h.Logger.Error().Err(err).Msg("health check: store unavailable")
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Timestamp: now, Message: "Database unavailable"})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Timestamp: now, Message: "Server is healthy"})
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// bind decodes and validates the JSON body. It writes the error response
// itself and reports whether the handler should continue.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "Validation failed", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	out := make([]gin.H, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, gin.H{"field": fe.Namespace(), "rule": fe.Tag(), "param": fe.Param()})
	}
	return out
}

func caller(c *gin.Context) service.Caller {
	u, _ := middleware.CurrentUser(c)
	return service.Caller{UserID: u.ID, Role: u.Role}
}

func writeOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func writeMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

func writeError(c *gin.Context, status int, message string, details any) {
	body := gin.H{"message": message}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, gin.H{"success": false, "error": body})
}

// handleError maps service errors to HTTP statuses. notFound is the message
// used for a missing record.
func handleError(c *gin.Context, err error, notFound string) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(c, http.StatusNotFound, notFound, nil)
	case errors.Is(err, service.ErrForbidden):
		writeError(c, http.StatusForbidden, "Access denied: You are not assigned to this project", nil)
	case errors.Is(err, service.ErrDuplicateAllocation):
		writeError(c, http.StatusConflict, "Employee is already allocated to this project", nil)
	case errors.Is(err, service.ErrEmailTaken):
		writeError(c, http.StatusBadRequest, "User already exists", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, service.ErrUnauthorized):
		writeError(c, http.StatusUnauthorized, "Invalid or expired refresh token", nil)
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, sentinel.ErrReference):
		writeError(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, sentinel.ErrDuplicate):
		writeError(c, http.StatusConflict, err.Error(), nil)
	default:
		writeError(c, http.StatusInternalServerError, err.Error(), nil)
	}
}
