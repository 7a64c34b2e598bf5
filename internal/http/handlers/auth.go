package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allocai/backend/internal/http/middleware"
	"github.com/allocai/backend/internal/service"
)

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// @Summary Register
// @Description Self-service sign up. The account always gets the employee role.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body service.RegisterInput true "Account"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterInput
	if !h.bind(c, &req) {
		return
	}
	sess, err := h.Auth.Register(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, "User not found")
		return
	}
	writeOK(c, http.StatusCreated, sess)
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body service.LoginInput true "Credentials"
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]any
// @Router /api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req service.LoginInput
	if !h.bind(c, &req) {
		return
	}
	sess, err := h.Auth.Login(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, "User not found")
		return
	}
	writeOK(c, http.StatusOK, sess)
}

// @Summary Refresh tokens
// @Description Rotates the refresh token. The presented token is revoked.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest true "Refresh token"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Failure 401 {object} map[string]any
// @Router /api/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken == "" {
		writeError(c, http.StatusBadRequest, "Refresh token required", nil)
		return
	}
	pair, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		handleError(c, err, "User not found")
		return
	}
	writeOK(c, http.StatusOK, pair)
}

// @Summary Logout
// @Description Revokes the given refresh token. Always succeeds for unknown tokens.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest false "Refresh token"
// @Success 200 {object} map[string]any
// @Router /api/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	var req RefreshRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken != "" {
		if err := h.Auth.Logout(c.Request.Context(), req.RefreshToken); err != nil && !errors.Is(err, service.ErrUnauthorized) {
			handleError(c, err, "User not found")
			return
		}
	}
	writeMessage(c, "Logged out successfully")
}

// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]any
// @Router /api/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	current, _ := middleware.CurrentUser(c)
	u, err := h.Auth.Me(c.Request.Context(), current.ID)
	if err != nil {
		handleError(c, err, "User not found")
		return
	}
	writeOK(c, http.StatusOK, gin.H{"user": service.UserView{
		ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role,
	}})
}
