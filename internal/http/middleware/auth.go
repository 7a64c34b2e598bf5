package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/allocai/backend/internal/models"
)

const userKey = "allocai.user"

var errUnauthorized = errors.New("unauthorized")

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.User, error)
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   gin.H{"message": message},
	})
}

// Authenticate requires a bearer access token and stores the resolved user
// on the context.
func Authenticate(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "Authentication failed: No token provided")
			return
		}
		u, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			abort(c, http.StatusUnauthorized, "Authentication failed: Invalid token")
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// QueryToken lets clients that cannot set headers, such as EventSource,
// pass the access token as ?token=.
func QueryToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			if t := c.Query("token"); t != "" {
				c.Request.Header.Set("Authorization", "Bearer "+t)
			}
		}
		c.Next()
	}
}

// Authorize admits only the given roles. It must run after Authenticate.
func Authorize(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			_ = c.Error(errUnauthorized)
			abort(c, http.StatusUnauthorized, "Authentication failed: No token provided")
			return
		}
		if !slices.Contains(roles, u.Role) {
			abort(c, http.StatusForbidden, "Forbidden: You do not have permission to access this resource")
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.User{}, false
	}
	u, ok := v.(models.User)
	return u, ok
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
