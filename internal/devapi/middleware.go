package devapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nilcar/leads-console/internal/store"
	"github.com/nilcar/leads-console/internal/validate"
)

const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxRole     = "role"
)

// requireAuth accepts a valid bearer token whose user still exists.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondError(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			respondError(c, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := s.tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			respondError(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		user, err := s.store.GetUser(c.Request.Context(), claims.UserID)
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusUnauthorized, "user no longer exists")
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, "failed to load user")
			return
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxUsername, user.Username)
		// The stored role wins over the claim so demotions apply immediately.
		c.Set(ctxRole, validate.NormalizeRole(user.Role))
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != validate.RoleAdmin {
			respondError(c, http.StatusForbidden, "admin role required")
			return
		}
		c.Next()
	}
}

func actor(c *gin.Context) string {
	if name := c.GetString(ctxUsername); name != "" {
		return name
	}
	return "anonymous"
}
