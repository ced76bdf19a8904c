package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"servex_backend/internal/models"
	"servex_backend/pkg/utils"
)

// AuthMiddleware creates a Gin middleware for JWT authentication from the
// Authorization Bearer header.
func AuthMiddleware() gin.HandlerFunc {
	return authenticate(false)
}

// StreamAuthMiddleware is AuthMiddleware for the event stream only. Browsers cannot set
// headers on EventSource requests, so a token query parameter is accepted there.
func StreamAuthMiddleware() gin.HandlerFunc {
	return authenticate(true)
}

func authenticate(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string
		if allowQuery {
			tokenString = c.Query("token")
		}
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid authorization header format. Use Bearer <token>", ""))
				return
			}
			tokenString = parts[1]
		}
		if tokenString == "" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authorization header required", ""))
			return
		}

		claims, err := utils.ValidateToken(tokenString)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid or expired token", err.Error()))
			return
		}

		c.Set("role", claims.Role)
		c.Next()
	}
}

// RoleAuthMiddleware checks that the role from the token is one of allowedRoles.
// Managers pass every check.
func RoleAuthMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		if role == "" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "Role not found in token claims. Ensure AuthMiddleware runs first.", ""))
			return
		}
		if strings.EqualFold(role, models.RoleManager) {
			c.Next()
			return
		}
		for _, r := range allowedRoles {
			if strings.EqualFold(role, r) {
				c.Next()
				return
			}
		}
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden,
			"You do not have permission to access this resource. Required roles: "+strings.Join(allowedRoles, ", "), ""))
	}
}
