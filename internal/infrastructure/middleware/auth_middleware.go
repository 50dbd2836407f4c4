package middleware

import (
	"net/http"
	"strings"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/services"
	apperrors "codemeet/pkg/errors"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// TokenFromRequest returns the bearer token from the Authorization header or,
// failing that, the named cookie.
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookieName != "" {
		if token, err := c.Cookie(cookieName); err == nil {
			return token
		}
	}
	return ""
}

func AuthMiddleware(authService services.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c, cookieName)
		if token == "" {
			abortWithError(c, apperrors.NewUnauthorizedError("authorization token required"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortWithError(c, apperrors.WrapError(err, apperrors.ErrCodeUnauthorized, err.Error(), http.StatusUnauthorized))
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// OptionalAuthMiddleware tags the request with the user id when a valid
// token is present and never rejects.
func OptionalAuthMiddleware(authService services.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := TokenFromRequest(c, cookieName); token != "" {
			if claims, err := authService.ValidateToken(token); err == nil {
				c.Set(userIDKey, claims.UserID)
			}
		}
		c.Next()
	}
}

// UserID returns the user id set by one of the auth middlewares.
func UserID(c *gin.Context) (domain.UserID, bool) {
	v, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	id, ok := v.(domain.UserID)
	return id, ok && id != ""
}
