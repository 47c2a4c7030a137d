package middleware

import (
	"net/http"
	"strings"

	"github.com/ErlanBelekov/safejob-auth/internal/authapi"
	"github.com/ErlanBelekov/safejob-auth/internal/usecase"
	"github.com/gin-gonic/gin"
)

const errUnauthorized = "Unauthorized"

// Auth validates a Bearer access token and sets "userID" and "role" in the
// gin context. Refresh tokens are rejected.
func Auth(jwtKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(c)
			return
		}

		claims, err := usecase.VerifyToken(jwtKey, strings.TrimPrefix(header, "Bearer "), usecase.TokenTypeAccess)
		if err != nil {
			unauthorized(c)
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("role", string(claims.Role))
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, authapi.ErrorResponse{Error: errUnauthorized, Code: authapi.CodeUnauthorized})
}
