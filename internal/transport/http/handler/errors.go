package handler

import (
	"github.com/ErlanBelekov/safejob-auth/internal/authapi"
	"github.com/gin-gonic/gin"
)

const (
	errInternalServer = "Internal server error"
	errInvalidRequest = "Request body is invalid"
	errInvalidEmail   = "Email address is invalid"
	errTokenInvalid   = "Token is invalid or expired"
	errRefreshInvalid = "Refresh token is invalid or expired"
	errUnauthorized   = "Unauthorized"
)

func abort(c *gin.Context, status int, msg, code string) {
	c.AbortWithStatusJSON(status, authapi.ErrorResponse{Error: msg, Code: code})
}
