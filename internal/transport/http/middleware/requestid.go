package middleware

import (
	"github.com/ErlanBelekov/safejob-auth/internal/requestid"
	"github.com/gin-gonic/gin"
)

// RequestID keeps a well-formed incoming X-Request-ID or mints a new one, and
// exposes it on the request context and the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := requestid.Accept(c.GetHeader(requestid.Header))

		c.Request = c.Request.WithContext(requestid.WithRequestID(c.Request.Context(), id))
		c.Header(requestid.Header, id)
		c.Next()
	}
}
