package middleware

import (
	"log/slog"
	"net/http"

	ctxlog "github.com/ErlanBelekov/safejob-auth/internal/log"
	"github.com/ErlanBelekov/safejob-auth/internal/routes"
	"github.com/gin-gonic/gin"
)

// ResolutionKey is where Guard stores the routes.Resolution for handlers.
const ResolutionKey = "resolution"

// Guard runs every page navigation through the route table. A redirect
// decision ends the request with 303 See Other.
func Guard(nav *routes.Navigator) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := nav.Navigate(c.Request.Context(), c.Request.URL.Path)
		if !res.Decision.Allowed() {
			c.Set(GuardOutcomeKey, outcomeRedirect)
			c.Redirect(http.StatusSeeOther, res.Decision.Target)
			c.Abort()
			return
		}
		c.Set(GuardOutcomeKey, outcomeAllow)
		c.Set(ResolutionKey, res)
		c.Request = c.Request.WithContext(ctxlog.WithAttrs(c.Request.Context(), slog.String("page", res.Destination())))
		c.Next()
	}
}
