package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/safejob-auth/internal/authapi"
	"github.com/ErlanBelekov/safejob-auth/internal/routes"
	"github.com/ErlanBelekov/safejob-auth/internal/transport/http/handler"
	"github.com/ErlanBelekov/safejob-auth/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

// NewAuthRouter serves the auth service API.
func NewAuthRouter(logger *slog.Logger, authHandler *handler.AuthHandler, health http.Handler, jwtKey []byte, hsts bool) *gin.Engine {
	r := newEngine(logger, hsts)

	r.GET(authapi.PathHealth, gin.WrapH(health))

	r.POST(authapi.PathMagicLink, authHandler.RequestMagicLink)
	r.POST(authapi.PathRedeem, authHandler.Redeem)
	r.POST(authapi.PathRefresh, authHandler.Refresh)
	r.POST(authapi.PathLogout, authHandler.Logout)
	r.GET(authapi.PathMe, middleware.Auth(jwtKey), authHandler.Me)

	return r
}

// NewPortalRouter serves the app shell. Every page in the route table sits
// behind the guard; the guard re-reads the session on each request.
func NewPortalRouter(logger *slog.Logger, nav *routes.Navigator, pages *handler.PortalHandler, hsts bool) *gin.Engine {
	r := newEngine(logger, hsts)
	r.SetHTMLTemplate(handler.PageTemplate)

	guard := middleware.Guard(nav)
	table := nav.Table()

	for _, route := range table.Routes() {
		if route.Destination == routes.PageVerify {
			r.GET(route.Path, guard, pages.Verify)
			continue
		}
		r.GET(route.Path, guard, pages.Page)
	}
	r.POST(table.Targets().Login, guard, pages.Login)
	r.POST("/logout", pages.Logout)

	// unknown paths still go through the guard, which sends them home
	r.NoRoute(guard, pages.Page)

	return r
}

func newEngine(logger *slog.Logger, hsts bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security(hsts))
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())
	return r
}
