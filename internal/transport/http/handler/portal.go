package handler

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/safejob-auth/internal/authclient"
	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/ErlanBelekov/safejob-auth/internal/routes"
	"github.com/ErlanBelekov/safejob-auth/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

// sessionManager is the subset of session.Manager the portal needs.
type sessionManager interface {
	Current() domain.SessionState
	RequestMagicLink(ctx context.Context, email string) error
	RedeemToken(ctx context.Context, token string) (*domain.Credential, error)
	Logout(ctx context.Context) error
}

type PortalHandler struct {
	session   sessionManager
	dashboard string
	login     string
	home      string
	logger    *slog.Logger
}

func NewPortalHandler(session sessionManager, table *routes.Table, logger *slog.Logger) *PortalHandler {
	return &PortalHandler{
		session:   session,
		dashboard: table.Targets().Dashboard,
		login:     table.Targets().Login,
		home:      table.Home(),
		logger:    logger.With("component", "portal_handler"),
	}
}

type pageData struct {
	Page    string
	Status  string
	Subject string
	Role    string
	Notice  string
	Error   string
	Code    string
	Home    string
	Login   string
}

// Page renders whatever destination the guard resolved.
func (h *PortalHandler) Page(c *gin.Context) {
	v, ok := c.Get(middleware.ResolutionKey)
	res, _ := v.(routes.Resolution)
	if !ok || res.Destination() == "" {
		c.Redirect(http.StatusSeeOther, h.home)
		return
	}
	h.render(c, http.StatusOK, pageData{Page: res.Destination()})
}

type loginForm struct {
	Email string `form:"email"`
}

// POST /login
// Failures are shown inline on the login page.
func (h *PortalHandler) Login(c *gin.Context) {
	var form loginForm
	_ = c.ShouldBind(&form)

	err := h.session.RequestMagicLink(c.Request.Context(), form.Email)
	if err != nil {
		h.render(c, statusFor(err), pageData{Page: routes.PageLogin, Error: userMessage(err), Code: authclient.ErrorCode(err)})
		return
	}
	h.render(c, http.StatusOK, pageData{Page: routes.PageLogin, Notice: "Check your inbox for a sign-in link."})
}

// GET /auth/verify?token=
func (h *PortalHandler) Verify(c *gin.Context) {
	_, err := h.session.RedeemToken(c.Request.Context(), c.Query("token"))
	if err != nil && !errors.Is(err, domain.ErrStorage) {
		h.render(c, statusFor(err), pageData{Page: routes.PageVerify, Error: userMessage(err), Code: authclient.ErrorCode(err)})
		return
	}
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "signed in without persistence", "error", err)
	}
	c.Redirect(http.StatusSeeOther, h.dashboard)
}

// POST /logout
func (h *PortalHandler) Logout(c *gin.Context) {
	if err := h.session.Logout(c.Request.Context()); err != nil {
		h.logger.WarnContext(c.Request.Context(), "logout", "error", err)
	}
	c.Redirect(http.StatusSeeOther, h.home)
}

func (h *PortalHandler) render(c *gin.Context, status int, data pageData) {
	st := h.session.Current()
	data.Status = st.Status.String()
	data.Home = h.home
	data.Login = h.login
	if st.HasSession() {
		data.Subject = st.Credential.SubjectID
		data.Role = st.Credential.Role.String()
	}
	c.HTML(status, "page", data)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTokenRedemption):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidEmail):
		return "That email address does not look right."
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "We could not send a sign-in link to that address."
	case errors.Is(err, domain.ErrTokenRedemption):
		return "This sign-in link is invalid, expired or already used. Request a new one."
	case errors.Is(err, domain.ErrNetwork):
		return "The sign-in service is unreachable. Try again in a moment."
	default:
		return "Something went wrong."
	}
}

// PageTemplate is the portal's single layout.
var PageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Safe Job · {{.Page}}</title></head>
<body data-page="{{.Page}}" data-status="{{.Status}}">
<nav>
  <a href="{{.Home}}">Home</a> <a href="/jobs">Jobs</a>
  {{if .Subject}}<span>{{.Subject}} ({{.Role}})</span>
  <form method="post" action="/logout"><button>Sign out</button></form>
  {{else}}<a href="{{.Login}}">Sign in</a>{{end}}
</nav>
<main>
  <h1>{{.Page}}</h1>
  {{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
  {{if .Error}}<p class="error" data-code="{{.Code}}">{{.Error}}</p>{{end}}
  {{if eq .Page "login" "register"}}
  <form method="post" action="{{.Login}}">
    <input type="email" name="email" required>
    <button>Email me a sign-in link</button>
  </form>
  {{end}}
</main>
</body>
</html>`))
