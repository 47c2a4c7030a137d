package routes

import (
	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/ErlanBelekov/safejob-auth/internal/guard"
)

// Page destinations rendered by the portal.
const (
	PageHome         = "home"
	PageLogin        = "login"
	PageRegister     = "register"
	PageVerify       = "verify"
	PageDashboard    = "dashboard"
	PageJobs         = "jobs"
	PageApplications = "applications"
	PageEmployerJobs = "employer-jobs"
	PageAdmin        = "admin"
	PageUnauthorized = "unauthorized"
)

// AppRoutes is the Safe Job route set. The login, unauthorized and dashboard
// paths come from targets so a relocated page stays routed.
func AppRoutes(targets guard.Targets, home string) []Route {
	return []Route{
		{Path: home, Access: AccessOpen, Destination: PageHome},
		{Path: "/jobs", Access: AccessOpen, Destination: PageJobs},
		{Path: targets.Login, Access: AccessPublic, Destination: PageLogin},
		{Path: "/register", Access: AccessPublic, Destination: PageRegister},
		{Path: "/auth/verify", Access: AccessPublic, Destination: PageVerify},
		{Path: targets.Unauthorized, Access: AccessOpen, Destination: PageUnauthorized},
		{Path: targets.Dashboard, Access: AccessAuthenticated, Destination: PageDashboard},
		{Path: "/applications", Access: AccessAuthenticated, Role: domain.RoleCandidate, Destination: PageApplications},
		{Path: "/employer/jobs", Access: AccessAuthenticated, Role: domain.RoleEmployer, Destination: PageEmployerJobs},
		{Path: "/admin", Access: AccessAuthenticated, Role: domain.RoleAdmin, Destination: PageAdmin},
	}
}

// NewAppTable builds the Safe Job table.
func NewAppTable(targets guard.Targets, home string) (*Table, error) {
	return NewTable(targets, home, AppRoutes(targets, home)...)
}
