// Package guard decides whether a navigation may proceed. Policies only look
// at the derived session state; they never perform I/O and never see errors.
package guard

import (
	"github.com/ErlanBelekov/safejob-auth/internal/domain"
)

type Kind int

const (
	Allow Kind = iota
	Redirect
)

func (k Kind) String() string {
	if k == Redirect {
		return "redirect"
	}
	return "allow"
}

type Decision struct {
	Kind   Kind
	Target string
}

func (d Decision) Allowed() bool { return d.Kind == Allow }

func allow() Decision { return Decision{Kind: Allow} }

func redirect(target string) Decision { return Decision{Kind: Redirect, Target: target} }

// Targets are the redirect destinations. Login and Unauthorized must differ:
// a missing session and a wrong role are distinct outcomes.
type Targets struct {
	Login        string
	Unauthorized string
	Dashboard    string
}

func DefaultTargets() Targets {
	return Targets{
		Login:        "/login",
		Unauthorized: "/unauthorized",
		Dashboard:    "/dashboard",
	}
}

// Policy evaluates one navigation against the current session state.
type Policy interface {
	Evaluate(state domain.SessionState) Decision
	Name() string
}

type authenticated struct {
	role    domain.Role
	targets Targets
}

// RequireAuthenticated allows an authenticated or refreshing session whose
// role matches role. domain.RoleAny accepts every role.
func RequireAuthenticated(targets Targets, role domain.Role) Policy {
	return authenticated{role: role, targets: targets}
}

func (p authenticated) Evaluate(state domain.SessionState) Decision {
	if !state.HasSession() {
		return redirect(p.targets.Login)
	}
	if p.role != domain.RoleAny && state.Role() != p.role {
		return redirect(p.targets.Unauthorized)
	}
	return allow()
}

func (p authenticated) Name() string {
	if p.role == domain.RoleAny {
		return "authenticated"
	}
	return "authenticated:" + p.role.String()
}

type public struct {
	targets Targets
}

// RequirePublic steers a signed-in user away from login and registration.
func RequirePublic(targets Targets) Policy {
	return public{targets: targets}
}

func (p public) Evaluate(state domain.SessionState) Decision {
	switch state.Status {
	case domain.StatusUnauthenticated, domain.StatusAuthenticating:
		return allow()
	default:
		return redirect(p.targets.Dashboard)
	}
}

func (public) Name() string { return "public" }

type open struct{}

// Open allows everyone.
func Open() Policy { return open{} }

func (open) Evaluate(domain.SessionState) Decision { return allow() }

func (open) Name() string { return "open" }
