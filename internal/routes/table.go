// Package routes maps paths to a guard policy, an optional required role and
// a destination. It holds no business logic of its own.
package routes

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/ErlanBelekov/safejob-auth/internal/guard"
)

type Access int

const (
	AccessOpen Access = iota
	AccessPublic
	AccessAuthenticated
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessAuthenticated:
		return "authenticated"
	default:
		return "open"
	}
}

type Route struct {
	Path        string
	Access      Access
	Role        domain.Role
	Destination string
}

var ErrInvalidTable = errors.New("invalid route table")

// Resolution is the outcome of one navigation. Route is nil for unmatched
// paths.
type Resolution struct {
	Path     string
	Route    *Route
	Decision guard.Decision
}

// Destination is what to render: the route's destination when allowed,
// empty otherwise.
func (r Resolution) Destination() string {
	if r.Route == nil || !r.Decision.Allowed() {
		return ""
	}
	return r.Route.Destination
}

type entry struct {
	route  Route
	policy guard.Policy
}

type Table struct {
	home    string
	targets guard.Targets
	entries map[string]entry
}

// NewTable validates the route set. Misconfiguration is reported here rather
// than at navigation time.
func NewTable(targets guard.Targets, home string, routes ...Route) (*Table, error) {
	t := &Table{
		home:    Normalize(home),
		targets: targets,
		entries: make(map[string]entry, len(routes)),
	}

	for _, r := range routes {
		r.Path = Normalize(r.Path)
		if _, dup := t.entries[r.Path]; dup {
			return nil, fmt.Errorf("%w: duplicate path %s", ErrInvalidTable, r.Path)
		}
		if r.Destination == "" {
			return nil, fmt.Errorf("%w: %s has no destination", ErrInvalidTable, r.Path)
		}
		if r.Role != domain.RoleAny {
			if !r.Role.Valid() {
				return nil, fmt.Errorf("%w: %s requires unknown role %q", ErrInvalidTable, r.Path, r.Role)
			}
			if r.Access != AccessAuthenticated {
				return nil, fmt.Errorf("%w: %s requires a role but not a session", ErrInvalidTable, r.Path)
			}
		}
		t.entries[r.Path] = entry{route: r, policy: t.policyFor(r)}
	}

	if targets.Login == targets.Unauthorized {
		return nil, fmt.Errorf("%w: login and unauthorized redirect to the same path %s", ErrInvalidTable, targets.Login)
	}

	// every redirect must land somewhere that can render it
	checks := []struct {
		name   string
		path   string
		reject func(Route) bool
	}{
		{"home", t.home, func(r Route) bool { return r.Access == AccessAuthenticated }},
		{"login", targets.Login, func(r Route) bool { return r.Access == AccessAuthenticated }},
		{"unauthorized", targets.Unauthorized, func(r Route) bool { return r.Role != domain.RoleAny }},
		{"dashboard", targets.Dashboard, func(r Route) bool { return r.Access == AccessPublic || r.Role != domain.RoleAny }},
	}
	for _, c := range checks {
		e, ok := t.entries[Normalize(c.path)]
		if !ok {
			return nil, fmt.Errorf("%w: %s target %s is not routed", ErrInvalidTable, c.name, c.path)
		}
		if c.reject(e.route) {
			return nil, fmt.Errorf("%w: %s target %s is not reachable by the users sent there", ErrInvalidTable, c.name, c.path)
		}
	}

	return t, nil
}

func (t *Table) policyFor(r Route) guard.Policy {
	switch r.Access {
	case AccessPublic:
		return guard.RequirePublic(t.targets)
	case AccessAuthenticated:
		return guard.RequireAuthenticated(t.targets, r.Role)
	default:
		return guard.Open()
	}
}

// Lookup finds the route for p.
func (t *Table) Lookup(p string) (Route, bool) {
	e, ok := t.entries[Normalize(p)]
	return e.route, ok
}

// Resolve delegates to the matched route's guard. Unmatched paths redirect
// home.
func (t *Table) Resolve(p string, state domain.SessionState) Resolution {
	p = Normalize(p)
	e, ok := t.entries[p]
	if !ok {
		return Resolution{Path: p, Decision: guard.Decision{Kind: guard.Redirect, Target: t.home}}
	}
	r := e.route
	return Resolution{Path: p, Route: &r, Decision: e.policy.Evaluate(state)}
}

// Routes lists the table sorted by path.
func (t *Table) Routes() []Route {
	out := make([]Route, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.route)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (t *Table) Home() string { return t.home }

func (t *Table) Targets() guard.Targets { return t.targets }

// Normalize drops any query or fragment and cleans the path.
func Normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
