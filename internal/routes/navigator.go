package routes

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/ErlanBelekov/safejob-auth/internal/metrics"
)

// sessionSource is the part of session.Manager navigation needs.
type sessionSource interface {
	Current() domain.SessionState
	EnsureFresh(ctx context.Context) error
}

// Navigator re-evaluates the guard on every navigation against the latest
// session state. Nothing is cached between navigations.
type Navigator struct {
	table   *Table
	session sessionSource
	logger  *slog.Logger
}

func NewNavigator(table *Table, session sessionSource, logger *slog.Logger) *Navigator {
	return &Navigator{
		table:   table,
		session: session,
		logger:  logger.With("component", "navigator"),
	}
}

// Navigate resolves p. Protected routes get a refresh first when the
// credential is stale; a failed refresh shows up only as the state the guard
// then observes.
func (n *Navigator) Navigate(ctx context.Context, p string) Resolution {
	if r, ok := n.table.Lookup(p); ok && r.Access == AccessAuthenticated {
		if err := n.session.EnsureFresh(ctx); err != nil && !errors.Is(err, domain.ErrSessionSuperseded) {
			n.logger.DebugContext(ctx, "refresh before navigation failed", "path", r.Path, "error", err)
		}
	}

	res := n.table.Resolve(p, n.session.Current())

	target := res.Decision.Target
	if res.Decision.Allowed() {
		target = res.Route.Path
	}
	metrics.NavigationTotal.WithLabelValues(res.Decision.Kind.String(), target).Inc()

	if !res.Decision.Allowed() {
		n.logger.DebugContext(ctx, "navigation redirected", "path", res.Path, "target", res.Decision.Target)
	}
	return res
}

func (n *Navigator) Table() *Table { return n.table }
