package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ErlanBelekov/safejob-auth/internal/domain"
)

// Refresher keeps the access token fresh in the background so guarded
// navigation rarely has to wait on a refresh.
type Refresher struct {
	manager  *Manager
	logger   *slog.Logger
	interval time.Duration
}

func NewRefresher(manager *Manager, logger *slog.Logger, interval time.Duration) *Refresher {
	return &Refresher{
		manager:  manager,
		logger:   logger.With("component", "refresher"),
		interval: interval,
	}
}

func (r *Refresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("refresher started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher shut down")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	err := r.manager.EnsureFresh(ctx)
	switch {
	case err == nil, errors.Is(err, domain.ErrSessionSuperseded), errors.Is(err, context.Canceled):
	case errors.Is(err, domain.ErrStorage):
		r.logger.Warn("refreshed credential not persisted", "error", err)
	default:
		r.logger.Warn("background refresh ended the session", "error", err)
	}
	// expiry changes the derived state without any mutation
	r.manager.publish()
}

// Watcher reports changes other processes make to the credential store.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Follow keeps m in step with the credential store and refreshes it in the
// background. It blocks until ctx is done and both loops have returned, so
// m can be closed right after. A nil watcher skips store synchronisation.
func Follow(ctx context.Context, m *Manager, w Watcher, interval time.Duration, logger *slog.Logger) {
	var wg sync.WaitGroup

	if w != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := w.Watch(ctx, func() {
				if err := m.Sync(ctx); err != nil {
					logger.Warn("sync credential", "error", err)
				}
			})
			if err != nil {
				logger.Error("credential watcher stopped", "error", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		NewRefresher(m, logger, interval).Start(ctx)
	}()

	wg.Wait()
}
