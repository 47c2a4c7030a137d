// Package janitor deletes magic-link tokens that can no longer be redeemed.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/safejob-auth/internal/metrics"
	"github.com/ErlanBelekov/safejob-auth/internal/repository"
	"github.com/robfig/cron/v3"
)

type Janitor struct {
	repo     repository.MagicTokenRepository
	schedule cron.Schedule
	logger   *slog.Logger
	now      func() time.Time
}

// New parses spec as a standard five-field cron expression.
func New(repo repository.MagicTokenRepository, spec string, logger *slog.Logger) (*Janitor, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse purge schedule %q: %w", spec, err)
	}
	return &Janitor{
		repo:     repo,
		schedule: sched,
		logger:   logger.With("component", "janitor"),
		now:      time.Now,
	}, nil
}

func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("janitor started", "next_run", j.schedule.Next(j.now()))

	for {
		timer := time.NewTimer(time.Until(j.schedule.Next(j.now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.Info("janitor shut down")
			return
		case <-timer.C:
			if _, err := j.Sweep(ctx); err != nil {
				j.logger.Error("purge magic tokens", "error", err)
			}
		}
	}
}

// Sweep deletes tokens that expired or were used before now.
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	n, err := j.repo.PurgeExpired(ctx, j.now())
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	if n > 0 {
		metrics.MagicTokensPurgedTotal.Add(float64(n))
		j.logger.Info("purged magic tokens", "count", n)
	}
	return n, nil
}
