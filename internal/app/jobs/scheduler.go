// Package jobs runs the periodic maintenance tasks. Neither job changes
// subscription active flags; expiry stays lazy on read.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/matchday/internal/app/service/chat"
	"github.com/fatflowers/matchday/internal/app/service/statistics"
	"github.com/fatflowers/matchday/pkg/config"
)

const jobTimeout = 5 * time.Minute

type PresencePruner interface {
	PruneStale(ctx context.Context, maxIdle time.Duration) (int, error)
}

type SnapshotWriter interface {
	SaveDailySnapshots(ctx context.Context, now time.Time) (int, error)
}

type Scheduler struct {
	cron      *cron.Cron
	presence  PresencePruner
	snapshots SnapshotWriter
	log       *zap.SugaredLogger
	now       func() time.Time
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.SugaredLogger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

func NewScheduler(cfg config.JobsConfig, presence PresencePruner, snapshots SnapshotWriter, log *zap.SugaredLogger) (*Scheduler, error) {
	l := log.With("component", "jobs")
	cl := cronLogger{l: l}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		presence:  presence,
		snapshots: snapshots,
		log:       l,
		now:       time.Now,
	}
	if _, err := s.cron.AddFunc(cfg.PresencePruneSpec, s.prunePresence); err != nil {
		return nil, fmt.Errorf("invalid presence prune schedule %q: %w", cfg.PresencePruneSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.SnapshotSpec, s.saveSnapshots); err != nil {
		return nil, fmt.Errorf("invalid snapshot schedule %q: %w", cfg.SnapshotSpec, err)
	}
	return s, nil
}

func (s *Scheduler) prunePresence() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.presence.PruneStale(ctx, 0); err != nil {
		s.log.Errorf("presence prune failed: %v", err)
	}
}

func (s *Scheduler) saveSnapshots() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.snapshots.SaveDailySnapshots(ctx, s.now()); err != nil {
		s.log.Errorf("subscription snapshot failed: %v", err)
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newScheduler(lc fx.Lifecycle, cfg *config.Config, c *chat.Service, st *statistics.Service, log *zap.SugaredLogger) (*Scheduler, error) {
	s, err := NewScheduler(cfg.Jobs, c, st, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: s.Stop,
	})
	return s, nil
}

var Module = fx.Options(
	fx.Provide(newScheduler),
	fx.Invoke(func(*Scheduler) {}),
)
