package sentry

import (
	"context"
	"time"

	"github.com/fatflowers/matchday/pkg/config"

	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const flushTimeout = 2 * time.Second

// Reporter forwards unexpected errors to Sentry. A Reporter built without a
// DSN drops everything.
type Reporter struct {
	enabled bool
}

func New(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) (*Reporter, error) {
	if cfg.Sentry.DSN == "" {
		log.Infow("sentry disabled, no dsn configured")
		return &Reporter{}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: string(cfg.Env),
	}); err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sentry.Flush(flushTimeout)
			return nil
		},
	})
	return &Reporter{enabled: true}, nil
}

// CaptureException reports err with the given tags. Nil errors are ignored.
func (r *Reporter) CaptureException(ctx context.Context, err error, tags map[string]string) {
	if r == nil || !r.enabled || err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

var Module = fx.Options(
	fx.Provide(New),
)
