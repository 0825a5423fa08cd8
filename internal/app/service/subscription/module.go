package subscription

import (
	"context"

	"go.uber.org/fx"
)

// Module exposes the subscription store and access evaluator via Fx.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewGormStore, fx.As(new(Store)))),
	fx.Provide(NewService),
	fx.Invoke(registerDrain),
)

// registerDrain waits for background deactivations on shutdown.
func registerDrain(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() { s.Drain(); close(done) }()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
