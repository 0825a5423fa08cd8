package chat

import (
	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewGormMessageStore, fx.As(new(MessageStore))),
		fx.Annotate(NewRedisPresenceStore, fx.As(new(PresenceStore))),
		func(l *redis_rate.Limiter) Limiter { return l },
		NewService,
	),
)
