package preference

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewRedisBackend, fx.As(new(Backend))),
		NewService,
	),
)
