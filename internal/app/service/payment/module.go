package payment

import (
	"github.com/fatflowers/matchday/internal/app/service/verificationlog"
	"github.com/fatflowers/matchday/internal/platform/sentry"
	"github.com/fatflowers/matchday/pkg/config"

	"go.uber.org/fx"
)

// Module exposes the payment verifier via Fx. The CheckoutProvider comes from
// the stripe platform module.
var Module = fx.Options(
	fx.Provide(
		func(cfg *config.Config) PlanCatalog { return cfg },
		func(s *verificationlog.Service) AuditLog { return s },
		func(r *sentry.Reporter) ErrorReporter { return r },
		NewVerifier,
	),
)
