package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/matchday/internal/app/api/server"
	"github.com/fatflowers/matchday/internal/app/jobs"
	"github.com/fatflowers/matchday/internal/app/service/chat"
	"github.com/fatflowers/matchday/internal/app/service/payment"
	"github.com/fatflowers/matchday/internal/app/service/preference"
	"github.com/fatflowers/matchday/internal/app/service/statistics"
	"github.com/fatflowers/matchday/internal/app/service/subscription"
	"github.com/fatflowers/matchday/internal/app/service/verificationlog"
	"github.com/fatflowers/matchday/internal/platform/cache"
	"github.com/fatflowers/matchday/internal/platform/db"
	"github.com/fatflowers/matchday/internal/platform/firebase"
	"github.com/fatflowers/matchday/internal/platform/sentry"
	"github.com/fatflowers/matchday/internal/platform/stripe"
	"github.com/fatflowers/matchday/pkg/config"
	"github.com/fatflowers/matchday/pkg/logger"
	"github.com/fatflowers/matchday/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	// DefaultStopTimeout covers HTTP shutdown plus draining background writes.
	DefaultStopTimeout = 40 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	sentry.Module,
	db.Module,
	cache.Module,
	firebase.Module,
	stripe.Module,
	subscription.Module,
	verificationlog.Module,
	payment.Module,
	chat.Module,
	preference.Module,
	statistics.Module,
	jobs.Module,
	server.Module,
)
