package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/matchday/docs"
	"github.com/fatflowers/matchday/internal/app/api/handlers"
	mw "github.com/fatflowers/matchday/internal/app/api/middleware"
	"github.com/fatflowers/matchday/internal/app/service/chat"
	"github.com/fatflowers/matchday/internal/app/service/payment"
	"github.com/fatflowers/matchday/internal/app/service/preference"
	"github.com/fatflowers/matchday/internal/app/service/statistics"
	subsvc "github.com/fatflowers/matchday/internal/app/service/subscription"
	"github.com/fatflowers/matchday/internal/app/service/verificationlog"
	cfgpkg "github.com/fatflowers/matchday/pkg/config"
	metrics "github.com/fatflowers/matchday/pkg/metrics"
)

var (
	// chatWriteLimit guards chat writes per client address, on top of the per user limit
	// the chat service applies to messages.
	chatWriteLimit = redis_rate.PerMinute(120)
	verifyLimit    = redis_rate.PerMinute(10)
)

// Deps is everything the route table needs.
type Deps struct {
	fx.In

	Log      *zap.SugaredLogger
	Cfg      *cfgpkg.Config
	Verifier mw.TokenVerifier `optional:"true"`
	Limiter  *redis_rate.Limiter

	Subscriptions handlers.SubscriptionService
	Payments      handlers.PaymentVerifier
	Chat          handlers.ChatService
	Preferences   handlers.PreferenceService
	Statistics    handlers.StatisticsService
	Logs          handlers.VerificationLogScanner
}

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware(), mw.CORS(cfg.CORS))
	return r
}

func registerRoutes(r *gin.Engine, d Deps) {
	log, cfg := d.Log, d.Cfg
	if cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return "unmatched"
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	var limiter mw.Limiter
	if d.Limiter != nil {
		limiter = d.Limiter
	}
	auth := mw.Auth(cfg.Auth.Mode, d.Verifier, log)

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	apiV1.GET("/plans", handlers.ApiListPlans(cfg))
	handlers.RegisterChatRoutes(apiV1.Group("/chat"), d.Chat,
		mw.RateLimit(limiter, "chat", chatWriteLimit, mw.ByIP, log))
	handlers.RegisterPreferenceRoutes(apiV1.Group("/preferences", mw.Device()), d.Preferences)
	handlers.RegisterSubscriptionRoutes(apiV1.Group("/subscription", auth), d.Subscriptions)
	handlers.RegisterAdminRoutes(apiV1.Group("/admin", auth, mw.RequireAdmin()), d.Statistics, d.Subscriptions, d.Logs)

	api := r.Group("/api")
	api.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(), auth,
		mw.RateLimit(limiter, "verify", verifyLimit, mw.ByUserOrIP, log))
	handlers.RegisterPaymentRoutes(api, d.Payments)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Provide(
		func(s *subsvc.Service) handlers.SubscriptionService { return s },
		func(v *payment.Verifier) handlers.PaymentVerifier { return v },
		func(s *chat.Service) handlers.ChatService { return s },
		func(s *preference.Service) handlers.PreferenceService { return s },
		func(s *statistics.Service) handlers.StatisticsService { return s },
		func(s *verificationlog.Service) handlers.VerificationLogScanner { return s },
	),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
