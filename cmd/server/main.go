package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bdos/config"
	"bdos/internal/db"
	"bdos/internal/handler"
	"bdos/internal/httpserver"
	"bdos/internal/repository"
	"bdos/internal/service/auth"
	"bdos/internal/service/catalog"
	"bdos/internal/service/portfolio"
	"bdos/internal/service/workflow"
	"bdos/pkg/circuitbreaker"
	pkgconfig "bdos/pkg/config"
	pkgdb "bdos/pkg/db"
	"bdos/pkg/logger"
	"bdos/pkg/metrics"
	"bdos/pkg/mq"
	"bdos/pkg/otel"
	"bdos/pkg/outbox"
	"bdos/pkg/redis"
	"bdos/pkg/util"
)

func main() {
	configDir := flag.String("config-dir", "config", "directory holding base.yaml and <env>.yaml")
	flag.Parse()

	env := pkgconfig.GetConfigEnv()
	cfg, err := config.Load(env, *configDir)
	if err != nil {
		// logger 尚未初始化
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	log.Info("Starting bdos...",
		zap.String("env", env),
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.Bool("outbox_enabled", cfg.Outbox.Enabled),
	)

	shutdownOTel, err := otel.Init(cfg.OTel, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownOTel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	log.Info("Initializing database connection...")
	dbConn, err := pkgdb.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	if err := db.Migrate(ctx, dbConn, log); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	// Redis 不可用时降级：无幂等键、无登录限流
	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, idempotency and login throttling disabled", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	// Catalog
	catalogRepo := repository.NewCatalogRepository(dbConn, log)
	orgRepo := repository.NewOrgRepository(dbConn, log)
	seeder := catalog.NewSeeder(catalogRepo, orgRepo, cfg.Seed, log)
	if err := seeder.Seed(ctx); err != nil {
		log.Fatal("Failed to seed catalog", zap.Error(err))
	}
	stageCatalog, err := seeder.Snapshot(ctx)
	if err != nil {
		log.Fatal("Failed to load catalog", zap.Error(err))
	}

	// Outbox + MQ
	outboxRepo := outbox.NewRepository(dbConn)
	var (
		appender       *outbox.Appender
		publisher      *mq.Publisher
		admin          *handler.AdminHandler
		dispatcherDone <-chan struct{}
	)
	if cfg.Outbox.Enabled {
		log.Info("Initializing MQ publisher...")
		publisher, err = mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer publisher.Close()

		appender = outbox.NewAppender(outboxRepo)
		breaker := circuitbreaker.NewCircuitBreaker(cfg.CircuitBreaker).
			WithStateListener(func(from, to circuitbreaker.State) {
				metrics.SetBreakerState("mq_publish", int(to))
				log.Warn("MQ circuit breaker state changed",
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			})
		dispatcher := outbox.NewDispatcher(outboxRepo, publisher, breaker, log).
			WithMaxRetries(cfg.Outbox.MaxRetries).
			WithInterval(cfg.Outbox.Interval()).
			WithBatchSize(cfg.Outbox.BatchSize)
		dispatcherDone = dispatcher.Run(ctx)

		admin = handler.NewAdminHandler(outbox.NewReplayService(outboxRepo, publisher, log), log)
	}

	// Services
	store := repository.NewWorkflowStore(dbConn, appender, log)
	engine := workflow.NewEngine(stageCatalog, store, log)
	portfolioSvc := portfolio.NewService(func(orgID int) portfolio.Scope {
		return store.ForOrg(orgID)
	}, stageCatalog, log)

	authSvc := auth.NewService(repository.NewUserRepository(dbConn, log), cfg.JWT.Secret, cfg.JWT.TTL(), log)
	var guard handler.IdempotencyGuard
	if rdb != nil {
		authSvc.WithThrottle(util.NewRetryCounter(rdb, cfg.Login.Window()), cfg.Login.MaxAttempts)
		guard = util.NewDeduper(rdb, cfg.Idempotency.TTL(), log)
	}

	deps := httpserver.Deps{
		Handlers: httpserver.Handlers{
			Auth:     handler.NewAuthHandler(authSvc, cfg.Session.CookieName, cfg.JWT.TTL(), cfg.Session.Secure, log),
			Accounts: handler.NewAccountHandler(portfolioSvc, log),
			Projects: handler.NewProjectHandler(engine, portfolioSvc, guard, log),
			Stages:   handler.NewStageHandler(engine, portfolioSvc, log),
			Tasks:    handler.NewTaskHandler(portfolioSvc, log),
			Admin:    admin,
		},
		Auth:       authSvc,
		CookieName: cfg.Session.CookieName,
		DB:         dbConn,
		Logger:     log,
	}
	if publisher != nil {
		deps.Broker = publisher
	}

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           httpserver.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	log.Info("bdos is fully initialized and running",
		zap.Int("stages", stageCatalog.Len()),
	)

	// 优雅退出处理
	<-ctx.Done()
	log.Info("Shutting down bdos gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	if dispatcherDone != nil {
		select {
		case <-dispatcherDone:
			log.Info("Outbox dispatcher drained")
		case <-shutdownCtx.Done():
			log.Warn("Outbox dispatcher did not stop before shutdown timeout")
		}
	}

	log.Info("bdos shutdown complete")
}
