package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/fitcoach-bot/internal/api"
	"github.com/Proton-105/fitcoach-bot/internal/bot"
	"github.com/Proton-105/fitcoach-bot/internal/bot/handlers"
	"github.com/Proton-105/fitcoach-bot/internal/conversation"
	"github.com/Proton-105/fitcoach-bot/internal/database"
	apperrors "github.com/Proton-105/fitcoach-bot/internal/errors"
	"github.com/Proton-105/fitcoach-bot/internal/handoff"
	"github.com/Proton-105/fitcoach-bot/internal/health"
	"github.com/Proton-105/fitcoach-bot/internal/i18n"
	"github.com/Proton-105/fitcoach-bot/internal/idempotency"
	"github.com/Proton-105/fitcoach-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/fitcoach-bot/internal/jobs/handlers"
	"github.com/Proton-105/fitcoach-bot/internal/lifecycle"
	"github.com/Proton-105/fitcoach-bot/internal/plan"
	"github.com/Proton-105/fitcoach-bot/internal/ratelimit"
	"github.com/Proton-105/fitcoach-bot/internal/session"
	"github.com/Proton-105/fitcoach-bot/pkg/config"
	"github.com/Proton-105/fitcoach-bot/pkg/graceful"
	"github.com/Proton-105/fitcoach-bot/pkg/logger"
	"github.com/Proton-105/fitcoach-bot/pkg/metrics"
	appredis "github.com/Proton-105/fitcoach-bot/pkg/redis"
)

const (
	rateLimitCleanupInterval   = 5 * time.Minute
	rateLimitMaxAge            = time.Hour
	idempotencyCleanupInterval = time.Hour
	idempotencyMaxTTL          = 7 * 24 * time.Hour
	sessionMetricsInterval     = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.AppEnv,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			slog.Error("failed to init sentry", slog.Any("error", err))
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	config.Watch(v, log, func(next *config.Config) {
		logger.SetLevel(next.Logger.Level)
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fitcoach stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("starting fitcoach",
		slog.String("http_port", cfg.Server.Port),
		slog.Bool("telegram", cfg.Bot.Enabled),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("database", cfg.Database.Enabled),
	)

	translations, err := i18n.Load(cfg.I18n.Dir, cfg.I18n.DefaultLang)
	if err != nil {
		return err
	}
	plans, err := plan.NewStaticProvider()
	if err != nil {
		return err
	}
	engine := conversation.NewEngine(translations, plans, log)
	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)

	checker := health.NewChecker(log)
	probes := lifecycle.NewProbes(checker, log)
	shutdown := lifecycle.NewShutdown(probes, log)

	g, gctx := errgroup.WithContext(ctx)

	var redisClient *appredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = appredis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		checker.AddCheck("redis", health.NewRedisChecker(redisClient))
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	if db != nil {
		checker.AddCheck("database", health.NewDBChecker(db))
		shutdown.Register("database", func(context.Context) error { return db.Close() })
	}

	recorder, purger := handoffRecorder(db, log)
	if cfg.Jobs.Enabled && redisClient != nil {
		recorder = startJobs(cfg, shutdown, recorder, purger, log)
	}

	memoryLimiter := ratelimit.NewMemoryLimiter(log)
	var limiter ratelimit.Limiter = memoryLimiter
	var guard *ratelimit.Guard
	if cfg.RateLimit.Enabled {
		cleaner := ratelimit.NewCleaner(nil, memoryLimiter, log, rateLimitCleanupInterval, rateLimitMaxAge)
		if redisClient != nil {
			limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(redisClient.Client, log), memoryLimiter, log)
			cleaner = ratelimit.NewCleaner(redisClient.Client, memoryLimiter, log, rateLimitCleanupInterval, rateLimitMaxAge)
		}
		guard = ratelimit.NewGuard(limiter, ratelimit.NewRules(cfg.RateLimit), log)
		g.Go(func() error { cleaner.Run(gctx); return nil })
	}

	server := graceful.NewServer(log, newHTTPServer(cfg, api.Deps{
		Engine:     engine,
		Lookup:     translations,
		Recorder:   recorder,
		ErrHandler: errHandler,
		Guard:      guard,
		Probes:     probes,
		Logger:     log,
	}), cfg.Server.ShutdownTimeout)
	g.Go(func() error { return server.ListenAndServe(gctx) })

	if cfg.Bot.Enabled {
		tgBot, err := newTelegramBot(gctx, g, cfg, redisClient, engine, translations, recorder, errHandler, guard, log)
		if err != nil {
			return err
		}
		checker.AddCheck("telegram", health.NewTelegramChecker(tgBot.Telebot()))
		g.Go(func() error { tgBot.Start(); return nil })
		shutdown.Register("telegram", func(context.Context) error { tgBot.Stop(); return nil })
	}

	<-gctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	shutdownErr := shutdown.Execute(shutdownCtx)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Join(err, shutdownErr)
	}
	return shutdownErr
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*sql.DB, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.MigrationsDir != "" {
		if err := database.NewMigrator(db, log).ApplyDir(ctx, cfg.MigrationsDir); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

// handoffRecorder persists handoffs to Postgres when a database is configured
// and otherwise only logs them.
func handoffRecorder(db *sql.DB, log *slog.Logger) (handoff.Recorder, jobhandlers.Purger) {
	if db == nil {
		return handoff.NewLogRecorder(log), nil
	}

	breaker := apperrors.NewCircuitBreaker("handoff-db", func(name string, from, to apperrors.State) {
		log.Warn("circuit breaker state changed",
			slog.String("name", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	service := handoff.NewService(handoff.NewRepository(db, log), breaker, log)
	return service, service
}

// startJobs moves handoff recording onto the asynq queue and schedules the
// retention purge. The returned recorder falls back to direct when enqueueing fails.
func startJobs(
	cfg *config.Config,
	shutdown *lifecycle.Shutdown,
	direct handoff.Recorder,
	purger jobhandlers.Purger,
	log *slog.Logger,
) handoff.Recorder {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	manager := jobs.NewManager(redisOpt, log)
	shutdown.Register("jobs-client", func(context.Context) error { return manager.Close() })

	worker := jobs.NewWorker(redisOpt, cfg.Jobs.Concurrency, jobs.DefaultQueues, log)
	worker.RegisterHandler(jobs.TaskTypeHandoffRecord, jobhandlers.NewHandoffRecordHandler(direct, log))

	if purger != nil {
		worker.RegisterHandler(jobs.TaskTypeHandoffPurge, jobhandlers.NewHandoffPurgeHandler(purger, log))

		scheduler := jobs.NewScheduler(redisOpt, log)
		if err := scheduler.RegisterTasks(cfg.Jobs.PurgeCron, cfg.Jobs.HandoffRetention); err != nil {
			log.Error("failed to schedule handoff purge", slog.Any("error", err))
		} else {
			scheduler.Run()
			shutdown.Register("jobs-scheduler", func(context.Context) error { scheduler.Shutdown(); return nil })
		}
	}

	if err := worker.Start(); err != nil {
		log.Error("failed to start jobs worker", slog.Any("error", err))
	} else {
		shutdown.Register("jobs-worker", func(context.Context) error { worker.Shutdown(); return nil })
	}

	return jobs.NewQueueRecorder(manager, direct, log)
}

func newHTTPServer(cfg *config.Config, deps api.Deps) *http.Server {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func newTelegramBot(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	redisClient *appredis.Client,
	engine *conversation.Engine,
	translations *i18n.Manager,
	recorder handoff.Recorder,
	errHandler *apperrors.Handler,
	guard *ratelimit.Guard,
	log *slog.Logger,
) (*bot.Bot, error) {
	var (
		storage     session.Storage
		locker      session.Locker
		idempotence idempotency.Manager
	)

	if redisClient != nil {
		storage = session.NewRedisStorage(redisClient.Client, log, cfg.Session.TTL)
		locker = session.NewRedisLocker(redisClient.Client, log)
		idempotence = idempotency.NewManager(idempotency.NewRedisStore(redisClient.Client, log), log)

		idemCleaner := idempotency.NewCleaner(redisClient.Client, log, idempotencyCleanupInterval, idempotencyMaxTTL)
		g.Go(func() error { idemCleaner.Run(ctx); return nil })
	} else {
		storage = session.NewMemoryStorage()
		locker = session.NewLocalLocker()
	}

	sessionCleaner := session.NewCleaner(storage, locker, log, cfg.Session.FlowIdleTTL, cfg.Session.CleanupInterval)
	g.Go(func() error { sessionCleaner.Run(ctx); return nil })

	collector := metrics.NewSessionCollector(storage, sessionMetricsInterval, log)
	g.Go(func() error { collector.Run(ctx); return nil })

	conv := handlers.NewConversation(engine, storage, locker, translations, recorder, log)

	return bot.New(cfg.Bot, log, bot.Deps{
		Conversation: conv,
		Lookup:       translations,
		ErrHandler:   errHandler,
		Idempotency:  idempotence,
		Guard:        guard,
	})
}
