package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/allocai/backend/internal/ai"
	"github.com/allocai/backend/internal/auth"
	"github.com/allocai/backend/internal/config"
	"github.com/allocai/backend/internal/db"
	"github.com/allocai/backend/internal/db/memstore"
	"github.com/allocai/backend/internal/events"
	httpapi "github.com/allocai/backend/internal/http"
	"github.com/allocai/backend/internal/http/handlers"
	"github.com/allocai/backend/internal/jobs"
	"github.com/allocai/backend/internal/realtime"
	"github.com/allocai/backend/internal/service"
	"github.com/allocai/backend/internal/webhook"
)

// Store is the persistence surface the process needs. *db.Store and
// *memstore.Store both satisfy it.
type Store interface {
	service.Store
	webhook.Store
	Close()
}

// App holds the wired components of one process.
type App struct {
	Config     config.Config
	Logger     zerolog.Logger
	Store      Store
	Queue      jobs.Queue
	Bus        *events.Bus
	Dispatcher *webhook.Dispatcher
	Hub        *realtime.Hub
	Insights   *service.InsightService
	Runner     *jobs.Runner
	Scheduler  *jobs.Scheduler
	Handler    *handlers.Handler

	redis *redis.Client
}

func NewLogger(cfg config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", "allocai").Logger()
}

// New connects the backing services selected by cfg and wires every
// component. The caller owns Close.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store")
		a.Store = memstore.New()
	} else {
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		a.Store = store
	}

	var revoked auth.RevocationList
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, using in-memory job queue")
		a.Queue = jobs.NewMemoryQueue()
		revoked = auth.NewMemoryRevocationList()
	} else {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Queue = jobs.NewRedisQueue(a.redis)
		revoked = auth.NewRedisRevocationList(a.redis)
	}

	a.Bus = events.New(logger)
	a.Hub = realtime.NewHub(logger)
	a.Hub.Subscribe(a.Bus)
	a.Dispatcher = webhook.NewDispatcher(a.Store, cfg.WebhookTimeout, logger)
	a.Dispatcher.Subscribe(a.Bus)
	jobs.RegisterListeners(a.Bus, a.Queue, cfg.AIDebounceDelay, logger)

	generator := ai.NewGenerator(NewAssistant(cfg, logger), logger)
	a.Insights = service.NewInsightService(a.Store, generator, a.Bus, logger)
	a.Runner = jobs.NewRunner(a.Queue, a.Insights, cfg.JobPollInterval, logger)

	sched, err := jobs.NewScheduler(a.Queue, a.Store, cfg.CronDaily, cfg.CronWeekly, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Scheduler = sched

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	a.Handler = &handlers.Handler{
		Store:       a.Store,
		Auth:        service.NewAuthService(a.Store, tokens, revoked, logger),
		Employees:   service.NewEmployeeService(a.Store, a.Bus),
		Projects:    service.NewProjectService(a.Store, a.Bus),
		Allocations: service.NewAllocationService(a.Store, a.Bus),
		Insights:    a.Insights,
		Webhooks:    service.NewWebhookService(a.Store),
		Hub:         a.Hub,
		Validator:   validator.New(),
		Logger:      logger,
	}
	return a, nil
}

// NewAssistant picks the model client. An OpenAI client without a key is
// still returned; the generator then falls back on every call.
func NewAssistant(cfg config.Config, logger zerolog.Logger) ai.Assistant {
	if cfg.AIMode == config.AIModeStatic {
		logger.Info().Msg("using static AI assistant")
		return ai.StaticAssistant{}
	}
	if cfg.OpenAIAPIKey == "" {
		logger.Warn().Msg("OPENAI_API_KEY not set, insights will use the heuristic fallback")
	}
	return &ai.OpenAICompatAssistant{
		BaseURL:  cfg.OpenAIBaseURL,
		Model:    cfg.OpenAIModel,
		APIKey:   cfg.OpenAIAPIKey,
		JSONMode: true,
		CacheTTL: time.Minute,
	}
}

func (a *App) Router() *gin.Engine {
	if a.Config.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	return httpapi.Router(a.Config, a.Handler, a.Logger)
}

// StartBackground runs the job runner and the cron schedule until ctx is
// cancelled. The returned channel closes once the runner has exited.
func (a *App) StartBackground(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	a.Scheduler.Start()
	go func() {
		defer close(done)
		_ = a.Runner.Run(ctx)
	}()
	return done
}

// Close drains webhook deliveries and releases connections.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Dispatcher != nil {
		a.Dispatcher.Wait()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
}
