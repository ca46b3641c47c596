package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirinyoku/tablego/internal/auth"
	"github.com/kirinyoku/tablego/internal/clock"
	"github.com/kirinyoku/tablego/internal/config"
	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/live"
	"github.com/kirinyoku/tablego/internal/postgres"
	"github.com/kirinyoku/tablego/internal/ratelimit"
	"github.com/kirinyoku/tablego/internal/redis"
	"github.com/kirinyoku/tablego/internal/repository"
	"github.com/kirinyoku/tablego/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/tablego/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tablego/internal/repository/redis"
	"github.com/kirinyoku/tablego/internal/service"
	"github.com/kirinyoku/tablego/internal/service/availability"
	"github.com/kirinyoku/tablego/internal/service/queue"
	httpgin "github.com/kirinyoku/tablego/internal/transport/http/gin"
	"github.com/kirinyoku/tablego/internal/worker"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	expiry     *worker.Expiry
	hub        *live.Hub
	closers    []func()
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx := context.Background()
	a := &App{cfg: cfg, logger: logger}

	clk := clock.New(cfg.Restaurant.Location)

	// Storage
	store, err := a.openStore(ctx, clk)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Redis-backed collaborators, or their in-process stand-ins
	var (
		cache   availability.Cache
		idem    httpgin.IdempotencyStore
		pub     events.Publisher
		sub     events.Subscriber
		limiter ratelimit.Limiter
	)

	if cfg.Redis.Addr != "" {
		rdb, err := redis.New(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		pubsub := redisrepo.NewEventsPubSub(rdb)
		cache = redisrepo.NewAvailabilityCache(rdb)
		idem = redisrepo.NewIdempotencyStore(rdb, cfg.Limits.IdempotencyTTL)
		pub, sub = pubsub, pubsub
		limiter = redisrepo.NewSlidingWindowLimiter(rdb, "public", cfg.Limits.RatePerMinute, time.Minute)
	} else {
		logger.Warn("REDIS_ADDR not set; cache, idempotency and cross-instance events disabled")

		local := events.NewLocal()
		pub, sub = local, local
		limiter = ratelimit.NewLocal(cfg.Limits.RatePerMinute, time.Minute)
	}

	// Services
	services := service.NewServices(store, cache, pub, clk, service.Config{
		Availability: availability.Config{CacheTTL: cfg.Limits.AvailabilityTTL},
		Queue:        queue.Config{WaitPerParty: cfg.Restaurant.WaitPerParty},
	})

	var verifier *auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier([]byte(cfg.Auth.JWTSecret))
	} else {
		logger.Warn("JWT_SECRET not set; admin routes are open")
	}

	a.hub = live.NewHub(sub, services.Queue, logger).WithRender(func(v *domain.QueuePosition) any {
		return httpgin.ToQueueStatus(*v)
	})
	a.expiry = worker.NewExpiry(services.Queue, clk, logger)

	router := httpgin.NewRouter(httpgin.Deps{
		Services:      services,
		Idempotency:   idem,
		Limiter:       limiter,
		Hub:           a.hub,
		Verifier:      verifier,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		Logger:        logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context, clk clock.Clock) (repository.Store, error) {
	if a.cfg.Storage == config.StorageMemory {
		a.logger.Warn("using in-memory storage; data is lost on restart")
		return memory.NewStore(clk.Now), nil
	}

	pool, err := postgres.New(ctx, postgres.Config{
		DSN:      a.cfg.Postgres.DSN(),
		MaxConns: a.cfg.Postgres.MaxConns,
		TimeZone: a.cfg.Restaurant.Location.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	store := postgresrepo.NewStore(pool)
	if a.cfg.Postgres.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		a.logger.Info("schema migrated")
	}

	return store, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.Close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Queue expiry at every local midnight
	g.Go(func() error {
		return a.expiry.Run(gCtx)
	})

	// Live queue feed
	g.Go(func() error {
		return a.hub.Run(gCtx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

// Close releases storage and redis connections. It is safe to call twice.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
