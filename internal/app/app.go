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

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/tixfront/internal/config"
	"github.com/kirinyoku/tixfront/internal/postgres"
	"github.com/kirinyoku/tixfront/internal/redis"
	postgresrepo "github.com/kirinyoku/tixfront/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tixfront/internal/repository/redis"
	"github.com/kirinyoku/tixfront/internal/service"
	"github.com/kirinyoku/tixfront/internal/session"
	httpgin "github.com/kirinyoku/tixfront/internal/transport/http/gin"
	"github.com/kirinyoku/tixfront/internal/upstream"
	"github.com/kirinyoku/tixfront/migrations"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
	cache      *redisrepo.Cache
	pubsub     *redisrepo.EventsPubSub
	pool       *pgxpool.Pool
	rdb        *goredis.Client
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	pgxPool, err := postgres.New(context.Background(), postgres.Config{
		DSN:        cfg.Postgres.DSN(),
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.NewCache(rdb)
	tokens := redisrepo.NewKV(rdb)
	pubsub := redisrepo.NewEventsPubSub(rdb)
	limiter := redisrepo.NewCommitLimiter(rdb, cfg.Commit.RateLimit, cfg.Commit.RateWindow)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	api := upstream.New(upstream.Config{
		Endpoint: cfg.Upstream.Endpoint,
		Timeout:  cfg.Upstream.Timeout,
		CacheTTL: cfg.Upstream.CacheTTL,
	}, cache, logger)

	// Initialize services
	services := service.NewServices(api, tokens, store, pubsub, limiter, logger, service.Config{
		Session: session.Config{IdleTTL: cfg.Session.IdleTTL},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		services: services,
		cache:    cache,
		pubsub:   pubsub,
		pool:     pgxPool,
		rdb:      rdb,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer a.pool.Close()
	defer a.rdb.Close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Idle session janitor
	g.Go(func() error {
		return a.services.Sessions.Run(gCtx)
	})

	// Catalog invalidation from other instances
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, ev redisrepo.EventChanged) {
			if err := a.cache.InvalidateAction(ctx, ev.ActionID); err != nil {
				a.logger.Warn("catalog invalidation failed", "action_id", ev.ActionID, "error", err)
				return
			}
			a.logger.Debug("catalog invalidated", "action_id", ev.ActionID, "reason", ev.Reason)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("events subscription: %w", err)
		}
		return nil
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
