package service

import (
	"log/slog"

	"github.com/kirinyoku/tixfront/internal/clock"
	"github.com/kirinyoku/tixfront/internal/kv"
	postgresrepo "github.com/kirinyoku/tixfront/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tixfront/internal/repository/redis"
	"github.com/kirinyoku/tixfront/internal/service/orders"
	"github.com/kirinyoku/tixfront/internal/session"
	"github.com/kirinyoku/tixfront/internal/upstream"
)

// Services is what the HTTP layer serves from.
type Services struct {
	Sessions *session.Registry
}

type Config struct {
	Session session.Config
}

func NewServices(
	api *upstream.API,
	tokens kv.Store,
	store *postgresrepo.Store,
	pubsub *redisrepo.EventsPubSub,
	limiter *redisrepo.CommitLimiter,
	logger *slog.Logger,
	cfg Config,
) *Services {
	journal := orders.NewJournal(store, pubsub, logger)

	dial := func(sessionID string) session.Upstream {
		return api.Session(tokens, sessionID)
	}

	return &Services{
		Sessions: session.NewRegistry(dial, session.Deps{
			Limiter:   limiter,
			Publisher: pubsub,
			Journal:   journal,
			Clock:     clock.Real(),
			Logger:    logger,
		}, cfg.Session),
	}
}
