package apiserver

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"taskhub/internal/config"
	"taskhub/internal/store"
	"taskhub/internal/store/memstore"
	"taskhub/internal/store/mongostore"
	"taskhub/internal/store/pgstore"
)

// Backends are the stateful collaborators a Server runs against. Redis is
// optional; without it caching is off and events are not fanned out.
type Backends struct {
	Store store.Store
	Redis redis.UniversalClient
}

// Open connects to the backends cfg selects.
func Open(ctx context.Context, cfg config.Config, log *logrus.Logger) (Backends, error) {
	var b Backends
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		s, err := pgstore.New(ctx, pgstore.DSN(cfg.DBUser, cfg.DBPassword, cfg.DBAddress, cfg.DBName))
		if err != nil {
			return b, fmt.Errorf("postgres: %w", err)
		}
		b.Store = s
	case config.DriverMongo:
		s, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return b, fmt.Errorf("mongo: %w", err)
		}
		b.Store = s
	default:
		log.Warn("using the in-memory store, data is lost on restart")
		b.Store = memstore.New()
	}
	log.WithField("driver", cfg.StoreDriver).Info("store connected")

	if cfg.RedisAddress != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			// Kept anyway: every cache failure is a miss and the client
			// reconnects on its own.
			log.WithError(err).Warn("redis is unreachable, caching degrades to misses")
		} else {
			log.WithField("address", cfg.RedisAddress).Info("redis connected")
		}
		b.Redis = client
	} else {
		log.Info("no REDIS_ADDRESS, caching and event fanout are disabled")
	}
	return b, nil
}
