package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/sensorboard/internal/adapters/cache"
	"github.com/okian/sensorboard/internal/adapters/mq/publisher"
	"github.com/okian/sensorboard/internal/adapters/repository"
	"github.com/okian/sensorboard/internal/config"
	"github.com/okian/sensorboard/pkg/logger"
)

// ErrBootstrap wraps failures to assemble a Service from configuration.
var ErrBootstrap = errors.New("service bootstrap failed")

// Open assembles a Service from cfg: the configured store, plus the Redis
// cache and MQTT publisher when their addresses are set. An unreachable
// cache or broker is logged and skipped; an unusable store is an error.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.Nop()
	}

	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.StoreDSN,
		repository.WithLogger(log.Named("repository")),
		repository.WithMaxOpenConns(cfg.StoreMaxConns))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBootstrap, err)
	}
	log.Info(ctx, "store opened", logger.String("driver", cfg.StoreDriver))

	opts := []Option{
		WithLogger(log.Named("service")),
		WithPaging(cfg.DefaultPerPage, cfg.MaxPerPage),
	}

	if cfg.CacheAddr != "" {
		c, err := cache.NewRedis(ctx, cfg.CacheAddr, cache.WithTTL(cfg.CacheTTL()))
		if err != nil {
			log.Warn(ctx, "latest-reading cache disabled", logger.String("addr", cfg.CacheAddr), logger.Error(err))
		} else {
			log.Info(ctx, "latest-reading cache enabled", logger.String("addr", cfg.CacheAddr))
			opts = append(opts, WithCache(c))
		}
	}

	if cfg.MQTTBroker != "" {
		p, err := publisher.NewMQTT(ctx, cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic,
			publisher.WithQoS(byte(cfg.MQTTQoS)), //nolint:gosec // validated to 0..2
			publisher.WithRetain(cfg.MQTTRetain),
			publisher.WithTimeout(cfg.MQTTTimeout()),
			publisher.WithLogger(log.Named("publisher")))
		if err != nil {
			log.Warn(ctx, "reading publisher disabled", logger.String("broker", cfg.MQTTBroker), logger.Error(err))
		} else {
			log.Info(ctx, "publishing readings",
				logger.String("broker", cfg.MQTTBroker),
				logger.String("topic", cfg.MQTTTopic),
				logger.Int("qos", cfg.MQTTQoS),
				logger.Bool("retain", cfg.MQTTRetain))
			opts = append(opts, WithPublisher(p))
		}
	}

	return New(store, opts...), nil
}
