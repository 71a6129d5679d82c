package redis

import (
	"context"
	"strings"
	"time"

	"github.com/chatrelay/relay/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const pingTimeout = 3 * time.Second

type Service struct {
	client *redis.Client
}

// NewService connects to Redis. It returns nil when Redis is not configured
// or unreachable, and callers fall back to in-memory state.
func NewService(cfg config.RedisConfig) *Service {
	if cfg.URL == "" {
		log.Info().Msg("Redis URL not configured - using in-memory rate limiting")
		return nil
	}

	client := redis.NewClient(clientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error().
			Err(err).
			Str("addr", client.Options().Addr).
			Msg("Failed to establish Redis connection")
		_ = client.Close()
		return nil
	}

	log.Info().Str("addr", client.Options().Addr).Msg("Redis connection established")
	return &Service{client: client}
}

// clientOptions accepts either a redis:// URL or a bare host:port address.
func clientOptions(cfg config.RedisConfig) *redis.Options {
	if strings.Contains(cfg.URL, "://") {
		if opts, err := redis.ParseURL(cfg.URL); err == nil {
			if cfg.Password != "" {
				opts.Password = cfg.Password
			}
			return opts
		}
		log.Warn().Msg("Could not parse REDIS_URL as a URL, using it as an address")
	}

	return &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       0,
	}
}

// Ping checks if Redis is accessible
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Service) Close() error {
	return s.client.Close()
}
