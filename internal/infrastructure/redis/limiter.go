package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Limiter is a fixed window rate limit store shared by every relay instance
// pointing at the same Redis.
type Limiter struct {
	service *Service
	prefix  string
	window  time.Duration
	maxHits int
	now     func() time.Time
}

func (s *Service) NewLimiter(prefix string, window time.Duration, maxHits int) *Limiter {
	return &Limiter{
		service: s,
		prefix:  prefix,
		window:  window,
		maxHits: maxHits,
		now:     time.Now,
	}
}

func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	bucketKey := l.bucketKey(key)

	pipe := l.service.client.TxPipeline()
	incr := pipe.Incr(ctx, bucketKey)
	pipe.Expire(ctx, bucketKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().
			Err(err).
			Str("key", bucketKey).
			Msg("Redis rate limit update failed")
		return false, fmt.Errorf("rate limit increment: %w", err)
	}

	return incr.Val() <= int64(l.maxHits), nil
}

func (l *Limiter) bucketKey(key string) string {
	bucket := l.now().UnixNano() / int64(l.window)
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)
}
