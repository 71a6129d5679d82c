package config

import (
	"fmt"
	"time"
)

type RateLimitConfig struct {
	Enabled     bool          `koanf:"enabled"`
	ChatMaxHits int           `koanf:"chat_max_hits"` // per client IP per window
	Window      time.Duration `koanf:"window"`
}

func (r RateLimitConfig) validate() error {
	if !r.Enabled {
		return nil
	}
	if r.ChatMaxHits <= 0 {
		return fmt.Errorf("ratelimit.chat_max_hits must be positive when rate limiting is enabled, got %d", r.ChatMaxHits)
	}
	if r.Window <= 0 {
		return fmt.Errorf("ratelimit.window must be positive when rate limiting is enabled, got %s", r.Window)
	}
	return nil
}
