package config

import "time"

const (
	DefaultPort            = 8080
	DefaultUpstreamTimeout = 30 * time.Second
)

// DefaultConfig returns the configuration used before the file and
// environment overlays are applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               DefaultPort,
			CORSAllowedOrigins: "*",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Upstream: UpstreamConfig{
			Timeout: DefaultUpstreamTimeout,
		},
		RateLimit: RateLimitConfig{
			Enabled:     false,
			ChatMaxHits: 120,
			Window:      time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
