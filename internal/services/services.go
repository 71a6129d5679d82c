package services

import (
	"fmt"
	"net/http"

	"github.com/chatrelay/relay/internal/config"
	geminiapi "github.com/chatrelay/relay/internal/infrastructure/gemini"
	"github.com/chatrelay/relay/internal/infrastructure/openrouter"
	"github.com/chatrelay/relay/internal/infrastructure/redis"
	"github.com/chatrelay/relay/internal/infrastructure/upstream"
	"github.com/chatrelay/relay/internal/metrics"
	"github.com/chatrelay/relay/internal/services/gemini"
	"github.com/chatrelay/relay/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const chatLimitPrefix = "relay:ratelimit:chat"

type Services struct {
	geminiService    *gemini.Service
	openRouterClient *openrouter.Client
	redisService     *redis.Service
	rateLimiter      ratelimit.Store
	metrics          *metrics.Collector
}

// InitializeServices builds every service from cfg. Providers that are not
// configured are left nil. registry may be nil.
func InitializeServices(cfg *config.Config, registry *prometheus.Registry) (*Services, error) {
	log.Info().Msg("Initializing core services")

	httpClient := upstream.NewHTTPClient()

	geminiService := gemini.NewService(geminiapi.NewClient(cfg.Gemini, httpClient))
	openRouterClient := openrouter.NewClient(cfg.OpenRouter, httpClient)
	if geminiService == nil && openRouterClient == nil {
		return nil, fmt.Errorf("failed to initialize providers: none configured")
	}
	log.Info().
		Bool("gemini", geminiService != nil).
		Bool("openrouter", openRouterClient != nil).
		Msg("Initializing provider services")

	var redisService *redis.Service
	var limiter ratelimit.Store
	if cfg.RateLimit.Enabled {
		// Initialize Redis service (optional)
		redisService = redis.NewService(cfg.Redis)
		if redisService != nil {
			limiter = redisService.NewLimiter(chatLimitPrefix, cfg.RateLimit.Window, cfg.RateLimit.ChatMaxHits)
		} else {
			limiter = ratelimit.NewLimiter(cfg.RateLimit.Window, cfg.RateLimit.ChatMaxHits)
		}
		log.Info().
			Bool("redis", redisService != nil).
			Int("max_hits", cfg.RateLimit.ChatMaxHits).
			Dur("window", cfg.RateLimit.Window).
			Msg("Initializing rate limiter")
	}

	collector := metrics.NewCollector(cfg.Metrics, registry)

	log.Info().Msg("All services initialized successfully")

	return &Services{
		geminiService:    geminiService,
		openRouterClient: openRouterClient,
		redisService:     redisService,
		rateLimiter:      limiter,
		metrics:          collector,
	}, nil
}

// GetGeminiService returns the Gemini service, or nil if not configured
func (s *Services) GetGeminiService() *gemini.Service {
	return s.geminiService
}

// GetOpenRouterClient returns the OpenRouter client, or nil if not configured
func (s *Services) GetOpenRouterClient() *openrouter.Client {
	return s.openRouterClient
}

// GetRedisService returns the Redis service, or nil when rate limiting is
// in-memory or disabled
func (s *Services) GetRedisService() *redis.Service {
	return s.redisService
}

// GetRateLimiter returns the chat rate limit store, or nil when disabled
func (s *Services) GetRateLimiter() ratelimit.Store {
	return s.rateLimiter
}

// GetMetrics returns the metrics collector, or nil when disabled
func (s *Services) GetMetrics() *metrics.Collector {
	return s.metrics
}

// MetricsHandler serves the collector's registry.
func (s *Services) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

// Close releases the Redis connection, if any.
func (s *Services) Close() error {
	if s.redisService == nil {
		return nil
	}
	return s.redisService.Close()
}
