package routes

import (
	"net/http"

	v1handlers "github.com/chatrelay/relay/internal/api/v1/handlers"
	v1mware "github.com/chatrelay/relay/internal/api/v1/middleware"
	"github.com/chatrelay/relay/internal/config"
	"github.com/chatrelay/relay/internal/services"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
)

// NewRouter wires every relay route with the shared middleware stack.
func NewRouter(cfg *config.Config, svc *services.Services) http.Handler {
	router := mux.NewRouter()
	router.Use(v1mware.RequestID, v1mware.Logging, v1mware.Recovery)

	opts := v1handlers.Options{
		Timeout: cfg.Upstream.Timeout,
		Metrics: svc.GetMetrics(),
	}
	// leave the interfaces nil rather than holding typed nil pointers
	if g := svc.GetGeminiService(); g != nil {
		opts.Gemini = g
	}
	if o := svc.GetOpenRouterClient(); o != nil {
		opts.OpenRouter = o
	}
	if rs := svc.GetRedisService(); rs != nil {
		opts.Redis = rs
	}

	v1handlers.RegisterRoutes(router, v1handlers.New(opts), svc.GetRateLimiter())

	if svc.GetMetrics() != nil {
		router.Handle(cfg.Metrics.Path, svc.MetricsHandler()).Methods(http.MethodGet)
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", v1mware.RequestIDHeader},
		ExposedHeaders: []string{v1mware.RequestIDHeader},
		MaxAge:         300,
	})(router)
}
