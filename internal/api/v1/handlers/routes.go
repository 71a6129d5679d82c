package handlers

import (
	"net/http"

	v1mware "github.com/chatrelay/relay/internal/api/v1/middleware"
	geminiapi "github.com/chatrelay/relay/internal/infrastructure/gemini"
	"github.com/chatrelay/relay/internal/infrastructure/openrouter"
	"github.com/chatrelay/relay/pkg/ratelimit"
	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the chat routes. Methods are checked by the handlers
// so that non-POST requests get a structured 405.
func RegisterRoutes(router *mux.Router, h *Handler, limiter ratelimit.Store) {
	chat := func(route, provider string, fn http.HandlerFunc) http.Handler {
		return v1mware.Instrument(h.metrics, provider)(
			v1mware.RateLimit(limiter, route, h.metrics)(fn),
		)
	}

	router.Handle("/api/gemini", chat("/api/gemini", geminiapi.ProviderName, h.HandleGemini))
	router.Handle("/v1/chat/completions", chat("/v1/chat/completions", geminiapi.ProviderName, h.HandleGemini))
	router.Handle("/api/openrouter", chat("/api/openrouter", openrouter.ProviderName, h.HandleOpenRouter))

	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
}
