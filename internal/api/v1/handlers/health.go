package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/chatrelay/relay/pkg/httpext"
)

const redisPingTimeout = time.Second

type healthResponse struct {
	Status    string          `json:"status"`
	Providers map[string]bool `json:"providers"`
	Redis     string          `json:"redis,omitempty"`
}

// HandleHealth reports configured providers and, when rate limiting is backed
// by Redis, whether Redis answers a ping. A failed ping degrades the status
// but still answers 200 because the limiter fails open.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Providers: map[string]bool{
			"gemini":     h.gemini != nil,
			"openrouter": h.openRouter != nil,
		},
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), redisPingTimeout)
		defer cancel()

		resp.Redis = "ok"
		if err := h.redis.Ping(ctx); err != nil {
			log := requestLogger(r)
			log.Warn().Err(err).Msg("Redis ping failed")
			resp.Status = "degraded"
			resp.Redis = "unavailable"
		}
	}

	if err := httpext.WriteJSON(w, http.StatusOK, resp); err != nil {
		log := requestLogger(r)
		log.Error().Err(err).Msg("Failed to write health response")
	}
}
