package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chatrelay/relay/internal/infrastructure/openrouter"
	"github.com/chatrelay/relay/pkg/httpext"
)

// HandleOpenRouter forwards the body unchanged and relays whatever OpenRouter
// answers.
func (h *Handler) HandleOpenRouter(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	if h.openRouter == nil {
		writeNotConfigured(w, "OpenRouter")
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	log := requestLogger(r)

	if !json.Valid(body) {
		log.Warn().Msg("Client sent malformed JSON request")
		writeInvalidRequest(w, "Request body must be valid JSON", body, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.openRouter.Forward(ctx, body)
	if err != nil {
		h.writeCallFailure(w, r, openrouter.ProviderName, err)
		return
	}

	if resp.Status < 200 || resp.Status > 299 {
		h.metrics.RecordUpstreamError(openrouter.ProviderName, httpext.TypeProviderError)
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		log.Error().Err(err).Msg("Failed to relay OpenRouter response")
		return
	}

	log.Info().
		Int("status", resp.Status).
		Msg("OpenRouter request relayed")
}
