package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	geminiapi "github.com/chatrelay/relay/internal/infrastructure/gemini"
	"github.com/chatrelay/relay/internal/infrastructure/upstream"
	"github.com/chatrelay/relay/internal/services/gemini"
	"github.com/chatrelay/relay/pkg/httpext"
	"github.com/go-playground/validator/v10"
)

// HandleGemini translates a chat-completion request into one Gemini
// generateContent call and answers in chat-completion form.
func (h *Handler) HandleGemini(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	if h.gemini == nil {
		writeNotConfigured(w, "Gemini")
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	log := requestLogger(r)

	var req gemini.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		if errors.Is(err, gemini.ErrInvalidContent) {
			log.Warn().Err(err).Msg("Client sent unsupported message content")
			writeInvalidRequest(w, "Message content must be a string or an array of content parts", body, nil)
			return
		}
		log.Warn().Err(err).Msg("Client sent malformed JSON request")
		writeInvalidRequest(w, "Request body must be a JSON object", body, nil)
		return
	}

	if err := validate.Struct(req); err != nil {
		log.Warn().Err(err).Msg("Request validation failed")
		writeInvalidRequest(w, "Request failed validation", body, map[string]any{
			"errors": validationMessages(err),
		})
		return
	}

	if _, err := gemini.ExtractPromptText(req); err != nil {
		log.Warn().Msg("Client sent a request without prompt text")
		writeInvalidRequest(w, "Request must contain a prompt or messages with content", body, nil)
		return
	}

	log.Info().
		Int("message_count", len(req.Messages)).
		Bool("has_prompt", req.Prompt != "").
		Msg("Received Gemini request")

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.gemini.Generate(ctx, req)
	if err != nil {
		h.writeGeminiError(w, r, err)
		return
	}

	if err := httpext.WriteJSON(w, http.StatusOK, resp); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
		return
	}

	log.Info().
		Str("finish_reason", resp.Choices[0].FinishReason).
		Msg("Gemini request processed successfully")
}

func (h *Handler) writeGeminiError(w http.ResponseWriter, r *http.Request, err error) {
	log := requestLogger(r)

	var adapterErr *gemini.AdapterError
	var statusErr *upstream.StatusError

	switch {
	case errors.As(err, &adapterErr):
		h.metrics.RecordUpstreamError(geminiapi.ProviderName, adapterErr.Kind.String())

		switch adapterErr.Kind {
		case gemini.KindContentFiltered:
			log.Warn().
				Interface("safety_ratings", adapterErr.SafetyRatings).
				Msg("Gemini blocked the response")
			httpext.JsonErrorWithDetails(w, http.StatusBadRequest, httpext.ErrorResponse{
				Type:    httpext.TypeContentFiltered,
				Reason:  adapterErr.Reason,
				Message: "The response was blocked by the provider's safety filters",
				Details: map[string]any{"safety_ratings": adapterErr.SafetyRatings},
			})
		case gemini.KindInvalidRequest:
			httpext.JsonError(w, httpext.TypeInvalidRequest, adapterErr.Reason, http.StatusBadRequest)
		default:
			log.Error().Err(err).Msg("Gemini returned an unusable response")
			httpext.JsonErrorWithDetails(w, http.StatusInternalServerError, httpext.ErrorResponse{
				Type:    httpext.TypeInternalError,
				Reason:  adapterErr.Reason,
				Message: retryMessage,
			})
		}

	case errors.As(err, &statusErr):
		h.metrics.RecordUpstreamError(geminiapi.ProviderName, httpext.TypeProviderError)
		httpext.JsonErrorWithDetails(w, statusErr.Status, httpext.ErrorResponse{
			Type:    httpext.TypeProviderError,
			Message: "The provider rejected the request",
			Details: map[string]any{"provider_body": received(statusErr.Body)},
		})

	default:
		h.writeCallFailure(w, r, geminiapi.ProviderName, err)
	}
}

func validationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Namespace()+" failed on "+fe.Tag())
	}
	return msgs
}
