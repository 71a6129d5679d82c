package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/chatrelay/relay/internal/infrastructure/openrouter"
	"github.com/chatrelay/relay/internal/infrastructure/upstream"
	"github.com/chatrelay/relay/internal/logger"
	"github.com/chatrelay/relay/internal/metrics"
	"github.com/chatrelay/relay/internal/services/gemini"
	"github.com/chatrelay/relay/pkg/httpext"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const maxRequestBytes = 1 << 20

const retryMessage = "The request could not be completed. Please try again later."

// use a single instance of Validate, it caches struct info
var validate = validator.New(validator.WithRequiredStructEnabled())

type GeminiService interface {
	Generate(ctx context.Context, req gemini.ChatRequest) (*gemini.ChatResponse, error)
}

type OpenRouterForwarder interface {
	Forward(ctx context.Context, body []byte) (*openrouter.Response, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the relay routes. A nil provider answers with a
// configuration error.
type Handler struct {
	gemini     GeminiService
	openRouter OpenRouterForwarder
	redis      Pinger
	timeout    time.Duration
	metrics    *metrics.Collector
}

type Options struct {
	Gemini     GeminiService
	OpenRouter OpenRouterForwarder
	Redis      Pinger
	Timeout    time.Duration
	Metrics    *metrics.Collector
}

func New(opts Options) *Handler {
	return &Handler{
		gemini:     opts.Gemini,
		openRouter: opts.OpenRouter,
		redis:      opts.Redis,
		timeout:    opts.Timeout,
		metrics:    opts.Metrics,
	}
}

func requestLogger(r *http.Request) zerolog.Logger {
	return zerolog.Ctx(r.Context()).With().Str("component", logger.HANDLER).Logger()
}

// requirePost writes a 405 for anything but POST.
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}

	w.Header().Set("Allow", http.MethodPost)
	httpext.JsonError(w, httpext.TypeMethodNotAllowed,
		"Only POST requests are accepted on this endpoint", http.StatusMethodNotAllowed)
	return false
}

// readBody reads the request body, writing a 400 or 413 on failure.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpext.JsonError(w, httpext.TypeInvalidRequest,
				"Request body exceeds 1 MiB", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		httpext.JsonError(w, httpext.TypeInvalidRequest, "Could not read request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// received echoes an inbound payload back inside error details.
func received(body []byte) any {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

func writeInvalidRequest(w http.ResponseWriter, message string, body []byte, extra map[string]any) {
	details := map[string]any{"received": received(body)}
	for k, v := range extra {
		details[k] = v
	}

	httpext.JsonErrorWithDetails(w, http.StatusBadRequest, httpext.ErrorResponse{
		Type:    httpext.TypeInvalidRequest,
		Message: message,
		Details: details,
	})
}

func writeNotConfigured(w http.ResponseWriter, provider string) {
	httpext.JsonError(w, httpext.TypeConfigurationError,
		provider+" is not configured on this server", http.StatusInternalServerError)
}

// writeCallFailure maps a failed outbound call to 408 or 500.
func (h *Handler) writeCallFailure(w http.ResponseWriter, r *http.Request, provider string, err error) {
	errType := upstream.Classify(err)
	h.metrics.RecordUpstreamError(provider, errType)

	log := requestLogger(r)
	if errType == upstream.TypeTimeout {
		log.Warn().
			Err(err).
			Str("provider", provider).
			Dur("timeout", h.timeout).
			Msg("Upstream call timed out")
		httpext.JsonError(w, httpext.TypeTimeout,
			"The upstream provider did not respond in time. Please try again.", http.StatusRequestTimeout)
		return
	}

	log.Error().
		Err(err).
		Str("provider", provider).
		Str("type", errType).
		Msg("Upstream call failed")
	httpext.JsonError(w, errType, retryMessage, http.StatusInternalServerError)
}
