package httpext

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Error types carried in the "type" field of an ErrorResponse.
const (
	TypeInvalidRequest     = "invalid_request"
	TypeMethodNotAllowed   = "method_not_allowed"
	TypeContentFiltered    = "content_filtered"
	TypeProviderError      = "provider_error"
	TypeTimeout            = "timeout"
	TypeRateLimited        = "rate_limited"
	TypeConfigurationError = "configuration_error"
	TypeInternalError      = "internal_error"
)

// ErrorResponse represents a standardised JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JsonError writes a JSON error response with the specified status code
func JsonError(w http.ResponseWriter, errType, message string, code int) {
	JsonErrorWithDetails(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Type:    errType,
		Message: message,
	})
}

// JsonErrorWithDetails writes a detailed JSON error response
func JsonErrorWithDetails(w http.ResponseWriter, code int, resp ErrorResponse) {
	if resp.Error == "" {
		resp.Error = http.StatusText(code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Int("status", code).Msg("Failed to encode error response")
	}
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, err = w.Write(body)
	return err
}
