package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second

	// MaxBodyBytes bounds how much of an upstream response is read.
	MaxBodyBytes = 4 << 20
)

// Failure types reported in error bodies and metrics.
const (
	TypeTimeout  = "timeout"
	TypeNetwork  = "network_error"
	TypeParse    = "parse_error"
	TypeInternal = "internal_error"
)

// NewHTTPClient returns a client shared by all provider calls. It carries no
// overall Timeout; each call is bounded by its request context instead.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{Transport: transport}
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider    string
	Status      int
	ContentType string
	Body        []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.Status)
}

// ErrBodyTooLarge is returned when a provider response exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("provider response too large")

// ParseError wraps a provider response body that could not be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode provider response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReadBody reads the response body, failing with ErrBodyTooLarge rather than
// truncating past MaxBodyBytes.
func ReadBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, MaxBodyBytes)
	}
	return body, nil
}

// DecodeJSON unmarshals a provider body, wrapping failures as *ParseError.
func DecodeJSON(body []byte, target any) error {
	if err := json.Unmarshal(body, target); err != nil {
		return &ParseError{Err: err}
	}
	return nil
}

// Classify maps an outbound call failure onto one of the failure types.
func Classify(err error) string {
	var parseErr *ParseError
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return TypeTimeout
	case errors.As(err, &parseErr):
		return TypeParse
	case errors.As(err, &netErr) && netErr.Timeout():
		return TypeTimeout
	case errors.As(err, &netErr):
		return TypeNetwork
	default:
		return TypeInternal
	}
}
