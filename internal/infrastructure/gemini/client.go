package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chatrelay/relay/internal/config"
	"github.com/chatrelay/relay/internal/infrastructure/upstream"
	"github.com/chatrelay/relay/internal/logger"
)

const (
	ProviderName = "gemini"
	apiKeyHeader = "x-goog-api-key"
)

type Client struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
}

// NewClient returns nil when Gemini is not configured.
func NewClient(cfg config.GeminiConfig, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" || cfg.Model == "" || cfg.APIKey == "" {
		logger.For(logger.PROVIDER).Warn().Msg("Gemini not configured - /api/gemini will be unavailable")
		return nil
	}

	return &Client{
		client:  httpClient,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
	}
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
}

// GenerateContent performs one generateContent call. Non-2xx answers are
// returned as *upstream.StatusError carrying the raw body.
func (c *Client) GenerateContent(ctx context.Context, req GenerateContentRequest) (*GenerateContentResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, c.apiKey)

	log := logger.For(logger.PROVIDER)
	log.Debug().
		Str("model", c.model).
		Int("bytes", len(payload)).
		Msg("Calling Gemini generateContent")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := upstream.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("model", c.model).
			Msg("Gemini returned an error status")
		return nil, &upstream.StatusError{
			Provider:    ProviderName,
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        body,
		}
	}

	var out GenerateContentResponse
	if err := upstream.DecodeJSON(body, &out); err != nil {
		return nil, err
	}

	return &out, nil
}
