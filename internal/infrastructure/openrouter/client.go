package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chatrelay/relay/internal/config"
	"github.com/chatrelay/relay/internal/infrastructure/upstream"
	"github.com/chatrelay/relay/internal/logger"
	"github.com/sashabaranov/go-openai"
)

const ProviderName = "openrouter"

type Client struct {
	client *http.Client
	url    string
	apiKey string
}

// Response is an upstream answer relayed unchanged to the caller.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// NewClient returns nil when OpenRouter is not configured.
func NewClient(cfg config.OpenRouterConfig, httpClient *http.Client) *Client {
	if cfg.URL == "" || cfg.APIKey == "" {
		logger.For(logger.PROVIDER).Warn().Msg("OpenRouter not configured - /api/openrouter will be unavailable")
		return nil
	}

	return &Client{
		client: httpClient,
		url:    cfg.URL,
		apiKey: cfg.APIKey,
	}
}

// Forward posts body verbatim. Any upstream status is returned as a Response;
// only transport failures produce an error.
func (c *Client) Forward(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openrouter request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := upstream.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logUpstreamError(resp.StatusCode, respBody)
	}

	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

func logUpstreamError(status int, body []byte) {
	event := logger.For(logger.PROVIDER).Warn().Int("status", status)

	var apiErr openai.ErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil {
		event = event.
			Str("error_type", apiErr.Error.Type).
			Str("error_message", apiErr.Error.Message)
	}

	event.Msg("OpenRouter returned an error status")
}
