package openrouter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chatrelay/relay/internal/config"
	"github.com/chatrelay/relay/internal/infrastructure/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresConfig(t *testing.T) {
	assert.Nil(t, NewClient(config.OpenRouterConfig{URL: "https://openrouter.ai/api/v1/chat/completions"}, http.DefaultClient))
}

func TestForward(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		respBody    string
	}{
		{
			name:        "success relayed",
			status:      http.StatusOK,
			contentType: "application/json",
			respBody:    `{"id":"gen-1","choices":[{"message":{"role":"assistant","content":"hey"}}]}`,
		},
		{
			name:        "error status relayed",
			status:      http.StatusUnauthorized,
			contentType: "application/json; charset=utf-8",
			respBody:    `{"error":{"message":"No auth credentials found","code":401}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqBody := `{"model":"openai/gpt-4o","messages":[{"role":"user","content":"hi"}]}`

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				got, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Equal(t, reqBody, string(got))

				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.respBody))
			}))
			defer server.Close()

			client := NewClient(config.OpenRouterConfig{URL: server.URL, APIKey: "or-key"}, upstream.NewHTTPClient())
			require.NotNil(t, client)

			resp, err := client.Forward(context.Background(), []byte(reqBody))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.contentType, resp.ContentType)
			assert.Equal(t, tt.respBody, string(resp.Body))
		})
	}
}

func TestForwardTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(config.OpenRouterConfig{URL: url, APIKey: "or-key"}, upstream.NewHTTPClient())
	_, err := client.Forward(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, upstream.TypeNetwork, upstream.Classify(err))
}
