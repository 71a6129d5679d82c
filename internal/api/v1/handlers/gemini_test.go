package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chatrelay/relay/internal/config"
	geminiapi "github.com/chatrelay/relay/internal/infrastructure/gemini"
	"github.com/chatrelay/relay/internal/infrastructure/upstream"
	"github.com/chatrelay/relay/internal/services/gemini"
	"github.com/chatrelay/relay/pkg/httpext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGeminiHandler points a real Gemini service at a fake upstream.
func newGeminiHandler(t *testing.T, timeout time.Duration, upstreamFn http.HandlerFunc) *Handler {
	t.Helper()

	server := httptest.NewServer(upstreamFn)
	t.Cleanup(server.Close)

	client := geminiapi.NewClient(config.GeminiConfig{
		BaseURL: server.URL + "/v1beta",
		Model:   "gemini-test",
		APIKey:  "test-key",
	}, upstream.NewHTTPClient())
	require.NotNil(t, client)

	return New(Options{Gemini: gemini.NewService(client), Timeout: timeout})
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/gemini", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func TestHandleGeminiEndToEnd(t *testing.T) {
	var outbound []byte

	h := newGeminiHandler(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var err error
		outbound, err = io.ReadAll(r.Body)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hi there"}]},"finishReason":"STOP"}]}`))
	})

	rr := postJSON(t, h.HandleGemini, `{"prompt":"Hello"}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t,
		`{"contents":[{"parts":[{"text":"Hello"}]}],"generationConfig":{"temperature":0.7,"maxOutputTokens":1024}}`,
		string(outbound))
	assert.JSONEq(t,
		`{"choices":[{"message":{"role":"assistant","content":"Hi there"},"finish_reason":"STOP"}],"usage":{"prompt_tokens":1.25,"completion_tokens":2}}`,
		rr.Body.String())
}

func TestHandleGeminiUsesLastMessage(t *testing.T) {
	var outbound geminiapi.GenerateContentRequest

	h := newGeminiHandler(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&outbound))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	})

	rr := postJSON(t, h.HandleGemini, `{
		"model": "ignored",
		"messages": [
			{"role": "system", "content": "be brief"},
			{"role": "user", "content": [{"type": "text", "text": "what is "}, {"type": "text", "text": "go?"}]}
		],
		"temperature": 0.3,
		"max_tokens": 64
	}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "what is go?", outbound.Contents[0].Parts[0].Text)
	assert.Equal(t, 0.3, outbound.GenerationConfig.Temperature)
	assert.Equal(t, 64, outbound.GenerationConfig.MaxOutputTokens)

	var resp gemini.ChatResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
}

func TestHandleGeminiInvalidRequests(t *testing.T) {
	calls := 0
	h := newGeminiHandler(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	tests := []struct {
		name         string
		body         string
		wantReceived any
	}{
		{
			name:         "no prompt or messages",
			body:         `{"temperature":0.5}`,
			wantReceived: map[string]any{"temperature": 0.5},
		},
		{
			name:         "empty messages",
			body:         `{"messages":[]}`,
			wantReceived: map[string]any{"messages": []any{}},
		},
		{
			name:         "malformed json",
			body:         `{"prompt":`,
			wantReceived: `{"prompt":`,
		},
		{
			name:         "temperature out of range",
			body:         `{"prompt":"hi","temperature":3}`,
			wantReceived: map[string]any{"prompt": "hi", "temperature": 3.0},
		},
		{
			name:         "unknown role",
			body:         `{"messages":[{"role":"robot","content":"hi"}]}`,
			wantReceived: map[string]any{"messages": []any{map[string]any{"role": "robot", "content": "hi"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, h.HandleGemini, tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)

			body := decodeError(t, rr)
			assert.Equal(t, httpext.TypeInvalidRequest, body["type"])
			details, ok := body["details"].(map[string]any)
			require.True(t, ok, "details missing")
			assert.Equal(t, tt.wantReceived, details["received"])
		})
	}

	assert.Zero(t, calls, "invalid requests must not reach the provider")
}

func TestHandleGeminiAcceptsOpenAIMessageShapes(t *testing.T) {
	var outbound geminiapi.GenerateContentRequest

	h := newGeminiHandler(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&outbound))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	})

	tests := []struct {
		name     string
		body     string
		wantText string
	}{
		{
			name:     "developer role",
			body:     `{"messages":[{"role":"developer","content":"hi"}]}`,
			wantText: "hi",
		},
		{
			name:     "function role",
			body:     `{"messages":[{"role":"function","content":"{\"temp\":21}"},{"role":"user","content":"and now?"}]}`,
			wantText: "and now?",
		},
		{
			name:     "prompt with an earlier image part",
			body:     `{"prompt":"hi","messages":[{"role":"user","content":[{"type":"image_url"}]}]}`,
			wantText: "hi",
		},
		{
			name:     "last message mixing text and image parts",
			body:     `{"messages":[{"role":"user","content":[{"type":"text","text":"describe "},{"type":"image_url","image_url":{"url":"https://x/y.png"}},{"type":"text","text":"this"}]}]}`,
			wantText: "describe this",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, h.HandleGemini, tt.body)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.Equal(t, tt.wantText, outbound.Contents[0].Parts[0].Text)
		})
	}
}

func TestHandleGeminiUnsupportedContent(t *testing.T) {
	h := newGeminiHandler(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})

	rr := postJSON(t, h.HandleGemini, `{"prompt":"hi","messages":[{"role":"user","content":42}]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	body := decodeError(t, rr)
	assert.Equal(t, httpext.TypeInvalidRequest, body["type"])
	assert.Equal(t, "Message content must be a string or an array of content parts", body["message"])
}

func TestHandleGeminiMethodNotAllowed(t *testing.T) {
	h := New(Options{Timeout: time.Second})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.HandleGemini(rr, httptest.NewRequest(method, "/api/gemini", nil))

			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
			assert.Equal(t, http.MethodPost, rr.Header().Get("Allow"))
			assert.Equal(t, httpext.TypeMethodNotAllowed, decodeError(t, rr)["type"])
		})
	}
}

func TestHandleGeminiProviderOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		respBody   string
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name:       "safety block",
			status:     http.StatusOK,
			respBody:   `{"candidates":[{"finishReason":"SAFETY","safetyRatings":[{"category":"HARM_CATEGORY_HARASSMENT","probability":"HIGH","blocked":true}]}]}`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "SAFETY", body["reason"])
				assert.Equal(t, httpext.TypeContentFiltered, body["type"])
				details := body["details"].(map[string]any)
				assert.Equal(t, []any{map[string]any{
					"category":    "HARM_CATEGORY_HARASSMENT",
					"probability": "HIGH",
					"blocked":     true,
				}}, details["safety_ratings"])
			},
		},
		{
			name:       "no candidates",
			status:     http.StatusOK,
			respBody:   `{"candidates":[]}`,
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "No candidates returned", body["reason"])
			},
		},
		{
			name:       "empty completion",
			status:     http.StatusOK,
			respBody:   `{"candidates":[{"content":{"parts":[]},"finishReason":"MAX_TOKENS"}]}`,
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, httpext.TypeInternalError, body["type"])
			},
		},
		{
			name:       "provider error status forwarded",
			status:     http.StatusTooManyRequests,
			respBody:   `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`,
			wantStatus: http.StatusTooManyRequests,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, httpext.TypeProviderError, body["type"])
				details := body["details"].(map[string]any)
				assert.Equal(t, map[string]any{"error": map[string]any{
					"code": 429.0, "message": "quota", "status": "RESOURCE_EXHAUSTED",
				}}, details["provider_body"])
			},
		},
		{
			name:       "malformed provider json",
			status:     http.StatusOK,
			respBody:   `<html>bad gateway</html>`,
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, upstream.TypeParse, body["type"])
				assert.NotEmpty(t, body["message"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newGeminiHandler(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.respBody))
			})

			rr := postJSON(t, h.HandleGemini, `{"prompt":"Hello"}`)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			tt.check(t, decodeError(t, rr))
		})
	}
}

func TestHandleGeminiTimeout(t *testing.T) {
	h := newGeminiHandler(t, 50*time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	start := time.Now()
	rr := postJSON(t, h.HandleGemini, `{"prompt":"Hello"}`)

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, http.StatusRequestTimeout, rr.Code)
	assert.Equal(t, httpext.TypeTimeout, decodeError(t, rr)["type"])
}

func TestHandleGeminiNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := geminiapi.NewClient(config.GeminiConfig{BaseURL: baseURL, Model: "m", APIKey: "k"}, upstream.NewHTTPClient())
	h := New(Options{Gemini: gemini.NewService(client), Timeout: time.Second})

	rr := postJSON(t, h.HandleGemini, `{"prompt":"Hello"}`)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, upstream.TypeNetwork, decodeError(t, rr)["type"])
}

func TestHandleGeminiNotConfigured(t *testing.T) {
	h := New(Options{Timeout: time.Second})

	rr := postJSON(t, h.HandleGemini, `{"prompt":"Hello"}`)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, httpext.TypeConfigurationError, decodeError(t, rr)["type"])
}

func TestHandleGeminiBodyTooLarge(t *testing.T) {
	h := newGeminiHandler(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})

	big := bytes.Repeat([]byte("a"), maxRequestBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/api/gemini", bytes.NewReader(big))
	rr := httptest.NewRecorder()
	h.HandleGemini(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
