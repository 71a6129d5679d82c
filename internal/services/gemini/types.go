package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidContent reports message content that is neither a string nor an
// array of content parts.
var ErrInvalidContent = errors.New("invalid message content")

// ChatRequest is the chat-completion style body posted by the front end.
type ChatRequest struct {
	Model       string    `json:"model,omitempty"`
	Prompt      string    `json:"prompt,omitempty"`
	Messages    []Message `json:"messages,omitempty" validate:"omitempty,dive"`
	Temperature *float64  `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int      `json:"max_tokens,omitempty" validate:"omitempty,gte=0"`
	TopK        *int      `json:"top_k,omitempty" validate:"omitempty,gte=0"`
	TopP        *float64  `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
}

type Message struct {
	Role    string `json:"role" validate:"omitempty,oneof=system developer user assistant tool function model"`
	Content string `json:"content"`
}

// UnmarshalJSON accepts content either as a string or as an array of content
// parts. Text parts are concatenated and other part types are skipped.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	content, err := extractMessageContent(raw.Content)
	if err != nil {
		return err
	}

	m.Role = raw.Role
	m.Content = content
	return nil
}

func extractMessageContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var segments []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &segments); err == nil {
		var builder strings.Builder
		for _, segment := range segments {
			if segment.Type == "text" {
				builder.WriteString(segment.Text)
			}
		}
		return builder.String(), nil
	}

	return "", fmt.Errorf("%w: unsupported content structure", ErrInvalidContent)
}

// ChatResponse is the OpenAI-compatible body returned to the client.
type ChatResponse struct {
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage values are estimates, see estimateTokens.
type Usage struct {
	PromptTokens     float64 `json:"prompt_tokens"`
	CompletionTokens float64 `json:"completion_tokens"`
}
