package gemini

import (
	"fmt"
	"unicode/utf8"

	geminiapi "github.com/chatrelay/relay/internal/infrastructure/gemini"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultTemperature     = 0.7
	DefaultMaxOutputTokens = 1024

	charsPerToken = 4.0
)

type Kind int

const (
	KindInvalidRequest Kind = iota + 1
	KindNoCandidates
	KindContentFiltered
	KindEmptyCompletion
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindNoCandidates:
		return "no_candidates"
	case KindContentFiltered:
		return "content_filtered"
	case KindEmptyCompletion:
		return "empty_completion"
	default:
		return "unknown"
	}
}

// AdapterError reports a request or response that cannot be translated.
type AdapterError struct {
	Kind          Kind
	Reason        string
	SafetyRatings []geminiapi.SafetyRating
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// ExtractPromptText returns prompt when set, else the content of the last
// message.
func ExtractPromptText(req ChatRequest) (string, error) {
	if req.Prompt != "" {
		return req.Prompt, nil
	}

	if n := len(req.Messages); n > 0 && req.Messages[n-1].Content != "" {
		return req.Messages[n-1].Content, nil
	}

	return "", &AdapterError{
		Kind:   KindInvalidRequest,
		Reason: "request must contain a prompt or at least one message with content",
	}
}

// BuildProviderRequest translates a chat request into a generateContent body.
func BuildProviderRequest(req ChatRequest) (geminiapi.GenerateContentRequest, error) {
	text, err := ExtractPromptText(req)
	if err != nil {
		return geminiapi.GenerateContentRequest{}, err
	}

	genConfig := geminiapi.GenerationConfig{
		Temperature:     DefaultTemperature,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
	if req.Temperature != nil && *req.Temperature != 0 {
		genConfig.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil && *req.MaxTokens != 0 {
		genConfig.MaxOutputTokens = *req.MaxTokens
	}
	if req.TopK != nil && *req.TopK != 0 {
		topK := *req.TopK
		genConfig.TopK = &topK
	}
	if req.TopP != nil && *req.TopP != 0 {
		topP := *req.TopP
		genConfig.TopP = &topP
	}

	return geminiapi.GenerateContentRequest{
		Contents: []geminiapi.Content{
			{Parts: []geminiapi.Part{{Text: text}}},
		},
		GenerationConfig: genConfig,
	}, nil
}

// ParseProviderResponse turns a generateContent response into a chat
// completion. Only the first candidate is considered.
func ParseProviderResponse(resp *geminiapi.GenerateContentResponse, promptText string) (*ChatResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &AdapterError{Kind: KindNoCandidates, Reason: "No candidates returned"}
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == geminiapi.FinishReasonSafety {
		return nil, &AdapterError{
			Kind:          KindContentFiltered,
			Reason:        geminiapi.FinishReasonSafety,
			SafetyRatings: candidate.SafetyRatings,
		}
	}

	text := firstPartText(candidate)
	if text == "" {
		return nil, &AdapterError{Kind: KindEmptyCompletion, Reason: "Candidate contained no text"}
	}

	finishReason := candidate.FinishReason
	if finishReason == "" {
		finishReason = string(openai.FinishReasonStop)
	}

	return &ChatResponse{
		Choices: []Choice{
			{
				Message: ResponseMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: text,
				},
				FinishReason: finishReason,
			},
		},
		Usage: &Usage{
			PromptTokens:     estimateTokens(promptText),
			CompletionTokens: estimateTokens(text),
		},
	}, nil
}

func firstPartText(candidate geminiapi.Candidate) string {
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ""
	}
	return candidate.Content.Parts[0].Text
}

// estimateTokens is a rough characters/4 heuristic, not a tokenizer.
// Characters are Unicode code points, not UTF-16 code units, so an emoji
// outside the BMP counts once here where a UTF-16 length would count it twice.
func estimateTokens(s string) float64 {
	return float64(utf8.RuneCountInString(s)) / charsPerToken
}
