package gemini

import (
	"context"

	geminiapi "github.com/chatrelay/relay/internal/infrastructure/gemini"
	"github.com/chatrelay/relay/internal/logger"
)

type Service struct {
	client *geminiapi.Client
}

// NewService returns nil when no Gemini client is available.
func NewService(client *geminiapi.Client) *Service {
	if client == nil {
		return nil
	}
	return &Service{client: client}
}

// Generate runs one chat request against Gemini. Failures are either
// *AdapterError values or errors from the outbound call.
func (s *Service) Generate(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerReq, err := BuildProviderRequest(req)
	if err != nil {
		return nil, err
	}
	promptText := providerReq.Contents[0].Parts[0].Text

	providerResp, err := s.client.GenerateContent(ctx, providerReq)
	if err != nil {
		return nil, err
	}

	resp, err := ParseProviderResponse(providerResp, promptText)
	if err != nil {
		logger.For(logger.PROVIDER).Warn().
			Err(err).
			Str("model", s.client.Model()).
			Msg("Gemini response could not be translated")
		return nil, err
	}

	return resp, nil
}
