package gemini

import (
	"context"
	"strings"

	"github.com/KNICEX/trading-monitor/internal/service/llm"
	"github.com/google/generative-ai-go/genai"
)

const DefaultModel = "gemini-2.0-flash"

type Service struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewService(client *genai.Client, opts ...Option) llm.Service {
	svc := &Service{
		client: client,
		model:  client.GenerativeModel(DefaultModel),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type Option func(service *Service)

func WithTemperature(temp float32) Option {
	return func(service *Service) {
		service.model.SetTemperature(temp)
	}
}

func WithModel(name string) Option {
	return func(service *Service) {
		if name == "" {
			return
		}
		service.model = service.client.GenerativeModel(name)
	}
}

// WithJSONResponse 要求模型直接输出 JSON
func WithJSONResponse() Option {
	return func(service *Service) {
		service.model.ResponseMIMEType = "application/json"
	}
}

func (s *Service) AskOnce(ctx context.Context, q llm.Question) (llm.Answer, error) {
	resp, err := s.model.GenerateContent(ctx, genai.Text(q.Content))
	if err != nil {
		return llm.Answer{}, err
	}
	return toAnswer(resp), nil
}

func toAnswer(resp *genai.GenerateContentResponse) llm.Answer {
	answer := llm.Answer{Content: parseResponse(resp)}
	if resp != nil && resp.UsageMetadata != nil {
		answer.InputToken = int(resp.UsageMetadata.PromptTokenCount)
		answer.OutputToken = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return answer
}

func parseResponse(resp *genai.GenerateContentResponse) string {
	var resStr strings.Builder
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	for i, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		text, ok := part.(genai.Text)
		if !ok {
			return ""
		}
		if i > 0 {
			resStr.WriteString("\n")
		}
		resStr.WriteString(string(text))
	}
	return resStr.String()
}
