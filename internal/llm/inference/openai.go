package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient is the subset of the go-openai client used here.
type OpenAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// OpenAIService implements InferenceService for OpenAI-compatible chat APIs.
type OpenAIService struct {
	client       OpenAIClient
	defaultModel string
}

// NewOpenAIService creates a service for apiKey. An empty baseURL uses the
// OpenAI endpoint.
func NewOpenAIService(apiKey, baseURL, model string) (*OpenAIService, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return NewOpenAIServiceFromClient(openai.NewClientWithConfig(cfg), model), nil
}

// NewOpenAIServiceFromClient wraps an existing client.
func NewOpenAIServiceFromClient(client OpenAIClient, model string) *OpenAIService {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIService{client: client, defaultModel: model}
}

// Generate sends the prompt as a single user message.
func (s *OpenAIService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	// Local model names such as "mistral" mean nothing to a cloud API.
	model := s.defaultModel

	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
		Stop:        req.Stop,
	}

	resp, err := s.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	return &GenerateResponse{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// ListModels returns the models the API key can use.
func (s *OpenAIService) ListModels(ctx context.Context) ([]ModelInfo, error) {
	list, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai list models: %w", err)
	}
	models := make([]ModelInfo, len(list.Models))
	for i, m := range list.Models {
		models[i] = ModelInfo{Name: m.ID}
	}
	return models, nil
}

// Available reports true once a client is configured; reachability shows up
// as Generate errors.
func (s *OpenAIService) Available() bool {
	return s.client != nil
}
