// Package inference talks to text-generation backends: a local Ollama server,
// an OpenAI-compatible API, and compositions of the two.
package inference

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a backend answers with no text.
var ErrEmptyResponse = errors.New("inference: empty response")

// InferenceService defines the interface for text generation.
type InferenceService interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	Available() bool
}

// ModelLister is implemented by services that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// GenerateRequest represents an inference request.
type GenerateRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stop        []string
}

// GenerateResponse represents an inference response.
type GenerateResponse struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ModelInfo represents model information.
type ModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size,omitempty"`
}
