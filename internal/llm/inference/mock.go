package inference

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockInferenceService is a scriptable backend for tests and offline runs.
type MockInferenceService struct {
	mu        sync.Mutex
	available bool
	text      string
	err       error
	delay     time.Duration
	fn        func(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	calls     []GenerateRequest
}

// NewMockInferenceService returns a mock that answers every request with text.
func NewMockInferenceService(text string) *MockInferenceService {
	return &MockInferenceService{available: true, text: text}
}

// SetResponse changes the canned text and clears any error.
func (m *MockInferenceService) SetResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text, m.err = text, nil
}

// SetError makes every call fail with err.
func (m *MockInferenceService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes each call wait d, or until the context ends.
func (m *MockInferenceService) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetFunc hands every call to fn, overriding text, error and delay.
func (m *MockInferenceService) SetFunc(fn func(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
}

// SetAvailable sets the availability status.
func (m *MockInferenceService) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// Generate records the request and returns the scripted outcome.
func (m *MockInferenceService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	fn, text, err, delay, available := m.fn, m.text, m.err, m.delay, m.available
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if !available {
		return nil, errors.New("mock inference service not available")
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return &GenerateResponse{
		Text:         text,
		FinishReason: "stop",
		Usage:        Usage{PromptTokens: len(req.Prompt) / 4, CompletionTokens: len(text) / 4},
	}, nil
}

// Available returns whether the service is available.
func (m *MockInferenceService) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// ListModels returns a single model named "mock".
func (m *MockInferenceService) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return []ModelInfo{{Name: "mock"}}, nil
}

// Calls returns a copy of the recorded requests.
func (m *MockInferenceService) Calls() []GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateRequest(nil), m.calls...)
}
