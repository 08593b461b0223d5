package inference

import (
	"context"
	"errors"

	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/security"
)

// GuardedService short-circuits calls to a backend that keeps failing.
// Caller cancellations do not count as backend failures.
type GuardedService struct {
	next    InferenceService
	breaker *security.CircuitBreaker
}

// NewGuardedService wraps next with breaker.
func NewGuardedService(next InferenceService, breaker *security.CircuitBreaker) *GuardedService {
	return &GuardedService{next: next, breaker: breaker}
}

// Generate calls the wrapped backend unless the circuit is open.
func (g *GuardedService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var resp *GenerateResponse
	var callErr error
	err := g.breaker.Execute(func() error {
		resp, callErr = g.next.Generate(ctx, req)
		if callErr != nil && errors.Is(callErr, context.Canceled) {
			return nil
		}
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		return nil, callErr
	}
	return resp, nil
}

// Available is false while the circuit is open.
func (g *GuardedService) Available() bool {
	if g.breaker.State() == security.CircuitOpen {
		return false
	}
	return g.next.Available()
}

// State reports the breaker state.
func (g *GuardedService) State() security.CircuitState {
	return g.breaker.State()
}

// ListModels delegates to the wrapped backend when it can list models.
func (g *GuardedService) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if lister, ok := g.next.(ModelLister); ok {
		return lister.ListModels(ctx)
	}
	return nil, ErrNoBackend
}
