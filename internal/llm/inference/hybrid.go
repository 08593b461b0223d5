package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrNoBackend is returned when neither backend can serve a request.
var ErrNoBackend = errors.New("no inference service available")

// HybridInference tries a local backend first and falls back to a cloud one.
type HybridInference struct {
	local       InferenceService
	cloud       InferenceService
	preferLocal bool
	logger      *slog.Logger
	mu          sync.RWMutex
}

// NewHybridInference creates a hybrid service. Either side may be nil.
func NewHybridInference(local, cloud InferenceService, logger *slog.Logger) *HybridInference {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HybridInference{
		local:       local,
		cloud:       cloud,
		preferLocal: true,
		logger:      logger.With("component", "hybrid-inference"),
	}
}

// Generate attempts local inference first, falls back to cloud.
func (h *HybridInference) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.RLock()
	preferLocal := h.preferLocal
	h.mu.RUnlock()

	var localErr error
	if preferLocal && h.local != nil && h.local.Available() {
		resp, err := h.local.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		localErr = err
		h.logger.Warn("local inference failed, trying cloud", "model", req.Model, "error", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if h.cloud == nil || !h.cloud.Available() {
		if localErr != nil {
			return nil, localErr
		}
		return nil, ErrNoBackend
	}

	resp, err := h.cloud.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("cloud inference: %w", err)
	}
	return resp, nil
}

// Available returns true if any inference service is available.
func (h *HybridInference) Available() bool {
	if h.local != nil && h.local.Available() {
		return true
	}
	return h.cloud != nil && h.cloud.Available()
}

// ListModels lists the local models when the local side can, else the cloud's.
func (h *HybridInference) ListModels(ctx context.Context) ([]ModelInfo, error) {
	for _, svc := range []InferenceService{h.local, h.cloud} {
		if lister, ok := svc.(ModelLister); ok {
			models, err := lister.ListModels(ctx)
			if err == nil {
				return models, nil
			}
		}
	}
	return nil, ErrNoBackend
}

// SetPreferLocal sets whether to prefer local inference.
func (h *HybridInference) SetPreferLocal(prefer bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.preferLocal = prefer
}
