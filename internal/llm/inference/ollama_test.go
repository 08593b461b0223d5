package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaService_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		var req struct {
			Model   string         `json:"model"`
			Prompt  string         `json:"prompt"`
			Stream  bool           `json:"stream"`
			Options map[string]any `json:"options"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Model != "mistral" {
			t.Errorf("unexpected model: %v", req.Model)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		if req.Options["temperature"] != 0.7 || req.Options["top_p"] != 0.9 || req.Options["num_predict"] != float64(80) {
			t.Errorf("unexpected options: %v", req.Options)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"response":          "The court will hear the defense.",
			"done":              true,
			"prompt_eval_count": 5,
			"eval_count":        3,
		})
	}))
	defer server.Close()

	svc, err := NewOllamaService(server.URL)
	if err != nil {
		t.Fatalf("NewOllamaService() error = %v", err)
	}
	resp, err := svc.Generate(context.Background(), GenerateRequest{
		Model:       "mistral",
		Prompt:      "Respond as the judge",
		MaxTokens:   80,
		Temperature: 0.7,
		TopP:        0.9,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "The court will hear the defense." {
		t.Errorf("unexpected text: %s", resp.Text)
	}
	if resp.Usage.TotalTokens != 8 {
		t.Errorf("unexpected total tokens: %d", resp.Usage.TotalTokens)
	}
}

func TestOllamaService_GenerateFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not loaded", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
		},
		{
			name: "empty text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"response": "   ", "done": true})
			},
			wantErr: ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			svc, err := NewOllamaService(server.URL)
			if err != nil {
				t.Fatalf("NewOllamaService() error = %v", err)
			}
			_, err = svc.Generate(context.Background(), GenerateRequest{Model: "mistral", Prompt: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOllamaService_GenerateHonoursDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	svc, err := NewOllamaService(server.URL)
	if err != nil {
		t.Fatalf("NewOllamaService() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = svc.Generate(ctx, GenerateRequest{Model: "mistral", Prompt: "x"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("generate did not stop at the deadline: %s", time.Since(start))
	}
}

func TestOllamaService_ListModelsAndAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "mistral:latest", "size": 4100000000},
				{"name": "llama3:8b", "size": 4700000000},
			},
		})
	}))
	defer server.Close()

	svc, err := NewOllamaService(server.URL + "/")
	if err != nil {
		t.Fatalf("NewOllamaService() error = %v", err)
	}
	if svc.BaseURL() != server.URL {
		t.Errorf("BaseURL() = %s, want %s", svc.BaseURL(), server.URL)
	}

	models, err := svc.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 || models[0].Name != "mistral:latest" {
		t.Errorf("unexpected models: %+v", models)
	}
	if !svc.Available() {
		t.Error("Available() = false, want true")
	}

	server.Close()
	if svc.Available() {
		t.Error("Available() = true after server closed")
	}
}

func TestNewOllamaService_RejectsUnsafeEndpoints(t *testing.T) {
	for _, u := range []string{
		"ftp://localhost:11434",
		"http://169.254.169.254/latest",
		"http://example.invalid:11434",
	} {
		if _, err := NewOllamaService(u); err == nil {
			t.Errorf("NewOllamaService(%q) succeeded, want error", u)
		}
	}
}
