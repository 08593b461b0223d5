package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/generator"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"COURTROOM_PROFILE", "OLLAMA_HOST", "OLLAMA_PORT", "OLLAMA_MODEL",
		"MAX_WORKERS", "ALLOWED_ORIGINS", "JWT_SECRET", "OPENAI_API_KEY",
		"OTEL_SERVICE_NAME", "OTEL_TRACES_EXPORTER", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_HEADERS",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "courtroom.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func TestLoad_DefaultsToBasic(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Profile != ProfileBasic {
		t.Errorf("profile = %q, want basic", cfg.Profile)
	}
	if cfg.Session.Backend != session.BackendFile || cfg.Session.Dir != "sessions" {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Turn.Workers != 2 || cfg.Relevance.Threshold != 10 || !cfg.Relevance.ExtendedLists {
		t.Errorf("basic tuning wrong: turn=%+v relevance=%+v", cfg.Turn, cfg.Relevance)
	}
	if cfg.Server.MaxInputChars != 1000 || !cfg.Server.TitleRequired {
		t.Errorf("server = %+v", cfg.Server)
	}
}

func TestForProfile(t *testing.T) {
	tests := []struct {
		profile     string
		style       generator.Style
		maxTokens   int
		temperature float64
		workers     int
		backend     string
	}{
		{ProfileBasic, generator.StyleBrief, 50, 0.6, 2, session.BackendFile},
		{ProfileSimple, generator.StylePlain, 60, 0.7, 1, session.BackendMemory},
		{ProfileAdvanced, generator.StyleFormal, 80, 0.7, 4, session.BackendSQLite},
	}
	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			cfg, err := ForProfile(tt.profile)
			if err != nil {
				t.Fatalf("ForProfile: %v", err)
			}
			g := cfg.GeneratorConfig()
			if g.Style != tt.style || g.MaxTokens != tt.maxTokens || g.Temperature != tt.temperature {
				t.Errorf("generator config = %+v", g)
			}
			if g.TopP != 0.9 || g.Model != "mistral" {
				t.Errorf("top_p=%v model=%q", g.TopP, g.Model)
			}
			if cfg.Turn.Workers != tt.workers {
				t.Errorf("workers = %d, want %d", cfg.Turn.Workers, tt.workers)
			}
			if cfg.Session.Backend != tt.backend {
				t.Errorf("backend = %q, want %q", cfg.Session.Backend, tt.backend)
			}
		})
	}

	if _, err := ForProfile("deluxe"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestLoad_ProfileFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("COURTROOM_PROFILE", ProfileSimple)

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Profile != ProfileSimple || cfg.Server.TitleRequired {
		t.Errorf("cfg = %+v", cfg.Server)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoad_FileOverlaysProfile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
profile: simple
server:
  addr: ":9100"
generation:
  max_tokens: 90
  timeout: 5s
turn:
  workers: 3
`)

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Profile != ProfileSimple {
		t.Errorf("profile = %q", cfg.Profile)
	}
	if cfg.Server.Addr != ":9100" || cfg.Turn.Workers != 3 {
		t.Errorf("overrides not applied: addr=%q workers=%d", cfg.Server.Addr, cfg.Turn.Workers)
	}
	if cfg.Generation.MaxTokens != 90 || cfg.Generation.Timeout != 5*time.Second {
		t.Errorf("generation = %+v", cfg.Generation)
	}
	// Untouched keys keep the simple profile's values.
	if cfg.Generation.Style != string(generator.StylePlain) || cfg.Session.Backend != session.BackendMemory {
		t.Errorf("profile defaults lost: style=%q backend=%q", cfg.Generation.Style, cfg.Session.Backend)
	}
}

func TestLoad_ExplicitProfileWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("COURTROOM_PROFILE", ProfileAdvanced)
	path := writeFile(t, "profile: advanced\n")

	cfg, err := Load(path, ProfileSimple)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Profile != ProfileSimple {
		t.Errorf("profile = %q, want simple", cfg.Profile)
	}
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_HOST", "gpu-box")
	t.Setenv("OLLAMA_PORT", "11500")
	t.Setenv("OLLAMA_MODEL", "llama3")
	t.Setenv("MAX_WORKERS", "6")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.OllamaURL != "http://gpu-box:11500" {
		t.Errorf("ollama url = %q", cfg.Model.OllamaURL)
	}
	if cfg.Model.Name != "llama3" || cfg.GeneratorConfig().Model != "llama3" {
		t.Errorf("model = %q", cfg.Model.Name)
	}
	if cfg.Turn.Workers != 6 {
		t.Errorf("workers = %d", cfg.Turn.Workers)
	}
	if strings.Join(cfg.Server.AllowedOrigins, "|") != "http://a.test|http://b.test" {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoad_EnvPortOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_PORT", "9999")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.OllamaURL != "http://127.0.0.1:9999" {
		t.Errorf("ollama url = %q", cfg.Model.OllamaURL)
	}
}

func TestLoad_BadWorkers(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_WORKERS", "many")
	if _, err := Load("", ""); err == nil {
		t.Error("expected error for non-numeric MAX_WORKERS")
	}
}

func TestLoad_AdvancedRequiresSecret(t *testing.T) {
	clearEnv(t)

	_, err := Load("", ProfileAdvanced)
	if err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("expected jwt_secret error, got %v", err)
	}

	t.Setenv("JWT_SECRET", "advanced-secret-0123456789")
	cfg, err := Load("", ProfileAdvanced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Server.RequireAuth || cfg.Analytics.Sink != AnalyticsSQLite {
		t.Errorf("advanced = %+v / %+v", cfg.Server, cfg.Analytics)
	}
	if !cfg.GeneratorConfig().LegalContext {
		t.Error("advanced profile should include legal context")
	}
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)

	if _, err := Load("/nonexistent/path/courtroom.yaml", ""); err == nil {
		t.Error("expected error for nonexistent file")
	}

	tests := map[string]string{
		"unknown key":     "servre:\n  addr: \":1\"\n",
		"invalid yaml":    "server: [unclosed\n",
		"unknown profile": "profile: deluxe\n",
		"bad backend":     "model:\n  backend: carrier-pigeon\n",
		"bad style":       "generation:\n  style: verbose\n",
		"zero facts":      "generation:\n  facts_chars: 0\n",
		"too large":       strings.Repeat("# padding\n", 120000),
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, body), ""); err == nil {
				t.Errorf("%s: expected error", name)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg, _ := ForProfile(ProfileBasic)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("basic profile invalid: %v", err)
	}

	cfg.Model.Backend = BackendOpenAI
	cfg.Turn.Workers = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"openai_key", "turn.workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
	if !strings.HasPrefix(err.Error(), "config: ") {
		t.Errorf("error not prefixed: %q", err)
	}

	cfg, _ = ForProfile(ProfileBasic)
	cfg.Model.Backend = BackendMock
	cfg.Session.Backend = session.BackendRedis
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "redis") {
		t.Errorf("expected redis addr error, got %v", err)
	}
}

func TestValidate_GenerationBounds(t *testing.T) {
	for _, name := range Profiles() {
		cfg, _ := ForProfile(name)
		cfg.Server.JWTSecret = "0123456789abcdef"
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s profile invalid: %v", name, err)
		}
	}

	cfg, _ := ForProfile(ProfileBasic)
	cfg.Generation.RecentEntries = 0
	cfg.Generation.FactsChars = 0
	cfg.Generation.RecentChars = -1
	cfg.Generation.UtteranceChars = 0
	cfg.Generation.MaxSentences = 0
	cfg.Generation.MaxChars = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors for unbounded generation")
	}
	for _, field := range []string{"recent_entries", "facts_chars", "recent_chars", "utterance_chars", "max_sentences", "max_chars"} {
		want := "config: generation." + field + " must be positive"
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
