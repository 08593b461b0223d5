// Package config loads server configuration: a named profile, overlaid by an
// optional YAML file, overlaid by environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/generator"
	tracing "github.com/Srinidhi-070/ai-courtroom-simulator/internal/observability"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/security"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

// Profile names.
const (
	ProfileBasic    = "basic"
	ProfileSimple   = "simple"
	ProfileAdvanced = "advanced"
)

// Model backend names.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendHybrid = "hybrid"
	BackendMock   = "mock"
)

// Analytics sink names.
const (
	AnalyticsNone   = "none"
	AnalyticsLog    = "log"
	AnalyticsSQLite = "sqlite"
)

// Config is the complete server configuration.
type Config struct {
	Profile    string           `yaml:"profile"`
	Server     ServerConfig     `yaml:"server"`
	Model      ModelConfig      `yaml:"model"`
	Generation GenerationConfig `yaml:"generation"`
	Relevance  RelevanceConfig  `yaml:"relevance"`
	Turn       TurnConfig       `yaml:"turn"`
	Session    session.Config   `yaml:"session"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Tracing    tracing.Config   `yaml:"tracing"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig covers the HTTP surface.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
	// MaxInputChars bounds user_input on turns.
	MaxInputChars int `yaml:"max_input_chars"`
	// TitleRequired rejects sessions created without a case title.
	TitleRequired bool          `yaml:"title_required"`
	RequireAuth   bool          `yaml:"require_auth"`
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	// Debug attaches scrubbed causes to internal error bodies.
	Debug bool `yaml:"debug"`
	// ObservabilityAddr serves health and metrics on a separate port when set.
	ObservabilityAddr string `yaml:"observability_addr"`
}

// ModelConfig selects and configures the text-generation backend.
type ModelConfig struct {
	Backend       string `yaml:"backend"`
	OllamaURL     string `yaml:"ollama_url"`
	Name          string `yaml:"name"`
	OpenAIKey     string `yaml:"openai_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`
	// BreakerFailures consecutive failures open the circuit for BreakerReset.
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerReset    time.Duration `yaml:"breaker_reset"`
	// AllowedHosts extends the model host allowlist.
	AllowedHosts []string `yaml:"allowed_hosts"`
}

// GenerationConfig shapes prompts and responses.
type GenerationConfig struct {
	Style          string        `yaml:"style"`
	Temperature    float64       `yaml:"temperature"`
	TopP           float64       `yaml:"top_p"`
	MaxTokens      int           `yaml:"max_tokens"`
	Timeout        time.Duration `yaml:"timeout"`
	RecentEntries  int           `yaml:"recent_entries"`
	FactsChars     int           `yaml:"facts_chars"`
	RecentChars    int           `yaml:"recent_chars"`
	UtteranceChars int           `yaml:"utterance_chars"`
	FirstLineOnly  bool          `yaml:"first_line_only"`
	MaxSentences   int           `yaml:"max_sentences"`
	MaxChars       int           `yaml:"max_chars"`
	LegalContext   bool          `yaml:"legal_context"`
}

// RelevanceConfig tunes the on-topic filter.
type RelevanceConfig struct {
	Threshold     int      `yaml:"threshold"`
	ExtendedLists bool     `yaml:"extended_lists"`
	DenyWords     []string `yaml:"deny_words"`
	AllowWords    []string `yaml:"allow_words"`
}

// TurnConfig sizes turn processing.
type TurnConfig struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
	// Opening selects the seeded transcript: brief, titled or formal.
	Opening string `yaml:"opening"`
}

// AnalyticsConfig selects the analytics sink.
type AnalyticsConfig struct {
	Sink      string `yaml:"sink"`
	QueueSize int    `yaml:"queue_size"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Profiles lists the known profile names.
func Profiles() []string {
	return []string{ProfileBasic, ProfileSimple, ProfileAdvanced}
}

// ForProfile returns the defaults for a named profile.
func ForProfile(name string) (Config, error) {
	cfg := base()
	switch name {
	case ProfileBasic, "":
		cfg.Profile = ProfileBasic
	case ProfileSimple:
		cfg.Profile = ProfileSimple
		cfg.Server.AllowedOrigins = []string{"*"}
		cfg.Server.MaxInputChars = 2000
		cfg.Server.TitleRequired = false
		cfg.Session.Backend = session.BackendMemory
		cfg.Turn.Workers = 1
		cfg.Turn.Opening = string(session.OpeningTitled)
		cfg.Relevance = RelevanceConfig{Threshold: 8}
		cfg.Generation = GenerationConfig{
			Style:          string(generator.StylePlain),
			Temperature:    0.7,
			TopP:           0.9,
			MaxTokens:      60,
			Timeout:        15 * time.Second,
			RecentEntries:  3,
			FactsChars:     150,
			RecentChars:    200,
			UtteranceChars: 100,
			MaxSentences:   3,
			MaxChars:       300,
		}
	case ProfileAdvanced:
		cfg.Profile = ProfileAdvanced
		cfg.Server.MaxInputChars = 2000
		cfg.Server.RequireAuth = true
		cfg.Session.Backend = session.BackendSQLite
		cfg.Turn.Workers = 4
		cfg.Turn.Timeout = 20 * time.Second
		cfg.Turn.Opening = string(session.OpeningFormal)
		cfg.Relevance = RelevanceConfig{Threshold: 8}
		cfg.Analytics.Sink = AnalyticsSQLite
		cfg.Generation = GenerationConfig{
			Style:          string(generator.StyleFormal),
			Temperature:    0.7,
			TopP:           0.9,
			MaxTokens:      80,
			Timeout:        20 * time.Second,
			RecentEntries:  6,
			FactsChars:     150,
			RecentChars:    300,
			UtteranceChars: 150,
			MaxSentences:   3,
			MaxChars:       400,
			LegalContext:   true,
		}
	default:
		return Config{}, fmt.Errorf("config: unknown profile %q", name)
	}
	return cfg, nil
}

// base is the basic profile.
func base() Config {
	return Config{
		Profile: ProfileBasic,
		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"http://localhost:8501", "http://127.0.0.1:8501"},
			RateLimit:      5,
			RateBurst:      10,
			MaxInputChars:  1000,
			TitleRequired:  true,
			TokenTTL:       security.DefaultTokenTTL,
		},
		Model: ModelConfig{
			Backend:         BackendOllama,
			OllamaURL:       "http://127.0.0.1:11434",
			Name:            "mistral",
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
		},
		Generation: GenerationConfig{
			Style:          string(generator.StyleBrief),
			Temperature:    0.6,
			TopP:           0.9,
			MaxTokens:      50,
			Timeout:        15 * time.Second,
			RecentEntries:  4,
			FactsChars:     100,
			RecentChars:    200,
			UtteranceChars: 100,
			FirstLineOnly:  true,
			MaxSentences:   3,
			MaxChars:       300,
		},
		Relevance: RelevanceConfig{Threshold: 10, ExtendedLists: true},
		Turn: TurnConfig{
			Workers: 2,
			Timeout: 15 * time.Second,
			Opening: string(session.OpeningBrief),
		},
		Session:   session.DefaultConfig(),
		Analytics: AnalyticsConfig{Sink: AnalyticsLog, QueueSize: 1024},
		Tracing:   tracing.DefaultConfig(),
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. The profile is chosen by profile, then
// COURTROOM_PROFILE, then the file's profile key, then basic. path may be
// empty.
func Load(path, profile string) (Config, error) {
	parser := security.NewSafeYAMLParser(security.DefaultYAMLLimits(), true)

	var data []byte
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if profile == "" {
		profile = os.Getenv("COURTROOM_PROFILE")
	}
	if profile == "" && len(data) > 0 {
		var head struct {
			Profile string `yaml:"profile"`
		}
		lenient := security.NewSafeYAMLParser(security.DefaultYAMLLimits(), false)
		if err := lenient.Unmarshal(data, &head); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		profile = head.Profile
	}

	cfg, err := ForProfile(profile)
	if err != nil {
		return Config{}, err
	}
	if len(data) > 0 {
		if err := parser.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.Profile = profileName(profile)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func profileName(p string) string {
	if p == "" {
		return ProfileBasic
	}
	return p
}

// ApplyEnv overlays the deployment environment variables.
func (c *Config) ApplyEnv() error {
	host, port := os.Getenv("OLLAMA_HOST"), os.Getenv("OLLAMA_PORT")
	if host != "" || port != "" {
		u, err := url.Parse(c.Model.OllamaURL)
		if err != nil {
			return fmt.Errorf("config: ollama_url: %w", err)
		}
		if strings.Contains(host, "://") {
			if u, err = url.Parse(host); err != nil {
				return fmt.Errorf("config: OLLAMA_HOST: %w", err)
			}
			host = ""
		}
		h, p := u.Hostname(), u.Port()
		if host != "" {
			h = host
		}
		if port != "" {
			p = port
		}
		if p == "" {
			p = "11434"
		}
		c.Model.OllamaURL = u.Scheme + "://" + net.JoinHostPort(h, p)
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.Model.Name = v
	}
	if v := os.Getenv("MAX_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: MAX_WORKERS: %w", err)
		}
		c.Turn.Workers = n
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.AllowedOrigins = origins
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Model.OpenAIKey = v
	}
	c.Tracing.ApplyEnv()
	return nil
}

// Validate reports every configuration error found.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("config: "+format, args...))
	}

	if c.Server.Addr == "" {
		add("server.addr is required")
	}
	if c.Server.MaxInputChars <= 0 || c.Server.MaxInputChars > session.MaxEntryText {
		add("server.max_input_chars must be between 1 and %d", session.MaxEntryText)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		add("server.rate_burst must be positive when rate limiting")
	}
	if c.Server.RequireAuth && len(c.Server.JWTSecret) < 16 {
		add("server.jwt_secret (or JWT_SECRET) of at least 16 bytes is required when auth is enabled")
	}

	switch c.Model.Backend {
	case BackendOllama, BackendHybrid:
		if c.Model.OllamaURL == "" {
			add("model.ollama_url is required for the %s backend", c.Model.Backend)
		}
		if c.Model.Backend == BackendHybrid && c.Model.OpenAIKey == "" {
			add("model.openai_key (or OPENAI_API_KEY) is required for the hybrid backend")
		}
	case BackendOpenAI:
		if c.Model.OpenAIKey == "" {
			add("model.openai_key (or OPENAI_API_KEY) is required for the openai backend")
		}
	case BackendMock:
	default:
		add("unknown model.backend %q", c.Model.Backend)
	}

	if _, err := generator.ParseStyle(c.Generation.Style); err != nil {
		add("generation.style: %v", err)
	}
	if c.Generation.Timeout <= 0 {
		add("generation.timeout must be positive")
	}
	if c.Generation.MaxTokens <= 0 {
		add("generation.max_tokens must be positive")
	}
	for _, b := range []struct {
		name string
		v    int
	}{
		{"recent_entries", c.Generation.RecentEntries},
		{"facts_chars", c.Generation.FactsChars},
		{"recent_chars", c.Generation.RecentChars},
		{"utterance_chars", c.Generation.UtteranceChars},
		{"max_sentences", c.Generation.MaxSentences},
		{"max_chars", c.Generation.MaxChars},
	} {
		if b.v <= 0 {
			add("generation.%s must be positive", b.name)
		}
	}
	if c.Turn.Workers <= 0 {
		add("turn.workers must be positive")
	}
	if c.Turn.Timeout <= 0 {
		add("turn.timeout must be positive")
	}
	if _, err := session.ParseOpening(c.Turn.Opening); err != nil {
		add("turn.opening: %v", err)
	}
	if err := c.Session.Validate(); err != nil {
		add("session: %v", err)
	}
	switch c.Analytics.Sink {
	case AnalyticsNone, AnalyticsLog, AnalyticsSQLite, "":
	default:
		add("unknown analytics.sink %q", c.Analytics.Sink)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		add("unknown log.format %q", c.Log.Format)
	}
	return errors.Join(errs...)
}

// GeneratorConfig converts the generation section for the generator package.
func (c Config) GeneratorConfig() generator.Config {
	style, _ := generator.ParseStyle(c.Generation.Style)
	g := c.Generation
	return generator.Config{
		Style:          style,
		Model:          c.Model.Name,
		Temperature:    g.Temperature,
		TopP:           g.TopP,
		MaxTokens:      g.MaxTokens,
		Timeout:        g.Timeout,
		RecentEntries:  g.RecentEntries,
		FactsChars:     g.FactsChars,
		RecentChars:    g.RecentChars,
		UtteranceChars: g.UtteranceChars,
		FirstLineOnly:  g.FirstLineOnly,
		MaxSentences:   g.MaxSentences,
		MaxChars:       g.MaxChars,
		LegalContext:   g.LegalContext,
	}
}
