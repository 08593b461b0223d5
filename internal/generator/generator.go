// Package generator produces AI courtroom responses. It builds a bounded
// prompt from the case and recent transcript, calls a text-generation backend
// under a deadline and falls back to canned text on any failure.
package generator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/fallback"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/llm/inference"
	tracing "github.com/Srinidhi-070/ai-courtroom-simulator/internal/observability"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/relevance"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/observability"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

// Source tells where a response came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
	SourceRedirect Source = "redirect"
)

// Config bounds prompt size, decoding and post-processing.
type Config struct {
	Style       Style
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
	Timeout     time.Duration

	RecentEntries  int
	FactsChars     int
	RecentChars    int
	UtteranceChars int

	FirstLineOnly bool
	MaxSentences  int
	MaxChars      int
	LegalContext  bool
}

// DefaultConfig matches the basic profile.
func DefaultConfig() Config {
	return Config{
		Style:          StyleBrief,
		Model:          "mistral",
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
	}
}

// withDefaults replaces unset or non-positive bounds with DefaultConfig
// values. Prompt and output bounds are never unlimited.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Style == "" {
		c.Style = def.Style
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	positive := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	positive(&c.RecentEntries, def.RecentEntries)
	positive(&c.FactsChars, def.FactsChars)
	positive(&c.RecentChars, def.RecentChars)
	positive(&c.UtteranceChars, def.UtteranceChars)
	positive(&c.MaxSentences, def.MaxSentences)
	positive(&c.MaxChars, def.MaxChars)
	return c
}

// Request is one generation for one AI role.
type Request struct {
	Role       Role
	UserRole   session.Role
	CaseType   session.CaseType
	CaseFacts  string
	Transcript []session.TranscriptEntry
	Utterance  string
	Action     session.ActionType
	Evidence   []session.Evidence
	// SkipRelevance is set by callers that already ran the filter.
	SkipRelevance bool
}

// Result is a generated response. Err records the backend failure that caused
// a fallback; it is informational only.
type Result struct {
	Role    Role
	Text    string
	Source  Source
	Err     error
	Latency time.Duration
}

// Generator turns requests into response text.
type Generator struct {
	backend inference.InferenceService
	filter  *relevance.Filter
	bank    *fallback.Bank
	cfg     Config
	logger  *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithFilter replaces the default relevance filter.
func WithFilter(f *relevance.Filter) Option {
	return func(g *Generator) {
		if f != nil {
			g.filter = f
		}
	}
}

// WithBank replaces the default fallback bank.
func WithBank(b *fallback.Bank) Option {
	return func(g *Generator) {
		if b != nil {
			g.bank = b
		}
	}
}

// New creates a Generator. backend may be nil, in which case every response
// is a fallback.
func New(backend inference.InferenceService, cfg Config, opts ...Option) *Generator {
	g := &Generator{
		backend: backend,
		filter:  relevance.New(),
		bank:    fallback.New(),
		cfg:     cfg.withDefaults(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "generator")
	return g
}

// Config returns the effective configuration.
func (g *Generator) Config() Config {
	return g.cfg
}

// Filter returns the relevance filter in use.
func (g *Generator) Filter() *relevance.Filter {
	return g.filter
}

// Bank returns the fallback bank in use.
func (g *Generator) Bank() *fallback.Bank {
	return g.bank
}

// Generate never fails: off-topic input yields a redirect, and any backend
// problem yields a canned line for the role.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "courtroom.generate", map[string]any{
		"role":   string(req.Role),
		"action": string(req.Action),
	})
	defer span.End()

	if !req.SkipRelevance && !g.filter.IsRelevant(req.Utterance, req.CaseFacts) {
		res := Result{Role: req.Role, Text: g.Redirect(req.Role), Source: SourceRedirect}
		return g.finish(res, start)
	}

	text, err := g.call(ctx, req)
	if err != nil {
		g.logger.Warn("generation failed, using fallback",
			"role", req.Role,
			"error", err,
		)
		span.RecordError(err)
		res := Result{Role: req.Role, Text: g.Fallback(req.Role, req.Action), Source: SourceFallback, Err: err}
		return g.finish(res, start)
	}
	return g.finish(Result{Role: req.Role, Text: text, Source: SourceModel}, start)
}

// Fallback is the canned line for role after action.
func (g *Generator) Fallback(role Role, action session.ActionType) string {
	return g.bank.Fallback(string(role), string(action))
}

// Redirect is the canned redirect role gives to off-topic input.
func (g *Generator) Redirect(role Role) string {
	return g.bank.Irrelevance(string(role))
}

func (g *Generator) finish(res Result, start time.Time) Result {
	res.Latency = time.Since(start)
	observability.RecordGeneration(string(res.Role), string(res.Source), res.Latency)
	return res
}

var errNoBackend = errors.New("no generation backend configured")

func (g *Generator) call(ctx context.Context, req Request) (string, error) {
	if g.backend == nil {
		return "", errNoBackend
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := g.backend.Generate(ctx, inference.GenerateRequest{
		Model:       g.cfg.Model,
		Prompt:      g.buildPrompt(req),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		TopP:        g.cfg.TopP,
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", inference.ErrEmptyResponse
	}
	text := g.clean(resp.Text)
	if text == "" {
		return "", inference.ErrEmptyResponse
	}
	return text, nil
}

// clean trims, optionally keeps the first line, keeps at most MaxSentences
// sentences and at most MaxChars runes.
func (g *Generator) clean(text string) string {
	text = strings.TrimSpace(text)
	if g.cfg.FirstLineOnly {
		if line, _, ok := strings.Cut(text, "\n"); ok {
			text = strings.TrimSpace(line)
		}
	}
	if n := g.cfg.MaxSentences; n > 0 {
		parts := strings.Split(text, ". ")
		if len(parts) > n {
			text = strings.Join(parts[:n], ". ") + "."
		}
	}
	if n := g.cfg.MaxChars; n > 0 && utf8.RuneCountInString(text) > n {
		text = strings.TrimSpace(string([]rune(text)[:n]))
	}
	return text
}
