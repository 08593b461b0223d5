// Package orchestration runs courtroom turns: it appends the human's
// utterance, checks relevance, fans generation out over a bounded worker pool
// and appends the AI responses in a fixed role order.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/analytics"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/generator"
	tracing "github.com/Srinidhi-070/ai-courtroom-simulator/internal/observability"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/observability"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

// Status strings reported to clients.
const (
	StatusStarted    = "Session started successfully"
	StatusCompleted  = "Step completed"
	StatusRedirected = "Irrelevant input - redirected to case"
)

// DefaultTurnTimeout is how long a turn waits for each AI response.
const DefaultTurnTimeout = 15 * time.Second

var (
	// ErrEmptyUtterance is returned for blank input.
	ErrEmptyUtterance = errors.New("utterance is empty")
	// ErrUnknownEvidence is returned when a cited exhibit is not in the session.
	ErrUnknownEvidence = errors.New("unknown evidence id")
)

// TurnInput is what the human submits.
type TurnInput struct {
	Utterance   string
	Action      session.ActionType
	EvidenceIDs []string
}

// TurnResult describes what a turn appended.
type TurnResult struct {
	Relevant  bool
	Status    string
	Entries   []session.TranscriptEntry
	Responses []generator.Result
	Duration  time.Duration
}

// AIRoles returns the AI participants answering a human in role user, in the
// order their entries are appended.
func AIRoles(user session.Role) []generator.Role {
	if user == session.RoleJudge {
		return []generator.Role{generator.ProsecutionCounsel, generator.DefenseCounsel}
	}
	return []generator.Role{generator.Judge, generator.OpposingCounsel}
}

// redirectRole is who answers an off-topic utterance: the judge, or the first
// AI counsel when the human presides.
func redirectRole(user session.Role) generator.Role {
	return AIRoles(user)[0]
}

// Orchestrator processes turns. It is safe for concurrent use; callers
// serialize turns for a single session.
type Orchestrator struct {
	gen     *generator.Generator
	pool    *Pool
	events  analytics.Emitter
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEmitter sets where turn analytics go.
func WithEmitter(e analytics.Emitter) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.events = e
		}
	}
}

// WithTimeout sets the per-response collection deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithClock sets the time source for transcript timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an Orchestrator. A nil pool gets DefaultPoolSize workers.
func New(gen *generator.Generator, pool *Pool, opts ...Option) *Orchestrator {
	if pool == nil {
		pool = NewPool(DefaultPoolSize)
	}
	o := &Orchestrator{
		gen:     gen,
		pool:    pool,
		events:  analytics.Discard{},
		timeout: DefaultTurnTimeout,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "orchestrator")
	return o
}

// Pool returns the worker pool.
func (o *Orchestrator) Pool() *Pool {
	return o.pool
}

// ProcessTurn appends the human's utterance and the AI responses to s. It
// fails only on invalid input, before s is touched; backend trouble turns
// into fallback text.
func (o *Orchestrator) ProcessTurn(ctx context.Context, s *session.Session, in TurnInput) (TurnResult, error) {
	start := time.Now()
	utterance := strings.TrimSpace(in.Utterance)
	if utterance == "" {
		return TurnResult{}, ErrEmptyUtterance
	}
	action := in.Action
	if action == "" {
		action = session.ActionArgument
	}
	evidence, err := citedEvidence(s, in.EvidenceIDs)
	if err != nil {
		return TurnResult{}, err
	}

	ctx, span := tracing.StartSpan(ctx, "courtroom.turn", map[string]any{
		"session_id": s.ID,
		"user_role":  string(s.UserRole),
		"action":     string(action),
	})
	defer span.End()

	first := len(s.Transcript)
	s.Append(s.UserRole.DisplayName(), utterance, action, o.now())

	res := TurnResult{Relevant: o.gen.Filter().IsRelevant(utterance, s.CaseFacts)}
	span.SetAttributes(attribute.Bool("relevant", res.Relevant))

	if !res.Relevant {
		role := redirectRole(s.UserRole)
		r := o.gen.Generate(ctx, generator.Request{Role: role, Utterance: utterance, CaseFacts: s.CaseFacts})
		s.Append(role.Speaker(), r.Text, session.ActionResponse, o.now())
		res.Status = StatusRedirected
		res.Responses = []generator.Result{r}
	} else {
		transcript := append([]session.TranscriptEntry(nil), s.Transcript...)
		roles := AIRoles(s.UserRole)
		reqs := make([]generator.Request, len(roles))
		for i, role := range roles {
			reqs[i] = generator.Request{
				Role:          role,
				UserRole:      s.UserRole,
				CaseType:      s.CaseType,
				CaseFacts:     s.CaseFacts,
				Transcript:    transcript,
				Utterance:     utterance,
				Action:        action,
				Evidence:      evidence,
				SkipRelevance: true,
			}
		}
		res.Responses = o.collect(ctx, reqs)
		for _, r := range res.Responses {
			s.Append(r.Role.Speaker(), r.Text, session.ActionResponse, o.now())
		}
		res.Status = StatusCompleted
	}

	res.Entries = append([]session.TranscriptEntry(nil), s.Transcript[first:]...)
	res.Duration = time.Since(start)
	observability.RecordTurn(res.Relevant, res.Duration)

	fallbacks := 0
	for _, r := range res.Responses {
		if r.Source == generator.SourceFallback {
			fallbacks++
		}
	}
	o.events.Emit(analytics.Event{
		Type:      analytics.EventTurn,
		SessionID: s.ID,
		UserID:    s.UserID,
		UserRole:  string(s.UserRole),
		Action:    string(action),
		Relevant:  res.Relevant,
		Responses: len(res.Responses),
		Fallbacks: fallbacks,
		Duration:  res.Duration,
	})
	o.logger.Debug("turn processed",
		"session_id", s.ID,
		"relevant", res.Relevant,
		"responses", len(res.Responses),
		"fallbacks", fallbacks,
		"duration", res.Duration,
	)
	return res, nil
}

// collect runs one task per request and returns the results in request
// order, whatever order they finish in.
func (o *Orchestrator) collect(ctx context.Context, reqs []generator.Request) []generator.Result {
	results := make([]generator.Result, len(reqs))
	var g errgroup.Group
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = o.run(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// run generates one response within the turn deadline. Waiting for a worker
// counts against the deadline; a late or panicking task yields a fallback.
func (o *Orchestrator) run(ctx context.Context, req generator.Request) generator.Result {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan generator.Result, 1)
	go func() {
		var res generator.Result
		err := o.pool.Do(ctx, func(ctx context.Context) {
			res = o.gen.Generate(ctx, req)
		})
		if err != nil {
			res = o.fallback(req, err)
		}
		done <- res
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return o.fallback(req, ctx.Err())
	}
}

func (o *Orchestrator) fallback(req generator.Request, cause error) generator.Result {
	var perr *PanicError
	if errors.As(cause, &perr) {
		o.logger.Error("generation task panicked", "role", req.Role, "panic", perr.Value)
	} else {
		o.logger.Warn("response not ready before deadline, using fallback", "role", req.Role, "error", cause)
	}
	observability.RecordGeneration(string(req.Role), string(generator.SourceFallback), 0)
	return generator.Result{
		Role:   req.Role,
		Text:   o.gen.Fallback(req.Role, req.Action),
		Source: generator.SourceFallback,
		Err:    cause,
	}
}

func citedEvidence(s *session.Session, ids []string) ([]session.Evidence, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]session.Evidence, 0, len(ids))
	for _, id := range ids {
		e, ok := s.EvidenceByID(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEvidence, id)
		}
		out = append(out, e)
	}
	return out, nil
}
