package orchestration

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/analytics"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/fallback"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/generator"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/llm/inference"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

const theftFacts = "A red bicycle was stolen from outside the railway station on Monday evening."

type recordingEmitter struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (r *recordingEmitter) Emit(e analytics.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) Events() []analytics.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]analytics.Event(nil), r.events...)
}

func newSession(role session.Role) *session.Session {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := &session.Session{
		ID:        "1a2b3c4d",
		Title:     "State v. Mehta",
		CaseFacts: theftFacts,
		UserRole:  role,
		CaseType:  session.DefaultCaseType(),
		Status:    session.StatusActive,
		CreatedAt: at,
		UpdatedAt: at,
	}
	s.Append(session.SpeakerJudge, "Court is now in session.", session.ActionOpening, at)
	s.Append(session.SpeakerBailiff, "The "+string(role)+" has entered the courtroom.", session.ActionSystem, at)
	return s
}

func newOrchestrator(backend inference.InferenceService, workers int, opts ...Option) *Orchestrator {
	gen := generator.New(backend, generator.DefaultConfig(),
		generator.WithBank(fallback.New(fallback.WithRand(rand.New(rand.NewSource(7))))))
	return New(gen, NewPool(workers), opts...)
}

func speakers(entries []session.TranscriptEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Speaker
	}
	return out
}

func TestProcessTurn_Relevant(t *testing.T) {
	mock := inference.NewMockInferenceService("The court will hear the eyewitness.")
	events := &recordingEmitter{}
	o := newOrchestrator(mock, 2, WithEmitter(events))
	s := newSession(session.RoleDefense)

	res, err := o.ProcessTurn(context.Background(), s, TurnInput{Utterance: "Is there eyewitness testimony supporting the defense?"})
	require.NoError(t, err)

	assert.True(t, res.Relevant)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []string{"Defense", "Judge", "Opposing Counsel"}, speakers(res.Entries))
	assert.Len(t, s.Transcript, 5)
	assert.Equal(t, session.ActionArgument, s.Transcript[2].ActionType)
	assert.Equal(t, session.ActionResponse, s.Transcript[3].ActionType)
	assert.Len(t, mock.Calls(), 2)

	got := events.Events()
	require.Len(t, got, 1)
	assert.Equal(t, analytics.EventTurn, got[0].Type)
	assert.Equal(t, "1a2b3c4d", got[0].SessionID)
	assert.True(t, got[0].Relevant)
	assert.Equal(t, 2, got[0].Responses)
	assert.Zero(t, got[0].Fallbacks)
}

func TestProcessTurn_Irrelevant(t *testing.T) {
	mock := inference.NewMockInferenceService("unused")
	o := newOrchestrator(mock, 2)
	s := newSession(session.RoleDefense)

	res, err := o.ProcessTurn(context.Background(), s, TurnInput{Utterance: "Tell me about astronomy"})
	require.NoError(t, err)

	assert.False(t, res.Relevant)
	assert.Equal(t, StatusRedirected, res.Status)
	assert.Equal(t, []string{"Defense", "Judge"}, speakers(res.Entries))
	assert.NotEmpty(t, res.Entries[1].Text)
	assert.Equal(t, generator.SourceRedirect, res.Responses[0].Source)
	assert.Empty(t, mock.Calls())
}

func TestProcessTurn_HumanJudge(t *testing.T) {
	mock := inference.NewMockInferenceService("Your Honour, the witness is credible.")
	o := newOrchestrator(mock, 2)

	s := newSession(session.RoleJudge)
	res, err := o.ProcessTurn(context.Background(), s, TurnInput{Utterance: "Counsel, present the witness testimony."})
	require.NoError(t, err)
	assert.Equal(t, []string{"Judge", "Prosecution Counsel", "Defense Counsel"}, speakers(res.Entries))

	s = newSession(session.RoleJudge)
	res, err = o.ProcessTurn(context.Background(), s, TurnInput{Utterance: "Tell me about astronomy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Judge", "Prosecution Counsel"}, speakers(res.Entries))
}

func TestProcessTurn_RepeatedTurnsAreNotDeduplicated(t *testing.T) {
	o := newOrchestrator(inference.NewMockInferenceService("Proceed."), 2)
	s := newSession(session.RoleProsecution)
	base := len(s.Transcript)

	for i := 1; i <= 3; i++ {
		_, err := o.ProcessTurn(context.Background(), s, TurnInput{Utterance: "The witness saw the bicycle."})
		require.NoError(t, err)
		assert.Len(t, s.Transcript, base+3*i)
	}
	for i := 1; i <= 2; i++ {
		_, err := o.ProcessTurn(context.Background(), s, TurnInput{Utterance: "What about the weather today?"})
		require.NoError(t, err)
		assert.Len(t, s.Transcript, base+9+2*i)
	}
}

func TestProcessTurn_OrderIndependentOfCompletion(t *testing.T) {
	mock := inference.NewMockInferenceService("")
	mock.SetFunc(func(ctx context.Context, req inference.GenerateRequest) (*inference.GenerateResponse, error) {
		if strings.Contains(req.Prompt, "Judicial response:") {
			select {
			case <-time.After(200 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &inference.GenerateResponse{Text: "judge speaks"}, nil
		}
		return &inference.GenerateResponse{Text: "counsel speaks"}, nil
	})
	o := newOrchestrator(mock, 2)
	s := newSession(session.RoleDefense)

	res, err := o.ProcessTurn(context.Background(), s, TurnInput{Utterance: "The witness saw the bicycle."})
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	assert.Equal(t, "Judge", res.Entries[1].Speaker)
	assert.Equal(t, "judge speaks", res.Entries[1].Text)
	assert.Equal(t, "Opposing Counsel", res.Entries[2].Speaker)
	assert.Equal(t, "counsel speaks", res.Entries[2].Text)
}

func TestProcessTurn_TimeoutFallsBack(t *testing.T) {
	mock := inference.NewMockInferenceService("too slow")
	mock.SetDelay(5 * time.Second)
	events := &recordingEmitter{}
	o := newOrchestrator(mock, 2, WithTimeout(100*time.Millisecond), WithEmitter(events))
	s := newSession(session.RoleDefense)

	start := time.Now()
	res, err := o.ProcessTurn(context.Background(), s, TurnInput{Utterance: "The witness saw the bicycle."})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, res.Responses, 2)
	for _, r := range res.Responses {
		assert.Equal(t, generator.SourceFallback, r.Source)
		assert.NotEmpty(t, r.Text)
	}
	assert.Equal(t, 2, events.Events()[0].Fallbacks)
}

func TestProcessTurn_BackendErrorFallsBack(t *testing.T) {
	mock := inference.NewMockInferenceService("")
	mock.SetAvailable(false)
	o := newOrchestrator(mock, 1)
	s := newSession(session.RoleDefense)

	res, err := o.ProcessTurn(context.Background(), s, TurnInput{Utterance: "I object to that evidence.", Action: session.ActionObjection})
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)
	assert.Equal(t, session.ActionObjection, res.Entries[0].ActionType)
	for _, e := range res.Entries[1:] {
		assert.NotEmpty(t, e.Text)
	}
}

func TestProcessTurn_PanicFallsBack(t *testing.T) {
	mock := inference.NewMockInferenceService("")
	mock.SetFunc(func(context.Context, inference.GenerateRequest) (*inference.GenerateResponse, error) {
		panic("backend exploded")
	})
	o := newOrchestrator(mock, 2)
	s := newSession(session.RoleDefense)

	res, err := o.ProcessTurn(context.Background(), s, TurnInput{Utterance: "The witness saw the bicycle."})
	require.NoError(t, err)
	for _, r := range res.Responses {
		assert.Equal(t, generator.SourceFallback, r.Source)
		var perr *PanicError
		assert.ErrorAs(t, r.Err, &perr)
	}
}

func TestProcessTurn_Evidence(t *testing.T) {
	mock := inference.NewMockInferenceService("Noted.")
	o := newOrchestrator(mock, 2)
	s := newSession(session.RoleProsecution)
	exhibit := s.AddEvidence(session.Evidence{Type: session.EvidenceVideo, Title: "Station CCTV", Description: "Platform camera", SubmittedBy: "prosecution"}, time.Now())
	before := len(s.Transcript)

	_, err := o.ProcessTurn(context.Background(), s, TurnInput{Utterance: "Please review the station footage as evidence.", Action: session.ActionEvidence, EvidenceIDs: []string{"deadbeef"}})
	assert.ErrorIs(t, err, ErrUnknownEvidence)
	assert.Len(t, s.Transcript, before)

	_, err = o.ProcessTurn(context.Background(), s, TurnInput{Utterance: "Please review the station footage as evidence.", Action: session.ActionEvidence, EvidenceIDs: []string{exhibit.ID}})
	require.NoError(t, err)
	calls := mock.Calls()
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[0].Prompt, "Evidence Cited: Station CCTV (video)")
}

func TestProcessTurn_EmptyUtterance(t *testing.T) {
	o := newOrchestrator(nil, 1)
	s := newSession(session.RoleDefense)
	_, err := o.ProcessTurn(context.Background(), s, TurnInput{Utterance: "   "})
	assert.ErrorIs(t, err, ErrEmptyUtterance)
	assert.Len(t, s.Transcript, 2)
}

func TestAIRoles(t *testing.T) {
	assert.Equal(t, []generator.Role{generator.Judge, generator.OpposingCounsel}, AIRoles(session.RoleWitness))
	assert.Equal(t, []generator.Role{generator.ProsecutionCounsel, generator.DefenseCounsel}, AIRoles(session.RoleJudge))
}
