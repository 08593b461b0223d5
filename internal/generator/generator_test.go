package generator

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/fallback"
	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/llm/inference"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

const bikeFacts = "A bicycle was stolen from outside the railway station on Monday evening."

func baseRequest(role Role, utterance string) Request {
	return Request{
		Role:      role,
		UserRole:  session.RoleDefense,
		CaseType:  session.DefaultCaseType(),
		CaseFacts: bikeFacts,
		Transcript: []session.TranscriptEntry{
			{Speaker: "Judge", Text: "Court is now in session."},
			{Speaker: "Bailiff", Text: "The defense has entered the courtroom."},
		},
		Utterance: utterance,
		Action:    session.ActionArgument,
	}
}

func newTestGenerator(backend inference.InferenceService, cfg Config) *Generator {
	return New(backend, cfg, WithBank(fallback.New(fallback.WithRand(rand.New(rand.NewSource(1))))))
}

func TestGenerate_Model(t *testing.T) {
	mock := inference.NewMockInferenceService("  The defense may proceed with its witness.  ")
	g := newTestGenerator(mock, DefaultConfig())

	res := g.Generate(context.Background(), baseRequest(Judge, "Is there eyewitness testimony supporting the defense?"))

	assert.Equal(t, SourceModel, res.Source)
	assert.Equal(t, "The defense may proceed with its witness.", res.Text)
	assert.NoError(t, res.Err)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "mistral", calls[0].Model)
	assert.Equal(t, 50, calls[0].MaxTokens)
	assert.InDelta(t, 0.6, calls[0].Temperature, 1e-9)
	assert.InDelta(t, 0.9, calls[0].TopP, 1e-9)
}

func TestGenerate_IrrelevantSkipsBackend(t *testing.T) {
	mock := inference.NewMockInferenceService("should not be used")
	g := newTestGenerator(mock, DefaultConfig())

	res := g.Generate(context.Background(), baseRequest(Judge, "Tell me about astronomy"))

	assert.Equal(t, SourceRedirect, res.Source)
	assert.NotEmpty(t, res.Text)
	assert.Empty(t, mock.Calls())
}

func TestGenerate_SkipRelevance(t *testing.T) {
	mock := inference.NewMockInferenceService("Noted.")
	g := newTestGenerator(mock, DefaultConfig())

	req := baseRequest(Judge, "Tell me about astronomy")
	req.SkipRelevance = true
	res := g.Generate(context.Background(), req)

	assert.Equal(t, SourceModel, res.Source)
	assert.Len(t, mock.Calls(), 1)
}

func TestGenerate_Fallbacks(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*inference.MockInferenceService)
	}{
		{"backend error", func(m *inference.MockInferenceService) { m.SetError(errors.New("connection refused")) }},
		{"empty text", func(m *inference.MockInferenceService) { m.SetResponse("") }},
		{"whitespace only", func(m *inference.MockInferenceService) { m.SetResponse("   \n  ") }},
		{"unavailable", func(m *inference.MockInferenceService) { m.SetAvailable(false) }},
		{"nil response", func(m *inference.MockInferenceService) {
			m.SetFunc(func(context.Context, inference.GenerateRequest) (*inference.GenerateResponse, error) {
				return nil, nil
			})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := inference.NewMockInferenceService("ok")
			tt.setup(mock)
			g := newTestGenerator(mock, DefaultConfig())

			res := g.Generate(context.Background(), baseRequest(OpposingCounsel, "The witness saw the bicycle near the station."))

			assert.Equal(t, SourceFallback, res.Source)
			assert.Error(t, res.Err)
			assert.NotEmpty(t, res.Text)
		})
	}
}

func TestGenerate_Timeout(t *testing.T) {
	mock := inference.NewMockInferenceService("too late")
	mock.SetDelay(5 * time.Second)
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	g := newTestGenerator(mock, cfg)

	start := time.Now()
	res := g.Generate(context.Background(), baseRequest(Judge, "The witness saw the bicycle near the station."))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, SourceFallback, res.Source)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestGenerate_NilBackend(t *testing.T) {
	g := newTestGenerator(nil, DefaultConfig())
	res := g.Generate(context.Background(), baseRequest(Judge, "The witness saw the bicycle near the station."))
	assert.Equal(t, SourceFallback, res.Source)
	assert.NotEmpty(t, res.Text)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		in   string
		want string
	}{
		{
			name: "first line only",
			cfg:  Config{FirstLineOnly: true},
			in:   "Sustained.\nCounsel will rephrase.",
			want: "Sustained.",
		},
		{
			name: "keeps lines when not cut",
			cfg:  Config{},
			in:   "Sustained.\nRephrase.",
			want: "Sustained.\nRephrase.",
		},
		{
			name: "three sentences",
			cfg:  Config{MaxSentences: 3},
			in:   "One. Two. Three. Four. Five.",
			want: "One. Two. Three.",
		},
		{
			name: "max chars",
			cfg:  Config{MaxChars: 10},
			in:   "Objection overruled entirely",
			want: "Objection",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Generator{cfg: tt.cfg}
			assert.Equal(t, tt.want, g.clean(tt.in))
		})
	}
}

func TestBuildPrompt_Brief(t *testing.T) {
	g := newTestGenerator(nil, DefaultConfig())

	judge := g.buildPrompt(baseRequest(Judge, "Is there eyewitness testimony supporting the defense?"))
	assert.True(t, strings.HasPrefix(judge, "As an Indian High Court Judge"))
	assert.Contains(t, judge, "Case: "+bikeFacts+"\n")
	assert.Contains(t, judge, "Recent: Judge: Court is now in session.\nBailiff: The defense has entered the courtroom.")
	assert.Contains(t, judge, "User said: Is there eyewitness testimony supporting the defense?")
	assert.True(t, strings.HasSuffix(judge, "Judicial response:"))

	counsel := g.buildPrompt(baseRequest(OpposingCounsel, "I move to dismiss."))
	assert.True(t, strings.HasPrefix(counsel, "As a prosecution lawyer"))
	assert.True(t, strings.HasSuffix(counsel, "Legal response:"))
}

func TestBuildPrompt_Bounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecentEntries = 1
	cfg.FactsChars = 10
	cfg.UtteranceChars = 5
	g := newTestGenerator(nil, cfg)

	p := g.buildPrompt(baseRequest(Judge, "Objection, your honour"))
	assert.Contains(t, p, "Case: A bicycle \n")
	assert.Contains(t, p, "User said: Objec\n")
	assert.NotContains(t, p, "Court is now in session.")
	assert.Contains(t, p, "Bailiff: The defense has entered the courtroom.")
}

func TestNew_ZeroConfigStaysBounded(t *testing.T) {
	g := New(nil, Config{})
	def := DefaultConfig()

	cfg := g.Config()
	assert.Equal(t, def.RecentEntries, cfg.RecentEntries)
	assert.Equal(t, def.FactsChars, cfg.FactsChars)
	assert.Equal(t, def.RecentChars, cfg.RecentChars)
	assert.Equal(t, def.UtteranceChars, cfg.UtteranceChars)
	assert.Equal(t, def.MaxSentences, cfg.MaxSentences)
	assert.Equal(t, def.MaxChars, cfg.MaxChars)

	req := baseRequest(Judge, strings.Repeat("u", 2000))
	req.CaseFacts = strings.Repeat("f", 5000)
	req.Transcript = []session.TranscriptEntry{
		{Speaker: "Judge", Text: strings.Repeat("j", 2000)},
		{Speaker: "Bailiff", Text: strings.Repeat("b", 2000)},
	}
	p := g.buildPrompt(req)
	assert.Contains(t, p, "Case: "+strings.Repeat("f", def.FactsChars)+"\n")
	assert.Contains(t, p, "User said: "+strings.Repeat("u", def.UtteranceChars)+"\n")
	assert.Contains(t, p, "Recent: "+strings.Repeat("b", def.RecentChars)+"\n")
	assert.Less(t, len(p), 1000)

	out := g.clean(strings.Repeat("The motion is denied. ", 400))
	assert.Equal(t, "The motion is denied. The motion is denied. The motion is denied.", out)

	g = New(nil, Config{FactsChars: -5, MaxChars: -1})
	assert.Equal(t, def.FactsChars, g.Config().FactsChars)
	assert.Equal(t, def.MaxChars, g.Config().MaxChars)
}

func TestBuildPrompt_Formal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Style = StyleFormal
	cfg.LegalContext = true
	g := newTestGenerator(nil, cfg)

	req := baseRequest(Judge, "I object to this line of questioning.")
	req.Action = session.ActionObjection
	req.CaseType = session.CaseType{Type: "criminal", Severity: "major", Jurisdiction: "high"}
	req.Evidence = []session.Evidence{{Title: "CCTV footage", Type: session.EvidenceVideo}}

	p := g.buildPrompt(req)
	assert.True(t, strings.HasPrefix(p, "As a professional high court judge in India"))
	assert.Contains(t, p, "Case Type: Criminal Law\n")
	assert.Contains(t, p, "Legal Context: Legal precedents for criminal cases: Presumption of innocence until proven guilty; Burden of proof lies with prosecution Common objections: Hearsay, Leading question, Argumentative\n")
	assert.Contains(t, p, "Evidence Cited: CCTV footage (video)\n")
	assert.Contains(t, p, "Current Action: Objection\n")
	assert.True(t, strings.HasSuffix(p, "courtroom procedure:"))

	req.Role = DefenseCounsel
	p = g.buildPrompt(req)
	assert.True(t, strings.HasPrefix(p, "As an experienced criminal law attorney for the defense"))
	assert.Contains(t, p, "Opponent's Action: Objection\n")
}

func TestBuildPrompt_Plain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Style = StylePlain
	g := newTestGenerator(nil, cfg)

	req := baseRequest(OpposingCounsel, "The accused was at home.")
	req.UserRole = session.RoleProsecution
	p := g.buildPrompt(req)
	assert.True(t, strings.HasPrefix(p, "As defense counsel, respond briefly (1-2 sentences):\n"))
	assert.Contains(t, p, "User: The accused was at home.\n")
}

func TestRoleSpeaker(t *testing.T) {
	assert.Equal(t, "Judge", Judge.Speaker())
	assert.Equal(t, "Opposing Counsel", OpposingCounsel.Speaker())
	assert.Equal(t, "Prosecution Counsel", ProsecutionCounsel.Speaker())
	assert.Equal(t, "Defense Counsel", DefenseCounsel.Speaker())
}

func TestParseStyle(t *testing.T) {
	s, err := ParseStyle("")
	require.NoError(t, err)
	assert.Equal(t, StyleBrief, s)

	s, err = ParseStyle("formal")
	require.NoError(t, err)
	assert.Equal(t, StyleFormal, s)

	_, err = ParseStyle("verbose")
	assert.Error(t, err)
}

func TestLegalContext(t *testing.T) {
	assert.Equal(t, Precedents("criminal"), Precedents("family"))
	ctx := LegalContext("civil", "argument")
	assert.Equal(t, "Legal precedents for civil cases: Preponderance of evidence standard; Plaintiff bears burden of proof", ctx)
}
