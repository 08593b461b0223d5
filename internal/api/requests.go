package api

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/Srinidhi-070/ai-courtroom-simulator/internal/orchestration"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

// Field bounds, in characters.
const (
	minTitle        = 5
	maxTitle        = 200
	minFacts        = 10
	maxFacts        = 5000
	maxParticipants = 20
	maxParticipant  = 100
	maxEvidenceIDs  = 20
	maxExhibitTitle = 200
	maxExhibitDesc  = 1000
	maxSubmittedBy  = 100
)

type createRequest struct {
	CaseTitle    string            `json:"case_title"`
	CaseFacts    string            `json:"case_facts"`
	UserRole     string            `json:"user_role"`
	CaseType     *session.CaseType `json:"case_type,omitempty"`
	Participants []string          `json:"participants,omitempty"`
}

type createResponse struct {
	SessionID  string                    `json:"session_id"`
	Transcript []session.TranscriptEntry `json:"transcript"`
	CaseType   session.CaseType          `json:"case_type"`
	Status     string                    `json:"status"`
}

type turnRequest struct {
	// SessionID is only read by the legacy /simulate_step route.
	SessionID   string   `json:"session_id,omitempty"`
	UserInput   string   `json:"user_input"`
	ActionType  string   `json:"action_type,omitempty"`
	EvidenceIDs []string `json:"evidence_ids,omitempty"`
}

type turnResponse struct {
	Session    *session.Session          `json:"session"`
	Transcript []session.TranscriptEntry `json:"transcript"`
	Entries    []session.TranscriptEntry `json:"entries"`
	Relevant   bool                      `json:"relevant"`
	Status     string                    `json:"status"`
}

type evidenceRequest struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	SubmittedBy string `json:"submitted_by,omitempty"`
}

type evidenceResponse struct {
	Evidence session.Evidence `json:"evidence"`
	Status   string           `json:"status"`
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// toCreate validates r and converts it for the session manager.
func (r createRequest) toCreate(titleRequired bool) (session.CreateRequest, error) {
	title := strings.TrimSpace(r.CaseTitle)
	switch n := runeLen(title); {
	case titleRequired && n < minTitle:
		return session.CreateRequest{}, invalid("case_title", "must be at least %d characters", minTitle)
	case n > maxTitle:
		return session.CreateRequest{}, invalid("case_title", "must be at most %d characters", maxTitle)
	}

	facts := strings.TrimSpace(r.CaseFacts)
	if n := runeLen(facts); n < minFacts || n > maxFacts {
		return session.CreateRequest{}, invalid("case_facts", "must be between %d and %d characters", minFacts, maxFacts)
	}

	role, err := session.ParseRole(strings.ToLower(strings.TrimSpace(r.UserRole)))
	if err != nil {
		return session.CreateRequest{}, invalid("user_role", "%v", err)
	}

	caseType := session.DefaultCaseType()
	if r.CaseType != nil {
		if caseType, err = r.CaseType.Normalize(); err != nil {
			return session.CreateRequest{}, invalid("case_type", "%v", err)
		}
	}

	if len(r.Participants) > maxParticipants {
		return session.CreateRequest{}, invalid("participants", "at most %d allowed", maxParticipants)
	}
	participants := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		p = strings.TrimSpace(p)
		if p == "" || runeLen(p) > maxParticipant {
			return session.CreateRequest{}, invalid("participants", "names must be between 1 and %d characters", maxParticipant)
		}
		participants = append(participants, p)
	}

	return session.CreateRequest{
		Title:        title,
		CaseFacts:    facts,
		UserRole:     role,
		CaseType:     caseType,
		Participants: participants,
	}, nil
}

// toTurn validates r against the configured input bound.
func (r turnRequest) toTurn(maxInput int) (orchestration.TurnInput, error) {
	input := strings.TrimSpace(r.UserInput)
	if n := runeLen(input); n == 0 || n > maxInput {
		return orchestration.TurnInput{}, invalid("user_input", "must be between 1 and %d characters", maxInput)
	}

	action, err := session.ParseActionType(r.ActionType)
	if err != nil || !slices.Contains(session.UserActionTypes, action) {
		return orchestration.TurnInput{}, invalid("action_type", "unknown action type %q", r.ActionType)
	}

	if len(r.EvidenceIDs) > maxEvidenceIDs {
		return orchestration.TurnInput{}, invalid("evidence_ids", "at most %d allowed", maxEvidenceIDs)
	}

	return orchestration.TurnInput{
		Utterance:   input,
		Action:      action,
		EvidenceIDs: r.EvidenceIDs,
	}, nil
}

// toEvidence validates r. submitter is used when submitted_by is empty.
func (r evidenceRequest) toEvidence(submitter string) (session.Evidence, error) {
	kind, err := session.ParseEvidenceType(strings.ToLower(strings.TrimSpace(r.Type)))
	if err != nil {
		return session.Evidence{}, invalid("type", "%v", err)
	}
	title := strings.TrimSpace(r.Title)
	if n := runeLen(title); n == 0 || n > maxExhibitTitle {
		return session.Evidence{}, invalid("title", "must be between 1 and %d characters", maxExhibitTitle)
	}
	desc := strings.TrimSpace(r.Description)
	if n := runeLen(desc); n == 0 || n > maxExhibitDesc {
		return session.Evidence{}, invalid("description", "must be between 1 and %d characters", maxExhibitDesc)
	}
	by := strings.TrimSpace(r.SubmittedBy)
	if by == "" {
		by = submitter
	}
	if runeLen(by) > maxSubmittedBy {
		return session.Evidence{}, invalid("submitted_by", "must be at most %d characters", maxSubmittedBy)
	}
	return session.Evidence{Type: kind, Title: title, Description: desc, SubmittedBy: by}, nil
}
