// Package session provides courtroom session records and their persistence.
// A session holds the case under trial and the append-only transcript of the
// proceeding; backends store it and the Manager serializes access per id.
package session

import (
	"fmt"
	"time"
)

// ActionType classifies a transcript entry.
type ActionType string

const (
	ActionArgument  ActionType = "argument"
	ActionObjection ActionType = "objection"
	ActionEvidence  ActionType = "evidence"
	ActionMotion    ActionType = "motion"
	ActionRuling    ActionType = "ruling"
	ActionSystem    ActionType = "system"
	ActionOpening   ActionType = "opening"
	ActionResponse  ActionType = "response"
)

// ParseActionType validates s, mapping the empty string to ActionArgument.
func ParseActionType(s string) (ActionType, error) {
	if s == "" {
		return ActionArgument, nil
	}
	switch a := ActionType(s); a {
	case ActionArgument, ActionObjection, ActionEvidence, ActionMotion,
		ActionRuling, ActionSystem, ActionOpening, ActionResponse:
		return a, nil
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// UserActionTypes are the action types a human participant may submit.
var UserActionTypes = []ActionType{ActionArgument, ActionObjection, ActionEvidence, ActionMotion, ActionRuling}

// Role is a participant role in the proceeding.
type Role string

const (
	RoleDefense     Role = "defense"
	RoleProsecution Role = "prosecution"
	RoleJudge       Role = "judge"
	RoleWitness     Role = "witness"
	RoleJury        Role = "jury"
)

// ParseRole validates a human participant role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleDefense, RoleProsecution, RoleJudge, RoleWitness, RoleJury:
		return r, nil
	}
	return "", fmt.Errorf("unknown user role %q", s)
}

// DisplayName is the speaker label used for the human's transcript entries.
func (r Role) DisplayName() string {
	switch r {
	case RoleDefense:
		return "Defense"
	case RoleProsecution:
		return "Prosecution"
	case RoleJudge:
		return "Judge"
	case RoleWitness:
		return "Witness"
	case RoleJury:
		return "Jury"
	}
	return string(r)
}

// Status is the lifecycle flag of a session.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// CaseType describes the kind of matter under trial.
type CaseType struct {
	Type         string `json:"type" yaml:"type"`
	Severity     string `json:"severity" yaml:"severity"`
	Jurisdiction string `json:"jurisdiction" yaml:"jurisdiction"`
}

// Allowed case type values.
var (
	CaseKinds         = []string{"criminal", "civil", "family", "corporate", "constitutional"}
	CaseSeverities    = []string{"minor", "major", "felony"}
	CaseJurisdictions = []string{"district", "high", "supreme"}
)

// DefaultCaseType returns criminal/minor/district.
func DefaultCaseType() CaseType {
	return CaseType{Type: "criminal", Severity: "minor", Jurisdiction: "district"}
}

// Normalize fills empty fields with defaults and validates the rest.
func (c CaseType) Normalize() (CaseType, error) {
	def := DefaultCaseType()
	if c.Type == "" {
		c.Type = def.Type
	}
	if c.Severity == "" {
		c.Severity = def.Severity
	}
	if c.Jurisdiction == "" {
		c.Jurisdiction = def.Jurisdiction
	}
	if !contains(CaseKinds, c.Type) {
		return c, fmt.Errorf("unknown case type %q", c.Type)
	}
	if !contains(CaseSeverities, c.Severity) {
		return c, fmt.Errorf("unknown severity %q", c.Severity)
	}
	if !contains(CaseJurisdictions, c.Jurisdiction) {
		return c, fmt.Errorf("unknown jurisdiction %q", c.Jurisdiction)
	}
	return c, nil
}

// TranscriptEntry is one utterance in the proceeding.
// Entries are append-only and never modified once in a transcript.
type TranscriptEntry struct {
	Speaker    string     `json:"speaker"`
	Text       string     `json:"text"`
	ActionType ActionType `json:"action_type"`
	Timestamp  time.Time  `json:"timestamp"`
}

// EvidenceType classifies a piece of evidence.
type EvidenceType string

const (
	EvidenceDocument EvidenceType = "document"
	EvidencePhoto    EvidenceType = "photo"
	EvidenceVideo    EvidenceType = "video"
	EvidenceAudio    EvidenceType = "audio"
	EvidenceWitness  EvidenceType = "witness"
)

// ParseEvidenceType validates s, mapping the empty string to EvidenceDocument.
func ParseEvidenceType(s string) (EvidenceType, error) {
	if s == "" {
		return EvidenceDocument, nil
	}
	switch e := EvidenceType(s); e {
	case EvidenceDocument, EvidencePhoto, EvidenceVideo, EvidenceAudio, EvidenceWitness:
		return e, nil
	}
	return "", fmt.Errorf("unknown evidence type %q", s)
}

// Evidence is an exhibit submitted into a session.
type Evidence struct {
	ID          string       `json:"id"`
	Type        EvidenceType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	SubmittedBy string       `json:"submitted_by"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Session is a single simulated case.
type Session struct {
	ID           string            `json:"session_id"`
	Title        string            `json:"title,omitempty"`
	CaseFacts    string            `json:"case_facts"`
	UserRole     Role              `json:"user_role"`
	CaseType     CaseType          `json:"case_type"`
	Participants []string          `json:"participants,omitempty"`
	Transcript   []TranscriptEntry `json:"transcript"`
	Evidence     []Evidence        `json:"evidence,omitempty"`
	Status       Status            `json:"status"`
	UserID       string            `json:"user_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID        string    `json:"session_id"`
	Title     string    `json:"title,omitempty"`
	CaseType  string    `json:"case_type"`
	UserRole  Role      `json:"user_role"`
	Status    Status    `json:"status"`
	UserID    string    `json:"user_id,omitempty"`
	Entries   int       `json:"entries"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
