package session

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxEntryText bounds the text of a single transcript entry.
const MaxEntryText = 2000

var idPattern = regexp.MustCompile(`^[a-f0-9]{8}$`)

// ValidateID checks that id is exactly eight lowercase hex characters.
// Every backend calls it before the id reaches a key or a file path.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}

// NewID returns a fresh 8-character lowercase hex identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Append adds an entry to the transcript. The timestamp is clamped so the
// sequence never goes backwards, and overlong text is truncated.
func (s *Session) Append(speaker, text string, action ActionType, at time.Time) TranscriptEntry {
	if action == "" {
		action = ActionArgument
	}
	if n := len(s.Transcript); n > 0 {
		if last := s.Transcript[n-1].Timestamp; at.Before(last) {
			at = last
		}
	}
	entry := TranscriptEntry{
		Speaker:    speaker,
		Text:       truncateRunes(text, MaxEntryText),
		ActionType: action,
		Timestamp:  at.UTC(),
	}
	s.Transcript = append(s.Transcript, entry)
	if at.After(s.UpdatedAt) {
		s.UpdatedAt = at.UTC()
	}
	return entry
}

// Recent returns up to n trailing transcript entries.
func (s *Session) Recent(n int) []TranscriptEntry {
	if n <= 0 || len(s.Transcript) == 0 {
		return nil
	}
	if n > len(s.Transcript) {
		n = len(s.Transcript)
	}
	return s.Transcript[len(s.Transcript)-n:]
}

// EvidenceByID looks up an exhibit.
func (s *Session) EvidenceByID(id string) (Evidence, bool) {
	for _, e := range s.Evidence {
		if e.ID == id {
			return e, true
		}
	}
	return Evidence{}, false
}

// AddEvidence records an exhibit under a fresh id and notes it in the
// transcript on behalf of the clerk.
func (s *Session) AddEvidence(e Evidence, at time.Time) Evidence {
	e.ID = NewID()
	for _, ok := s.EvidenceByID(e.ID); ok; _, ok = s.EvidenceByID(e.ID) {
		e.ID = NewID()
	}
	if e.Type == "" {
		e.Type = EvidenceDocument
	}
	entry := s.Append(SpeakerClerk, "Exhibit "+e.ID+" entered into evidence: "+e.Title+".", ActionEvidence, at)
	e.Timestamp = entry.Timestamp
	s.Evidence = append(s.Evidence, e)
	return e
}

// Close marks the session closed. Nothing in the turn engine calls it; verdict
// handling is expected to build on it.
func (s *Session) Close(at time.Time) {
	s.Status = StatusClosed
	s.UpdatedAt = at.UTC()
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Transcript = append([]TranscriptEntry(nil), s.Transcript...)
	c.Evidence = append([]Evidence(nil), s.Evidence...)
	c.Participants = append([]string(nil), s.Participants...)
	return &c
}

// Summary returns the listing view of the session.
func (s *Session) Summary() Summary {
	return Summary{
		ID:        s.ID,
		Title:     s.Title,
		CaseType:  s.CaseType.Type,
		UserRole:  s.UserRole,
		Status:    s.Status,
		UserID:    s.UserID,
		Entries:   len(s.Transcript),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
