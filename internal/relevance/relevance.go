// Package relevance decides whether an utterance stays on the topic of a case.
package relevance

import (
	"strings"
	"unicode/utf8"
)

// DefaultThreshold is the rune count under which an utterance is always accepted.
const DefaultThreshold = 8

// BaseDenylist holds off-topic subjects rejected unless the case facts mention them.
var BaseDenylist = []string{
	"black hole", "space", "astronomy", "physics", "weather", "food", "sports",
	"movie", "music", "game", "celebrity", "programming", "recipe", "travel",
}

// ExtendedDenylist is appended to BaseDenylist by stricter profiles.
var ExtendedDenylist = []string{
	"science", "technology", "computer", "vacation", "animal", "plant", "color",
	"number", "math", "history", "geography", "art", "literature", "philosophy", "religion",
}

// BaseAllowlist holds legal vocabulary that marks an utterance as on topic.
var BaseAllowlist = []string{
	"evidence", "witness", "testimony", "guilty", "innocent", "verdict", "objection",
	"law", "legal", "court", "case", "crime", "defendant", "plaintiff", "judge",
	"jury", "trial", "hearing", "motion", "appeal", "sentence", "liability",
	"contract", "agreement", "damages", "rights", "violation", "precedent",
}

// ExtendedAllowlist is appended to BaseAllowlist by stricter profiles.
var ExtendedAllowlist = []string{"fine", "prison"}

// Filter holds fixed word lists. The zero value is not usable; use New.
type Filter struct {
	threshold int
	deny      []string
	allow     []string
}

// Option configures a Filter.
type Option func(*Filter)

// WithThreshold sets the short-utterance threshold in runes.
func WithThreshold(n int) Option {
	return func(f *Filter) {
		if n >= 0 {
			f.threshold = n
		}
	}
}

// WithExtendedLists adds ExtendedDenylist and ExtendedAllowlist.
func WithExtendedLists() Option {
	return func(f *Filter) {
		f.deny = append(f.deny, ExtendedDenylist...)
		f.allow = append(f.allow, ExtendedAllowlist...)
	}
}

// WithDenyWords appends extra denylisted words.
func WithDenyWords(words ...string) Option {
	return func(f *Filter) { f.deny = append(f.deny, lower(words)...) }
}

// WithAllowWords appends extra allowlisted words.
func WithAllowWords(words ...string) Option {
	return func(f *Filter) { f.allow = append(f.allow, lower(words)...) }
}

// New creates a filter with the base lists.
func New(opts ...Option) *Filter {
	f := &Filter{
		threshold: DefaultThreshold,
		deny:      append([]string(nil), BaseDenylist...),
		allow:     append([]string(nil), BaseAllowlist...),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Threshold reports the short-utterance threshold.
func (f *Filter) Threshold() int {
	return f.threshold
}

// IsRelevant reports whether utterance is on topic for caseFacts.
//
// Rules apply in order: short input is accepted; a denylisted word absent
// from the facts rejects; an allowlisted word accepts; a facts word longer
// than three characters appearing in the utterance accepts; anything else
// is rejected. Matching is case-insensitive substring matching.
func (f *Filter) IsRelevant(utterance, caseFacts string) bool {
	trimmed := strings.TrimSpace(utterance)
	if utf8.RuneCountInString(trimmed) < f.threshold {
		return true
	}

	text := strings.ToLower(trimmed)
	facts := strings.ToLower(caseFacts)

	for _, w := range f.deny {
		if strings.Contains(text, w) && !strings.Contains(facts, w) {
			return false
		}
	}

	for _, w := range f.allow {
		if strings.Contains(text, w) {
			return true
		}
	}

	for _, w := range strings.Fields(facts) {
		if len(w) > 3 && strings.Contains(text, w) {
			return true
		}
	}

	return false
}

func lower(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}
