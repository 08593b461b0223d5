package session

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Opening selects how a new session's transcript is seeded.
type Opening string

const (
	// OpeningBrief is a judge greeting and a bailiff line.
	OpeningBrief Opening = "brief"
	// OpeningTitled names the case in the judge greeting.
	OpeningTitled Opening = "titled"
	// OpeningFormal adds a court clerk announcement before the judge.
	OpeningFormal Opening = "formal"
)

// ParseOpening validates s, mapping the empty string to OpeningBrief.
func ParseOpening(s string) (Opening, error) {
	switch o := Opening(s); o {
	case "":
		return OpeningBrief, nil
	case OpeningBrief, OpeningTitled, OpeningFormal:
		return o, nil
	}
	return "", fmt.Errorf("unknown opening %q", s)
}

// Speaker labels used by seeded and AI entries.
const (
	SpeakerJudge   = "Judge"
	SpeakerBailiff = "Bailiff"
	SpeakerClerk   = "Court Clerk"
)

const factsPreview = 100

func (o Opening) seed(s *Session, at time.Time) {
	preview := truncateRunes(s.CaseFacts, factsPreview)

	switch o {
	case OpeningFormal:
		s.Append(SpeakerClerk,
			fmt.Sprintf("Case %s: %s. %s Court is now in session.", s.ID, s.Title, Capitalize(s.CaseType.Jurisdiction)),
			ActionSystem, at)
		s.Append(SpeakerJudge,
			fmt.Sprintf("Good morning. We are here for a %s matter: %s. %s...", s.CaseType.Type, s.Title, preview),
			ActionOpening, at)
		s.Append(SpeakerBailiff,
			fmt.Sprintf("The %s has entered the courtroom and is ready to proceed.", s.UserRole),
			ActionSystem, at)
	case OpeningTitled:
		s.Append(SpeakerJudge,
			fmt.Sprintf("Court is now in session for %s. %s...", s.Title, preview),
			ActionOpening, at)
		s.Append(SpeakerBailiff, fmt.Sprintf("The %s has entered the courtroom.", s.UserRole), ActionSystem, at)
	default:
		s.Append(SpeakerJudge,
			"Court is now in session. I understand we have a case to discuss. "+preview+"...",
			ActionOpening, at)
		s.Append(SpeakerBailiff, fmt.Sprintf("The %s has entered the courtroom.", s.UserRole), ActionSystem, at)
	}
}

// Capitalize upper-cases the first rune of s, for labels such as
// jurisdictions, case types and actions.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r, n := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[n:]
}
