package generator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

// Style selects the prompt template family.
type Style string

const (
	// StyleBrief asks for one or two sentences and tells the model to redirect
	// off-topic input.
	StyleBrief Style = "brief"
	// StylePlain is the shortest template.
	StylePlain Style = "plain"
	// StyleFormal carries case type, jurisdiction, action and legal context.
	StyleFormal Style = "formal"
)

// ParseStyle validates s, mapping the empty string to StyleBrief.
func ParseStyle(s string) (Style, error) {
	switch st := Style(s); st {
	case "":
		return StyleBrief, nil
	case StyleBrief, StylePlain, StyleFormal:
		return st, nil
	}
	return "", fmt.Errorf("unknown prompt style %q", s)
}

// Role is an AI participant.
type Role string

const (
	Judge              Role = "judge"
	OpposingCounsel    Role = "opposing_counsel"
	ProsecutionCounsel Role = "prosecution_counsel"
	DefenseCounsel     Role = "defense_counsel"
)

// Speaker is the transcript label for r.
func (r Role) Speaker() string {
	switch r {
	case Judge:
		return "Judge"
	case OpposingCounsel:
		return "Opposing Counsel"
	case ProsecutionCounsel:
		return "Prosecution Counsel"
	case DefenseCounsel:
		return "Defense Counsel"
	}
	return string(r)
}

// side names the party a counsel role argues for, given the human's role.
func (r Role) side(user session.Role) string {
	switch r {
	case ProsecutionCounsel:
		return "prosecution"
	case DefenseCounsel:
		return "defense"
	}
	if user == session.RoleDefense {
		return "prosecution"
	}
	return "defense"
}

func (g *Generator) buildPrompt(req Request) string {
	cfg := g.cfg
	facts := head(req.CaseFacts, cfg.FactsChars)
	recent := tail(joinEntries(recentEntries(req.Transcript, cfg.RecentEntries)), cfg.RecentChars)
	said := head(req.Utterance, cfg.UtteranceChars)
	caseType := req.CaseType.Type
	if caseType == "" {
		caseType = session.DefaultCaseType().Type
	}
	action := string(req.Action)
	if action == "" {
		action = string(session.ActionArgument)
	}

	var b strings.Builder
	switch cfg.Style {
	case StyleFormal:
		jurisdiction := req.CaseType.Jurisdiction
		if jurisdiction == "" {
			jurisdiction = session.DefaultCaseType().Jurisdiction
		}
		if req.Role == Judge {
			fmt.Fprintf(&b, "As a professional %s court judge in India, provide a judicial response (2-3 sentences):\n\n", jurisdiction)
		} else {
			fmt.Fprintf(&b, "As an experienced %s law attorney for the %s, respond professionally (2-3 sentences):\n\n", caseType, req.Role.side(req.UserRole))
		}
		fmt.Fprintf(&b, "Case Type: %s Law\n", session.Capitalize(caseType))
		if cfg.LegalContext {
			fmt.Fprintf(&b, "Legal Context: %s\n", LegalContext(caseType, action))
		}
		fmt.Fprintf(&b, "Case Facts: %s\n", facts)
		writeEvidence(&b, req.Evidence)
		if req.Role == Judge {
			fmt.Fprintf(&b, "Recent Proceedings: %s\n", recent)
			fmt.Fprintf(&b, "Current Action: %s\n", session.Capitalize(action))
			fmt.Fprintf(&b, "User Statement: %s\n\n", said)
			b.WriteString("Provide a measured judicial response considering legal precedents and courtroom procedure:")
		} else {
			fmt.Fprintf(&b, "Recent Arguments: %s\n", recent)
			fmt.Fprintf(&b, "Opponent's Action: %s\n", session.Capitalize(action))
			fmt.Fprintf(&b, "Opponent Said: %s\n\n", said)
			b.WriteString("Provide a strategic legal counter-argument or response:")
		}

	case StylePlain:
		if req.Role == Judge {
			b.WriteString("As a judge, respond briefly (1-2 sentences):\n")
		} else {
			fmt.Fprintf(&b, "As %s counsel, respond briefly (1-2 sentences):\n", req.Role.side(req.UserRole))
		}
		fmt.Fprintf(&b, "Case: %s\n", facts)
		writeEvidence(&b, req.Evidence)
		fmt.Fprintf(&b, "Recent: %s\n", recent)
		fmt.Fprintf(&b, "User: %s\n", said)
		if req.Role == Judge {
			b.WriteString("Judicial response:")
		} else {
			b.WriteString("Legal response:")
		}

	default:
		if req.Role == Judge {
			b.WriteString("As an Indian High Court Judge, respond briefly (1-2 sentences) ONLY about this legal case. If asked about unrelated topics, redirect to the case:\n\n")
		} else {
			fmt.Fprintf(&b, "As a %s lawyer, respond briefly (1-2 sentences) ONLY about this legal case. If asked about unrelated topics, object or redirect:\n\n", req.Role.side(req.UserRole))
		}
		fmt.Fprintf(&b, "Case: %s\n", facts)
		writeEvidence(&b, req.Evidence)
		fmt.Fprintf(&b, "Recent: %s\n", recent)
		fmt.Fprintf(&b, "User said: %s\n\n", said)
		if req.Role == Judge {
			b.WriteString("Judicial response:")
		} else {
			b.WriteString("Legal response:")
		}
	}
	return b.String()
}

func writeEvidence(b *strings.Builder, evidence []session.Evidence) {
	if len(evidence) == 0 {
		return
	}
	titles := make([]string, len(evidence))
	for i, e := range evidence {
		titles[i] = fmt.Sprintf("%s (%s)", e.Title, e.Type)
	}
	fmt.Fprintf(b, "Evidence Cited: %s\n", strings.Join(titles, "; "))
}

func recentEntries(entries []session.TranscriptEntry, n int) []session.TranscriptEntry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

func joinEntries(entries []session.TranscriptEntry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Speaker + ": " + e.Text
	}
	return strings.Join(lines, "\n")
}

// head keeps the first n runes of s; n <= 0 keeps everything.
func head(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// tail keeps the last n runes of s; n <= 0 keeps everything.
func tail(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
