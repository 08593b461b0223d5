// Package fallback supplies canned courtroom lines used when generation is
// unavailable or an utterance is off topic.
package fallback

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Kind groups AI roles that share a pool of canned lines.
type Kind int

const (
	// Other covers any role without a dedicated pool.
	Other Kind = iota
	// Judge is the presiding judge.
	Judge
	// Counsel is any attorney: opposing, prosecution or defense.
	Counsel
)

// KindOf maps an AI role name to its pool.
func KindOf(role string) Kind {
	r := strings.ToLower(role)
	switch {
	case r == "judge":
		return Judge
	case strings.Contains(r, "counsel"), strings.Contains(r, "prosecut"), strings.Contains(r, "defen"), strings.Contains(r, "attorney"):
		return Counsel
	}
	return Other
}

var (
	judgeLines = []string{
		"I see. Let me review the evidence presented before making a decision.",
		"That is noted. Counsel, do you have additional evidence to support this claim?",
		"Interesting argument. However, I must consider the legal precedents.",
		"The court acknowledges your statement. Continue with your case.",
	}
	counselLines = []string{
		"Your Honor, with respect, I must point out that the evidence presented is insufficient.",
		"I disagree with that characterization. The facts clearly show otherwise.",
		"Your Honor, my client maintains their innocence based on the following grounds...",
		"The prosecution has failed to establish a prima facie case against my client.",
	}
	judgeObjectionLines = []string{
		"Objection noted. Please rephrase your question.",
		"Sustained. Counsel, please proceed differently.",
	}
	counselObjectionLines = []string{
		"Your Honor, I object to that line of questioning.",
		"Objection! That's leading the witness.",
	}
	otherLines = []string{
		"As a {role}, I must focus on the facts of this case.",
		"I can only speak to what I know about this matter.",
	}

	judgeRedirects = []string{
		"Order in the court! Please keep your statements relevant to the legal matter at hand.",
		"Counsel, that question is not pertinent to this case. Please focus on the legal issues.",
		"I must remind all parties to maintain focus on the case before this court.",
	}
	counselRedirects = []string{
		"Your Honor, I object. That question is irrelevant to the case we're discussing.",
		"With respect, that topic is not related to the legal matter at hand.",
		"I must focus on the case facts and legal arguments relevant to this proceeding.",
	}
)

// Bank chooses canned lines uniformly at random. It is safe for concurrent use.
type Bank struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Bank.
type Option func(*Bank)

// WithRand sets the random source, typically seeded for reproducible tests.
func WithRand(r *rand.Rand) Option {
	return func(b *Bank) {
		if r != nil {
			b.rng = r
		}
	}
}

// New creates a Bank seeded from the clock unless WithRand is given.
func New(opts ...Option) *Bank {
	b := &Bank{rng: rand.New(rand.NewSource(time.Now().UnixNano()))} // #nosec G404 - canned dialogue, not security
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Fallback returns a canned reply for role to an action. Objections draw from
// the objection pools of judges and counsel.
func (b *Bank) Fallback(role, action string) string {
	objection := action == "objection"
	switch KindOf(role) {
	case Judge:
		if objection {
			return b.pick(judgeObjectionLines)
		}
		return b.pick(judgeLines)
	case Counsel:
		if objection {
			return b.pick(counselObjectionLines)
		}
		return b.pick(counselLines)
	}
	return strings.ReplaceAll(b.pick(otherLines), "{role}", role)
}

// Irrelevance returns a redirect for an off-topic utterance. Roles other than
// the judge redirect the way counsel does.
func (b *Bank) Irrelevance(role string) string {
	if KindOf(role) == Judge {
		return b.pick(judgeRedirects)
	}
	return b.pick(counselRedirects)
}

func (b *Bank) pick(pool []string) string {
	b.mu.Lock()
	i := b.rng.Intn(len(pool))
	b.mu.Unlock()
	return pool[i]
}
