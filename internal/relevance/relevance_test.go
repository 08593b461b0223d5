package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const bicycleFacts = "A bicycle was stolen from outside the library on Monday. The defendant was seen nearby."

func TestIsRelevant(t *testing.T) {
	f := New()

	tests := []struct {
		name      string
		utterance string
		facts     string
		want      bool
	}{
		{"short input always accepted", "space?", bicycleFacts, true},
		{"short after trim", "   music   ", bicycleFacts, true},
		{"denylisted topic", "Tell me about astronomy", bicycleFacts, false},
		{"denylist precedes allowlist", "Is the weather relevant to this court case?", bicycleFacts, false},
		{"denylisted word present in facts", "What about the weather that night?", "Heavy weather flooded the road before the collision.", true},
		{"legal keyword", "Is there eyewitness testimony supporting the defense?", bicycleFacts, true},
		{"facts word overlap", "Who owns the bicycle exactly?", bicycleFacts, true},
		{"short facts words ignored", "Was the man sad?", "The man sat by the car.", false},
		{"unrelated chatter", "What do you think about politics lately?", bicycleFacts, false},
		{"case insensitive", "THE WITNESS IS LYING TO EVERYONE", bicycleFacts, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsRelevant(tt.utterance, tt.facts))
		})
	}
}

func TestIsRelevant_ShortInputProperty(t *testing.T) {
	f := New(WithThreshold(10), WithExtendedLists())
	for _, u := range []string{"", "a", "astronomy", "  food  ", "ok sure"} {
		assert.True(t, f.IsRelevant(u, ""), "%q", u)
	}
}

func TestExtendedLists(t *testing.T) {
	base := New()
	extended := New(WithExtendedLists())

	utterance := "Let us discuss the philosophy of mind for a while"
	assert.False(t, base.IsRelevant(utterance, bicycleFacts))
	assert.False(t, extended.IsRelevant(utterance, bicycleFacts))

	utterance = "Should he go to prison for this?"
	assert.False(t, base.IsRelevant(utterance, "Someone took it."))
	assert.True(t, extended.IsRelevant(utterance, "Someone took it."))

	utterance = "Can we talk about my computer instead?"
	assert.False(t, extended.IsRelevant(utterance, bicycleFacts))
}

func TestCustomWords(t *testing.T) {
	f := New(WithDenyWords("Politics"), WithAllowWords("Alibi"))
	assert.False(t, f.IsRelevant("Discuss politics with the judge", bicycleFacts))
	assert.True(t, f.IsRelevant("My client has a solid ALIBI", "Something happened."))
	assert.Equal(t, DefaultThreshold, f.Threshold())
}
