package fallback

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := map[string]Kind{
		"judge":               Judge,
		"Judge":               Judge,
		"opposing_counsel":    Counsel,
		"Prosecution Counsel": Counsel,
		"Defense Counsel":     Counsel,
		"prosecutor":          Counsel,
		"witness":             Other,
		"jury":                Other,
	}
	for role, want := range tests {
		assert.Equal(t, want, KindOf(role), role)
	}
}

func TestFallback_Pools(t *testing.T) {
	b := New(WithRand(rand.New(rand.NewSource(1))))

	tests := []struct {
		role, action string
		pool         []string
	}{
		{"judge", "argument", judgeLines},
		{"judge", "objection", judgeObjectionLines},
		{"opposing_counsel", "motion", counselLines},
		{"Defense Counsel", "objection", counselObjectionLines},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.action, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				assert.Contains(t, tt.pool, b.Fallback(tt.role, tt.action))
			}
		})
	}
}

func TestFallback_OtherRoleSubstitutesName(t *testing.T) {
	b := New(WithRand(rand.New(rand.NewSource(3))))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		line := b.Fallback("witness", "argument")
		assert.NotContains(t, line, "{role}")
		seen[line] = true
	}
	assert.True(t, seen["As a witness, I must focus on the facts of this case."])
	assert.True(t, seen["I can only speak to what I know about this matter."])
}

func TestIrrelevance(t *testing.T) {
	b := New(WithRand(rand.New(rand.NewSource(7))))
	for i := 0; i < 20; i++ {
		assert.Contains(t, judgeRedirects, b.Irrelevance("judge"))
		assert.Contains(t, counselRedirects, b.Irrelevance("opposing_counsel"))
		assert.Contains(t, counselRedirects, b.Irrelevance("witness"))
	}
}

func TestSeededBanksAgree(t *testing.T) {
	a := New(WithRand(rand.New(rand.NewSource(42))))
	b := New(WithRand(rand.New(rand.NewSource(42))))
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Fallback("judge", ""), b.Fallback("judge", ""))
	}
}

func TestBank_ConcurrentUse(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.NotEmpty(t, b.Fallback("judge", "objection"))
			}
		}()
	}
	wg.Wait()
}
