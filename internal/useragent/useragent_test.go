package useragent

import (
	"math/rand"
	"testing"
)

func TestRandomAgentDeterministicWithSeededRand(t *testing.T) {
	provider := NewChromeUserAgentProvider([]string{"agent-a", "agent-b", "agent-c"})
	r := rand.New(rand.NewSource(1))
	got := provider.RandomAgent(r)

	found := false
	for _, agent := range []string{"agent-a", "agent-b", "agent-c"} {
		if got == agent {
			found = true
		}
	}
	if !found {
		t.Errorf("RandomAgent() = %q, want one of the configured agents", got)
	}
}

func TestRandomAgentEmptyProvider(t *testing.T) {
	provider := NewChromeUserAgentProvider(nil)
	if got := provider.RandomAgent(nil); got != "" {
		t.Errorf("RandomAgent() on empty provider = %q, want empty string", got)
	}
}

func TestDefaultChromeUserAgentReturnsAKnownValue(t *testing.T) {
	got := DefaultChromeUserAgent(rand.New(rand.NewSource(42)))
	for _, agent := range DefaultChromeUserAgents() {
		if got == agent {
			return
		}
	}
	t.Errorf("DefaultChromeUserAgent() = %q, not found in DefaultChromeUserAgents()", got)
}

func TestNewChromeUserAgentProviderCopiesSlice(t *testing.T) {
	src := []string{"a", "b"}
	provider := NewChromeUserAgentProvider(src)
	src[0] = "mutated"
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 10; i++ {
		if got := provider.RandomAgent(r); got == "mutated" {
			t.Fatal("provider should have copied the input slice, not aliased it")
		}
	}
}
