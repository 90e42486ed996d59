package services

import (
	"math/rand"
	"strings"
	"testing"
)

func TestMatchPasswordFormat(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		pw := GenerateMatchPassword(rng)
		if len(pw) != 10 {
			t.Fatalf("len(%q) = %d, want 10", pw, len(pw))
		}
		for _, ch := range pw {
			if !strings.ContainsRune(matchPasswordAlphabet, ch) {
				t.Fatalf("password %q contains %q, outside [A-Za-z0-9]", pw, ch)
			}
		}
	}
}

func TestMatchPasswordsVary(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[GenerateMatchPassword(rng)] = true
	}
	if len(seen) < 100 {
		t.Fatalf("generated %d distinct passwords out of 100, expected no collisions", len(seen))
	}
}
