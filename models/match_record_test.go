package models

import "testing"

func TestPairKeyCanonical(t *testing.T) {
	if PairKey("alice", "bob") != PairKey("bob", "alice") {
		t.Fatal("pair key depends on argument order")
	}
	if PairKey("alice", "bob") == PairKey("alice", "carol") {
		t.Fatal("distinct pairs share a key")
	}
}

func TestOpponent(t *testing.T) {
	m := MatchRecord{Player1: "alice", Player2: "bob"}
	if got := m.Opponent("alice"); got != "bob" {
		t.Fatalf("Opponent(alice) = %q, want bob", got)
	}
	if got := m.Opponent("bob"); got != "alice" {
		t.Fatalf("Opponent(bob) = %q, want alice", got)
	}
	if got := m.Opponent("mallory"); got != "" {
		t.Fatalf("Opponent(mallory) = %q, want empty", got)
	}
}

func TestConfirmationTerminal(t *testing.T) {
	for status, want := range map[ConfirmationStatus]bool{
		ConfirmationUnset:        false,
		ConfirmationAwaiting:     false,
		ConfirmationConfirmed:    true,
		ConfirmationNonConfirmed: true,
	} {
		if status.Terminal() != want {
			t.Fatalf("%q.Terminal() = %v, want %v", status, !want, want)
		}
	}
}
