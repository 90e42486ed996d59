package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"ranked-match-system/models"
)

func newTestMatchmaker(q *memQueueStore, m *memMatchStore) *Matchmaker {
	mm := NewMatchmaker(q, m, newMemProfileStore())
	mm.DiscoveryInterval = 10 * time.Millisecond
	mm.ElapsedInterval = 5 * time.Millisecond
	return mm
}

func waitDone(t *testing.T, sess *SearchSession) {
	t.Helper()
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session for %s did not finish in time (state=%s)", sess.UserID, sess.State())
	}
}

func TestSearchPairsBothSides(t *testing.T) {
	queue := newMemQueueStore()
	matches := newMemMatchStore()
	mm := newTestMatchmaker(queue, matches)
	ctx := context.Background()

	a, err := mm.StartSearch(ctx, "alice", "Alice")
	if err != nil {
		t.Fatalf("start search alice: %v", err)
	}
	b, err := mm.StartSearch(ctx, "bob", "Bob")
	if err != nil {
		t.Fatalf("start search bob: %v", err)
	}

	waitDone(t, a)
	waitDone(t, b)

	if a.State() != SearchMatchFound || b.State() != SearchMatchFound {
		t.Fatalf("states = %s/%s, want match_found for both", a.State(), b.State())
	}

	am, ok := a.Match()
	if !ok {
		t.Fatal("alice has no match record")
	}
	bm, ok := b.Match()
	if !ok {
		t.Fatal("bob has no match record")
	}
	if am.MatchID != bm.MatchID {
		t.Fatalf("match ids diverge: alice=%s bob=%s", am.MatchID, bm.MatchID)
	}
	if !am.HasParticipant("alice") || !am.HasParticipant("bob") {
		t.Fatalf("pair = {%s, %s}, want {alice, bob}", am.Player1, am.Player2)
	}
	if matches.matchCount() != 1 {
		t.Fatalf("match records = %d, want exactly 1", matches.matchCount())
	}

	n, _ := queue.Count(ctx)
	if n != 0 {
		t.Fatalf("queue entries after pairing = %d, want 0", n)
	}
}

// Both players discovering each other in the same poll window must still
// converge on a single record: the pair-key claim arbitrates.
func TestConcurrentDiscoveryCreatesOneMatch(t *testing.T) {
	queue := newMemQueueStore()
	matches := newMemMatchStore()
	mm := newTestMatchmaker(queue, matches)
	ctx := context.Background()

	if err := queue.Enqueue(ctx, models.QueueEntry{UserID: "alice", Username: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := queue.Enqueue(ctx, models.QueueEntry{UserID: "bob", Username: "Bob"}); err != nil {
		t.Fatal(err)
	}

	aSess := &SearchSession{UserID: "alice", Username: "Alice", state: SearchQueued, startedAt: time.Now().Add(-time.Second), done: make(chan struct{})}
	bSess := &SearchSession{UserID: "bob", Username: "Bob", state: SearchQueued, startedAt: time.Now().Add(-time.Second), done: make(chan struct{})}

	// Run discovery ticks for both sides concurrently until each settles,
	// the same loop the session goroutine runs on its interval.
	results := make(chan string, 2)
	for _, sess := range []*SearchSession{aSess, bSess} {
		go func(s *SearchSession) {
			for !mm.discover(ctx, s) {
			}
			results <- s.UserID
		}(sess)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-results:
		case <-time.After(2 * time.Second):
			t.Fatal("discovery did not settle for both players")
		}
	}

	if matches.matchCount() != 1 {
		t.Fatalf("match records = %d, want exactly 1", matches.matchCount())
	}
	am, _ := aSess.Match()
	bm, _ := bSess.Match()
	if am == nil || bm == nil || am.MatchID != bm.MatchID {
		t.Fatalf("players did not converge on the same match: %+v vs %+v", am, bm)
	}
}

func TestCancelSearchCleansUp(t *testing.T) {
	queue := newMemQueueStore()
	mm := newTestMatchmaker(queue, newMemMatchStore())
	ctx := context.Background()

	sess, err := mm.StartSearch(ctx, "alice", "Alice")
	if err != nil {
		t.Fatalf("start search: %v", err)
	}
	if err := mm.CancelSearch(ctx, "alice"); err != nil {
		t.Fatalf("cancel search: %v", err)
	}

	if sess.State() != SearchCancelled {
		t.Fatalf("state = %s, want cancelled", sess.State())
	}
	n, _ := queue.Count(ctx)
	if n != 0 {
		t.Fatalf("queue entries after cancel = %d, want 0", n)
	}

	// No further queue writes once cancellation returned.
	writes := queue.writeCount()
	time.Sleep(50 * time.Millisecond)
	if got := queue.writeCount(); got != writes {
		t.Fatalf("queue writes after cancel: %d -> %d, want none", writes, got)
	}
}

func TestRepeatSearchKeepsSingleQueueEntry(t *testing.T) {
	queue := newMemQueueStore()
	mm := newTestMatchmaker(queue, newMemMatchStore())
	ctx := context.Background()

	first, err := mm.StartSearch(ctx, "alice", "Alice")
	if err != nil {
		t.Fatalf("start search: %v", err)
	}
	second, err := mm.StartSearch(ctx, "alice", "Alice")
	if err != nil {
		t.Fatalf("repeat search: %v", err)
	}
	if first != second {
		t.Fatal("repeat search created a second session")
	}
	n, _ := queue.Count(ctx)
	if n != 1 {
		t.Fatalf("queue entries = %d, want 1", n)
	}

	if err := mm.CancelSearch(ctx, "alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
}

func TestDiscoveryHaltsOnQueryError(t *testing.T) {
	queue := newMemQueueStore()
	mm := newTestMatchmaker(queue, newMemMatchStore())
	ctx := context.Background()

	sess, err := mm.StartSearch(ctx, "alice", "Alice")
	if err != nil {
		t.Fatalf("start search: %v", err)
	}

	boom := errors.New("connection reset")
	queue.setFailure(boom)

	waitDone(t, sess)
	if sess.Err() == nil {
		t.Fatal("session error not surfaced after query failure")
	}
	if sess.State() != SearchQueued {
		t.Fatalf("state = %s, want queued (halted, not resolved)", sess.State())
	}
}

func TestElapsedCounterTicks(t *testing.T) {
	queue := newMemQueueStore()
	mm := newTestMatchmaker(queue, newMemMatchStore())
	ctx := context.Background()

	sess, err := mm.StartSearch(ctx, "alice", "Alice")
	if err != nil {
		t.Fatalf("start search: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if sess.ElapsedSeconds() == 0 {
		t.Fatal("elapsed counter never ticked")
	}
	if err := mm.CancelSearch(ctx, "alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
}
