package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ranked-match-system/models"
)

// ConfirmationState is one side's view of the winner handshake.
type ConfirmationState string

const (
	ConfirmNoSelection  ConfirmationState = "no_selection"
	ConfirmSelected     ConfirmationState = "selected"
	ConfirmSubmitted    ConfirmationState = "submitted" // awaiting the other side
	ConfirmConfirmed    ConfirmationState = "confirmed"
	ConfirmNonConfirmed ConfirmationState = "non_confirmed"
)

const confirmCountdownSeconds = 60

var (
	ErrNotParticipant = errors.New("user is not a participant of this match")
	ErrNoSelection    = errors.New("no winner selected")
	ErrMatchNotFound  = errors.New("match not found")
)

// ConfirmationSession tracks one player's side of the handshake on one match.
type ConfirmationSession struct {
	mu sync.Mutex

	MatchID string
	UserID  string

	state     ConfirmationState
	selection string // user id this side believes won
	countdown int    // display seconds remaining, floor 0

	cancel context.CancelFunc
	done   chan struct{}
}

func (s *ConfirmationSession) State() ConfirmationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ConfirmationSession) Selection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Countdown returns the remaining display seconds. It never goes below zero
// and nothing happens when it runs out; it exists for the UI only.
func (s *ConfirmationSession) Countdown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countdown
}

func (s *ConfirmationSession) terminal() bool {
	return s.state == ConfirmConfirmed || s.state == ConfirmNonConfirmed
}

// WinnerConfirmer reconciles winner submissions from both sides of a match
// into confirmed / non_confirmed on the shared record.
type WinnerConfirmer struct {
	Matches  MatchStore
	Notifier *Notifier

	ReconcileInterval time.Duration
	CountdownInterval time.Duration

	mu       sync.Mutex
	sessions map[string]*ConfirmationSession // keyed by matchID + "/" + userID
}

func NewWinnerConfirmer(matches MatchStore) *WinnerConfirmer {
	return &WinnerConfirmer{
		Matches:           matches,
		ReconcileInterval: 3 * time.Second,
		CountdownInterval: 1 * time.Second,
		sessions:          make(map[string]*ConfirmationSession),
	}
}

func confirmKey(matchID, userID string) string { return matchID + "/" + userID }

// Session returns the confirmation session for (matchID, userID), if any.
func (w *WinnerConfirmer) Session(matchID, userID string) (*ConfirmationSession, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions[confirmKey(matchID, userID)]
	return s, ok
}

func (w *WinnerConfirmer) sessionFor(matchID, userID string) *ConfirmationSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := confirmKey(matchID, userID)
	if s, ok := w.sessions[key]; ok {
		return s
	}
	s := &ConfirmationSession{
		MatchID:   matchID,
		UserID:    userID,
		state:     ConfirmNoSelection,
		countdown: confirmCountdownSeconds,
	}
	w.sessions[key] = s
	return s
}

// Select records which player this side believes won and immediately flags
// the shared record as awaiting. The flag carries no information about who
// was selected until the explicit confirm; that matches the legacy client,
// where selection doubled as an "I'm about to decide" signal.
func (w *WinnerConfirmer) Select(ctx context.Context, matchID, userID, selection string) error {
	rec, found, err := w.Matches.FindByID(ctx, matchID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", matchID, err)
	}
	if !found {
		return ErrMatchNotFound
	}
	if !rec.HasParticipant(userID) || !rec.HasParticipant(selection) {
		return ErrNotParticipant
	}

	sess := w.sessionFor(matchID, userID)
	sess.mu.Lock()
	if sess.terminal() {
		sess.mu.Unlock()
		return nil // handshake already settled, selection is moot
	}
	// Selecting the opponent clears a previous self-selection and vice versa.
	sess.selection = selection
	sess.state = ConfirmSelected
	sess.mu.Unlock()

	if err := w.Matches.UpdateFields(ctx, matchID, map[string]interface{}{
		"confirmed": models.ConfirmationAwaiting,
	}); err != nil {
		return fmt.Errorf("flag match %s awaiting: %w", matchID, err)
	}
	w.Notifier.PublishMatchUpdated(ctx, matchID)
	return nil
}

// Confirm submits this side's selection against the current row state.
//
// Branches, per the reconciliation protocol:
//   - nobody has submitted yet: write our selection as the winner and start
//     waiting on the other side (countdown + reconciliation poll);
//   - the other side already submitted the same winner and is awaiting:
//     settle the record as confirmed;
//   - the other side submitted a different winner and is awaiting: settle
//     the record as non_confirmed;
//   - anything else: silent no-op.
func (w *WinnerConfirmer) Confirm(ctx context.Context, matchID, userID string) error {
	sess, ok := w.Session(matchID, userID)
	if !ok {
		return ErrNoSelection
	}
	sess.mu.Lock()
	if sess.state != ConfirmSelected && sess.state != ConfirmSubmitted {
		state := sess.state
		sess.mu.Unlock()
		if state == ConfirmNoSelection {
			return ErrNoSelection
		}
		return nil // already terminal
	}
	selection := sess.selection
	sess.mu.Unlock()

	rec, found, err := w.Matches.FindByID(ctx, matchID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", matchID, err)
	}
	if !found {
		return ErrMatchNotFound
	}

	switch {
	case rec.Winner == nil:
		// First submission: publish our selection, wait for the other side.
		if err := w.Matches.UpdateFields(ctx, matchID, map[string]interface{}{
			"winner": selection,
		}); err != nil {
			return fmt.Errorf("submit winner for %s: %w", matchID, err)
		}
		w.Notifier.PublishMatchUpdated(ctx, matchID)
		w.startWaiting(sess)

	case *rec.Winner == selection && rec.Confirmed == models.ConfirmationAwaiting:
		if err := w.settle(ctx, sess, models.ConfirmationConfirmed); err != nil {
			return err
		}

	case *rec.Winner != selection && rec.Confirmed == models.ConfirmationAwaiting:
		if err := w.settle(ctx, sess, models.ConfirmationNonConfirmed); err != nil {
			return err
		}

	default:
		// Unrecognized combination: no state change, no write.
	}
	return nil
}

func (w *WinnerConfirmer) startWaiting(sess *ConfirmationSession) {
	sess.mu.Lock()
	if sess.state == ConfirmSubmitted {
		sess.mu.Unlock()
		return
	}
	sess.state = ConfirmSubmitted
	sess.countdown = confirmCountdownSeconds
	runCtx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel
	sess.done = make(chan struct{})
	sess.mu.Unlock()

	go w.wait(runCtx, sess)
}

// wait is the reconciliation loop for the side that submitted first: it
// re-reads the shared record until the other side settles it, and drives the
// cosmetic countdown.
func (w *WinnerConfirmer) wait(ctx context.Context, sess *ConfirmationSession) {
	defer close(sess.done)

	reconcile := time.NewTicker(w.ReconcileInterval)
	defer reconcile.Stop()
	countdown := time.NewTicker(w.CountdownInterval)
	defer countdown.Stop()

	nudge, closeSub := w.Notifier.SubscribeMatchUpdated(ctx, sess.MatchID)
	defer closeSub()

	for {
		select {
		case <-ctx.Done():
			return
		case <-countdown.C:
			sess.mu.Lock()
			if sess.countdown > 0 {
				sess.countdown--
			}
			sess.mu.Unlock()
		case <-nudge:
			if w.reconcile(ctx, sess) {
				return
			}
		case <-reconcile.C:
			if w.reconcile(ctx, sess) {
				return
			}
		}
	}
}

// reconcile reads the shared record and propagates a terminal confirmation
// value onto this side. Returns true when the loop should stop.
func (w *WinnerConfirmer) reconcile(ctx context.Context, sess *ConfirmationSession) bool {
	rec, found, err := w.Matches.FindByID(ctx, sess.MatchID)
	if err != nil {
		log.Printf("[CONFIRM] ❌ reconcile read failed for %s: %v", sess.MatchID, err)
		return true // log-and-halt, same policy as discovery
	}
	if !found {
		log.Printf("[CONFIRM] match %s disappeared during reconciliation", sess.MatchID)
		return true
	}
	if !rec.Confirmed.Terminal() {
		return false
	}

	sess.mu.Lock()
	switch rec.Confirmed {
	case models.ConfirmationConfirmed:
		sess.state = ConfirmConfirmed
	case models.ConfirmationNonConfirmed:
		sess.state = ConfirmNonConfirmed
	}
	sess.mu.Unlock()
	return true
}

// settle writes the terminal value for the second submitter and stops that
// side's timers immediately; the first submitter's poll picks the value up.
func (w *WinnerConfirmer) settle(ctx context.Context, sess *ConfirmationSession, status models.ConfirmationStatus) error {
	if err := w.Matches.UpdateFields(ctx, sess.MatchID, map[string]interface{}{
		"confirmed": status,
	}); err != nil {
		return fmt.Errorf("settle match %s as %s: %w", sess.MatchID, status, err)
	}
	w.Notifier.PublishMatchUpdated(ctx, sess.MatchID)

	sess.mu.Lock()
	switch status {
	case models.ConfirmationConfirmed:
		sess.state = ConfirmConfirmed
	case models.ConfirmationNonConfirmed:
		sess.state = ConfirmNonConfirmed
	}
	cancel := sess.cancel
	sess.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	log.Printf("[CONFIRM] match %s settled as %s by %s", sess.MatchID, status, sess.UserID)
	return nil
}
