package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"ranked-match-system/models"

	"github.com/google/uuid"
)

// SearchState is the pairing engine's per-session state.
type SearchState string

const (
	SearchIdle       SearchState = "idle"
	SearchQueued     SearchState = "queued"
	SearchMatchFound SearchState = "match_found"
	SearchCancelled  SearchState = "cancelled"
)

// SearchSession is one user's ranked search: a queue membership plus the
// discovery loop that either finds an existing match naming the user or
// claims a new one against another waiting player.
type SearchSession struct {
	mu sync.Mutex

	UserID   string
	Username string

	state     SearchState
	startedAt time.Time
	elapsed   int // whole seconds in queue, for display
	match     *models.MatchRecord
	opponent  *models.PlayerProfile
	err       error

	cancel context.CancelFunc
	done   chan struct{}
}

func (s *SearchSession) State() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *SearchSession) ElapsedSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Match returns the paired record once the session reached SearchMatchFound.
func (s *SearchSession) Match() (*models.MatchRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.match == nil {
		return nil, false
	}
	rec := *s.match
	return &rec, true
}

// Opponent returns the opposing player's profile snapshot, if one was resolved.
func (s *SearchSession) Opponent() (*models.PlayerProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opponent == nil {
		return nil, false
	}
	p := *s.opponent
	return &p, true
}

// Err reports the query error that halted discovery, if any.
func (s *SearchSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done closes when the discovery loop has fully stopped.
func (s *SearchSession) Done() <-chan struct{} { return s.done }

// Matchmaker owns all active search sessions. Pair creation is an atomic
// claim on the canonical pair key, so two players discovering each other in
// the same poll window still converge on a single match record.
type Matchmaker struct {
	Queue    QueueStore
	Matches  MatchStore
	Profiles ProfileStore
	Push     *PushClient
	Notifier *Notifier

	DiscoveryInterval time.Duration
	ElapsedInterval   time.Duration

	mu       sync.Mutex
	rng      *rand.Rand
	sessions map[string]*SearchSession
}

func NewMatchmaker(queue QueueStore, matches MatchStore, profiles ProfileStore) *Matchmaker {
	return &Matchmaker{
		Queue:             queue,
		Matches:           matches,
		Profiles:          profiles,
		DiscoveryInterval: 3 * time.Second,
		ElapsedInterval:   1 * time.Second,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
		sessions:          make(map[string]*SearchSession),
	}
}

// Session returns the active session for userID, if any.
func (m *Matchmaker) Session(userID string) (*SearchSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// StartSearch enqueues the user and starts the discovery loop. Calling it
// again while a search is already running returns the existing session, so a
// user never holds two queue memberships.
func (m *Matchmaker) StartSearch(ctx context.Context, userID, username string) (*SearchSession, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[userID]; ok && existing.State() == SearchQueued {
		select {
		case <-existing.done:
			// loop already exited (halted on a query error); start fresh
		default:
			m.mu.Unlock()
			return existing, nil
		}
	}
	m.mu.Unlock()

	if err := m.Queue.Enqueue(ctx, models.QueueEntry{UserID: userID, Username: username}); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", userID, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sess := &SearchSession{
		UserID:    userID,
		Username:  username,
		state:     SearchQueued,
		startedAt: time.Now().UTC(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[userID] = sess
	m.mu.Unlock()

	go m.run(runCtx, sess)
	return sess, nil
}

// CancelSearch stops the user's discovery loop and removes their queue entry.
// Safe to call when no search is running.
func (m *Matchmaker) CancelSearch(ctx context.Context, userID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()

	if ok {
		sess.mu.Lock()
		if sess.state == SearchQueued {
			sess.state = SearchCancelled
		}
		sess.mu.Unlock()
		sess.cancel()
		<-sess.done // no further queue writes after this returns
	}

	if err := m.Queue.RemoveByUserID(ctx, userID); err != nil {
		return fmt.Errorf("remove queue entry for %s: %w", userID, err)
	}
	return nil
}

func (m *Matchmaker) run(ctx context.Context, sess *SearchSession) {
	defer close(sess.done)

	discovery := time.NewTicker(m.DiscoveryInterval)
	defer discovery.Stop()
	elapsed := time.NewTicker(m.ElapsedInterval)
	defer elapsed.Stop()

	nudge, closeSub := m.Notifier.SubscribeMatchFound(ctx, sess.UserID)
	defer closeSub()

	for {
		select {
		case <-ctx.Done():
			return
		case <-elapsed.C:
			sess.mu.Lock()
			sess.elapsed++
			sess.mu.Unlock()
		case <-nudge:
			if m.discover(ctx, sess) {
				return
			}
		case <-discovery.C:
			if m.discover(ctx, sess) {
				return
			}
		}
	}
}

// discover runs one pairing tick. Returns true when the session is finished,
// either because a match was found or because a query error halted the search.
func (m *Matchmaker) discover(ctx context.Context, sess *SearchSession) bool {
	// Another player may have already paired with us.
	rec, found, err := m.Matches.FindByParticipantSince(ctx, sess.UserID, sess.startedAt)
	if err != nil {
		return m.halt(sess, fmt.Errorf("find match for %s: %w", sess.UserID, err))
	}
	if found {
		m.finish(ctx, sess, rec)
		return true
	}

	opponent, found, err := m.Queue.FindOneExcluding(ctx, sess.UserID)
	if err != nil {
		return m.halt(sess, fmt.Errorf("scan queue for %s: %w", sess.UserID, err))
	}
	if !found {
		return false // nobody waiting, poll again next tick
	}

	m.mu.Lock()
	password := GenerateMatchPassword(m.rng)
	m.mu.Unlock()

	claim := models.MatchRecord{
		MatchID:       uuid.NewString(),
		PairKey:       models.PairKey(sess.UserID, opponent.UserID),
		Player1:       sess.UserID,
		Player2:       opponent.UserID,
		MatchPassword: password,
		Confirmed:     models.ConfirmationUnset,
	}

	winner, created, err := m.Matches.Claim(ctx, claim)
	if err != nil {
		return m.halt(sess, fmt.Errorf("claim match %s: %w", claim.MatchID, err))
	}

	// Both queue entries are spent regardless of who won the claim.
	if err := m.Queue.RemoveByUserID(ctx, sess.UserID); err != nil {
		log.Printf("[MATCHMAKER] ⚠️ failed to remove queue entry for %s: %v", sess.UserID, err)
	}
	if err := m.Queue.RemoveByUserID(ctx, opponent.UserID); err != nil {
		log.Printf("[MATCHMAKER] ⚠️ failed to remove queue entry for %s: %v", opponent.UserID, err)
	}

	if created {
		log.Printf("[MATCHMAKER] 🎴 paired %s vs %s (match=%s)", winner.Player1, winner.Player2, winner.MatchID)
		m.Notifier.PublishMatchFound(ctx, winner.Opponent(sess.UserID), winner.MatchID)
		m.notifyOpponent(ctx, winner.Opponent(sess.UserID), sess.Username)
	}

	m.finish(ctx, sess, winner)
	return true
}

// halt implements the log-and-stop error policy: the session keeps its queued
// state but discovery stops, and the error is surfaced on the session.
func (m *Matchmaker) halt(sess *SearchSession, err error) bool {
	log.Printf("[MATCHMAKER] ❌ discovery halted for %s: %v", sess.UserID, err)
	sess.mu.Lock()
	sess.err = err
	sess.mu.Unlock()
	return true
}

func (m *Matchmaker) finish(ctx context.Context, sess *SearchSession, rec models.MatchRecord) {
	opponentID := rec.Opponent(sess.UserID)

	var opponent *models.PlayerProfile
	if m.Profiles != nil && opponentID != "" {
		profile, ok, err := m.Profiles.FindByExternalID(ctx, opponentID)
		if err != nil {
			log.Printf("[MATCHMAKER] ⚠️ failed to load opponent profile %s: %v", opponentID, err)
		} else if ok {
			opponent = &profile
		}
	}

	sess.mu.Lock()
	sess.state = SearchMatchFound
	sess.match = &rec
	sess.opponent = opponent
	sess.mu.Unlock()

	// The session object survives in the map so the client can read the
	// result; the next StartSearch for this user replaces it.
}

func (m *Matchmaker) notifyOpponent(ctx context.Context, opponentID, withUsername string) {
	if m.Push == nil || m.Profiles == nil || opponentID == "" {
		return
	}
	profile, ok, err := m.Profiles.FindByExternalID(ctx, opponentID)
	if err != nil || !ok || profile.PushToken == nil {
		return
	}
	m.Push.SendAsync(PushNotification{
		PushToken:        *profile.PushToken,
		Title:            "Match found",
		Message:          fmt.Sprintf("You were paired with %s — open the app to get the match password", withUsername),
		UserID:           opponentID,
		NotificationType: "ranked_match_found",
	})
}
