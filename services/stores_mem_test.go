package services

import (
	"context"
	"sync"
	"time"

	"ranked-match-system/models"
)

// In-memory store fakes so the engine state machines can run without Postgres.

type memQueueStore struct {
	mu      sync.Mutex
	entries []models.QueueEntry
	failure error // injected query error
	writes  int
}

func newMemQueueStore() *memQueueStore { return &memQueueStore{} }

func (s *memQueueStore) Enqueue(ctx context.Context, entry models.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	s.writes++
	for i, e := range s.entries {
		if e.UserID == entry.UserID {
			s.entries[i].Username = entry.Username
			return nil
		}
	}
	entry.CreatedAt = time.Now().UTC()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memQueueStore) RemoveByUserID(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	s.writes++
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.UserID != userID {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

func (s *memQueueStore) FindOneExcluding(ctx context.Context, userID string) (models.QueueEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return models.QueueEntry{}, false, s.failure
	}
	for _, e := range s.entries {
		if e.UserID != userID {
			return e, true, nil
		}
	}
	return models.QueueEntry{}, false, nil
}

func (s *memQueueStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return 0, s.failure
	}
	return int64(len(s.entries)), nil
}

func (s *memQueueStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memQueueStore) setFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

type memMatchStore struct {
	mu      sync.Mutex
	byPair  map[string]*models.MatchRecord
	claims  int // total Claim calls that attempted an insert
	created int // claims that actually created a row
}

func newMemMatchStore() *memMatchStore {
	return &memMatchStore{byPair: make(map[string]*models.MatchRecord)}
}

func (s *memMatchStore) Claim(ctx context.Context, rec models.MatchRecord) (models.MatchRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims++
	if existing, ok := s.byPair[rec.PairKey]; ok && existing.ArchivedAt == nil {
		return *existing, false, nil
	}
	rec.CreatedAt = time.Now().UTC()
	stored := rec
	s.byPair[rec.PairKey] = &stored
	s.created++
	return rec, true, nil
}

func (s *memMatchStore) FindByParticipantSince(ctx context.Context, userID string, since time.Time) (models.MatchRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.byPair {
		if rec.ArchivedAt != nil || rec.CreatedAt.Before(since) {
			continue
		}
		if rec.HasParticipant(userID) {
			return *rec, true, nil
		}
	}
	return models.MatchRecord{}, false, nil
}

func (s *memMatchStore) FindByID(ctx context.Context, matchID string) (models.MatchRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.byPair {
		if rec.MatchID == matchID {
			return *rec, true, nil
		}
	}
	return models.MatchRecord{}, false, nil
}

func (s *memMatchStore) UpdateFields(ctx context.Context, matchID string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.byPair {
		if rec.MatchID != matchID {
			continue
		}
		if v, ok := fields["winner"]; ok {
			w := v.(string)
			rec.Winner = &w
		}
		if v, ok := fields["confirmed"]; ok {
			rec.Confirmed = v.(models.ConfirmationStatus)
		}
		return nil
	}
	return nil
}

func (s *memMatchStore) matchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byPair)
}

func (s *memMatchStore) put(rec models.MatchRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := rec
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.byPair[rec.PairKey] = &stored
}

type memProfileStore struct {
	mu       sync.Mutex
	profiles map[string]models.PlayerProfile
}

func newMemProfileStore() *memProfileStore {
	return &memProfileStore{profiles: make(map[string]models.PlayerProfile)}
}

func (s *memProfileStore) put(p models.PlayerProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ExternalUserID] = p
}

func (s *memProfileStore) FindByExternalID(ctx context.Context, userID string) (models.PlayerProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	return p, ok, nil
}
