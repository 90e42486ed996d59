package services

import (
	"context"
	"errors"
	"time"

	"ranked-match-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The engines talk to storage through these narrow gateways so the pairing
// and confirmation state machines can be exercised without a database.

type QueueStore interface {
	Enqueue(ctx context.Context, entry models.QueueEntry) error
	RemoveByUserID(ctx context.Context, userID string) error
	FindOneExcluding(ctx context.Context, userID string) (models.QueueEntry, bool, error)
	Count(ctx context.Context) (int64, error)
}

type MatchStore interface {
	// Claim inserts the record unless a match for the same unordered pair
	// already exists; either way it returns the winning row. The bool is
	// true when the caller's insert created it.
	Claim(ctx context.Context, rec models.MatchRecord) (models.MatchRecord, bool, error)
	FindByParticipantSince(ctx context.Context, userID string, since time.Time) (models.MatchRecord, bool, error)
	FindByID(ctx context.Context, matchID string) (models.MatchRecord, bool, error)
	UpdateFields(ctx context.Context, matchID string, fields map[string]interface{}) error
}

type ProfileStore interface {
	FindByExternalID(ctx context.Context, userID string) (models.PlayerProfile, bool, error)
}

// --- GORM implementations ---

type GormQueueStore struct {
	DB *gorm.DB
}

func NewGormQueueStore(db *gorm.DB) *GormQueueStore { return &GormQueueStore{DB: db} }

// Enqueue is an upsert on user_id: entering the queue twice refreshes the
// existing row instead of duplicating it.
func (s *GormQueueStore) Enqueue(ctx context.Context, entry models.QueueEntry) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username"}),
	}).Create(&entry).Error
}

func (s *GormQueueStore) RemoveByUserID(ctx context.Context, userID string) error {
	return s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.QueueEntry{}).Error
}

func (s *GormQueueStore) FindOneExcluding(ctx context.Context, userID string) (models.QueueEntry, bool, error) {
	var entry models.QueueEntry
	err := s.DB.WithContext(ctx).Where("user_id <> ?", userID).Order("created_at ASC").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entry, false, nil
		}
		return entry, false, err
	}
	return entry, true, nil
}

func (s *GormQueueStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.QueueEntry{}).Count(&n).Error
	return n, err
}

type GormMatchStore struct {
	DB *gorm.DB
}

func NewGormMatchStore(db *gorm.DB) *GormMatchStore { return &GormMatchStore{DB: db} }

func (s *GormMatchStore) Claim(ctx context.Context, rec models.MatchRecord) (models.MatchRecord, bool, error) {
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair_key"}},
		DoNothing: true,
	}).Create(&rec)
	if res.Error != nil {
		return models.MatchRecord{}, false, res.Error
	}
	if res.RowsAffected > 0 {
		return rec, true, nil
	}
	// Lost the race: the other player already created the pair. Re-read the
	// winning row so both sides end up holding the same match id.
	var existing models.MatchRecord
	if err := s.DB.WithContext(ctx).Where("pair_key = ? AND archived_at IS NULL", rec.PairKey).
		First(&existing).Error; err != nil {
		return models.MatchRecord{}, false, err
	}
	return existing, false, nil
}

func (s *GormMatchStore) FindByParticipantSince(ctx context.Context, userID string, since time.Time) (models.MatchRecord, bool, error) {
	var rec models.MatchRecord
	err := s.DB.WithContext(ctx).
		Where("(player1 = ? OR player2 = ?) AND created_at >= ? AND archived_at IS NULL", userID, userID, since).
		Order("created_at DESC").First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rec, false, nil
		}
		return rec, false, err
	}
	return rec, true, nil
}

func (s *GormMatchStore) FindByID(ctx context.Context, matchID string) (models.MatchRecord, bool, error) {
	var rec models.MatchRecord
	err := s.DB.WithContext(ctx).Where("match_id = ?", matchID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rec, false, nil
		}
		return rec, false, err
	}
	return rec, true, nil
}

func (s *GormMatchStore) UpdateFields(ctx context.Context, matchID string, fields map[string]interface{}) error {
	return s.DB.WithContext(ctx).Model(&models.MatchRecord{}).
		Where("match_id = ?", matchID).Updates(fields).Error
}

type GormProfileStore struct {
	DB *gorm.DB
}

func NewGormProfileStore(db *gorm.DB) *GormProfileStore { return &GormProfileStore{DB: db} }

func (s *GormProfileStore) FindByExternalID(ctx context.Context, userID string) (models.PlayerProfile, bool, error) {
	var profile models.PlayerProfile
	err := s.DB.WithContext(ctx).Where("external_user_id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return profile, false, nil
		}
		return profile, false, err
	}
	return profile, true, nil
}
