package models

import (
	"time"
)

// QueueEntry is one player waiting in the ranked pool.
// The unique index on user_id makes re-entry an upsert instead of a
// duplicate row, so a user can hold at most one queue membership.
type QueueEntry struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID   string `json:"user_id" gorm:"uniqueIndex;not null"`
	Username string `json:"username" gorm:"not null"` // denormalized display name captured at enqueue time

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
