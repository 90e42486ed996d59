package models

import (
	"time"
)

// ConfirmationStatus is the shared confirmation flag on a match record.
// Both players write it during the winner handshake.
type ConfirmationStatus string

const (
	ConfirmationUnset        ConfirmationStatus = ""              // no submission yet
	ConfirmationAwaiting     ConfirmationStatus = "awaiting"      // one side selected/submitted, waiting on the other
	ConfirmationConfirmed    ConfirmationStatus = "confirmed"     // both sides agree on the winner
	ConfirmationNonConfirmed ConfirmationStatus = "non_confirmed" // sides disagree
)

// Terminal reports whether the handshake is finished for this status.
func (s ConfirmationStatus) Terminal() bool {
	return s == ConfirmationConfirmed || s == ConfirmationNonConfirmed
}

// MatchRecord is one paired ranked match. The matchmaker that discovers the
// pairing creates the row; afterwards both players have equal write access to
// the winner/confirmation fields.
//
// PairKey is the canonical unordered pair key (min|max of the two user ids).
// Its unique index is what turns concurrent discovery by both players into a
// single row: the second insert hits the index and re-reads the winner row.
type MatchRecord struct {
	MatchID       string             `json:"match_id" gorm:"primaryKey"`
	PairKey       string             `json:"-" gorm:"uniqueIndex;not null"`
	Player1       string             `json:"player1" gorm:"index;not null"`
	Player2       string             `json:"player2" gorm:"index;not null"`
	MatchPassword string             `json:"match_password" gorm:"not null"` // human-communicated token for the external game client, not a secret
	Winner        *string            `json:"winner,omitempty"`
	Confirmed     ConfirmationStatus `json:"confirmed" gorm:"type:varchar(16);default:''"`

	CreatedAt  time.Time  `json:"created_at" gorm:"index;autoCreateTime"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	ArchivedAt *time.Time `json:"archived_at,omitempty" gorm:"index"` // set by the janitor once the handshake is terminal
}

// PairKey builds the canonical unordered key for two user ids.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// Opponent returns the other participant, or "" if userID is not in the match.
func (m *MatchRecord) Opponent(userID string) string {
	switch userID {
	case m.Player1:
		return m.Player2
	case m.Player2:
		return m.Player1
	}
	return ""
}

// HasParticipant reports whether userID is one of the two players.
func (m *MatchRecord) HasParticipant(userID string) bool {
	return userID == m.Player1 || userID == m.Player2
}
