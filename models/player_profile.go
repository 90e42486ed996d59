package models

import (
	"time"

	"gorm.io/gorm"
)

// PlayerProfile is a local snapshot of user data needed for matchmaking
// (opponent display, push delivery). Populated by the profile sync worker
// from the profile service; this service never writes profile fields itself.
type PlayerProfile struct {
	ID              string  `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ExternalUserID  string  `json:"external_user_id" gorm:"uniqueIndex;not null"` // the profile service's user id
	Username        string  `json:"username" gorm:"index;not null"`
	ProfileImageURL *string `json:"profile_image,omitempty"`
	PushToken       *string `json:"-"` // Expo/FCM token, nil until the device registers one

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
