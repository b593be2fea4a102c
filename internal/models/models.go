package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// SessionRecord is one browser session known to the gateway.
//
// The record ID is the opaque value the browser carries in the session
// cookie; the bearer token issued by the backend never leaves the server.
type SessionRecord struct {
	BaseModel
	Token      string    `json:"-" gorm:"type:text;not null"`
	ExpiresAt  time.Time `json:"expires_at" gorm:"not null;index"`
	LastSeenAt time.Time `json:"last_seen_at"`

	// Cached user snapshot, refreshed by the profile resync worker.
	// The backend owns the user; these columns are read-only copies.
	UserID             string `json:"user_id" gorm:"index"`
	Email              string `json:"email"`
	FullName           string `json:"full_name"`
	SubscriptionType   string `json:"subscription_type"`
	SubscriptionStatus string `json:"subscription_status"`
}

// Expired reports whether the session has passed its expiry
func (s *SessionRecord) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&SessionRecord{},
	)
}
