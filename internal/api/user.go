package api

import "time"

// User is the backend-owned account record. The gateway holds read-only
// cached copies only; it never mutates a user.
type User struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	FullName           string    `json:"full_name"`
	SubscriptionType   string    `json:"subscription_type"`
	SubscriptionStatus string    `json:"subscription_status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
