package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	// TypeSessionPurge deletes expired session records
	TypeSessionPurge = "session:purge"
	// TypeProfileResync refreshes the cached user snapshot for one session
	TypeProfileResync = "session:profile_resync"
)

// ProfileResyncPayload identifies the session to resync
type ProfileResyncPayload struct {
	SessionID string `json:"session_id"`
}

// NewSessionPurgeTask creates a task that sweeps expired sessions
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TypeSessionPurge, nil)
}

// NewProfileResyncTask creates a task that re-fetches the user profile
// for one session and updates its cached snapshot
func NewProfileResyncTask(sessionID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ProfileResyncPayload{SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeProfileResync, payload), nil
}
