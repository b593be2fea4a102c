package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/resumelens/resumelens/internal/api"
	"github.com/resumelens/resumelens/internal/credential"
	"github.com/resumelens/resumelens/internal/models"
)

// Service persists session records: the server-side half of the
// credential. The browser cookie carries only the record ID; the bearer
// token issued by the backend stays in here.
type Service struct {
	db     *gorm.DB
	ttl    time.Duration
	logger zerolog.Logger
}

// NewService creates a registry service over db. ttl is the lifetime of
// newly created sessions.
func NewService(db *gorm.DB, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{db: db, ttl: ttl, logger: logger}
}

// TTL returns the configured session lifetime
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Lookup returns the session record for id, or credential.ErrNotFound
// when it does not exist or has expired
func (s *Service) Lookup(id string) (*models.SessionRecord, error) {
	var record models.SessionRecord
	if err := s.db.Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, credential.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if record.Expired(time.Now()) {
		return nil, credential.ErrNotFound
	}
	return &record, nil
}

// Touch updates the session's last-seen timestamp
func (s *Service) Touch(id string) error {
	return s.db.Model(&models.SessionRecord{}).
		Where("id = ?", id).
		Update("last_seen_at", time.Now()).Error
}

// UpdateUser refreshes the cached user snapshot on a session record
func (s *Service) UpdateUser(id string, user api.User) error {
	return s.db.Model(&models.SessionRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"user_id":             user.ID,
			"email":               user.Email,
			"full_name":           user.FullName,
			"subscription_type":   user.SubscriptionType,
			"subscription_status": user.SubscriptionStatus,
		}).Error
}

// Delete removes a session record. Deleting a missing record is not an
// error.
func (s *Service) Delete(id string) error {
	return s.db.Where("id = ?", id).Delete(&models.SessionRecord{}).Error
}

// Active returns all non-expired session records
func (s *Service) Active() ([]models.SessionRecord, error) {
	var records []models.SessionRecord
	if err := s.db.Where("expires_at > ?", time.Now()).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return records, nil
}

// PurgeExpired deletes all sessions past their expiry and returns how
// many were removed
func (s *Service) PurgeExpired(now time.Time) (int64, error) {
	result := s.db.Where("expires_at <= ?", now).Delete(&models.SessionRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CredentialStore returns the credential.Store scoped to one session ID.
// Saving creates or refreshes the record; loading an expired record
// reports ErrNotFound.
func (s *Service) CredentialStore(id string) credential.Store {
	return &recordStore{service: s, id: id}
}

type recordStore struct {
	service *Service
	id      string
}

func (r *recordStore) Save(token string) error {
	now := time.Now()
	record := models.SessionRecord{
		BaseModel:  models.BaseModel{ID: r.id},
		Token:      token,
		ExpiresAt:  now.Add(r.service.ttl),
		LastSeenAt: now,
	}

	err := r.service.db.Transaction(func(tx *gorm.DB) error {
		var existing models.SessionRecord
		if err := tx.Where("id = ?", r.id).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tx.Create(&record).Error
			}
			return err
		}
		return tx.Model(&existing).Updates(map[string]any{
			"token":        token,
			"expires_at":   record.ExpiresAt,
			"last_seen_at": now,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save session credential: %w", err)
	}
	return nil
}

func (r *recordStore) Load() (string, error) {
	record, err := r.service.Lookup(r.id)
	if err != nil {
		return "", err
	}
	return record.Token, nil
}

func (r *recordStore) Clear() error {
	return r.service.Delete(r.id)
}
