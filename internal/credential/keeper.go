package credential

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// CookieSink is the second credential location: the cookie the edge guard
// reads. The gateway implements it over the HTTP response.
type CookieSink interface {
	SetCredential(ttl time.Duration) error
	ClearCredential() error
}

// Keeper is the one function through which credentials are written. It is
// itself a Store: saving through it writes the persistent store and the
// cookie in sequence with the same lifetime, so the two locations cannot
// drift through a forgotten call site. A partial write (one location
// succeeds, the other fails) is logged and surfaced, never tolerated
// silently.
type Keeper struct {
	store  Store
	sink   CookieSink
	ttl    time.Duration
	logger zerolog.Logger
}

// NewKeeper wraps store and sink into a dual-writing Store
func NewKeeper(store Store, sink CookieSink, ttl time.Duration, logger zerolog.Logger) *Keeper {
	return &Keeper{
		store:  store,
		sink:   sink,
		ttl:    ttl,
		logger: logger,
	}
}

func (k *Keeper) Save(token string) error {
	if err := k.store.Save(token); err != nil {
		return err
	}
	if err := k.sink.SetCredential(k.ttl); err != nil {
		// The store write already landed; the locations have diverged.
		k.logger.Error().Err(err).Msg("Credential written to store but cookie write failed")
		return err
	}
	return nil
}

func (k *Keeper) Load() (string, error) {
	return k.store.Load()
}

// Clear purges both locations. A failure in one does not stop the other;
// all errors are reported.
func (k *Keeper) Clear() error {
	storeErr := k.store.Clear()
	sinkErr := k.sink.ClearCredential()
	if storeErr != nil {
		k.logger.Error().Err(storeErr).Msg("Failed to clear credential store")
	}
	if sinkErr != nil {
		k.logger.Error().Err(sinkErr).Msg("Failed to clear credential cookie")
	}
	return errors.Join(storeErr, sinkErr)
}
