// Package memory holds a map-backed preferences store.
package memory

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/rendezvous/internal/availability/domain"
	"github.com/google/uuid"
)

// PreferencesRepository is an in-memory domain.PreferencesRepository.
type PreferencesRepository struct {
	mu    sync.RWMutex
	prefs map[uuid.UUID]domain.AvailabilityPreferences
}

// NewPreferencesRepository creates an empty repository.
func NewPreferencesRepository() *PreferencesRepository {
	return &PreferencesRepository{prefs: make(map[uuid.UUID]domain.AvailabilityPreferences)}
}

func (r *PreferencesRepository) Get(_ context.Context, userID uuid.UUID) (*domain.AvailabilityPreferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prefs[userID]
	if !ok {
		return nil, domain.ErrSettingsNotFound
	}
	p.PreferredWeekdays = append([]int(nil), p.PreferredWeekdays...)
	return &p, nil
}

func (r *PreferencesRepository) Save(_ context.Context, prefs domain.AvailabilityPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefs.PreferredWeekdays = append([]int(nil), prefs.PreferredWeekdays...)
	r.prefs[prefs.UserID] = prefs
	return nil
}
