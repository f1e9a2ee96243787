package domain

import (
	sharedDomain "github.com/felixgeelhaar/rendezvous/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	// AggregateTypeUserCalendar groups every calendar event of one user.
	AggregateTypeUserCalendar = "user_calendar"

	RoutingKeyCalendarSynced       = "calendar.synced"
	RoutingKeyConflictDetected     = "calendar.conflict_detected"
	RoutingKeyProviderDisconnected = "calendar.provider_disconnected"
	RoutingKeyProviderSyncFailed   = "calendar.provider_sync_failed"
)

// CalendarSyncedEvent is published after a provider was reconciled.
type CalendarSyncedEvent struct {
	sharedDomain.BaseEvent
	UserID   uuid.UUID    `json:"user_id"`
	Provider ProviderType `json:"provider"`
	Created  int          `json:"created"`
	Updated  int          `json:"updated"`
	Deleted  int          `json:"deleted"`
}

// NewCalendarSyncedEvent creates a calendar synced event.
func NewCalendarSyncedEvent(userID uuid.UUID, provider ProviderType, created, updated, deleted int) CalendarSyncedEvent {
	return CalendarSyncedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(userID, AggregateTypeUserCalendar, RoutingKeyCalendarSynced),
		UserID:    userID,
		Provider:  provider,
		Created:   created,
		Updated:   updated,
		Deleted:   deleted,
	}
}

// ProviderSyncFailedEvent is published when a provider could not be fetched or reconciled.
type ProviderSyncFailedEvent struct {
	sharedDomain.BaseEvent
	UserID   uuid.UUID    `json:"user_id"`
	Provider ProviderType `json:"provider"`
	Kind     string       `json:"kind"`
	Message  string       `json:"message"`
}

// NewProviderSyncFailedEvent creates a provider sync failed event.
func NewProviderSyncFailedEvent(userID uuid.UUID, provider ProviderType, err error) ProviderSyncFailedEvent {
	return ProviderSyncFailedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(userID, AggregateTypeUserCalendar, RoutingKeyProviderSyncFailed),
		UserID:    userID,
		Provider:  provider,
		Kind:      KindName(err),
		Message:   err.Error(),
	}
}

// ConflictDetectedEvent is published for every newly recorded conflict.
type ConflictDetectedEvent struct {
	sharedDomain.BaseEvent
	UserID     uuid.UUID `json:"user_id"`
	ConflictID uuid.UUID `json:"conflict_id"`
	EventIDA   uuid.UUID `json:"event_id_a"`
	EventIDB   uuid.UUID `json:"event_id_b"`
}

// NewConflictDetectedEvent creates a conflict detected event.
func NewConflictDetectedEvent(record ConflictRecord) ConflictDetectedEvent {
	return ConflictDetectedEvent{
		BaseEvent:  sharedDomain.NewBaseEvent(record.UserID, AggregateTypeUserCalendar, RoutingKeyConflictDetected),
		UserID:     record.UserID,
		ConflictID: record.ID,
		EventIDA:   record.EventIDA,
		EventIDB:   record.EventIDB,
	}
}

// ProviderDisconnectedEvent is published when a user disconnects a provider.
type ProviderDisconnectedEvent struct {
	sharedDomain.BaseEvent
	UserID        uuid.UUID    `json:"user_id"`
	Provider      ProviderType `json:"provider"`
	EventsRemoved int          `json:"events_removed"`
}

// NewProviderDisconnectedEvent creates a provider disconnected event.
func NewProviderDisconnectedEvent(userID uuid.UUID, provider ProviderType, removed int) ProviderDisconnectedEvent {
	return ProviderDisconnectedEvent{
		BaseEvent:     sharedDomain.NewBaseEvent(userID, AggregateTypeUserCalendar, RoutingKeyProviderDisconnected),
		UserID:        userID,
		Provider:      provider,
		EventsRemoved: removed,
	}
}
