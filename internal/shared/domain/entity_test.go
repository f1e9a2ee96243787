package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewBaseEntity(t *testing.T) {
	e := domain.NewBaseEntity()

	assert.NotEqual(t, uuid.Nil, e.ID())
	assert.False(t, e.CreatedAt().IsZero())
	assert.Equal(t, e.CreatedAt(), e.UpdatedAt())
}

func TestBaseEntity_Touch(t *testing.T) {
	created := time.Now().Add(-time.Hour).UTC()
	e := domain.RehydrateBaseEntity(uuid.New(), created, created)

	e.Touch()

	assert.Equal(t, created, e.CreatedAt())
	assert.True(t, e.UpdatedAt().After(created))
}
