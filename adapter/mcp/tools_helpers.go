package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/rendezvous/pkg/observability"
	"github.com/google/uuid"
)

const (
	dateLayout  = "2006-01-02"
	defaultDays = 7
	maxDays     = 62
)

func parseUUID(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.UUID{}, errors.New("id is required")
	}
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}

// userOrDefault resolves an optional user_id argument.
func (h handlers) userOrDefault(value string) (uuid.UUID, error) {
	if value == "" {
		return h.app.CurrentUserID, nil
	}
	return parseUUID(value)
}

// dateRange returns [start, start+days) at UTC midnight, from today by default.
func dateRange(startDate string, days int) (time.Time, time.Time, error) {
	if days == 0 {
		days = defaultDays
	}
	if days < 0 || days > maxDays {
		return time.Time{}, time.Time{}, fmt.Errorf("days must be between 1 and %d", maxDays)
	}
	start := time.Now().UTC().Truncate(24 * time.Hour)
	if startDate != "" {
		parsed, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format, use YYYY-MM-DD: %w", err)
		}
		start = parsed
	}
	return start, start.AddDate(0, 0, days), nil
}

type healthDTO struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h handlers) health(ctx context.Context, _ struct{}) (healthDTO, error) {
	if h.app.Health == nil {
		return healthDTO{Status: string(observability.HealthStatusHealthy)}, nil
	}
	report := h.app.Health.GetOverallHealth(ctx)
	checks := make(map[string]string, len(report.Checks))
	for name, result := range report.Checks {
		checks[name] = string(result.Status)
	}
	return healthDTO{Status: string(report.Status), Checks: checks}, nil
}
