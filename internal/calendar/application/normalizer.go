package application

import (
	"errors"
	"strings"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/google/uuid"
)

// Layouts carrying their own offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"20060102T150405Z",
}

// Layouts interpreted in the RawTime's TimeZone. The first is Graph's.
var localLayouts = []string{
	"2006-01-02T15:04:05.0000000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"20060102T150405",
}

var dateLayouts = []string{
	"2006-01-02",
	"20060102",
}

var errNoTimestamp = errors.New("no timestamp")

// Normalizer turns provider events into canonical events.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize maps raw into the canonical Event owned by userID. Only an
// undeterminable start or end (or a missing provider ID) is an error; every
// vocabulary value falls back to busy/confirmed.
func (n *Normalizer) Normalize(provider domain.ProviderType, userID uuid.UUID, raw domain.RawEvent) (domain.Event, error) {
	if raw.ID == "" {
		return domain.Event{}, &domain.ParseError{Provider: provider, Field: "id"}
	}

	allDay := raw.AllDay || (raw.Start.DateTime == "" && raw.Start.Date != "")

	var start, end time.Time
	var err error
	if allDay {
		start, end, err = n.allDayBounds(raw)
	} else {
		start, end, err = n.timedBounds(raw)
	}
	if err != nil {
		return domain.Event{}, withEventID(err, provider, raw.ID)
	}
	if !end.After(start) {
		return domain.Event{}, &domain.ParseError{
			Provider:        provider,
			ProviderEventID: raw.ID,
			Field:           "end",
			Value:           end.Format(time.RFC3339),
			Err:             errors.New("end is not after start"),
		}
	}

	tz := raw.Start.TimeZone
	if tz == "" {
		tz = "UTC"
	}

	return domain.Event{
		ID:              domain.EventID(userID, provider, raw.ID),
		UserID:          userID,
		Provider:        provider,
		ProviderEventID: raw.ID,
		CalendarID:      raw.CalendarID,
		Title:           strings.TrimSpace(raw.Title),
		Description:     raw.Description,
		Location:        raw.Location,
		Start:           start,
		End:             end,
		IsAllDay:        allDay,
		Timezone:        tz,
		Availability:    MapAvailability(provider, raw.Transparency),
		Status:          MapStatus(raw.Status, raw.Cancelled),
		Recurring:       raw.Recurring,
	}, nil
}

func (n *Normalizer) timedBounds(raw domain.RawEvent) (time.Time, time.Time, error) {
	start, err := parseDateTime(raw.Start)
	if err != nil {
		return time.Time{}, time.Time{}, &domain.ParseError{Field: "start", Value: raw.Start.DateTime, Err: err}
	}
	end, err := parseDateTime(raw.End)
	if err != nil {
		return time.Time{}, time.Time{}, &domain.ParseError{Field: "end", Value: raw.End.DateTime, Err: err}
	}
	return start, end, nil
}

// allDayBounds spans local midnights in the event's zone. The provider end
// date is exclusive; a missing end or one not after the start covers one day.
func (n *Normalizer) allDayBounds(raw domain.RawEvent) (time.Time, time.Time, error) {
	loc := loadLocation(raw.Start.TimeZone)

	startDay, err := parseDay(raw.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, &domain.ParseError{Field: "start", Value: raw.Start.Date + raw.Start.DateTime, Err: err}
	}

	endDay := startDay.AddDate(0, 0, 1)
	if !raw.End.IsZero() {
		parsed, err := parseDay(raw.End, loc)
		if err != nil {
			return time.Time{}, time.Time{}, &domain.ParseError{Field: "end", Value: raw.End.Date + raw.End.DateTime, Err: err}
		}
		if parsed.After(startDay) {
			endDay = parsed
		}
	}
	return startDay.UTC(), endDay.UTC(), nil
}

func parseDateTime(t domain.RawTime) (time.Time, error) {
	value := strings.TrimSpace(t.DateTime)
	if value == "" {
		return time.Time{}, errNoTimestamp
	}
	for _, layout := range zonedLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	loc := loadLocation(t.TimeZone)
	for _, layout := range localLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp format")
}

// parseDay returns local midnight of the date carried by t.
func parseDay(t domain.RawTime, loc *time.Location) (time.Time, error) {
	if value := strings.TrimSpace(t.Date); value != "" {
		for _, layout := range dateLayouts {
			if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, errors.New("unrecognized date format")
	}
	value := strings.TrimSpace(t.DateTime)
	if value == "" {
		return time.Time{}, errNoTimestamp
	}
	for _, layout := range append(append([]string{}, localLayouts...), zonedLayouts...) {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			y, m, d := parsed.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp format")
}

// loadLocation resolves an IANA zone name, falling back to UTC for empty or
// unknown names (Graph may send Windows zone names).
func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func withEventID(err error, provider domain.ProviderType, id string) error {
	var pe *domain.ParseError
	if errors.As(err, &pe) {
		pe.Provider = provider
		pe.ProviderEventID = id
	}
	return err
}

// MapAvailability translates a provider's free/busy word. Unknown or empty
// values are busy.
func MapAvailability(provider domain.ProviderType, value string) domain.Availability {
	v := strings.ToLower(strings.TrimSpace(value))
	switch provider {
	case domain.ProviderMicrosoft:
		switch v {
		case "free":
			return domain.AvailabilityFree
		case "tentative":
			return domain.AvailabilityTentative
		}
	default:
		switch v {
		case "transparent", "free":
			return domain.AvailabilityFree
		case "tentative":
			return domain.AvailabilityTentative
		}
	}
	return domain.AvailabilityBusy
}

// MapStatus translates a provider status. Unknown values are confirmed.
func MapStatus(value string, cancelled bool) domain.EventStatus {
	if cancelled {
		return domain.StatusCancelled
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "cancelled", "canceled":
		return domain.StatusCancelled
	case "tentative":
		return domain.StatusTentative
	default:
		return domain.StatusConfirmed
	}
}
