// Package importer loads availability preferences from YAML documents.
//
// A document lists one entry per user:
//
//	preferences:
//	  - user_id: 5f0c...
//	    preferred_days: [1, 2, 3, 4, 5]
//	    daily_window: {start: "09:00", end: "17:00"}
//	    granularity_minutes: 30
//	    time_zone: Europe/Berlin
//
// Documents are validated against an embedded JSON schema before anything
// is written.
package importer

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/availability/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/application"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/security"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed preferences.schema.json
var schemaJSON []byte

const schemaURL = "rendezvous://preferences.schema.json"

type document struct {
	Preferences []entry `json:"preferences"`
}

type entry struct {
	UserID      string `json:"user_id"`
	Days        []int  `json:"preferred_days"`
	DailyWindow struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"daily_window"`
	Granularity      *int   `json:"granularity_minutes"`
	MinSlotMinutes   *int   `json:"min_slot_minutes"`
	MaxSlotMinutes   *int   `json:"max_slot_minutes"`
	TimeZone         string `json:"time_zone"`
	HideEventDetails bool   `json:"hide_event_details"`
}

// Importer validates preference documents and saves them.
type Importer struct {
	repo   domain.PreferencesRepository
	uow    application.UnitOfWork
	schema *jsonschema.Schema
	logger *slog.Logger
}

// New compiles the schema and creates an importer. uow may be nil.
func New(repo domain.PreferencesRepository, uow application.UnitOfWork, logger *slog.Logger) (*Importer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse preferences schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add preferences schema: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile preferences schema: %w", err)
	}
	return &Importer{repo: repo, uow: uow, schema: schema, logger: logger}, nil
}

// ImportFile reads and imports the YAML file at path.
func (i *Importer) ImportFile(ctx context.Context, path string) ([]domain.AvailabilityPreferences, error) {
	data, err := security.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return i.Import(ctx, bytes.NewReader(data))
}

// Import validates the document and saves every entry in one transaction.
func (i *Importer) Import(ctx context.Context, r io.Reader) ([]domain.AvailabilityPreferences, error) {
	prefs, err := i.Parse(r)
	if err != nil {
		return nil, err
	}

	err = application.WithUnitOfWork(ctx, i.uow, func(txCtx context.Context) error {
		for _, p := range prefs {
			if err := i.repo.Save(txCtx, p); err != nil {
				return fmt.Errorf("save preferences for %s: %w", p.UserID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	i.logger.Info("imported availability preferences", "count", len(prefs))
	return prefs, nil
}

// Parse decodes and validates a document without saving it.
func (i *Importer) Parse(r io.Reader) ([]domain.AvailabilityPreferences, error) {
	var raw any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	// yaml and the schema validator disagree on number types; a JSON round
	// trip gives the validator json.Number values.
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert document: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(asJSON))
	if err != nil {
		return nil, fmt.Errorf("convert document: %w", err)
	}
	if err := i.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("invalid preferences document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(asJSON, &doc); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}

	now := time.Now().UTC()
	prefs := make([]domain.AvailabilityPreferences, 0, len(doc.Preferences))
	for n, e := range doc.Preferences {
		p, err := e.toDomain(now)
		if err != nil {
			return nil, fmt.Errorf("preferences[%d]: %w", n, err)
		}
		prefs = append(prefs, p)
	}
	return prefs, nil
}

func (e entry) toDomain(now time.Time) (domain.AvailabilityPreferences, error) {
	userID, err := uuid.Parse(e.UserID)
	if err != nil {
		return domain.AvailabilityPreferences{}, fmt.Errorf("user_id: %w", err)
	}

	p := domain.DefaultPreferences(userID)
	if e.Days != nil {
		p.PreferredWeekdays = e.Days
	}
	if p.DailyWindowStart, err = clockMinutes(e.DailyWindow.Start); err != nil {
		return p, err
	}
	if p.DailyWindowEnd, err = clockMinutes(e.DailyWindow.End); err != nil {
		return p, err
	}
	if e.Granularity != nil {
		p.SlotGranularityMinutes = *e.Granularity
	}
	if e.MinSlotMinutes != nil {
		p.MinSlotMinutes = *e.MinSlotMinutes
	}
	if e.MaxSlotMinutes != nil {
		p.MaxSlotMinutes = *e.MaxSlotMinutes
	}
	if e.TimeZone != "" {
		p.TimeZone = e.TimeZone
	}
	p.HideEventDetails = e.HideEventDetails
	p.PreferredWeekdays = p.NormalizedWeekdays()
	p.UpdatedAt = now

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// clockMinutes parses "HH:MM" into minutes after midnight.
func clockMinutes(s string) (int, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	minutes, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return hours*60 + minutes, nil
}
