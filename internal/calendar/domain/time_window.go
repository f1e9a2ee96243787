package domain

import (
	"errors"
	"time"
)

// ErrInvalidWindow is returned when a window's end is not after its start.
var ErrInvalidWindow = errors.New("window end must be after start")

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow validates and builds a window.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	if !end.After(start) {
		return TimeWindow{}, ErrInvalidWindow
	}
	return TimeWindow{Start: start.UTC(), End: end.UTC()}, nil
}

// Contains reports whether t lies in [Start, End).
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Overlaps reports a strict overlap. Windows that only touch do not overlap.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return Overlaps(w.Start, w.End, other.Start, other.End)
}

// Duration returns the window length.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share any instant.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
