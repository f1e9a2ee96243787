package domain_test

import (
	"testing"

	"github.com/felixgeelhaar/rendezvous/internal/availability/domain"
	"github.com/stretchr/testify/assert"
)

func TestMergeAdjacent(t *testing.T) {
	slots := []domain.TimeSlot{
		{Start: monday(9, 0), End: monday(9, 30)},
		{Start: monday(9, 30), End: monday(10, 0)},
		{Start: monday(11, 0), End: monday(11, 30)},
	}

	runs := domain.MergeAdjacent(slots)

	assert.Equal(t, []domain.TimeSlot{
		{Start: monday(9, 0), End: monday(10, 0)},
		{Start: monday(11, 0), End: monday(11, 30)},
	}, runs)
	assert.Nil(t, domain.MergeAdjacent(nil))
}

func TestDropShortRuns(t *testing.T) {
	slots := []domain.TimeSlot{
		{Start: monday(9, 0), End: monday(9, 30)},
		{Start: monday(9, 30), End: monday(10, 0)},
		{Start: monday(11, 0), End: monday(11, 30)},
	}

	kept := domain.DropShortRuns(slots, 60)

	assert.Equal(t, slots[:2], kept)
	assert.Equal(t, slots, domain.DropShortRuns(slots, 0))
}

func TestSuggestWindows(t *testing.T) {
	prefs := workdayPrefs(9, 17)
	prefs.MinSlotMinutes = 60
	prefs.MaxSlotMinutes = 240
	slots := domain.ComputeSlots(prefs, nil, monday(0, 0), monday(24, 0))
	slots = append(slots, domain.TimeSlot{Start: monday(18, 0), End: monday(18, 30)})

	windows := domain.SuggestWindows(slots, prefs)

	assert.Equal(t, []domain.TimeSlot{
		{Start: monday(9, 0), End: monday(13, 0)},
		{Start: monday(13, 0), End: monday(17, 0)},
	}, windows)
}

func TestSortSlots(t *testing.T) {
	slots := []domain.TimeSlot{
		{Start: monday(11, 0), End: monday(11, 30)},
		{Start: monday(9, 0), End: monday(9, 30)},
	}
	domain.SortSlots(slots)
	assert.Equal(t, monday(9, 0), slots[0].Start)
}
