package itinerary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCalendar(t *testing.T) {
	doc := Document{
		Title:   "Lisbon Trip",
		Summary: "Two days",
		Days: []Day{
			{Index: 0, Id: "a", Date: "2026-05-01", Title: "Old Town", Overview: "Start in Alfama.",
				Slots: []Slot{{Label: SlotMorning, Places: []Activity{{Name: "Castelo"}, {Name: "Alfama"}}}}},
			{Index: 1, Id: "b", Date: "2026-05-02", Title: "Riverside"},
			{Index: 2, Id: "c", Title: "No date, skipped"},
		},
	}

	ics := ExportCalendar(Key{TripId: "trip1", Language: "en"}, doc)

	assert.Equal(t, 2, strings.Count(ics, "BEGIN:VEVENT"))
	assert.Contains(t, ics, "Lisbon Trip: Old Town")
	assert.Contains(t, ics, "Lisbon Trip: Riverside")
	assert.NotContains(t, ics, "No date")
	assert.Contains(t, ics, "trip1-day-0@surmai")
	assert.Contains(t, ics, "Morning: Castelo")
}

func TestExportCalendarEmptyDocument(t *testing.T) {
	ics := ExportCalendar(Key{TripId: "t"}, Document{Title: "T"})
	require.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Equal(t, 0, strings.Count(ics, "BEGIN:VEVENT"))
}
