package itinerary

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var slotTitleCaser = cases.Title(language.English)

// ExportCalendar renders a finished itinerary as an ICS calendar with one
// all-day event per day. Days without a parseable date are skipped.
func ExportCalendar(key Key, doc Document) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//surmai//ai-itinerary//EN")
	cal.SetXWRCalName(doc.Title)

	now := time.Now().UTC()
	for _, day := range doc.Days {
		date, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			continue
		}
		uid := fmt.Sprintf("%s-day-%d@surmai", key.TripId, day.Index)
		event := cal.AddEvent(uid)
		event.SetCreatedTime(now)
		event.SetDtStampTime(now)
		event.SetAllDayStartAt(date)
		event.SetAllDayEndAt(date.AddDate(0, 0, 1))
		event.SetSummary(dayEventSummary(doc, day))
		if desc := dayEventDescription(day); desc != "" {
			event.SetDescription(desc)
		}
	}
	return cal.Serialize()
}

func dayEventSummary(doc Document, day Day) string {
	title := strings.TrimSpace(day.Title)
	if title == "" {
		title = fmt.Sprintf("Day %d", day.Index+1)
	}
	if doc.Title == "" {
		return title
	}
	return doc.Title + ": " + title
}

func dayEventDescription(day Day) string {
	var parts []string
	if day.Overview != "" {
		parts = append(parts, day.Overview)
	}
	for _, slot := range day.Slots {
		if len(slot.Places) == 0 {
			continue
		}
		names := make([]string, 0, len(slot.Places))
		for _, p := range slot.Places {
			names = append(names, p.Name)
		}
		parts = append(parts, fmt.Sprintf("%s: %s", slotTitleCaser.String(slot.Label), strings.Join(names, ", ")))
	}
	return strings.Join(parts, "\n")
}
