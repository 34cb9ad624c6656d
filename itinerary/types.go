// Package itinerary implements the progressive AI itinerary pipeline:
// generation, enrichment, the event-stream protocol, and the client-side
// assembler that reconciles streamed events into one canonical document.
package itinerary

import (
	"encoding/json"
	"fmt"
)

// Document is the itinerary produced by one generation run and the shape
// persisted for later loads.
type Document struct {
	Title        string        `json:"title"`
	Summary      string        `json:"summary"`
	TripTips     []string      `json:"tripTips,omitempty"`
	CityOverview *CityOverview `json:"cityOverview,omitempty"`
	Days         []Day         `json:"days"`
}

// CityOverview is the destination-level introduction shown above the days.
type CityOverview struct {
	Intro      string   `json:"intro"`
	Highlights []string `json:"highlights,omitempty"`
	PhotoURL   string   `json:"photoUrl,omitempty"`
}

// Day is one itinerary day. Index is the stable identity used to
// deduplicate retransmissions; Id is opaque and may change between
// retransmissions of the same index.
type Day struct {
	Id       string   `json:"id"`
	Index    int      `json:"index"`
	Date     string   `json:"date,omitempty"`
	Title    string   `json:"title"`
	Theme    string   `json:"theme,omitempty"`
	Overview string   `json:"overview,omitempty"`
	Photos   []string `json:"photos,omitempty"`
	Slots    []Slot   `json:"slots"`
}

// Slot labels, in within-day order.
const (
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
	SlotEvening   = "evening"
)

type Slot struct {
	Label   string     `json:"label"`
	Summary string     `json:"summary,omitempty"`
	Places  []Activity `json:"places"`
}

// Activity is a single place or thing to do inside a slot.
type Activity struct {
	Id          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	PhotoURL    string   `json:"photoUrl,omitempty"`
	PlaceId     string   `json:"placeId,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Visited     bool     `json:"visited,omitempty"`
}

// Key identifies one document: a trip, an optional segment within it, and
// the language it was generated in.
type Key struct {
	TripId   string
	Segment  string
	Language string
}

func (k Key) String() string {
	return k.TripId + "/" + k.Segment + "/" + k.Language
}

// EventKind discriminates stream events on the wire.
type EventKind string

const (
	EventTitle               EventKind = "title"
	EventSummary             EventKind = "summary"
	EventDay                 EventKind = "day"
	EventDayUpdated          EventKind = "day-updated"
	EventTripTips            EventKind = "tripTips"
	EventCityOverview        EventKind = "cityOverview"
	EventCityOverviewMissing EventKind = "cityOverview_missing"
	EventComplete            EventKind = "complete"
	EventError               EventKind = "error"
)

// Terminal reports whether no further events may follow this kind.
func (k EventKind) Terminal() bool {
	return k == EventComplete || k == EventError
}

// StreamEvent is the typed union carried on the wire as {type, data}.
// Exactly one payload field is set, matching Type.
type StreamEvent struct {
	Type     EventKind
	Text     string      // title, summary
	Day      *Day        // day, day-updated
	Tips     []string    // tripTips
	Overview *CityOverview
	Document *Document // complete
	Err      *StreamError
}

// StreamError is the payload of an error event.
type StreamError struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type wireEvent struct {
	Type EventKind       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON renders the {type, data} wire shape.
func (ev StreamEvent) MarshalJSON() ([]byte, error) {
	var payload any
	switch ev.Type {
	case EventTitle, EventSummary:
		payload = ev.Text
	case EventDay, EventDayUpdated:
		payload = ev.Day
	case EventTripTips:
		payload = ev.Tips
	case EventCityOverview:
		payload = ev.Overview
	case EventCityOverviewMissing:
		payload = nil
	case EventComplete:
		payload = ev.Document
	case EventError:
		payload = ev.Err
	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Type)
	}

	out := wireEvent{Type: ev.Type}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		out.Data = data
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire shape back into the typed union.
func (ev *StreamEvent) UnmarshalJSON(data []byte) error {
	var raw wireEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*ev = StreamEvent{Type: raw.Type}
	switch raw.Type {
	case EventTitle, EventSummary:
		return json.Unmarshal(raw.Data, &ev.Text)
	case EventDay, EventDayUpdated:
		ev.Day = &Day{}
		return json.Unmarshal(raw.Data, ev.Day)
	case EventTripTips:
		return json.Unmarshal(raw.Data, &ev.Tips)
	case EventCityOverview:
		ev.Overview = &CityOverview{}
		return json.Unmarshal(raw.Data, ev.Overview)
	case EventCityOverviewMissing:
		return nil
	case EventComplete:
		ev.Document = &Document{}
		return json.Unmarshal(raw.Data, ev.Document)
	case EventError:
		ev.Err = &StreamError{}
		return json.Unmarshal(raw.Data, ev.Err)
	default:
		return fmt.Errorf("unknown event kind %q", raw.Type)
	}
}
