package itinerary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Encoder frames stream events as NDJSON on an HTTP response, flushing
// after each event. Once a terminal event (complete or error) is written,
// any further write is refused.
type Encoder struct {
	w        http.ResponseWriter
	flusher  http.Flusher
	terminal bool
}

// NewEncoder prepares the response for incremental delivery. It returns an
// error when the underlying transport cannot stream; callers should fall
// back to the single-payload response in that case.
func NewEncoder(w http.ResponseWriter) (*Encoder, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by transport")
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	return &Encoder{w: w, flusher: flusher}, nil
}

// Encode writes one event and flushes it to the client.
func (e *Encoder) Encode(ev StreamEvent) error {
	if e.terminal {
		return fmt.Errorf("event %q after terminal event", ev.Type)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(append(data, '\n')); err != nil {
		return err
	}
	e.flusher.Flush()
	if ev.Type.Terminal() {
		e.terminal = true
	}
	return nil
}

// DecodeEvent parses one NDJSON line into the typed event union.
func DecodeEvent(line []byte) (StreamEvent, error) {
	var ev StreamEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return StreamEvent{}, fmt.Errorf("decode stream event: %w", err)
	}
	return ev, nil
}

// EmitFunc receives pipeline progress events. A non-nil error aborts the
// run (typically the client went away).
type EmitFunc func(StreamEvent) error

// Pipeline bundles the generation collaborators for one run.
type Pipeline struct {
	Generator   *Generator
	Classifier  Classifier
	Resolver    PhotoResolver
	SavedPlaces []SavedPlace
	Logger      *slog.Logger
}

// Run executes one generation run: model call, enrichment passes, photo
// resolution. Progress is reported through emit as the document takes
// shape, ending with a complete event. The enriched document is returned
// either way; generation and validation failures are returned without any
// events having been emitted, so the caller can surface them as a stream
// error.
func (p *Pipeline) Run(ctx context.Context, tc TripContext, emit EmitFunc) (*Document, error) {
	if emit == nil {
		emit = func(StreamEvent) error { return nil }
	}
	cls := p.Classifier
	if cls == nil {
		cls = NewKeywordClassifier()
	}

	doc, err := p.Generator.Generate(ctx, tc)
	if err != nil {
		return nil, err
	}

	EnrichDocument(doc, tc.Destination, cls)

	if err := emit(StreamEvent{Type: EventTitle, Text: doc.Title}); err != nil {
		return doc, err
	}
	if err := emit(StreamEvent{Type: EventSummary, Text: doc.Summary}); err != nil {
		return doc, err
	}
	for i := range doc.Days {
		day := doc.Days[i]
		if err := emit(StreamEvent{Type: EventDay, Day: &day}); err != nil {
			return doc, err
		}
	}
	if len(doc.TripTips) > 0 {
		if err := emit(StreamEvent{Type: EventTripTips, Tips: doc.TripTips}); err != nil {
			return doc, err
		}
	}

	// Photos resolve after the days have gone out; corrections ride on
	// day-updated events.
	if p.Resolver != nil || len(p.SavedPlaces) > 0 {
		before := activityPhotoCounts(doc)
		ResolvePhotos(ctx, doc, tc.City(), p.SavedPlaces, p.Resolver, NewDedupSets(), p.Logger)
		for i := range doc.Days {
			if activityPhotoCount(&doc.Days[i])+len(doc.Days[i].Photos) == before[i] {
				continue
			}
			day := doc.Days[i]
			if err := emit(StreamEvent{Type: EventDayUpdated, Day: &day}); err != nil {
				return doc, err
			}
		}
	}

	if doc.CityOverview != nil {
		if err := emit(StreamEvent{Type: EventCityOverview, Overview: doc.CityOverview}); err != nil {
			return doc, err
		}
	} else {
		if err := emit(StreamEvent{Type: EventCityOverviewMissing}); err != nil {
			return doc, err
		}
	}

	if err := emit(StreamEvent{Type: EventComplete, Document: doc}); err != nil {
		return doc, err
	}
	return doc, nil
}

func activityPhotoCounts(doc *Document) []int {
	counts := make([]int, len(doc.Days))
	for i := range doc.Days {
		counts[i] = activityPhotoCount(&doc.Days[i]) + len(doc.Days[i].Photos)
	}
	return counts
}

func activityPhotoCount(day *Day) int {
	n := 0
	for _, slot := range day.Slots {
		for _, a := range slot.Places {
			if a.PhotoURL != "" {
				n++
			}
		}
	}
	return n
}
