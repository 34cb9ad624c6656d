package itinerary

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Status is the assembler lifecycle state.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusLoading      Status = "loading"
	StatusGenerating   Status = "generating"
	StatusLoaded       Status = "loaded"
	StatusError        Status = "error"
	StatusLimitReached Status = "limitReached"
)

// Gate controls whether streamed days may become visible in the canonical
// document. Days arriving while the gate is pending are buffered and
// flushed exactly once when the gate resolves.
type Gate int

const (
	GatePending Gate = iota
	GateReady
	GateMissing
)

// BackfillFunc is the post-completion maintenance hook (image backfill).
// Its failures are logged and swallowed; it never blocks loaded.
type BackfillFunc func(ctx context.Context, doc Document) error

// Assembler reconciles a sequence of possibly out-of-order, duplicated, or
// partial stream events into one canonical document. It maintains three
// views: draft (permissive, everything seen), buffer (days held while the
// overview gate is pending), and canonical (what the user sees).
//
// Day identity is the index: canonical holds exactly one day per index,
// sorted ascending, and the most recently received day for an index wins.
type Assembler struct {
	mu sync.Mutex

	status    Status
	draft     Document
	buffer    []Day
	canonical Document
	gate      Gate
	flushed   bool
	notice    string
	lastErr   *StreamError

	log      *slog.Logger
	backfill BackfillFunc

	backfillDelay   time.Duration
	backfillRetries int
}

func NewAssembler(log *slog.Logger) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{
		status:          StatusIdle,
		gate:            GatePending,
		log:             log,
		backfillDelay:   2 * time.Second,
		backfillRetries: 3,
	}
}

// SetBackfill installs the post-completion maintenance task.
func (a *Assembler) SetBackfill(fn BackfillFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.backfill = fn
}

func (a *Assembler) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Canonical returns a copy of the user-visible document.
func (a *Assembler) Canonical() Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyDocument(a.canonical)
}

// Draft returns a copy of the permissive accumulation of all fields seen.
func (a *Assembler) Draft() Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyDocument(a.draft)
}

// Notice returns the non-fatal banner message, if any.
func (a *Assembler) Notice() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notice
}

// Err returns the fatal stream error when status is error.
func (a *Assembler) Err() *StreamError {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

func (a *Assembler) Gate() Gate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gate
}

// StartLoading marks a persisted-document fetch in progress.
func (a *Assembler) StartLoading() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = StatusLoading
}

// StartGenerating marks a generation stream in progress.
func (a *Assembler) StartGenerating() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = StatusGenerating
}

// LoadPersisted installs a previously persisted document without
// regeneration: loaded is reachable directly from loading.
func (a *Assembler) LoadPersisted(doc Document) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.draft = copyDocument(doc)
	a.canonical = copyDocument(doc)
	a.gate = GateReady
	a.flushed = true
	a.status = StatusLoaded
}

// MarkLimitReached enters the distinct, non-retryable terminal state used
// when the usage-limit collaborator denies regeneration.
func (a *Assembler) MarkLimitReached() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = StatusLimitReached
	a.lastErr = &StreamError{Message: ErrLimitReached.Error()}
}

// Apply runs one state-machine transition. The read loop is strictly
// sequential, so calls arrive one at a time.
func (a *Assembler) Apply(ev StreamEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.Type {
	case EventTitle:
		a.draft.Title = ev.Text
		a.canonical.Title = ev.Text
	case EventSummary:
		a.draft.Summary = ev.Text
		a.canonical.Summary = ev.Text
	case EventTripTips:
		a.draft.TripTips = append([]string(nil), ev.Tips...)
		a.canonical.TripTips = append([]string(nil), ev.Tips...)
	case EventDay:
		if ev.Day == nil {
			return
		}
		a.applyDay(*ev.Day)
	case EventDayUpdated:
		if ev.Day == nil {
			return
		}
		a.applyDayUpdated(*ev.Day)
	case EventCityOverview:
		a.gate = GateReady
		if ev.Overview != nil {
			ov := *ev.Overview
			a.draft.CityOverview = &ov
			ov2 := *ev.Overview
			a.canonical.CityOverview = &ov2
		}
		a.flushBuffer()
	case EventCityOverviewMissing:
		a.gate = GateMissing
		a.flushBuffer()
	case EventComplete:
		a.applyComplete(ev.Document)
	case EventError:
		a.applyError(ev.Err)
	}
}

func (a *Assembler) applyDay(day Day) {
	upsertDayById(&a.draft.Days, day)

	if a.gate == GatePending {
		// Buffered, not visible yet. One entry per id-or-index, in
		// arrival order; last received wins.
		for i := range a.buffer {
			if a.buffer[i].Id == day.Id || a.buffer[i].Index == day.Index {
				a.buffer[i] = day
				return
			}
		}
		a.buffer = append(a.buffer, day)
		return
	}

	upsertDayByIndex(&a.canonical.Days, day)
}

// applyDayUpdated handles the photo-correction event. The update may
// arrive before its originating day event; then it simply becomes the
// day at that index.
func (a *Assembler) applyDayUpdated(day Day) {
	upsertDayById(&a.draft.Days, day)

	if a.gate == GatePending {
		for i := range a.buffer {
			if a.buffer[i].Id == day.Id || a.buffer[i].Index == day.Index {
				a.buffer[i].Slots = day.Slots
				a.buffer[i].Photos = day.Photos
				return
			}
		}
		a.buffer = append(a.buffer, day)
		return
	}

	for i := range a.canonical.Days {
		if a.canonical.Days[i].Id == day.Id {
			a.canonical.Days[i].Slots = day.Slots
			a.canonical.Days[i].Photos = day.Photos
			return
		}
	}
	for i := range a.canonical.Days {
		if a.canonical.Days[i].Index == day.Index {
			a.canonical.Days[i].Slots = day.Slots
			a.canonical.Days[i].Photos = day.Photos
			return
		}
	}
	upsertDayByIndex(&a.canonical.Days, day)
}

// flushBuffer drains buffered days into canonical exactly once, in
// arrival order, through the same index-identity merge.
func (a *Assembler) flushBuffer() {
	if a.flushed {
		return
	}
	a.flushed = true
	for _, day := range a.buffer {
		upsertDayByIndex(&a.canonical.Days, day)
	}
	a.buffer = nil
}

func (a *Assembler) applyComplete(doc *Document) {
	if doc == nil || !validTerminalPayload(doc) {
		// A malformed terminal payload is a generation failure.
		a.applyError(&StreamError{Message: "generation returned an invalid itinerary"})
		return
	}

	// Buffered days land first, then the terminal payload wins per index.
	a.flushBuffer()
	if a.gate == GatePending {
		a.gate = GateMissing
		if doc.CityOverview != nil {
			a.gate = GateReady
		}
	}

	a.canonical.Title = doc.Title
	a.canonical.Summary = doc.Summary
	if len(doc.TripTips) > 0 {
		a.canonical.TripTips = append([]string(nil), doc.TripTips...)
	}
	if doc.CityOverview != nil {
		ov := *doc.CityOverview
		a.canonical.CityOverview = &ov
	}
	for _, day := range normalizeDays(doc.Days) {
		upsertDayByIndex(&a.canonical.Days, day)
	}
	a.draft = copyDocument(a.canonical)
	a.status = StatusLoaded

	if a.backfill != nil {
		go a.runBackfill(copyDocument(a.canonical))
	}
}

func (a *Assembler) applyError(se *StreamError) {
	if se == nil {
		se = &StreamError{Message: "itinerary generation failed"}
	}
	if len(a.canonical.Days) > 0 {
		// Partial itinerary survives; the failure degrades to a banner.
		a.notice = se.Message
		a.status = StatusLoaded
		return
	}
	a.canonical = Document{}
	a.lastErr = se
	a.status = StatusError
}

// runBackfill is fire-and-forget: bounded retries, failures logged and
// swallowed, never surfaced to the session.
func (a *Assembler) runBackfill(doc Document) {
	time.Sleep(a.backfillDelay)
	for attempt := 1; attempt <= a.backfillRetries; attempt++ {
		err := a.backfill(context.Background(), doc)
		if err == nil {
			return
		}
		a.log.Warn("itinerary image backfill failed", "attempt", attempt, "error", err)
		if attempt < a.backfillRetries {
			time.Sleep(a.backfillDelay)
		}
	}
}

// Consume is the strictly sequential read loop. It decodes NDJSON events
// and applies them until a terminal event, EOF, or cancellation. A
// transport-level failure mid-stream is handled exactly like a received
// error event, using whatever canonical state already exists. After
// cancellation no event mutates state.
func (a *Assembler) Consume(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := DecodeEvent(line)
		if err != nil {
			a.Apply(StreamEvent{Type: EventError, Err: &StreamError{Message: "itinerary stream was interrupted"}})
			return err
		}
		a.Apply(ev)
		if ev.Type.Terminal() {
			return nil
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	// EOF or read failure without a terminal event.
	err := scanner.Err()
	a.Apply(StreamEvent{Type: EventError, Err: &StreamError{Message: "itinerary stream ended unexpectedly"}})
	return err
}

func upsertDayById(days *[]Day, day Day) {
	for i := range *days {
		if (*days)[i].Id == day.Id {
			(*days)[i] = day
			return
		}
	}
	*days = append(*days, day)
}

func upsertDayByIndex(days *[]Day, day Day) {
	for i := range *days {
		if (*days)[i].Index == day.Index {
			(*days)[i] = day
			sortDays(*days)
			return
		}
	}
	*days = append(*days, day)
	sortDays(*days)
}

func sortDays(days []Day) {
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Index < days[j].Index
	})
}

// normalizeDays reduces a payload to one day per index, last wins,
// ascending.
func normalizeDays(days []Day) []Day {
	byIndex := map[int]Day{}
	for _, d := range days {
		byIndex[d.Index] = d
	}
	out := make([]Day, 0, len(byIndex))
	for _, d := range byIndex {
		out = append(out, d)
	}
	sortDays(out)
	return out
}

func validTerminalPayload(doc *Document) bool {
	return doc.Title != "" && doc.Summary != "" && doc.Days != nil
}

func copyDocument(doc Document) Document {
	out := doc
	out.TripTips = append([]string(nil), doc.TripTips...)
	if doc.CityOverview != nil {
		ov := *doc.CityOverview
		ov.Highlights = append([]string(nil), doc.CityOverview.Highlights...)
		out.CityOverview = &ov
	}
	out.Days = make([]Day, len(doc.Days))
	for i, d := range doc.Days {
		out.Days[i] = copyDay(d)
	}
	return out
}

func copyDay(d Day) Day {
	out := d
	out.Photos = append([]string(nil), d.Photos...)
	out.Slots = make([]Slot, len(d.Slots))
	for i, s := range d.Slots {
		cs := s
		cs.Places = append([]Activity(nil), s.Places...)
		for j := range cs.Places {
			cs.Places[j].Tags = append([]string(nil), s.Places[j].Tags...)
		}
		out.Slots[i] = cs
	}
	return out
}
