package routes

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"backend/itinerary"

	"github.com/patrickmn/go-cache"
	"github.com/pocketbase/pocketbase/core"
)

// AIItinerary serves progressive itinerary generation: an NDJSON event
// stream (with a single-payload fallback), loads of the persisted
// document, and a calendar export.
type AIItinerary struct {
	store    itinerary.Store
	limiter  itinerary.UsageLimiter
	resolver itinerary.PhotoResolver
	inflight *cache.Cache
}

const defaultDailyLimit = 5

// NewAIItinerary wires the handlers. The photo resolver is optional; when
// nil only saved-place photos are reused.
func NewAIItinerary(app core.App, resolver itinerary.PhotoResolver) *AIItinerary {
	limit := defaultDailyLimit
	if v, err := strconv.Atoi(os.Getenv("AI_ITINERARY_DAILY_LIMIT")); err == nil && v > 0 {
		limit = v
	}
	return &AIItinerary{
		store:    NewStore(app),
		limiter:  itinerary.NewCacheLimiter(limit, 24*time.Hour),
		resolver: resolver,
		inflight: cache.New(10*time.Minute, time.Minute),
	}
}

func documentKey(e *core.RequestEvent, trip *core.Record) itinerary.Key {
	lang := e.Request.URL.Query().Get("lang")
	if lang == "" {
		lang = "en"
	}
	return itinerary.Key{
		TripId:   trip.Id,
		Segment:  e.Request.URL.Query().Get("segment"),
		Language: lang,
	}
}

func tripFromEvent(e *core.RequestEvent) (*core.Record, bool) {
	trip, ok := e.Get("trip").(*core.Record)
	return trip, ok
}

// Get returns the last persisted document for the key, or 404 when none
// exists yet (the client treats that as "generate now", not an error).
func (h *AIItinerary) Get(e *core.RequestEvent) error {
	trip, ok := tripFromEvent(e)
	if !ok {
		return e.JSON(http.StatusBadRequest, map[string]string{"error": "trip context is missing"})
	}

	doc, err := h.store.Load(e.Request.Context(), documentKey(e, trip))
	if errors.Is(err, itinerary.ErrNotFound) {
		return e.JSON(http.StatusNotFound, map[string]string{"error": "no itinerary generated yet"})
	}
	if err != nil {
		e.App.Logger().Error("AI itinerary load failed", "error", err, "tripId", trip.Id)
		return e.JSON(http.StatusInternalServerError, map[string]string{"error": "unable to load the itinerary"})
	}
	return e.JSON(http.StatusOK, doc)
}

// Generate runs one generation and streams its construction as NDJSON
// events. With ?stream=false (or on transports that cannot stream) it runs
// to completion and returns the final document as one JSON body.
func (h *AIItinerary) Generate(e *core.RequestEvent) error {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return e.JSON(http.StatusServiceUnavailable, map[string]string{"error": "OPENAI_API_KEY is not configured on the server"})
	}

	trip, ok := tripFromEvent(e)
	if !ok {
		return e.JSON(http.StatusBadRequest, map[string]string{"error": "trip context is missing"})
	}
	key := documentKey(e, trip)

	memberId := ""
	if e.Auth != nil {
		memberId = e.Auth.Id
	}
	usage, err := h.limiter.Allow(e.Request.Context(), trip.Id, memberId)
	if err != nil {
		e.App.Logger().Error("AI itinerary limit check failed", "error", err, "tripId", trip.Id)
		return e.JSON(http.StatusInternalServerError, map[string]string{"error": "unable to check the generation limit"})
	}
	if !usage.Allowed {
		return e.JSON(http.StatusTooManyRequests, map[string]string{
			"error": "generation limit reached",
			"code":  "limit",
			"used":  strconv.Itoa(usage.Used),
			"limit": strconv.Itoa(usage.Limit),
		})
	}

	// One run per document key at a time; duplicate triggers are
	// rejected, never double-run.
	if err := h.inflight.Add(key.String(), true, cache.DefaultExpiration); err != nil {
		return e.JSON(http.StatusConflict, map[string]string{"error": "a generation for this itinerary is already running"})
	}
	defer h.inflight.Delete(key.String())

	tc := TripContextFromRecord(e.App, trip)
	tc.Language = key.Language
	if tc.DayCount == 0 {
		return e.JSON(http.StatusBadRequest, map[string]string{"error": "trip has no dates to plan"})
	}

	pipeline := &itinerary.Pipeline{
		Generator: &itinerary.Generator{
			Completer: itinerary.NewOpenAICompleter(apiKey, os.Getenv("AI_ITINERARY_MODEL")),
		},
		Classifier:  itinerary.NewKeywordClassifier(),
		Resolver:    h.resolver,
		SavedPlaces: savedPlacesForTrip(e.App, trip),
		Logger:      e.App.Logger(),
	}

	if e.Request.URL.Query().Get("stream") == "false" {
		return h.generateOnce(e, pipeline, tc, key)
	}

	enc, err := itinerary.NewEncoder(e.Response)
	if err != nil {
		return h.generateOnce(e, pipeline, tc, key)
	}

	doc, runErr := pipeline.Run(e.Request.Context(), tc, enc.Encode)
	if runErr != nil {
		e.App.Logger().Error("AI itinerary generation failed", "error", runErr, "tripId", trip.Id)
		// Either generation failed before any event went out, or the
		// client went away mid-stream; in the latter case the write
		// fails and that is fine.
		_ = enc.Encode(itinerary.StreamEvent{
			Type: itinerary.EventError,
			Err:  &itinerary.StreamError{Message: "itinerary generation failed", Details: streamErrorDetails(runErr)},
		})
		return nil
	}

	if err := h.store.Save(e.Request.Context(), key, *doc); err != nil {
		// The streamed document stays valid for this session.
		e.App.Logger().Error("AI itinerary save failed", "error", err, "tripId", trip.Id)
	}
	return nil
}

// generateOnce is the non-streaming fallback: run to completion and return
// one payload shaped like the complete event's data.
func (h *AIItinerary) generateOnce(e *core.RequestEvent, pipeline *itinerary.Pipeline, tc itinerary.TripContext, key itinerary.Key) error {
	doc, err := pipeline.Run(e.Request.Context(), tc, nil)
	if err != nil {
		e.App.Logger().Error("AI itinerary generation failed", "error", err, "tripId", tc.TripId)
		status := http.StatusBadGateway
		var ve *itinerary.ValidationError
		if errors.As(err, &ve) {
			status = http.StatusUnprocessableEntity
		}
		return e.JSON(status, map[string]string{"error": "itinerary generation failed"})
	}

	if err := h.store.Save(e.Request.Context(), key, *doc); err != nil {
		e.App.Logger().Error("AI itinerary save failed", "error", err, "tripId", tc.TripId)
	}
	return e.JSON(http.StatusOK, doc)
}

// Calendar exports the persisted itinerary as an ICS calendar.
func (h *AIItinerary) Calendar(e *core.RequestEvent) error {
	trip, ok := tripFromEvent(e)
	if !ok {
		return e.JSON(http.StatusBadRequest, map[string]string{"error": "trip context is missing"})
	}

	key := documentKey(e, trip)
	doc, err := h.store.Load(e.Request.Context(), key)
	if errors.Is(err, itinerary.ErrNotFound) {
		return e.JSON(http.StatusNotFound, map[string]string{"error": "no itinerary generated yet"})
	}
	if err != nil {
		e.App.Logger().Error("AI itinerary load failed", "error", err, "tripId", trip.Id)
		return e.JSON(http.StatusInternalServerError, map[string]string{"error": "unable to load the itinerary"})
	}

	e.Response.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	e.Response.Header().Set("Content-Disposition", `attachment; filename="itinerary.ics"`)
	return e.String(http.StatusOK, itinerary.ExportCalendar(key, *doc))
}

func streamErrorDetails(err error) string {
	var ve *itinerary.ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ""
}
