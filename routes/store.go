package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"backend/itinerary"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

const itinerariesCollection = "ai_itineraries"

// pbStore persists one itinerary document per (trip, segment, language)
// in the ai_itineraries collection.
type pbStore struct {
	app core.App
}

func NewStore(app core.App) itinerary.Store {
	return &pbStore{app: app}
}

func (s *pbStore) Load(_ context.Context, key itinerary.Key) (*itinerary.Document, error) {
	record, err := s.find(key)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, itinerary.ErrNotFound
	}

	var doc itinerary.Document
	if err := record.UnmarshalJSONField("document", &doc); err != nil {
		return nil, fmt.Errorf("unmarshal persisted itinerary: %w", err)
	}
	return &doc, nil
}

func (s *pbStore) Save(_ context.Context, key itinerary.Key, doc itinerary.Document) error {
	record, err := s.find(key)
	if err != nil {
		return err
	}
	if record == nil {
		collection, err := s.app.FindCollectionByNameOrId(itinerariesCollection)
		if err != nil {
			return err
		}
		record = core.NewRecord(collection)
		record.Set("trip", key.TripId)
		record.Set("segment", key.Segment)
		record.Set("language", key.Language)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	record.Set("document", string(data))
	return s.app.Save(record)
}

func (s *pbStore) find(key itinerary.Key) (*core.Record, error) {
	records, err := s.app.FindAllRecords(itinerariesCollection,
		dbx.NewExp("trip = {:trip} AND segment = {:segment} AND language = {:language}", dbx.Params{
			"trip":     key.TripId,
			"segment":  key.Segment,
			"language": key.Language,
		}))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// TripContextFromRecord builds the generator input from a trip record.
func TripContextFromRecord(app core.App, trip *core.Record) itinerary.TripContext {
	tc := itinerary.TripContext{
		TripId:    trip.Id,
		StartDate: formatDay(trip.GetDateTime("startDate").Time()),
	}

	start := trip.GetDateTime("startDate").Time()
	end := trip.GetDateTime("endDate").Time()
	if !start.IsZero() && !end.After(start) {
		tc.DayCount = 1
	} else if !start.IsZero() {
		tc.DayCount = int(end.Sub(start).Hours()/24) + 1
	}

	if dest := firstDestination(app, trip); dest != nil {
		tc.Destination = dest.Name
		tc.Country = dest.Country
		tc.Latitude = parseCoord(dest.Latitude)
		tc.Longitude = parseCoord(dest.Longitude)
		if dest.Country != "" {
			tc.Destination = dest.Name + ", " + dest.Country
		}
	}
	if tc.Destination == "" {
		tc.Destination = trip.GetString("name")
	}

	tc.PrioritizedPlaces = parsePrioritizedPlaces(app, trip)
	return tc
}

type tripDestination struct {
	Name      string `json:"name"`
	Country   string `json:"countryName"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

func firstDestination(app core.App, trip *core.Record) *tripDestination {
	data := trip.GetString("destinations")
	if strings.TrimSpace(data) == "" {
		return nil
	}

	var raw []tripDestination
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		app.Logger().Warn("Unable to parse trip destinations", "error", err, "tripId", trip.Id)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	return &raw[0]
}

func parsePrioritizedPlaces(app core.App, trip *core.Record) []string {
	data := trip.GetString("prioritizedPlaces")
	if strings.TrimSpace(data) == "" {
		return nil
	}

	var places []string
	if err := json.Unmarshal([]byte(data), &places); err != nil {
		app.Logger().Warn("Unable to parse prioritized places", "error", err, "tripId", trip.Id)
		return nil
	}
	return places
}

// savedPlacesForTrip collects already-stored activities whose photos can
// be reused by the photo resolution pass without an external lookup.
func savedPlacesForTrip(app core.App, trip *core.Record) []itinerary.SavedPlace {
	records, err := app.FindAllRecords("activities", dbx.NewExp("trip = {:tripId}", dbx.Params{"tripId": trip.Id}))
	if err != nil {
		app.Logger().Warn("Unable to load trip activities", "error", err, "tripId", trip.Id)
		return nil
	}

	saved := make([]itinerary.SavedPlace, 0, len(records))
	for _, record := range records {
		name := record.GetString("name")
		if name == "" {
			continue
		}
		saved = append(saved, itinerary.SavedPlace{
			Name:     name,
			PhotoURL: record.GetString("photoUrl"),
			PlaceId:  record.GetString("placeId"),
		})
	}
	return saved
}

func parseCoord(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
