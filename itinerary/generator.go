package itinerary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/ringsaturn/tzf"
)

// TripContext is everything the generator needs to know about the trip.
type TripContext struct {
	TripId            string   `json:"tripId"`
	Destination       string   `json:"destination"`
	Country           string   `json:"country,omitempty"`
	Latitude          float64  `json:"latitude,omitempty"`
	Longitude         float64  `json:"longitude,omitempty"`
	StartDate         string   `json:"startDate"`
	DayCount          int      `json:"dayCount"`
	PrioritizedPlaces []string `json:"prioritizedPlaces,omitempty"`
	Language          string   `json:"language,omitempty"`
}

// City returns the city part of the destination.
func (tc TripContext) City() string {
	return cityFromDestination(tc.Destination)
}

// Completer is the language-model collaborator: one prompt in, one raw
// completion out. It may fail; it never retries.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ValidationError reports model output that broke the structural contract.
// The caller treats it the same as any other generation failure.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "itinerary validation failed: " + e.Reason
}

// Generator turns a trip context into a parsed, validated document. It has
// no side effects beyond the model call and performs no retries.
type Generator struct {
	Completer Completer
}

const systemPrompt = `You are a travel itinerary planner. Respond with a single JSON object and nothing else, using exactly this shape:
{
  "title": string,
  "summary": string,
  "tripTips": [string],
  "cityOverview": {"intro": string, "highlights": [string]} or null,
  "days": [
    {
      "title": string,
      "theme": string,
      "overview": string,
      "slots": [
        {"label": "morning"|"afternoon"|"evening", "summary": string,
         "places": [{"name": string, "description": string, "tags": [string]}]}
      ]
    }
  ]
}
The days array must contain exactly the requested number of days, in order. Do not include markdown fences or commentary.`

// Generate calls the model once and validates the result.
func (g *Generator) Generate(ctx context.Context, tc TripContext) (*Document, error) {
	user, err := buildUserPrompt(tc)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	raw, err := g.Completer.Complete(ctx, systemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	doc, err := parseDocument(raw, tc.DayCount)
	if err != nil {
		return nil, err
	}

	stampDays(doc, tc)
	return doc, nil
}

func buildUserPrompt(tc TripContext) (string, error) {
	ctxJSON, err := json.MarshalIndent(tc, "", "  ")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Plan a %d-day itinerary for %s.\n", tc.DayCount, tc.Destination)
	if len(tc.PrioritizedPlaces) > 0 {
		fmt.Fprintf(&b, "Prioritize these places: %s.\n", strings.Join(tc.PrioritizedPlaces, ", "))
	}
	if tc.Language != "" {
		fmt.Fprintf(&b, "Write all text in language %q.\n", tc.Language)
	}
	fmt.Fprintf(&b, "Trip context:\n%s", ctxJSON)
	return b.String(), nil
}

func parseDocument(raw string, wantDays int) (*Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &doc); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("model output is not valid JSON: %v", err)}
	}
	if strings.TrimSpace(doc.Title) == "" {
		return nil, &ValidationError{Reason: "missing title"}
	}
	if strings.TrimSpace(doc.Summary) == "" {
		return nil, &ValidationError{Reason: "missing summary"}
	}
	if len(doc.Days) != wantDays {
		return nil, &ValidationError{Reason: fmt.Sprintf("expected %d days, got %d", wantDays, len(doc.Days))}
	}
	return &doc, nil
}

// stampDays assigns stable indexes, minted ids, and per-day local dates.
func stampDays(doc *Document, tc TripContext) {
	loc := destinationLocation(tc)
	start, startErr := time.ParseInLocation("2006-01-02", tc.StartDate, loc)
	for i := range doc.Days {
		day := &doc.Days[i]
		day.Index = i
		if day.Id == "" {
			day.Id = uuid.NewString()
		}
		if day.Date == "" && startErr == nil {
			day.Date = start.AddDate(0, 0, i).Format("2006-01-02")
		}
		for j := range day.Slots {
			for k := range day.Slots[j].Places {
				if day.Slots[j].Places[k].Id == "" {
					day.Slots[j].Places[k].Id = uuid.NewString()
				}
			}
		}
	}
}

var tzFinder = sync.OnceValues(func() (tzf.F, error) {
	return tzf.NewDefaultFinder()
})

// destinationLocation maps the trip coordinates to the destination's IANA
// timezone so day dates line up with local calendars. Falls back to UTC.
func destinationLocation(tc TripContext) *time.Location {
	if tc.Latitude == 0 && tc.Longitude == 0 {
		return time.UTC
	}
	finder, err := tzFinder()
	if err != nil {
		return time.UTC
	}
	name := finder.GetTimezoneName(tc.Longitude, tc.Latitude)
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DefaultModel is used when AI_ITINERARY_MODEL is not set.
const DefaultModel = "gpt-5-mini"

type openaiCompleter struct {
	client openai.Client
	model  string
}

// NewOpenAICompleter returns a Completer backed by the OpenAI chat
// completions API in JSON mode.
func NewOpenAICompleter(apiKey, model string) Completer {
	if model == "" {
		model = DefaultModel
	}
	return &openaiCompleter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *openaiCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("model returned an empty message")
	}
	return content, nil
}
