package itinerary

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTitle(t *testing.T) {
	cls := NewKeywordClassifier()

	tests := []struct {
		name        string
		title       string
		destination string
		want        string
	}{
		{"city title kept", "Lisbon Trip", "Lisbon, Portugal", "Lisbon Trip"},
		{"landmark rewritten", "Belem Tower Adventure", "Lisbon, Portugal", "Lisbon Trip"},
		{"landmark in french", "Visite de la Tour Eiffel", "Paris, France", "Paris Trip"},
		{"empty title", "", "Tokyo, Japan", "Tokyo Trip"},
		{"no city extractable", "東京タワー", "  ", ""},
		{"destination without comma", "Sagrada Familia Cathedral", "Barcelona", "Barcelona Trip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.title, tt.destination, cls))
		})
	}
}

func TestNormalizeTitleIdempotent(t *testing.T) {
	cls := NewKeywordClassifier()
	once := NormalizeTitle("Temple Hopping", "Kyoto, Japan", cls)
	twice := NormalizeTitle(once, "Kyoto, Japan", cls)
	assert.Equal(t, once, twice)
}

func TestBackfillParagraphs(t *testing.T) {
	t.Run("short text is padded to three blocks", func(t *testing.T) {
		got := BackfillParagraphs("Visit the old town.")
		assert.Len(t, splitParagraphs(got), 3)
		assert.True(t, strings.HasPrefix(got, "Visit the old town."))
	})

	t.Run("sufficient text untouched", func(t *testing.T) {
		text := "One.\n\nTwo.\n\nThree.\n\nFour."
		assert.Equal(t, text, BackfillParagraphs(text))
	})

	t.Run("idempotent", func(t *testing.T) {
		once := BackfillParagraphs("Just one paragraph.")
		assert.Equal(t, once, BackfillParagraphs(once))
	})
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"em dash", "9am—11am", "9am to 11am"},
		{"en dash", "May–June", "May to June"},
		{"whitespace collapsed", "too   many\tspaces", "too many spaces"},
		{"paragraph breaks kept", "first  block\n\nsecond   block", "first block\n\nsecond block"},
		{"blank lines with spaces", "a\n   \nb", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeText(tt.in))
		})
	}
}

func foodActivity(name string) Activity {
	return Activity{Name: name, Tags: []string{"restaurant"}}
}

func TestCapFoodActivities(t *testing.T) {
	cls := NewKeywordClassifier()

	// An evening slot with three food activities keeps only the first.
	day := Day{Slots: []Slot{{
		Label: SlotEvening,
		Places: []Activity{
			foodActivity("Cervejaria Ramiro"),
			{Name: "Miradouro da Graça", Tags: []string{"viewpoint"}},
			foodActivity("Time Out Market"),
			foodActivity("A Cevicheria"),
		},
	}}}
	CapFoodActivities(&day, cls)

	names := placeNames(day.Slots[0])
	assert.Equal(t, []string{"Cervejaria Ramiro", "Miradouro da Graça"}, names)

	foodCount := 0
	for _, p := range day.Slots[0].Places {
		if cls.IsFoodActivity(p) {
			foodCount++
		}
	}
	assert.Equal(t, 1, foodCount)
}

func TestCapFoodActivitiesKeywordFallback(t *testing.T) {
	cls := NewKeywordClassifier()
	day := Day{Slots: []Slot{{
		Label: SlotAfternoon,
		Places: []Activity{
			{Name: "Tapas crawl in La Latina"},
			{Name: "Dinner at Botín"},
		},
	}}}
	CapFoodActivities(&day, cls)
	assert.Equal(t, []string{"Tapas crawl in La Latina"}, placeNames(day.Slots[0]))
}

func TestDedupDayPlaces(t *testing.T) {
	day := Day{Slots: []Slot{
		{Label: SlotMorning, Places: []Activity{{Name: "Alfama"}, {Name: "Sé Cathedral"}}},
		{Label: SlotAfternoon, Places: []Activity{{Name: "alfama"}, {Name: "LX Factory"}}},
		{Label: SlotEvening, Places: []Activity{{Name: "SÉ CATHEDRAL"}}},
	}}
	DedupDayPlaces(&day)

	assert.Equal(t, []string{"Alfama", "Sé Cathedral"}, placeNames(day.Slots[0]))
	assert.Equal(t, []string{"LX Factory"}, placeNames(day.Slots[1]))
	assert.Empty(t, day.Slots[2].Places)
}

func TestEnrichDocumentIdempotent(t *testing.T) {
	cls := NewKeywordClassifier()
	doc := &Document{
		Title:   "Castelo de São Jorge Highlights",
		Summary: "A weekend — packed with sights.",
		Days: []Day{{
			Index: 0,
			Slots: []Slot{
				{Label: SlotMorning, Summary: "Short.", Places: []Activity{
					{Name: "Castelo de São Jorge"},
					foodActivity("Pastéis de Belém"),
					foodActivity("Mercado da Ribeira"),
				}},
				{Label: SlotEvening, Places: []Activity{{Name: "castelo de são jorge"}}},
			},
		}},
	}

	EnrichDocument(doc, "Lisbon, Portugal", cls)
	first, err := json.Marshal(doc)
	require.NoError(t, err)

	EnrichDocument(doc, "Lisbon, Portugal", cls)
	second, err := json.Marshal(doc)
	require.NoError(t, err)
	require.JSONEq(t, string(first), string(second))

	assert.Equal(t, "Lisbon Trip", doc.Title)
	assert.Equal(t, "A weekend to packed with sights.", doc.Summary)
	assert.GreaterOrEqual(t, len(splitParagraphs(doc.Days[0].Slots[0].Summary)), 3)
	assert.Equal(t, []string{"Castelo de São Jorge", "Pastéis de Belém"}, placeNames(doc.Days[0].Slots[0]))
	assert.Empty(t, doc.Days[0].Slots[1].Places)
}

func placeNames(slot Slot) []string {
	names := make([]string, 0, len(slot.Places))
	for _, p := range slot.Places {
		names = append(names, p.Name)
	}
	return names
}
