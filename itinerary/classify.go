package itinerary

import (
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
)

// Classifier answers the two heuristic questions the pipeline needs:
// whether a title leaks a landmark name, and whether an activity is
// food-related. Both are keyword heuristics today; the interface keeps the
// enrichment passes and the assembler decoupled from how they are answered.
type Classifier interface {
	IsLandmarkTitle(title string) bool
	IsFoodActivity(a Activity) bool
}

var foldCaser = cases.Fold()

func foldText(s string) string {
	return foldCaser.String(strings.TrimSpace(s))
}

// keywordClassifier is the default Classifier.
type keywordClassifier struct {
	landmarkWords []string
	foodTypes     map[string]bool
	foodWords     []string
}

// Landmark words cover the languages the model most often answers in.
var defaultLandmarkWords = []string{
	"tower", "temple", "cathedral", "basilica", "castle", "palace",
	"museum", "bridge", "monastery", "shrine", "fortress", "mosque",
	"torre", "templo", "catedral", "castillo", "palacio", "museo",
	"castelo", "palácio", "mosteiro",
	"tour", "château", "palais", "musée", "cathédrale",
	"turm", "schloss", "dom", "kirche",
	"寺", "神社", "城", "塔", "タワー", "博物館",
	"사원", "궁전", "성당",
}

var defaultFoodTypes = []string{
	"restaurant", "cafe", "café", "bar", "bakery", "food", "meal",
	"street_food", "food_market", "brewery", "winery",
}

var defaultFoodWords = []string{
	"restaurant", "lunch", "dinner", "breakfast", "brunch", "tapas",
	"bistro", "eatery", "tasting", "food tour", "street food", "cuisine",
	"trattoria", "izakaya", "ramen", "taverna", "brasserie",
}

// NewKeywordClassifier returns the default keyword-list Classifier.
func NewKeywordClassifier() Classifier {
	return &keywordClassifier{
		landmarkWords: lo.Map(defaultLandmarkWords, func(w string, _ int) string { return foldText(w) }),
		foodTypes: lo.SliceToMap(defaultFoodTypes, func(t string) (string, bool) {
			return foldText(t), true
		}),
		foodWords: lo.Map(defaultFoodWords, func(w string, _ int) string { return foldText(w) }),
	}
}

func (c *keywordClassifier) IsLandmarkTitle(title string) bool {
	folded := foldText(title)
	if folded == "" {
		return false
	}
	return lo.SomeBy(c.landmarkWords, func(w string) bool {
		return strings.Contains(folded, w)
	})
}

func (c *keywordClassifier) IsFoodActivity(a Activity) bool {
	for _, tag := range a.Tags {
		if c.foodTypes[foldText(tag)] {
			return true
		}
	}
	// Keyword fallback for activities the model tagged loosely.
	text := foldText(a.Name + " " + a.Description)
	return lo.SomeBy(c.foodWords, func(w string) bool {
		return strings.Contains(text, w)
	})
}
