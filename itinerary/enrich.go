package itinerary

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// The enrichment passes run in a fixed order because later passes depend
// on earlier passes' normalized output:
//
//	NormalizeTitle -> BackfillParagraphs -> SanitizeText ->
//	CapFoodActivities -> DedupDayPlaces
//
// Every pass is total and idempotent; none of them can fail. Photo
// resolution runs afterwards (see photos.go) because it talks to a
// collaborator and is the only step that may block.

// EnrichDocument applies all text passes in order. The destination is the
// raw trip destination string, used as the title fallback.
func EnrichDocument(doc *Document, destination string, cls Classifier) {
	if doc == nil {
		return
	}
	doc.Title = NormalizeTitle(doc.Title, destination, cls)
	for i := range doc.Days {
		day := &doc.Days[i]
		for j := range day.Slots {
			day.Slots[j].Summary = BackfillParagraphs(day.Slots[j].Summary)
			day.Slots[j].Summary = SanitizeText(day.Slots[j].Summary)
		}
		day.Overview = SanitizeText(day.Overview)
		CapFoodActivities(day, cls)
		DedupDayPlaces(day)
	}
	doc.Summary = SanitizeText(doc.Summary)
	if doc.CityOverview != nil {
		doc.CityOverview.Intro = SanitizeText(doc.CityOverview.Intro)
	}
}

// NormalizeTitle rewrites titles that leak a landmark name (or are empty)
// to "<city> Trip". The city is the first comma-separated segment of the
// destination; if that comes out empty the raw destination is used as-is.
func NormalizeTitle(title, destination string, cls Classifier) string {
	title = strings.TrimSpace(title)
	if title != "" && !cls.IsLandmarkTitle(title) {
		return title
	}
	city := cityFromDestination(destination)
	if city == "" {
		return strings.TrimSpace(destination)
	}
	return city + " Trip"
}

func cityFromDestination(destination string) string {
	city, _, _ := strings.Cut(destination, ",")
	return strings.TrimSpace(city)
}

const minSlotParagraphs = 3

// Deterministic filler paragraphs, appended in this order until a slot
// description reaches the minimum. Already-sufficient text is never
// truncated or reordered.
var backfillParagraphs = []string{
	"Getting there is easiest by public transit; check the nearest metro or bus stop and allow a little extra time during rush hour.",
	"Confirm opening hours and ticket prices before you go, since many spots use timed entries that sell out on busy days.",
	"You will find plenty of cafes and snack stands close by if you want a quick break between stops.",
}

// BackfillParagraphs pads a slot description to at least three blank-line
// separated paragraph blocks.
func BackfillParagraphs(text string) string {
	paras := splitParagraphs(text)
	for _, filler := range backfillParagraphs {
		if len(paras) >= minSlotParagraphs {
			break
		}
		if !lo.Contains(paras, filler) {
			paras = append(paras, filler)
		}
	}
	return strings.Join(paras, "\n\n")
}

var paraBreak = regexp.MustCompile(`\n\s*\n`)

func splitParagraphs(text string) []string {
	blocks := paraBreak.Split(text, -1)
	return lo.FilterMap(blocks, func(b string, _ int) (string, bool) {
		b = strings.TrimSpace(b)
		return b, b != ""
	})
}

var (
	dashReplacer = strings.NewReplacer("—", " to ", "–", " to ")
	spaceRun     = regexp.MustCompile(`[ \t]+`)
)

// SanitizeText replaces em/en dashes with " to " and collapses redundant
// whitespace while keeping paragraph breaks intact.
func SanitizeText(text string) string {
	text = dashReplacer.Replace(text)
	paras := splitParagraphs(text)
	paras = lo.Map(paras, func(p string, _ int) string {
		lines := strings.Split(p, "\n")
		lines = lo.Map(lines, func(l string, _ int) string {
			return strings.TrimSpace(spaceRun.ReplaceAllString(l, " "))
		})
		return strings.Join(lines, "\n")
	})
	return strings.Join(paras, "\n\n")
}

// CapFoodActivities keeps only the first food-classified activity in each
// slot; the rest are dropped.
func CapFoodActivities(day *Day, cls Classifier) {
	for i := range day.Slots {
		seenFood := false
		day.Slots[i].Places = lo.Filter(day.Slots[i].Places, func(a Activity, _ int) bool {
			if !cls.IsFoodActivity(a) {
				return true
			}
			if seenFood {
				return false
			}
			seenFood = true
			return true
		})
	}
}

// DedupDayPlaces drops later occurrences of a place name already seen
// earlier in the same day, comparing case-folded names across slots in
// slot order. The first occurrence wins.
func DedupDayPlaces(day *Day) {
	seen := map[string]bool{}
	for i := range day.Slots {
		day.Slots[i].Places = lo.Filter(day.Slots[i].Places, func(a Activity, _ int) bool {
			name := foldText(a.Name)
			if name == "" {
				return true
			}
			if seen[name] {
				return false
			}
			seen[name] = true
			return true
		})
	}
}
