package itinerary

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// PhotoRef is a resolved image plus the external place id it came from.
type PhotoRef struct {
	URL     string `json:"url"`
	PlaceId string `json:"placeId,omitempty"`
}

// PhotoQuery asks the resolver for one image for a named place.
type PhotoQuery struct {
	Name string
	City string
}

// PhotoResolver is the external photo lookup collaborator. Implementations
// must honor the dedup sets: never return a URL or place id the run has
// already claimed. A nil ref with nil error means "no photo found".
type PhotoResolver interface {
	ResolvePlacePhoto(ctx context.Context, q PhotoQuery, dedup *DedupSets) (*PhotoRef, error)
}

// SavedPlace is a previously stored place whose photo can be reused
// without an external lookup.
type SavedPlace struct {
	Name     string
	PhotoURL string
	PlaceId  string
}

// DedupSets tracks image URLs and place ids already claimed during one
// generation run. Photo resolution fans out across activities, so claims
// must be atomic: two lookups racing for the same photo is a correctness
// bug, not cosmetic.
type DedupSets struct {
	mu       sync.Mutex
	urls     map[string]bool
	placeIds map[string]bool
}

func NewDedupSets() *DedupSets {
	return &DedupSets{
		urls:     map[string]bool{},
		placeIds: map[string]bool{},
	}
}

// Claim atomically reserves both the URL and the place id. It returns
// false, claiming nothing, if either is already taken. Empty strings are
// not tracked and may repeat.
func (d *DedupSets) Claim(url, placeId string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if (url != "" && d.urls[url]) || (placeId != "" && d.placeIds[placeId]) {
		return false
	}
	if url != "" {
		d.urls[url] = true
	}
	if placeId != "" {
		d.placeIds[placeId] = true
	}
	return true
}

// Used reports whether a URL or place id has been claimed.
func (d *DedupSets) Used(url, placeId string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return (url != "" && d.urls[url]) || (placeId != "" && d.placeIds[placeId])
}

const photoResolveParallelism = 4

// ResolvePhotos fills in activity photos and day hero photos. Saved places
// are tried first by fuzzy name match; everything else goes through the
// resolver. Resolver failures are soft: the activity simply keeps no
// photo, and the run continues.
func ResolvePhotos(ctx context.Context, doc *Document, city string, saved []SavedPlace, resolver PhotoResolver, dedup *DedupSets, log *slog.Logger) {
	if doc == nil {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(photoResolveParallelism)

	for i := range doc.Days {
		day := &doc.Days[i]
		if len(day.Photos) == 0 {
			g.Go(func() error {
				ref := resolveOne(ctx, PhotoQuery{Name: heroQueryName(day, city), City: city}, saved, resolver, dedup, log)
				if ref != nil {
					day.Photos = []string{ref.URL}
				}
				return nil
			})
		}
		for j := range day.Slots {
			for k := range day.Slots[j].Places {
				a := &day.Slots[j].Places[k]
				if a.PhotoURL != "" {
					continue
				}
				g.Go(func() error {
					ref := resolveOne(ctx, PhotoQuery{Name: a.Name, City: city}, saved, resolver, dedup, log)
					if ref != nil {
						a.PhotoURL = ref.URL
						a.PlaceId = ref.PlaceId
					}
					return nil
				})
			}
		}
	}

	if doc.CityOverview != nil && doc.CityOverview.PhotoURL == "" {
		g.Go(func() error {
			ref := resolveOne(ctx, PhotoQuery{Name: city, City: city}, saved, resolver, dedup, log)
			if ref != nil {
				doc.CityOverview.PhotoURL = ref.URL
			}
			return nil
		})
	}

	_ = g.Wait()
}

func resolveOne(ctx context.Context, q PhotoQuery, saved []SavedPlace, resolver PhotoResolver, dedup *DedupSets, log *slog.Logger) *PhotoRef {
	if q.Name == "" {
		return nil
	}

	for _, sp := range saved {
		if !matchesSavedPlace(q.Name, sp.Name) || sp.PhotoURL == "" {
			continue
		}
		if dedup.Claim(sp.PhotoURL, sp.PlaceId) {
			return &PhotoRef{URL: sp.PhotoURL, PlaceId: sp.PlaceId}
		}
	}

	if resolver == nil {
		return nil
	}

	ref, err := resolver.ResolvePlacePhoto(ctx, q, dedup)
	if err != nil {
		if log != nil {
			log.Warn("photo resolution failed", "place", q.Name, "error", err)
		}
		return nil
	}
	if ref == nil || ref.URL == "" {
		return nil
	}
	if !dedup.Claim(ref.URL, ref.PlaceId) {
		// Resolver ignored the dedup contract; drop the photo rather
		// than duplicate it.
		return nil
	}
	return ref
}

func matchesSavedPlace(query, saved string) bool {
	q, s := foldText(query), foldText(saved)
	if q == "" || s == "" {
		return false
	}
	return q == s || strings.Contains(q, s) || strings.Contains(s, q)
}

func heroQueryName(day *Day, city string) string {
	if day.Theme != "" {
		return day.Theme + " " + city
	}
	if day.Title != "" {
		return day.Title
	}
	return city
}
