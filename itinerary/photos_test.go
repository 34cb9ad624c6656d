package itinerary

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queueResolver hands out its refs in order, honoring the dedup contract.
type queueResolver struct {
	mu   sync.Mutex
	refs []PhotoRef
	err  error
}

func (r *queueResolver) ResolvePlacePhoto(_ context.Context, _ PhotoQuery, dedup *DedupSets) (*PhotoRef, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range r.refs {
		if !dedup.Used(ref.URL, ref.PlaceId) {
			ref := ref
			return &ref, nil
		}
	}
	return nil, nil
}

func TestDedupSetsClaim(t *testing.T) {
	d := NewDedupSets()

	assert.True(t, d.Claim("https://img/1.jpg", "p1"))
	assert.False(t, d.Claim("https://img/1.jpg", "p2"), "url already taken")
	assert.False(t, d.Claim("https://img/2.jpg", "p1"), "place id already taken")
	assert.True(t, d.Claim("https://img/2.jpg", "p2"))

	// Empty values are never tracked and may repeat.
	assert.True(t, d.Claim("", ""))
	assert.True(t, d.Claim("", ""))
}

func TestDedupSetsClaimIsAtomic(t *testing.T) {
	d := NewDedupSets()

	const workers = 32
	wins := make(chan bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- d.Claim("https://img/contested.jpg", "p1")
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one claimant may win")
}

func twoDayDoc() *Document {
	return &Document{
		Title:   "Lisbon Trip",
		Summary: "S",
		Days: []Day{
			{Index: 0, Id: "a", Slots: []Slot{{Label: SlotMorning, Places: []Activity{
				{Id: "p1", Name: "Castelo de São Jorge"},
				{Id: "p2", Name: "Alfama"},
			}}}},
			{Index: 1, Id: "b", Slots: []Slot{{Label: SlotAfternoon, Places: []Activity{
				{Id: "p3", Name: "MAAT"},
			}}}},
		},
	}
}

func TestResolvePhotosNoDuplicatePhotos(t *testing.T) {
	doc := twoDayDoc()
	resolver := &queueResolver{refs: []PhotoRef{
		{URL: "https://img/1.jpg", PlaceId: "g1"},
		{URL: "https://img/2.jpg", PlaceId: "g2"},
		{URL: "https://img/3.jpg", PlaceId: "g3"},
		{URL: "https://img/4.jpg", PlaceId: "g4"},
		{URL: "https://img/5.jpg", PlaceId: "g5"},
	}}

	ResolvePhotos(context.Background(), doc, "Lisbon", nil, resolver, NewDedupSets(), nil)

	seenURLs := map[string]int{}
	seenPlaceIds := map[string]int{}
	for _, d := range doc.Days {
		for _, u := range d.Photos {
			seenURLs[u]++
		}
		for _, s := range d.Slots {
			for _, p := range s.Places {
				if p.PhotoURL != "" {
					seenURLs[p.PhotoURL]++
				}
				if p.PlaceId != "" {
					seenPlaceIds[p.PlaceId]++
				}
			}
		}
	}
	for u, n := range seenURLs {
		assert.Equal(t, 1, n, "url %s bound more than once", u)
	}
	for id, n := range seenPlaceIds {
		assert.Equal(t, 1, n, "place id %s bound more than once", id)
	}
}

func TestResolvePhotosPrefersSavedPlaces(t *testing.T) {
	doc := twoDayDoc()
	saved := []SavedPlace{
		{Name: "castelo de são jorge", PhotoURL: "https://saved/castle.jpg", PlaceId: "saved1"},
	}
	resolver := &queueResolver{refs: []PhotoRef{
		{URL: "https://img/1.jpg", PlaceId: "g1"},
		{URL: "https://img/2.jpg", PlaceId: "g2"},
		{URL: "https://img/3.jpg", PlaceId: "g3"},
		{URL: "https://img/4.jpg", PlaceId: "g4"},
	}}

	ResolvePhotos(context.Background(), doc, "Lisbon", saved, resolver, NewDedupSets(), nil)

	castle := doc.Days[0].Slots[0].Places[0]
	assert.Equal(t, "https://saved/castle.jpg", castle.PhotoURL)
	assert.Equal(t, "saved1", castle.PlaceId)
}

func TestResolvePhotosSoftFailure(t *testing.T) {
	doc := twoDayDoc()
	resolver := &queueResolver{err: fmt.Errorf("photo api down")}

	// Must not panic or abort; activities simply stay photo-less.
	ResolvePhotos(context.Background(), doc, "Lisbon", nil, resolver, NewDedupSets(), nil)

	for _, d := range doc.Days {
		for _, s := range d.Slots {
			for _, p := range s.Places {
				assert.Empty(t, p.PhotoURL)
			}
		}
	}
}

func TestResolvePhotosKeepsExisting(t *testing.T) {
	doc := twoDayDoc()
	doc.Days[0].Slots[0].Places[0].PhotoURL = "https://existing/kept.jpg"
	resolver := &queueResolver{refs: []PhotoRef{{URL: "https://img/1.jpg", PlaceId: "g1"}}}

	ResolvePhotos(context.Background(), doc, "Lisbon", nil, resolver, NewDedupSets(), nil)

	assert.Equal(t, "https://existing/kept.jpg", doc.Days[0].Slots[0].Places[0].PhotoURL)
}

func TestMatchesSavedPlace(t *testing.T) {
	require.True(t, matchesSavedPlace("Castelo de São Jorge", "castelo de são jorge"))
	require.True(t, matchesSavedPlace("MAAT", "MAAT museum"))
	require.False(t, matchesSavedPlace("Alfama", "Belém"))
	require.False(t, matchesSavedPlace("", "anything"))
}
