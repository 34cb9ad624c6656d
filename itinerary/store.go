package itinerary

import (
	"context"
	"errors"
)

// ErrNotFound is the legitimate "nothing persisted yet" signal from Load;
// it triggers generation rather than an error response.
var ErrNotFound = errors.New("itinerary not found")

// Store persists one document per key. A Save failure does not invalidate
// the in-memory document for the current session.
type Store interface {
	Save(ctx context.Context, key Key, doc Document) error
	Load(ctx context.Context, key Key) (*Document, error)
}
