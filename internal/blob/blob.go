// Package blob defines the contract to the external media store. The core
// only depends on the interface; the in-memory implementation backs tests
// and single-node deployments without object storage.
package blob

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrUnsupportedType is returned when a media content type is not in the
// allow-list. The check runs before any upload is attempted.
var ErrUnsupportedType = errors.New("unsupported media content type")

// Ref identifies an uploaded blob
type Ref struct {
	ID  string
	URL string
}

// Store uploads media and returns a stable reference
type Store interface {
	Upload(ctx context.Context, data []byte, contentType string) (Ref, error)
}

var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// AllowedType reports whether the given content type may be uploaded
func AllowedType(contentType string) bool {
	return allowedTypes[contentType]
}

// MemoryStore keeps uploads in process memory
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory blob store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Upload stores the data under a fresh id and returns its reference
func (s *MemoryStore) Upload(_ context.Context, data []byte, contentType string) (Ref, error) {
	if !AllowedType(contentType) {
		return Ref{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	id := uuid.New().String()
	s.mu.Lock()
	s.blobs[id] = append([]byte(nil), data...)
	s.mu.Unlock()

	return Ref{ID: id, URL: "mem://media/" + id}, nil
}

// Get returns a stored blob by id
func (s *MemoryStore) Get(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[id]
	return data, ok
}
