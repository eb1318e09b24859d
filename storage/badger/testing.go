package badger

import (
	"github.com/bookvision/bookvision/storage"
)

// NewMemoryIndex opens an in-memory backend and returns an index over it
// together with the backend so callers can close both. Intended for tests.
func NewMemoryIndex() (storage.VectorIndex, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, err
	}
	index, err := NewIndex(backend)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	return index, backend, nil
}
