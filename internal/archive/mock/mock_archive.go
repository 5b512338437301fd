package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/veilbase/sealstore/internal/vault"
)

// ErrNotFound is returned when a key has not been archived
var ErrNotFound = errors.New("not archived")

// Archive is an in-memory archive for tests
type Archive struct {
	data map[vault.Key][]byte
	mu   sync.RWMutex
}

// NewArchive creates a new mock archive
func NewArchive() *Archive {
	return &Archive{
		data: make(map[vault.Key][]byte),
	}
}

// Save persists the published form of a value
func (a *Archive) Save(ctx context.Context, key vault.Key, value []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	a.data[key] = stored
	return nil
}

// Load retrieves a previously archived value
func (a *Archive) Load(ctx context.Context, key vault.Key) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	value, exists := a.data[key]
	if !exists {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Close is a no-op for the in-memory archive
func (a *Archive) Close() error {
	return nil
}

// Len returns the number of archived keys
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}
