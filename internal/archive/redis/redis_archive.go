package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/veilbase/sealstore/internal/vault"
)

// ErrNotFound is returned when a key has not been archived
var ErrNotFound = errors.New("not archived")

// Archive implements the vault.Archive interface using Redis
type Archive struct {
	client *redis.Client
}

// NewArchive creates a new Redis archive instance
func NewArchive(addr string, db int) *Archive {
	return &Archive{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: "", // no password set
			DB:       db, // use default DB
		}),
	}
}

// Save persists the published form of a value. Published values are
// write-once, so entries never expire.
func (a *Archive) Save(ctx context.Context, key vault.Key, value []byte) error {
	return a.client.Set(ctx, archiveKey(key), value, 0).Err()
}

// Load retrieves a previously archived value
func (a *Archive) Load(ctx context.Context, key vault.Key) ([]byte, error) {
	val, err := a.client.Get(ctx, archiveKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	return val, err
}

// Close closes the Redis client connection
func (a *Archive) Close() error {
	return a.client.Close()
}

func archiveKey(key vault.Key) string {
	return fmt.Sprintf("sealstore:published:%d", key)
}
