package vault

import "context"

// RandomnessOracle defines the interface for the external randomness provider
type RandomnessOracle interface {
	// Address returns the oracle's identity
	Address() string
	// CurrentFee returns the fee a new request must cover
	CurrentFee(ctx context.Context) (uint64, error)
	// RequestEntropy submits a paid request tagged with a caller-chosen label
	RequestEntropy(ctx context.Context, tag string, payment uint64) (RequestID, error)
	// IsRequestFulfilled reports whether the oracle has fulfilled the request
	IsRequestFulfilled(ctx context.Context, requestID RequestID) (bool, error)
	// EncryptedEntropy returns the entropy for a fulfilled request
	EncryptedEntropy(ctx context.Context, requestID RequestID) ([]byte, error)
}

// Archive defines the interface for a durable sink of published values
type Archive interface {
	// Save persists the published form of a value
	Save(ctx context.Context, key Key, value []byte) error
	// Load retrieves a previously archived value
	Load(ctx context.Context, key Key) ([]byte, error)
	// Close closes the backend connection
	Close() error
}
