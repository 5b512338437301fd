package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/veilbase/sealstore/internal/vault"
)

// ErrPaymentTooLow is returned when a request does not cover the fee
var ErrPaymentTooLow = errors.New("payment below fee")

// ErrNotFulfilled is returned when entropy is fetched before fulfillment
var ErrNotFulfilled = errors.New("request not fulfilled")

// Oracle simulates the external randomness provider. Requests are assigned
// sequential IDs and stay unfulfilled until Fulfill is called, which lets
// tests drive the fulfillment timeline explicitly.
type Oracle struct {
	address   string
	fee       uint64
	nextID    vault.RequestID
	tags      map[vault.RequestID]string
	entropy   map[vault.RequestID][]byte
	fulfilled map[vault.RequestID]bool
	mu        sync.Mutex
}

// NewOracle creates a mock oracle charging the given fee
func NewOracle(address string, fee uint64) *Oracle {
	return &Oracle{
		address:   address,
		fee:       fee,
		nextID:    1,
		tags:      make(map[vault.RequestID]string),
		entropy:   make(map[vault.RequestID][]byte),
		fulfilled: make(map[vault.RequestID]bool),
	}
}

// Address returns the oracle's identity
func (o *Oracle) Address() string {
	return o.address
}

// CurrentFee returns the configured fee
func (o *Oracle) CurrentFee(ctx context.Context) (uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fee, nil
}

// SetFee changes the fee charged for subsequent requests
func (o *Oracle) SetFee(fee uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fee = fee
}

// RequestEntropy accepts a paid request and returns its ID
func (o *Oracle) RequestEntropy(ctx context.Context, tag string, payment uint64) (vault.RequestID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if payment < o.fee {
		return 0, ErrPaymentTooLow
	}
	id := o.nextID
	o.nextID++
	o.tags[id] = tag
	return id, nil
}

// Fulfill marks a request fulfilled with the given entropy
func (o *Oracle) Fulfill(id vault.RequestID, entropy []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fulfilled[id] = true
	o.entropy[id] = entropy
}

// IsRequestFulfilled reports whether Fulfill has been called for id
func (o *Oracle) IsRequestFulfilled(ctx context.Context, id vault.RequestID) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fulfilled[id], nil
}

// EncryptedEntropy returns the entropy for a fulfilled request
func (o *Oracle) EncryptedEntropy(ctx context.Context, id vault.RequestID) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.fulfilled[id] {
		return nil, ErrNotFulfilled
	}
	return o.entropy[id], nil
}

// Tag returns the label a request was made with
func (o *Oracle) Tag(id vault.RequestID) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tags[id]
}
