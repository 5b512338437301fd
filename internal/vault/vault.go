package vault

import (
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v2"
)

// Key is the caller-chosen integer identity of a stored value
type Key uint64

// RequestID identifies a randomness request issued through the oracle
type RequestID uint64

// Entry is a stored value together with its initialization flag
type Entry struct {
	Value       Ciphertext
	Initialized bool
}

// EventType distinguishes the notifications emitted by the vault
type EventType string

const (
	EventRandomnessRequested       EventType = "randomness_requested"
	EventValueStored               EventType = "value_stored"
	EventValueStoredWithRandomness EventType = "value_stored_with_randomness"
	EventValuePublished            EventType = "value_published"
	EventBatchStored               EventType = "batch_stored"
)

// Event is a notification emitted after a successful state transition
type Event struct {
	ID        string
	Type      EventType
	Caller    string
	RequestID RequestID // zero when the event has no randomness request attached
	Keys      []Key
	Timestamp time.Time
}

// EventListener receives vault notifications. Listeners run inside the
// emitting call and must not call back into the vault.
type EventListener func(ctx context.Context, ev Event)

// OracleConfig describes the randomness oracle endpoint
type OracleConfig struct {
	Address          string `yaml:"address"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`
}

// ArchiveConfig describes the published-value archive backend
type ArchiveConfig struct {
	Backend        string   `yaml:"backend"`
	RedisAddr      string   `yaml:"redis_addr"`
	RedisDB        int      `yaml:"redis_db"`
	CassandraHosts []string `yaml:"cassandra_hosts"`
	Keyspace       string   `yaml:"keyspace"`
	MinTries       int      `yaml:"min_tries"`
	RetryDelayMs   int      `yaml:"retry_delay_ms"`
}

// StatisticsConfig defines metrics collection
type StatisticsConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

// LimitsConfig caps batch sizes; zero means unlimited
type LimitsConfig struct {
	MaxBatchSize int `yaml:"max_batch_size"`
}

// Config represents the vault configuration
type Config struct {
	Oracle     OracleConfig     `yaml:"oracle"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Statistics StatisticsConfig `yaml:"statistics"`
	Limits     LimitsConfig     `yaml:"limits"`
}

// LoadConfig loads the configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultConfig returns a configuration suitable for in-process use with the
// mock backends
func DefaultConfig() *Config {
	return &Config{
		Archive: ArchiveConfig{
			Backend:      "mock",
			MinTries:     3,
			RetryDelayMs: 100,
		},
	}
}

// VaultMetrics tracks publication and randomness-request activity
type VaultMetrics struct {
	publishLatency     prometheus.Histogram
	batchSize          prometheus.Histogram
	randomnessRequests prometheus.Counter
	consumedRequests   prometheus.Counter
	rejectedOps        *prometheus.CounterVec
	archiveFailures    prometheus.Counter
	totalValues        prometheus.Gauge
}

// NewVaultMetrics initializes metrics and registers them on reg
func NewVaultMetrics(reg prometheus.Registerer) *VaultMetrics {
	m := &VaultMetrics{
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sealstore_publish_latency_seconds",
			Help:    "Publication latency",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20),
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sealstore_batch_size",
			Help:    "Entries per batch publication",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		randomnessRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sealstore_randomness_requests_total",
			Help: "Randomness requests forwarded to the oracle",
		}),
		consumedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sealstore_consumed_requests_total",
			Help: "Randomness requests consumed by a publication",
		}),
		rejectedOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sealstore_rejected_operations_total",
			Help: "Operations rejected by a precondition",
		}, []string{"reason"}),
		archiveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sealstore_archive_failures_total",
			Help: "Failed archive writes",
		}),
		totalValues: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sealstore_total_values",
			Help: "Count of initialized keys",
		}),
	}
	reg.MustRegister(m.publishLatency, m.batchSize, m.randomnessRequests, m.consumedRequests, m.rejectedOps, m.archiveFailures, m.totalValues)
	return m
}

// SealedVault is a keyed store of opaque values with write-once publication
// and optional oracle-supplied randomness blending. Every public operation is
// atomic: it either commits all of its effects or none of them.
type SealedVault struct {
	oracle      RandomnessOracle
	archive     Archive
	entries     map[Key]Entry
	outstanding map[RequestID]bool
	totalValues uint64
	mu          sync.RWMutex
	callerID    string
	config      *Config
	metrics     *VaultMetrics
	listeners   []EventListener
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewSealedVault initializes a vault around the given oracle. The archive may
// be nil, in which case published values live only in memory. Metrics are
// registered on reg so independent vaults can use separate registries.
func NewSealedVault(oracle RandomnessOracle, archive Archive, config *Config, callerID string, reg prometheus.Registerer) (*SealedVault, error) {
	if oracle == nil {
		return nil, fmt.Errorf("vault: oracle is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &SealedVault{
		oracle:      oracle,
		archive:     archive,
		entries:     make(map[Key]Entry),
		outstanding: make(map[RequestID]bool),
		callerID:    callerID,
		config:      config,
		metrics:     NewVaultMetrics(reg),
		ctx:         ctx,
		cancel:      cancel,
	}

	if config.Statistics.Enabled {
		go v.collectStatistics(time.Duration(config.Statistics.IntervalSeconds) * time.Second)
	}
	return v, nil
}

// RegisterListener adds a notification listener
func (v *SealedVault) RegisterListener(listener EventListener) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, listener)
}

// RequestRandomness forwards a paid randomness request to the oracle and
// records the returned request ID as outstanding. The payment must cover the
// oracle's current fee.
func (v *SealedVault) RequestRandomness(ctx context.Context, tag string, paid uint64) (RequestID, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	fee, err := v.oracle.CurrentFee(ctx)
	if err != nil {
		return 0, fmt.Errorf("querying oracle fee: %w", err)
	}
	if paid < fee {
		v.metrics.rejectedOps.WithLabelValues("insufficient_fee").Inc()
		return 0, ErrInsufficientFee
	}

	id, err := v.oracle.RequestEntropy(ctx, tag, paid)
	if err != nil {
		return 0, fmt.Errorf("requesting entropy: %w", err)
	}

	v.outstanding[id] = true
	v.metrics.randomnessRequests.Inc()
	v.emit(ctx, EventRandomnessRequested, id, nil)
	return id, nil
}

// Publish stores rawValue under key and marks it publicly decryptable.
// Publication is write-once: a key can never be re-published.
func (v *SealedVault) Publish(ctx context.Context, key Key, rawValue []byte) error {
	start := time.Now()
	defer func() { v.metrics.publishLatency.Observe(time.Since(start).Seconds()) }()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.entries[key].Initialized {
		v.metrics.rejectedOps.WithLabelValues("duplicate_key").Inc()
		return ErrDuplicateKey
	}

	v.storeEntry(ctx, key, Seal(rawValue).markPublished())
	v.emit(ctx, EventValueStored, 0, []Key{key})
	v.emit(ctx, EventValuePublished, 0, []Key{key})
	return nil
}

// PublishBatch publishes every (key, value) pair, all-or-nothing. A single
// already-initialized key, a duplicate within the batch, mismatched slice
// lengths, or an empty batch rejects the whole call with no state change.
func (v *SealedVault) PublishBatch(ctx context.Context, keys []Key, rawValues [][]byte) error {
	start := time.Now()
	defer func() { v.metrics.publishLatency.Observe(time.Since(start).Seconds()) }()

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.validateBatch(keys, rawValues); err != nil {
		return err
	}

	for i, key := range keys {
		v.storeEntry(ctx, key, Seal(rawValues[i]).markPublished())
	}
	v.metrics.batchSize.Observe(float64(len(keys)))
	v.emit(ctx, EventBatchStored, 0, keys)
	return nil
}

// PublishWithRandomness blends the oracle's entropy for requestID into
// rawValue before publication. The request must have been made through this
// vault, still be outstanding, and be fulfilled by the oracle. A successful
// call consumes the request; it can never fund a second publication.
func (v *SealedVault) PublishWithRandomness(ctx context.Context, key Key, rawValue []byte, requestID RequestID) error {
	start := time.Now()
	defer func() { v.metrics.publishLatency.Observe(time.Since(start).Seconds()) }()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.entries[key].Initialized {
		v.metrics.rejectedOps.WithLabelValues("duplicate_key").Inc()
		return ErrDuplicateKey
	}
	entropy, err := v.fetchEntropy(ctx, requestID)
	if err != nil {
		return err
	}

	v.storeEntry(ctx, key, Seal(rawValue).Combine(entropy).markPublished())
	v.outstanding[requestID] = false
	v.metrics.consumedRequests.Inc()
	v.emit(ctx, EventValueStoredWithRandomness, requestID, []Key{key})
	v.emit(ctx, EventValuePublished, requestID, []Key{key})
	return nil
}

// PublishBatchWithRandomness publishes the batch with the entropy for
// requestID blended into every entry. The entropy is fetched once and shared
// across the batch, so any two entries of the same batch can be combined to
// cancel the blinding; callers needing independent blinding must publish
// under separate requests. The request is consumed once, after the full
// batch succeeds.
func (v *SealedVault) PublishBatchWithRandomness(ctx context.Context, keys []Key, rawValues [][]byte, requestID RequestID) error {
	start := time.Now()
	defer func() { v.metrics.publishLatency.Observe(time.Since(start).Seconds()) }()

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.validateBatch(keys, rawValues); err != nil {
		return err
	}
	entropy, err := v.fetchEntropy(ctx, requestID)
	if err != nil {
		return err
	}

	for i, key := range keys {
		v.storeEntry(ctx, key, Seal(rawValues[i]).Combine(entropy).markPublished())
	}
	v.outstanding[requestID] = false
	v.metrics.consumedRequests.Inc()
	v.metrics.batchSize.Observe(float64(len(keys)))
	v.emit(ctx, EventBatchStored, requestID, keys)
	return nil
}

// GetValue returns the published value for key. The caller performs the
// reveal step; values are never returned in sealed form.
func (v *SealedVault) GetValue(key Key) (Ciphertext, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	entry, ok := v.entries[key]
	if !ok || !entry.Initialized {
		return Ciphertext{}, ErrNotInitialized
	}
	return entry.Value, nil
}

// IsInitialized reports whether key has been published
func (v *SealedVault) IsInitialized(key Key) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.entries[key].Initialized
}

// TotalValues returns the count of initialized keys
func (v *SealedVault) TotalValues() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.totalValues
}

// OracleAddress returns the identity of the randomness oracle
func (v *SealedVault) OracleAddress() string {
	return v.oracle.Address()
}

// Close stops background statistics collection and releases the archive
func (v *SealedVault) Close() error {
	v.cancel()
	if v.archive != nil {
		return v.archive.Close()
	}
	return nil
}

// validateBatch checks batch preconditions without mutating anything.
// Callers must hold the write lock.
func (v *SealedVault) validateBatch(keys []Key, rawValues [][]byte) error {
	if len(keys) != len(rawValues) {
		v.metrics.rejectedOps.WithLabelValues("length_mismatch").Inc()
		return ErrLengthMismatch
	}
	if len(keys) == 0 {
		v.metrics.rejectedOps.WithLabelValues("empty_batch").Inc()
		return ErrEmptyBatch
	}
	if max := v.config.Limits.MaxBatchSize; max > 0 && len(keys) > max {
		v.metrics.rejectedOps.WithLabelValues("batch_too_large").Inc()
		return ErrBatchTooLarge
	}
	seen := make(map[Key]struct{}, len(keys))
	for _, key := range keys {
		if v.entries[key].Initialized {
			v.metrics.rejectedOps.WithLabelValues("duplicate_key").Inc()
			return ErrDuplicateKey
		}
		if _, dup := seen[key]; dup {
			v.metrics.rejectedOps.WithLabelValues("duplicate_key").Inc()
			return ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}
	return nil
}

// fetchEntropy validates the request ID against the outstanding ledger and
// the oracle, then fetches the entropy. Callers must hold the write lock so
// that the check and the later consumption form one atomic step.
func (v *SealedVault) fetchEntropy(ctx context.Context, requestID RequestID) ([]byte, error) {
	if !v.outstanding[requestID] {
		v.metrics.rejectedOps.WithLabelValues("unknown_request").Inc()
		return nil, ErrUnknownRequest
	}
	fulfilled, err := v.oracle.IsRequestFulfilled(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("checking request fulfillment: %w", err)
	}
	if !fulfilled {
		v.metrics.rejectedOps.WithLabelValues("randomness_not_ready").Inc()
		return nil, ErrRandomnessNotReady
	}
	entropy, err := v.oracle.EncryptedEntropy(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("fetching entropy: %w", err)
	}
	return entropy, nil
}

// storeEntry commits a published value. Callers must hold the write lock and
// have validated that key is uninitialized.
func (v *SealedVault) storeEntry(ctx context.Context, key Key, ct Ciphertext) {
	v.entries[key] = Entry{Value: ct, Initialized: true}
	v.totalValues++
	v.metrics.totalValues.Set(float64(v.totalValues))

	if v.archive != nil {
		if err := v.archive.Save(ctx, key, ct.data); err != nil {
			v.metrics.archiveFailures.Inc()
			log.Printf("vault: archiving key %d failed: %v", key, err)
		}
	}
}

// emit delivers an event to every registered listener
func (v *SealedVault) emit(ctx context.Context, t EventType, requestID RequestID, keys []Key) {
	ev := Event{
		ID:        uuid.New().String(),
		Type:      t,
		Caller:    v.callerID,
		RequestID: requestID,
		Keys:      keys,
		Timestamp: time.Now(),
	}
	for _, listener := range v.listeners {
		listener(ctx, ev)
	}
}

// collectStatistics refreshes gauges on a fixed interval
func (v *SealedVault) collectStatistics(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-v.ctx.Done():
			return
		case <-ticker.C:
			v.mu.RLock()
			v.metrics.totalValues.Set(float64(v.totalValues))
			v.mu.RUnlock()
		}
	}
}

// ErrDuplicateKey is returned when a key is already initialized
var ErrDuplicateKey = fmt.Errorf("key already initialized")

// ErrLengthMismatch is returned when batch key and value slices differ in length
var ErrLengthMismatch = fmt.Errorf("batch length mismatch")

// ErrEmptyBatch is returned for a zero-length batch
var ErrEmptyBatch = fmt.Errorf("empty batch")

// ErrBatchTooLarge is returned when a batch exceeds the configured limit
var ErrBatchTooLarge = fmt.Errorf("batch exceeds configured limit")

// ErrUnknownRequest is returned when a request ID was never requested through
// this vault or has already been consumed
var ErrUnknownRequest = fmt.Errorf("unknown or consumed randomness request")

// ErrRandomnessNotReady is returned when the oracle has not fulfilled the request
var ErrRandomnessNotReady = fmt.Errorf("randomness not yet fulfilled")

// ErrInsufficientFee is returned when the payment is below the oracle's fee
var ErrInsufficientFee = fmt.Errorf("payment below oracle fee")

// ErrNotInitialized is returned when reading a key that was never published
var ErrNotInitialized = fmt.Errorf("key not initialized")

// ErrNotPublished is returned when revealing a ciphertext that is still sealed
var ErrNotPublished = fmt.Errorf("ciphertext not published")
