package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/propscan/hmo-backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// StateStore is the key-value port behind the calculator persistence shim.
// Implementations must treat values as opaque strings.
type StateStore interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisStateStore persists calculator state in Redis.
type RedisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore creates a Redis-backed state store
func NewRedisStateStore(addr, password string) *RedisStateStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &RedisStateStore{client: rdb}
}

func (r *RedisStateStore) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logrus.WithError(err).WithField("key", key).Warn("Redis state read failed")
		}
		return "", false
	}
	return val, true
}

func (r *RedisStateStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisStateStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Ping verifies the Redis connection
func (r *RedisStateStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// MemoryStateStore is an in-process StateStore used in tests and in
// deployments without Redis.
type MemoryStateStore struct {
	mutex   sync.RWMutex
	entries map[string]memoryStateEntry
}

type memoryStateEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStateStore creates an in-memory state store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		entries: make(map[string]memoryStateEntry),
	}
}

func (m *MemoryStateStore) Get(ctx context.Context, key string) (string, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	entry, exists := m.entries[key]
	if !exists {
		return "", false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

func (m *MemoryStateStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry := memoryStateEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryStateStore) Delete(ctx context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.entries, key)
	return nil
}

// persistedCalcState is the stored envelope: the full input model plus the
// save timestamp consulted by the freshness window.
type persistedCalcState struct {
	Inputs    models.DealInputs `json:"inputs"`
	Timestamp time.Time         `json:"timestamp"`
}

// CalcStateService is the calculator persistence shim. It saves the full
// input model under a single key per client and restores it on load, with
// a freshness window: state older than the window is discarded and the
// defaults returned. Corrupt or missing state is never an error, only a
// fall back to defaults.
type CalcStateService struct {
	store           StateStore
	freshnessWindow time.Duration

	// clock is swapped out in tests to exercise the freshness window
	clock func() time.Time
}

// DefaultStateFreshnessWindow is how long saved calculator state stays usable.
const DefaultStateFreshnessWindow = 24 * time.Hour

// NewCalcStateService creates the persistence shim over the given store
func NewCalcStateService(store StateStore) *CalcStateService {
	return &CalcStateService{
		store:           store,
		freshnessWindow: DefaultStateFreshnessWindow,
		clock:           time.Now,
	}
}

// NewCalcStateServiceWithWindow creates the shim with a custom freshness window
func NewCalcStateServiceWithWindow(store StateStore, window time.Duration) *CalcStateService {
	return &CalcStateService{
		store:           store,
		freshnessWindow: window,
		clock:           time.Now,
	}
}

func stateKey(clientID string) string {
	return fmt.Sprintf("calc_state:%s", clientID)
}

// SaveState serializes the full input model plus a generated timestamp to the
// client's state key. The store TTL matches the freshness window so stale
// state also ages out of the store itself.
func (s *CalcStateService) SaveState(ctx context.Context, clientID string, inputs models.DealInputs) error {
	envelope := persistedCalcState{
		Inputs:    inputs,
		Timestamp: s.clock(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to serialize calculator state: %w", err)
	}

	if err := s.store.Set(ctx, stateKey(clientID), string(payload), s.freshnessWindow); err != nil {
		return fmt.Errorf("failed to persist calculator state: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"client_id": clientID,
		"bytes":     len(payload),
	}).Debug("Calculator state saved")

	return nil
}

// LoadState restores the client's saved input model. Absent, corrupt, or
// stale state yields the defaults; saved fields are merged over the defaults
// so fields missing from older payloads keep their default values. The
// second return reports whether saved state was actually restored.
func (s *CalcStateService) LoadState(ctx context.Context, clientID string) (models.DealInputs, bool) {
	defaults := DefaultDealInputs()

	raw, found := s.store.Get(ctx, stateKey(clientID))
	if !found {
		return defaults, false
	}

	// Unmarshal over a defaults-initialized model: only fields present in
	// the payload are overwritten, which is exactly the per-field merge.
	envelope := persistedCalcState{Inputs: defaults}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		logrus.WithError(err).WithField("client_id", clientID).Warn("Discarding corrupt calculator state")
		return DefaultDealInputs(), false
	}

	if envelope.Timestamp.IsZero() || s.clock().Sub(envelope.Timestamp) > s.freshnessWindow {
		logrus.WithFields(logrus.Fields{
			"client_id": clientID,
			"saved_at":  envelope.Timestamp,
		}).Debug("Discarding stale calculator state")
		return DefaultDealInputs(), false
	}

	return envelope.Inputs, true
}

// ClearState removes the client's saved state
func (s *CalcStateService) ClearState(ctx context.Context, clientID string) error {
	return s.store.Delete(ctx, stateKey(clientID))
}
