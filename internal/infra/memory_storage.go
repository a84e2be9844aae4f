package infra

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

const hostCacheKey = "\x00host"

// MemoryStorage implements domain.Storage and domain.HostRegistry on go-cache.
// Nothing survives a restart; used for tests and `storage.driver: memory`.
type MemoryStorage struct {
	mu     sync.Mutex // serializes read-diff-write so change events are accurate
	items  *cache.Cache
	pub    domain.ChangePublisher
	logger *zap.Logger
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage(pub domain.ChangePublisher, logger *zap.Logger) *MemoryStorage {
	return &MemoryStorage{
		items:  cache.New(cache.NoExpiration, 0),
		pub:    pub,
		logger: logger,
	}
}

// Get returns the values of existing keys.
func (s *MemoryStorage) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(keys), nil
}

// GetAll returns every item.
func (s *MemoryStorage) GetAll(ctx context.Context) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]json.RawMessage)
	for key, item := range s.items.Items() {
		if key == hostCacheKey {
			continue
		}
		result[key] = cloneRaw(item.Object.(json.RawMessage))
	}
	return result, nil
}

// Set writes all items and publishes the resulting changes.
func (s *MemoryStorage) Set(ctx context.Context, items map[string]json.RawMessage) error {
	if err := validateItems(items); err != nil {
		return err
	}

	s.mu.Lock()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	changes := diffSet(s.getLocked(keys), items)
	for key, value := range items {
		s.items.Set(key, cloneRaw(value), cache.NoExpiration)
	}
	s.mu.Unlock()

	publish(ctx, s.pub, s.logger, changes)
	return nil
}

// Remove deletes keys; absent keys are ignored.
func (s *MemoryStorage) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	changes := diffRemove(s.getLocked(keys), keys)
	for _, key := range keys {
		s.items.Delete(key)
	}
	s.mu.Unlock()

	publish(ctx, s.pub, s.logger, changes)
	return nil
}

func (s *MemoryStorage) getLocked(keys []string) map[string]json.RawMessage {
	result := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if v, found := s.items.Get(key); found {
			result[key] = cloneRaw(v.(json.RawMessage))
		}
	}
	return result
}

// --- domain.HostRegistry implementation ---

// RegisterHost saves the host entry.
func (s *MemoryStorage) RegisterHost(info domain.HostInfo) error {
	if info.LastHeartbeat == 0 {
		info.LastHeartbeat = time.Now().Unix()
	}
	s.items.Set(hostCacheKey, info, cache.NoExpiration)
	return nil
}

// UpdateHeartbeat refreshes the host's liveness timestamp.
func (s *MemoryStorage) UpdateHeartbeat() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, found := s.items.Get(hostCacheKey)
	if !found {
		return errHostNotRegistered
	}
	info := v.(domain.HostInfo)
	info.LastHeartbeat = time.Now().Unix()
	s.items.Set(hostCacheKey, info, cache.NoExpiration)
	return nil
}

// GetHost returns the host entry, or nil.
func (s *MemoryStorage) GetHost() (*domain.HostInfo, error) {
	v, found := s.items.Get(hostCacheKey)
	if !found {
		return nil, nil
	}
	info := v.(domain.HostInfo)
	return &info, nil
}

// ClearHost removes the host entry.
func (s *MemoryStorage) ClearHost() error {
	s.items.Delete(hostCacheKey)
	return nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

// Ensure MemoryStorage implements the backend interfaces.
var _ Backend = (*MemoryStorage)(nil)
