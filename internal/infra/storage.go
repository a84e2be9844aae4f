package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

// Storage drivers selectable by configuration.
const (
	DriverSQLCipher = "sqlcipher"
	DriverFile      = "file"
	DriverMemory    = "memory"
)

// Backend is a storage driver that also records the running host.
type Backend interface {
	domain.Storage
	domain.HostRegistry
	Close() error
}

// OpenStorage opens the configured backend. Changes are announced on pub.
func OpenStorage(driver, dataDir string, pub domain.ChangePublisher, logger *zap.Logger) (Backend, error) {
	switch driver {
	case DriverSQLCipher, "":
		key, err := LoadStorageKey(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load storage key: %w", err)
		}
		return NewEncryptedStorage(dataDir, key, pub, logger)
	case DriverFile:
		return NewFileStorage(dataDir, pub, logger)
	case DriverMemory:
		return NewMemoryStorage(pub, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// diffSet returns the changes produced by writing items over before.
// Writing an identical value is not a change.
func diffSet(before, items map[string]json.RawMessage) []domain.StorageChange {
	changes := make([]domain.StorageChange, 0, len(items))
	for key, value := range items {
		old, existed := before[key]
		if existed && sameJSON(old, value) {
			continue
		}
		change := domain.StorageChange{Key: key, NewValue: cloneRaw(value)}
		if existed {
			change.OldValue = cloneRaw(old)
		}
		changes = append(changes, change)
	}
	return changes
}

// diffRemove returns one change per key that existed before removal.
func diffRemove(before map[string]json.RawMessage, keys []string) []domain.StorageChange {
	changes := make([]domain.StorageChange, 0, len(keys))
	for _, key := range keys {
		if old, existed := before[key]; existed {
			changes = append(changes, domain.StorageChange{Key: key, OldValue: cloneRaw(old)})
		}
	}
	return changes
}

func sameJSON(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}

func validateItems(items map[string]json.RawMessage) error {
	for key, value := range items {
		if key == "" {
			return fmt.Errorf("storage key must not be empty")
		}
		if !json.Valid(value) {
			return fmt.Errorf("value for %q is not valid JSON", key)
		}
	}
	return nil
}

// publish announces changes; failures are logged, never returned to the writer.
func publish(ctx context.Context, pub domain.ChangePublisher, logger *zap.Logger, changes []domain.StorageChange) {
	if pub == nil || len(changes) == 0 {
		return
	}
	if err := pub.Publish(ctx, changes...); err != nil {
		logger.Warn("failed to publish storage changes", zap.Error(err))
	}
}
