package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

const storageFileName = "storage.json"

// fileDocument is the on-disk layout of FileStorage.
type fileDocument struct {
	Version int                        `json:"version"`
	Items   map[string]json.RawMessage `json:"items"`
	Host    *domain.HostInfo           `json:"host,omitempty"`
}

// FileStorage implements domain.Storage and domain.HostRegistry using a JSON file.
// Every operation holds an exclusive flock so several processes can share the file.
type FileStorage struct {
	path   string
	pub    domain.ChangePublisher
	logger *zap.Logger
}

// NewFileStorage creates a file-backed store in dataDir.
func NewFileStorage(dataDir string, pub domain.ChangePublisher, logger *zap.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return NewFileStorageWithPath(filepath.Join(dataDir, storageFileName), pub, logger), nil
}

// NewFileStorageWithPath creates a store at a specific path (for testing).
func NewFileStorageWithPath(path string, pub domain.ChangePublisher, logger *zap.Logger) *FileStorage {
	return &FileStorage{path: path, pub: pub, logger: logger}
}

// Path returns the storage file path.
func (s *FileStorage) Path() string {
	return s.path
}

// Get returns the values of existing keys.
func (s *FileStorage) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	var result map[string]json.RawMessage
	err := s.withLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		result = pick(doc.Items, keys)
		return nil
	})
	return result, err
}

// GetAll returns every item.
func (s *FileStorage) GetAll(ctx context.Context) (map[string]json.RawMessage, error) {
	var result map[string]json.RawMessage
	err := s.withLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		result = doc.Items
		return nil
	})
	return result, err
}

// Set writes all items and publishes the resulting changes.
func (s *FileStorage) Set(ctx context.Context, items map[string]json.RawMessage) error {
	if err := validateItems(items); err != nil {
		return err
	}

	var changes []domain.StorageChange
	err := s.withLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(items))
		for k := range items {
			keys = append(keys, k)
		}
		changes = diffSet(pick(doc.Items, keys), items)
		if len(changes) == 0 {
			return nil
		}
		for k, v := range items {
			doc.Items[k] = cloneRaw(v)
		}
		return s.atomicWrite(doc)
	})
	if err != nil {
		return err
	}

	publish(ctx, s.pub, s.logger, changes)
	return nil
}

// Remove deletes keys; absent keys are ignored.
func (s *FileStorage) Remove(ctx context.Context, keys ...string) error {
	var changes []domain.StorageChange
	err := s.withLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		changes = diffRemove(doc.Items, keys)
		if len(changes) == 0 {
			return nil
		}
		for _, k := range keys {
			delete(doc.Items, k)
		}
		return s.atomicWrite(doc)
	})
	if err != nil {
		return err
	}

	publish(ctx, s.pub, s.logger, changes)
	return nil
}

// --- domain.HostRegistry implementation ---

// RegisterHost saves the host entry.
func (s *FileStorage) RegisterHost(info domain.HostInfo) error {
	if info.LastHeartbeat == 0 {
		info.LastHeartbeat = time.Now().Unix()
	}
	return s.withLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		doc.Host = &info
		return s.atomicWrite(doc)
	})
}

// UpdateHeartbeat refreshes the host's liveness timestamp.
func (s *FileStorage) UpdateHeartbeat() error {
	return s.withLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		if doc.Host == nil {
			return errHostNotRegistered
		}
		doc.Host.LastHeartbeat = time.Now().Unix()
		return s.atomicWrite(doc)
	})
}

// GetHost returns the host entry, or nil.
func (s *FileStorage) GetHost() (*domain.HostInfo, error) {
	var host *domain.HostInfo
	err := s.withLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		host = doc.Host
		return nil
	})
	return host, err
}

// ClearHost removes the host entry.
func (s *FileStorage) ClearHost() error {
	return s.withLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		if doc.Host == nil {
			return nil
		}
		doc.Host = nil
		return s.atomicWrite(doc)
	})
}

// Close is a no-op; the file is opened per operation.
func (s *FileStorage) Close() error {
	return nil
}

// withLock runs fn while holding an exclusive lock on the storage lock file.
func (s *FileStorage) withLock(fn func() error) error {
	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	return fn()
}

// read loads the document; a missing file is an empty store.
func (s *FileStorage) read() (*fileDocument, error) {
	doc := &fileDocument{Version: 1, Items: make(map[string]json.RawMessage)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode storage file: %w", err)
	}
	if doc.Items == nil {
		doc.Items = make(map[string]json.RawMessage)
	}
	return doc, nil
}

// atomicWrite writes the document to a temp file and renames it into place.
func (s *FileStorage) atomicWrite(doc *fileDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	// Unique per process so concurrent writers never share a temp file.
	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func pick(items map[string]json.RawMessage, keys []string) map[string]json.RawMessage {
	result := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := items[k]; ok {
			result[k] = v
		}
	}
	return result
}

// Ensure FileStorage implements the backend interfaces.
var _ Backend = (*FileStorage)(nil)
