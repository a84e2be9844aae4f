package infra

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	storageKeyFile = "sitefocus.key"
	storageKeyLen  = 32
)

// NewStorageKey returns fresh random bytes for keying the encrypted store.
func NewStorageKey() ([]byte, error) {
	key := make([]byte, storageKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return key, nil
}

// StorageKeyPath is where LoadStorageKey keeps the key for dataDir.
func StorageKeyPath(dataDir string) string {
	return filepath.Join(dataDir, storageKeyFile)
}

// LoadStorageKey returns the database key for dataDir, minting one on first
// use. A new key is published with a hard link from a finished temp file, so
// hosts racing on an empty data dir all end up with the same key.
func LoadStorageKey(dataDir string) ([]byte, error) {
	path := StorageKeyPath(dataDir)

	key, err := readStorageKey(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return key, err
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	key, err = NewStorageKey()
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(dataDir, storageKeyFile+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create key file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, werr := tmp.WriteString(hex.EncodeToString(key) + "\n")
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return nil, fmt.Errorf("failed to write key file: %w", werr)
	}

	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return readStorageKey(path)
		}
		return nil, fmt.Errorf("failed to publish key file: %w", err)
	}
	return key, nil
}

func readStorageKey(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0077 != 0 {
		return nil, fmt.Errorf("key file %s is accessible to other users (mode %v)", path, info.Mode().Perm())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("key file %s is not hex: %w", path, err)
	}
	if len(key) != storageKeyLen {
		return nil, fmt.Errorf("key file %s holds %d bytes, want %d", path, len(key), storageKeyLen)
	}
	return key, nil
}
