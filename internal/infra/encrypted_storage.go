package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const storageDBName = "storage.db"

var errHostNotRegistered = errors.New("host not registered")

// EncryptedStorage implements domain.Storage and domain.HostRegistry
// using a SQLCipher encrypted SQLite database.
type EncryptedStorage struct {
	db     *sql.DB
	dbPath string
	pub    domain.ChangePublisher
	logger *zap.Logger
}

// NewEncryptedStorage opens (or creates) the encrypted store in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedStorage(dataDir string, key []byte, pub domain.ChangePublisher, logger *zap.Logger) (*EncryptedStorage, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storageDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096&_busy_timeout=5000", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	// One writer keeps read-diff-write sequences serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &EncryptedStorage{db: db, dbPath: dbPath, pub: pub, logger: logger}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *EncryptedStorage) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS host_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		pid INTEGER NOT NULL,
		addr TEXT NOT NULL,
		version TEXT DEFAULT '',
		started_at INTEGER NOT NULL,
		last_heartbeat INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *EncryptedStorage) Path() string {
	return s.dbPath
}

// --- domain.Storage implementation ---

// Get returns the values of existing keys.
func (s *EncryptedStorage) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	return queryKeys(ctx, s.db, keys)
}

// GetAll returns every item.
func (s *EncryptedStorage) GetAll(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv`)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// Set writes all items in one transaction and publishes the changes.
func (s *EncryptedStorage) Set(ctx context.Context, items map[string]json.RawMessage) error {
	if err := validateItems(items); err != nil {
		return err
	}
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	before, err := queryKeys(ctx, tx, keys)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	for key, value := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)`,
			key, string(value), now)
		if err != nil {
			return fmt.Errorf("failed to write %q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	publish(ctx, s.pub, s.logger, diffSet(before, items))
	return nil
}

// Remove deletes keys; absent keys are ignored.
func (s *EncryptedStorage) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	before, err := queryKeys(ctx, tx, keys)
	if err != nil {
		return err
	}
	query := `DELETE FROM kv WHERE key IN (` + placeholders(len(keys)) + `)`
	if _, err := tx.ExecContext(ctx, query, toArgs(keys)...); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	publish(ctx, s.pub, s.logger, diffRemove(before, keys))
	return nil
}

// --- domain.HostRegistry implementation ---

// RegisterHost saves the host entry, replacing any previous one.
func (s *EncryptedStorage) RegisterHost(info domain.HostInfo) error {
	if info.LastHeartbeat == 0 {
		info.LastHeartbeat = time.Now().Unix()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO host_state (id, pid, addr, version, started_at, last_heartbeat)
		VALUES (1, ?, ?, ?, ?, ?)`,
		info.PID, info.Addr, info.Version, info.StartedAt, info.LastHeartbeat,
	)
	return err
}

// UpdateHeartbeat refreshes the host's liveness timestamp.
func (s *EncryptedStorage) UpdateHeartbeat() error {
	result, err := s.db.Exec(`UPDATE host_state SET last_heartbeat = ? WHERE id = 1`, time.Now().Unix())
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errHostNotRegistered
	}
	return nil
}

// GetHost returns the host entry, or nil if none registered.
func (s *EncryptedStorage) GetHost() (*domain.HostInfo, error) {
	var info domain.HostInfo
	err := s.db.QueryRow(`SELECT pid, addr, version, started_at, last_heartbeat FROM host_state WHERE id = 1`).
		Scan(&info.PID, &info.Addr, &info.Version, &info.StartedAt, &info.LastHeartbeat)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ClearHost removes the host entry.
func (s *EncryptedStorage) ClearHost() error {
	_, err := s.db.Exec(`DELETE FROM host_state`)
	return err
}

// Close releases the database connection.
func (s *EncryptedStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure EncryptedStorage implements the backend interfaces.
var _ Backend = (*EncryptedStorage)(nil)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryKeys(ctx context.Context, q querier, keys []string) (map[string]json.RawMessage, error) {
	if len(keys) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	query := `SELECT key, value FROM kv WHERE key IN (` + placeholders(len(keys)) + `)`
	rows, err := q.QueryContext(ctx, query, toArgs(keys)...)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func scanItems(rows *sql.Rows) (map[string]json.RawMessage, error) {
	defer rows.Close()

	items := make(map[string]json.RawMessage)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		items[k] = json.RawMessage(v)
	}
	return items, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(keys []string) []any {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return args
}
