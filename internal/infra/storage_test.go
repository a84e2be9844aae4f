package infra

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

// recordingPublisher is a test double for domain.ChangePublisher.
type recordingPublisher struct {
	mu      sync.Mutex
	changes []domain.StorageChange
}

func (p *recordingPublisher) Publish(ctx context.Context, changes ...domain.StorageChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, changes...)
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, len(p.changes))
	for i, c := range p.changes {
		keys[i] = c.Key
	}
	sort.Strings(keys)
	return keys
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = nil
}

type backendFactory func(t *testing.T, pub domain.ChangePublisher) Backend

func backendFactories() map[string]backendFactory {
	return map[string]backendFactory{
		DriverMemory: func(t *testing.T, pub domain.ChangePublisher) Backend {
			return NewMemoryStorage(pub, zap.NewNop())
		},
		DriverFile: func(t *testing.T, pub domain.ChangePublisher) Backend {
			s, err := NewFileStorage(t.TempDir(), pub, zap.NewNop())
			require.NoError(t, err)
			return s
		},
		DriverSQLCipher: func(t *testing.T, pub domain.ChangePublisher) Backend {
			key, err := NewStorageKey()
			require.NoError(t, err)
			s, err := NewEncryptedStorage(t.TempDir(), key, pub, zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestBackends_GetSetRemove(t *testing.T) {
	ctx := context.Background()

	for name, factory := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			pub := &recordingPublisher{}
			s := factory(t, pub)

			require.NoError(t, s.Set(ctx, map[string]json.RawMessage{
				"focus_example.com": raw(`{"domain":"example.com","isActive":true}`),
				"user_theme":        raw(`"Ocean"`),
			}))

			got, err := s.Get(ctx, "focus_example.com", "focus_missing.com")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.JSONEq(t, `{"domain":"example.com","isActive":true}`, string(got["focus_example.com"]))

			all, err := s.GetAll(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)

			require.NoError(t, s.Remove(ctx, "focus_example.com"))
			got, err = s.Get(ctx, "focus_example.com")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestBackends_RemoveAbsentIsNoop(t *testing.T) {
	ctx := context.Background()

	for name, factory := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			pub := &recordingPublisher{}
			s := factory(t, pub)

			assert.NoError(t, s.Remove(ctx, "focus_never.com"))
			assert.NoError(t, s.Remove(ctx, "focus_never.com"))
			assert.NoError(t, s.Remove(ctx))
			assert.Empty(t, pub.keys(), "removing absent keys must not publish")
		})
	}
}

func TestBackends_PublishesChanges(t *testing.T) {
	ctx := context.Background()

	for name, factory := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			pub := &recordingPublisher{}
			s := factory(t, pub)

			require.NoError(t, s.Set(ctx, map[string]json.RawMessage{
				"a": raw(`1`),
				"b": raw(`2`),
			}))
			assert.Equal(t, []string{"a", "b"}, pub.keys())

			pub.reset()
			require.NoError(t, s.Set(ctx, map[string]json.RawMessage{"a": raw(` 1 `)}))
			assert.Empty(t, pub.keys(), "rewriting an identical value is not a change")

			require.NoError(t, s.Set(ctx, map[string]json.RawMessage{"a": raw(`3`)}))
			require.Len(t, pub.changes, 1)
			assert.JSONEq(t, `1`, string(pub.changes[0].OldValue))
			assert.JSONEq(t, `3`, string(pub.changes[0].NewValue))

			pub.reset()
			require.NoError(t, s.Remove(ctx, "a", "missing"))
			require.Len(t, pub.changes, 1)
			assert.True(t, pub.changes[0].Removed())
			assert.Equal(t, "a", pub.changes[0].Key)
		})
	}
}

func TestBackends_RejectInvalidJSON(t *testing.T) {
	for name, factory := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t, nil)
			err := s.Set(context.Background(), map[string]json.RawMessage{"k": raw(`{broken`)})
			assert.Error(t, err)
		})
	}
}

func TestBackends_HostRegistry(t *testing.T) {
	for name, factory := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t, nil)

			host, err := s.GetHost()
			require.NoError(t, err)
			assert.Nil(t, host)
			assert.Error(t, s.UpdateHeartbeat(), "heartbeat without registration")

			require.NoError(t, s.RegisterHost(domain.HostInfo{
				PID: 4242, Addr: "127.0.0.1:7474", Version: "1.0.0", StartedAt: 100,
			}))
			require.NoError(t, s.UpdateHeartbeat())

			host, err = s.GetHost()
			require.NoError(t, err)
			require.NotNil(t, host)
			assert.Equal(t, 4242, host.PID)
			assert.Equal(t, "127.0.0.1:7474", host.Addr)
			assert.NotZero(t, host.LastHeartbeat)

			require.NoError(t, s.ClearHost())
			host, err = s.GetHost()
			require.NoError(t, err)
			assert.Nil(t, host)
		})
	}
}

func TestEncryptedStorage_WrongKeyFails(t *testing.T) {
	dataDir := t.TempDir()
	key, err := NewStorageKey()
	require.NoError(t, err)

	s, err := NewEncryptedStorage(dataDir, key, nil, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), map[string]json.RawMessage{"k": raw(`1`)}))
	require.NoError(t, s.Close())

	otherKey, err := NewStorageKey()
	require.NoError(t, err)
	_, err = NewEncryptedStorage(dataDir, otherKey, nil, zap.NewNop())
	assert.Error(t, err, "database must not open with a different key")
}

func TestEncryptedStorage_Persists(t *testing.T) {
	dataDir := t.TempDir()
	key, err := NewStorageKey()
	require.NoError(t, err)

	s, err := NewEncryptedStorage(dataDir, key, nil, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), map[string]json.RawMessage{"user_theme": raw(`"Dark"`)}))
	require.NoError(t, s.Close())

	reopened, err := NewEncryptedStorage(dataDir, key, nil, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), "user_theme")
	require.NoError(t, err)
	assert.JSONEq(t, `"Dark"`, string(got["user_theme"]))
	assert.Equal(t, filepath.Join(dataDir, storageDBName), reopened.Path())
}

func TestOpenStorage(t *testing.T) {
	tests := []struct {
		driver  string
		wantErr bool
	}{
		{driver: DriverMemory},
		{driver: DriverFile},
		{driver: DriverSQLCipher},
		{driver: "redis", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			s, err := OpenStorage(tt.driver, t.TempDir(), nil, zap.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, s.Close())
		})
	}
}
