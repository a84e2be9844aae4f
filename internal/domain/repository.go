package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Storage is the host's persistent key-value store, scoped to sitefocus.
// Values are JSON documents. Removing an absent key is a no-op.
// Implementations: sqlcipher (default), JSON file, go-cache (memory).
type Storage interface {
	// Get returns the values of the keys that exist; missing keys are omitted.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)

	// GetAll returns every stored item.
	GetAll(ctx context.Context) (map[string]json.RawMessage, error)

	// Set writes all items.
	Set(ctx context.Context, items map[string]json.RawMessage) error

	// Remove deletes the keys.
	Remove(ctx context.Context, keys ...string) error
}

// ChangePublisher receives one StorageChange per mutated key.
type ChangePublisher interface {
	Publish(ctx context.Context, changes ...StorageChange) error
}

// ChangeFeed streams storage changes to an observer until ctx is done.
type ChangeFeed interface {
	Subscribe(ctx context.Context) (<-chan StorageChange, error)
}

// AlarmScheduler schedules one-shot named wake-ups.
// Creating an alarm replaces any pending alarm with the same name.
type AlarmScheduler interface {
	// Create schedules name to fire after delay.
	Create(ctx context.Context, name string, delay time.Duration) error

	// Clear cancels a pending alarm. Returns false if none was pending.
	Clear(ctx context.Context, name string) (bool, error)

	// Get returns a pending alarm, or nil.
	Get(ctx context.Context, name string) (*Alarm, error)

	// All returns every pending alarm.
	All(ctx context.Context) ([]Alarm, error)

	// Fired delivers alarms as they go off.
	Fired() <-chan Alarm
}

// Notifier raises user notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// TabManager tracks open pages and the active one.
type TabManager interface {
	// Active returns the active tab, or ErrNoActiveTab.
	Active(ctx context.Context) (*Tab, error)

	// Reload asks the page to re-evaluate its state.
	Reload(ctx context.Context, tabID string) error
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// HostRegistry records the running host so the CLI can find it.
type HostRegistry interface {
	// RegisterHost saves the host entry.
	RegisterHost(info HostInfo) error

	// UpdateHeartbeat refreshes the host's liveness timestamp.
	UpdateHeartbeat() error

	// GetHost returns the host entry, or nil if none registered.
	GetHost() (*HostInfo, error)

	// ClearHost removes the host entry.
	ClearHost() error
}

// Clock abstracts wall time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
