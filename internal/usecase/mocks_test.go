package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/infra"
	"github.com/eliteGoblin/focusd/site_focus/internal/session"
	"github.com/eliteGoblin/focusd/site_focus/internal/theme"
)

// fakeClock is a settable domain.Clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockAlarms records scheduled alarms for testing
type mockAlarms struct {
	pending   map[string]time.Duration
	createErr error
	clearErr  error
	cleared   []string
}

func newMockAlarms() *mockAlarms {
	return &mockAlarms{pending: make(map[string]time.Duration)}
}

func (m *mockAlarms) Create(ctx context.Context, name string, delay time.Duration) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.pending[name] = delay
	return nil
}

func (m *mockAlarms) Clear(ctx context.Context, name string) (bool, error) {
	if m.clearErr != nil {
		return false, m.clearErr
	}
	m.cleared = append(m.cleared, name)
	_, ok := m.pending[name]
	delete(m.pending, name)
	return ok, nil
}

// mockTabs implements domain.TabManager with a single optional tab
type mockTabs struct {
	active   *domain.Tab
	reloaded []string
}

func (m *mockTabs) Active(ctx context.Context) (*domain.Tab, error) {
	if m.active == nil {
		return nil, domain.ErrNoActiveTab
	}
	tab := *m.active
	return &tab, nil
}

func (m *mockTabs) Reload(ctx context.Context, tabID string) error {
	m.reloaded = append(m.reloaded, tabID)
	return nil
}

type fixture struct {
	clock    *fakeClock
	storage  *infra.MemoryStorage
	sessions *session.Store
	alarms   *mockAlarms
	tabs     *mockTabs
	focus    *FocusService
	popup    *Popup
}

func newFixture() *fixture {
	logger := zap.NewNop()
	f := &fixture{
		clock:   &fakeClock{now: time.UnixMilli(1_700_000_000_000)},
		storage: infra.NewMemoryStorage(nil, logger),
		alarms:  newMockAlarms(),
		tabs:    &mockTabs{active: &domain.Tab{ID: "tab-1", URL: "https://www.youtube.com/watch?v=1"}},
	}
	f.sessions = session.NewStore(f.storage, logger)
	themes := theme.NewRegistry()
	f.focus = NewFocusService(f.sessions, f.alarms, themes, f.clock, logger)
	f.popup = NewPopup(f.tabs, f.focus, f.sessions, themes, f.clock, nil, 0, logger)
	return f
}
