package infra

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

// TabRegistry implements domain.TabManager for pages connected to the host.
// The most recently opened or activated tab is the active one.
type TabRegistry struct {
	mu     sync.Mutex
	tabs   map[string]*openTab
	seq    uint64
	clock  domain.Clock
	logger *zap.Logger
}

type openTab struct {
	tab     domain.Tab
	reload  chan struct{}
	touched uint64
}

// NewTabRegistry creates an empty registry.
func NewTabRegistry(clock domain.Clock, logger *zap.Logger) *TabRegistry {
	return &TabRegistry{
		tabs:   make(map[string]*openTab),
		clock:  clock,
		logger: logger,
	}
}

// Open registers a page and makes it active. The returned channel receives a
// signal for every Reload of the tab and is closed by Close.
func (r *TabRegistry) Open(url string) (domain.Tab, <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	t := &openTab{
		tab: domain.Tab{
			ID:       uuid.NewString(),
			URL:      url,
			OpenedAt: r.clock.Now(),
		},
		reload:  make(chan struct{}, 1),
		touched: r.seq,
	}
	r.tabs[t.tab.ID] = t

	r.logger.Debug("tab opened", zap.String("tab_id", t.tab.ID), zap.String("url", url))
	return t.tab, t.reload
}

// Close unregisters a tab. Closing an unknown tab is a no-op.
func (r *TabRegistry) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tabs[id]
	if !ok {
		return
	}
	close(t.reload)
	delete(r.tabs, id)
	r.logger.Debug("tab closed", zap.String("tab_id", id))
}

// Activate makes a tab the active one. Returns false for an unknown tab.
func (r *TabRegistry) Activate(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tabs[id]
	if !ok {
		return false
	}
	r.seq++
	t.touched = r.seq
	return true
}

// Active returns the active tab, or domain.ErrNoActiveTab.
func (r *TabRegistry) Active(ctx context.Context) (*domain.Tab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active *openTab
	for _, t := range r.tabs {
		if active == nil || t.touched > active.touched {
			active = t
		}
	}
	if active == nil {
		return nil, domain.ErrNoActiveTab
	}
	tab := active.tab
	return &tab, nil
}

// Reload signals the tab's page. Pending signals coalesce; an unknown tab is a no-op.
func (r *TabRegistry) Reload(ctx context.Context, tabID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tabs[tabID]
	if !ok {
		r.logger.Debug("reload for closed tab", zap.String("tab_id", tabID))
		return nil
	}
	select {
	case t.reload <- struct{}{}:
	default:
	}
	return nil
}

// All returns open tabs, oldest first.
func (r *TabRegistry) All() []domain.Tab {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.Tab, 0, len(r.tabs))
	for _, t := range r.tabs {
		result = append(result, t.tab)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenedAt.Before(result[j].OpenedAt)
	})
	return result
}

// Ensure TabRegistry implements domain.TabManager.
var _ domain.TabManager = (*TabRegistry)(nil)
