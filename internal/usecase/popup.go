package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/session"
	"github.com/eliteGoblin/focusd/site_focus/internal/theme"
)

// DefaultDurations are the session lengths offered by the popup, in minutes.
var DefaultDurations = []int{15, 25, 30, 45, 60, 90}

// DefaultMinutes is the preselected session length.
const DefaultMinutes = 25

// PopupState is what the popup shows for the active tab.
type PopupState struct {
	Tab            *domain.Tab     `json:"tab"`
	Domain         string          `json:"domain"`
	Session        *domain.Session `json:"session,omitempty"`
	RemainingMs    int64           `json:"remainingMs,omitempty"`
	Theme          string          `json:"theme"`
	Themes         []string        `json:"themes"`
	Durations      []int           `json:"durations"`
	DefaultMinutes int             `json:"defaultMinutes"`
	DashboardURL   string          `json:"dashboardUrl"`
}

// Active reports whether focus mode is on for the tab's domain.
func (s *PopupState) Active() bool {
	return s.Session != nil && s.Session.IsActive
}

// StartOptions are the popup's start controls.
type StartOptions struct {
	Timed   bool   `json:"timed"`
	Minutes int    `json:"minutes" validate:"gte=0,lte=1440"`
	Theme   string `json:"theme" validate:"omitempty,max=32"`
}

// Popup drives focus mode for whatever page is active.
type Popup struct {
	tabs           domain.TabManager
	focus          *FocusService
	sessions       *session.Store
	themes         *theme.Registry
	clock          domain.Clock
	durations      []int
	defaultMinutes int
	logger         *zap.Logger
}

// NewPopup creates a popup controller. Empty durations select the defaults.
func NewPopup(
	tabs domain.TabManager,
	focus *FocusService,
	sessions *session.Store,
	themes *theme.Registry,
	clock domain.Clock,
	durations []int,
	defaultMinutes int,
	logger *zap.Logger,
) *Popup {
	if len(durations) == 0 {
		durations = DefaultDurations
	}
	if defaultMinutes <= 0 {
		defaultMinutes = DefaultMinutes
	}
	return &Popup{
		tabs:           tabs,
		focus:          focus,
		sessions:       sessions,
		themes:         themes,
		clock:          clock,
		durations:      durations,
		defaultMinutes: defaultMinutes,
		logger:         logger,
	}
}

// Load reads the active tab's session. Store failures are logged and the
// state is returned without a session.
func (p *Popup) Load(ctx context.Context) (*PopupState, error) {
	tab, d, err := p.activeDomain(ctx)
	if err != nil {
		return nil, err
	}

	state := &PopupState{
		Tab:            tab,
		Domain:         d,
		Theme:          theme.DefaultName,
		Themes:         p.themes.List(),
		Durations:      p.durations,
		DefaultMinutes: p.defaultMinutes,
		DashboardURL:   domain.DashboardURL,
	}

	if name, err := p.sessions.Theme(ctx); err != nil {
		p.logger.Warn("failed to load theme preference", zap.Error(err))
	} else if name != "" {
		state.Theme = p.themes.Lookup(name).Name
	}

	sess, err := p.sessions.Get(ctx, d)
	if err != nil {
		p.logger.Warn("failed to load session", zap.String("domain", d), zap.Error(err))
		return state, nil
	}
	state.Session = sess
	if sess != nil && sess.IsTimed() {
		state.RemainingMs = sess.Remaining(p.clock.Now()).Milliseconds()
	}
	return state, nil
}

// StartFocus turns focus mode on for the active tab and reloads it.
func (p *Popup) StartFocus(ctx context.Context, opts StartOptions) (*PopupState, error) {
	tab, d, err := p.activeDomain(ctx)
	if err != nil {
		return nil, err
	}

	if opts.Timed && opts.Minutes == 0 {
		opts.Minutes = p.defaultMinutes
	}
	if opts.Theme == "" {
		if stored, err := p.sessions.Theme(ctx); err == nil && stored != "" {
			opts.Theme = p.themes.Lookup(stored).Name
		}
	}

	if _, err := p.focus.Start(ctx, StartRequest{
		Domain:  d,
		Timed:   opts.Timed,
		Minutes: opts.Minutes,
		Theme:   opts.Theme,
	}); err != nil {
		return nil, err
	}

	p.reload(ctx, tab)
	return p.Load(ctx)
}

// StopFocus turns focus mode off for the active tab and reloads it.
func (p *Popup) StopFocus(ctx context.Context) (*PopupState, error) {
	tab, d, err := p.activeDomain(ctx)
	if err != nil {
		return nil, err
	}

	if err := p.focus.Stop(ctx, d); err != nil {
		return nil, err
	}

	p.reload(ctx, tab)
	return p.Load(ctx)
}

// ChangeTheme saves the theme preference used by the next session.
func (p *Popup) ChangeTheme(ctx context.Context, name string) error {
	if err := p.themes.Validate(name); err != nil {
		return err
	}
	if err := p.sessions.SetTheme(ctx, name); err != nil {
		return err
	}
	p.logger.Info("theme changed", zap.String("theme", name))
	return nil
}

// activeDomain resolves the active tab and its hostname. A tab without a
// usable hostname counts as no active tab.
func (p *Popup) activeDomain(ctx context.Context) (*domain.Tab, string, error) {
	tab, err := p.tabs.Active(ctx)
	if err != nil {
		return nil, "", err
	}
	d, err := domain.HostnameOf(tab.URL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: tab %s has no usable URL", domain.ErrNoActiveTab, tab.ID)
	}
	return tab, d, nil
}

func (p *Popup) reload(ctx context.Context, tab *domain.Tab) {
	if err := p.tabs.Reload(ctx, tab.ID); err != nil && !errors.Is(err, domain.ErrNoActiveTab) {
		p.logger.Warn("failed to reload tab", zap.String("tab_id", tab.ID), zap.Error(err))
	}
}
