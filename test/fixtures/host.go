// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/client"
	"github.com/eliteGoblin/focusd/site_focus/internal/daemon"
	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/infra"
	"github.com/eliteGoblin/focusd/site_focus/internal/overlay"
	"github.com/eliteGoblin/focusd/site_focus/internal/server"
	"github.com/eliteGoblin/focusd/site_focus/internal/session"
	"github.com/eliteGoblin/focusd/site_focus/internal/theme"
	"github.com/eliteGoblin/focusd/site_focus/internal/usecase"
)

// Host is a complete sitefocus host serving from a temp data dir.
type Host struct {
	DataDir  string
	Driver   string
	Storage  infra.Backend
	Sessions *session.Store
	Alarms   *infra.TimerAlarms
	Tabs     *infra.TabRegistry
	Notes    *RecordingNotifier
	Client   *client.Client

	bus    *infra.ChangeBus
	http   *httptest.Server
	cancel context.CancelFunc
	done   chan error
}

// StartHost wires and starts a host on dataDir with the given storage driver.
// Sessions already in the store are swept before it returns.
func StartHost(dataDir, driver string) (*Host, error) {
	logger := zap.NewNop()
	clock := domain.SystemClock{}

	bus := infra.NewChangeBus(logger)
	backend, err := infra.OpenStorage(driver, dataDir, bus, logger)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}

	h := &Host{
		DataDir: dataDir,
		Driver:  driver,
		Storage: backend,
		Alarms:  infra.NewTimerAlarms(clock, 8, logger),
		Tabs:    infra.NewTabRegistry(clock, logger),
		Notes:   &RecordingNotifier{},
		bus:     bus,
		done:    make(chan error, 1),
	}
	h.Sessions = session.NewStore(backend, logger)
	themes := theme.NewRegistry()
	focus := usecase.NewFocusService(h.Sessions, h.Alarms, themes, clock, logger)
	popup := usecase.NewPopup(h.Tabs, focus, h.Sessions, themes, clock, nil, 0, logger)

	info := domain.HostInfo{PID: os.Getpid(), Version: "integration", StartedAt: time.Now().Unix()}
	srv := server.New(server.Deps{
		Popup:   popup,
		Storage: backend,
		Alarms:  h.Alarms,
		Feed:    bus,
		Tabs:    h.Tabs,
		Host:    info,
		Logger:  logger,
	})
	h.http = httptest.NewServer(srv.Handler())
	h.Client = client.New(h.http.URL)
	info.Addr = h.http.Listener.Addr().String()

	background := daemon.NewBackground(daemon.DefaultBackgroundConfig(), h.Sessions, h.Alarms, h.Notes,
		backend, clock, info, logger)

	// Sweep synchronously so callers observe a settled store.
	if _, err := background.Sweep(context.Background()); err != nil {
		h.Stop()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		h.done <- background.Run(ctx)
	}()
	return h, nil
}

// Stop shuts the host down and releases the store.
func (h *Host) Stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}
	h.http.Close()
	h.Alarms.Stop()
	_ = h.bus.Close()
	_ = h.Storage.Close()
}

// Page is a page context attached to a host with its overlay running.
type Page struct {
	Conn    *client.PageConn
	Surface *RecordingSurface

	cancel context.CancelFunc
	done   chan error
}

// OpenPage connects a page for pageURL and runs its overlay controller.
func (h *Host) OpenPage(pageURL string) (*Page, error) {
	pageDomain, err := domain.HostnameOf(pageURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn, err := h.Client.OpenPage(ctx, pageURL)
	if err != nil {
		cancel()
		return nil, err
	}

	logger := zap.NewNop()
	clock := domain.SystemClock{}
	themes := theme.NewRegistry()
	sessions := session.NewStore(h.Client.Storage(), logger)
	focus := usecase.NewFocusService(sessions, h.Client.Alarms(), themes, clock, logger)

	p := &Page{
		Conn:    conn,
		Surface: NewRecordingSurface(),
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	controller := overlay.NewController(pageDomain, sessions, focus, conn, themes, p.Surface, clock,
		100*time.Millisecond, logger)
	go func() {
		p.done <- controller.Run(ctx, conn.Reloads())
	}()
	return p, nil
}

// Close stops the overlay and disconnects the page.
func (p *Page) Close() {
	p.cancel()
	<-p.done
	_ = p.Conn.Close()
}

// RecordingNotifier keeps every notification raised.
type RecordingNotifier struct {
	mu    sync.Mutex
	notes []domain.Notification
}

// Notify records n.
func (n *RecordingNotifier) Notify(ctx context.Context, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

// All returns the notifications raised so far.
func (n *RecordingNotifier) All() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.notes...)
}

// RecordingSurface is an overlay surface that remembers what it shows.
type RecordingSurface struct {
	mu      sync.Mutex
	visible bool
	last    overlay.View
	mounts  int
	actions chan overlay.Action
}

// NewRecordingSurface creates an empty surface.
func NewRecordingSurface() *RecordingSurface {
	return &RecordingSurface{actions: make(chan overlay.Action, 4)}
}

func (s *RecordingSurface) Mount(v overlay.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = true
	s.last = v
	s.mounts++
}

func (s *RecordingSurface) Update(v overlay.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = v
}

func (s *RecordingSurface) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = false
}

func (s *RecordingSurface) Actions() <-chan overlay.Action {
	return s.actions
}

// Press simulates a button click.
func (s *RecordingSurface) Press(a overlay.Action) error {
	select {
	case s.actions <- a:
		return nil
	default:
		return errors.New("action queue full")
	}
}

// Visible reports whether the overlay is shown.
func (s *RecordingSurface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Last returns the most recent view drawn.
func (s *RecordingSurface) Last() overlay.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Mounts counts how many times the overlay was shown.
func (s *RecordingSurface) Mounts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounts
}

var (
	_ domain.Notifier = (*RecordingNotifier)(nil)
	_ overlay.Surface = (*RecordingSurface)(nil)
)
