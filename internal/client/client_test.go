package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/infra"
	"github.com/eliteGoblin/focusd/site_focus/internal/server"
	"github.com/eliteGoblin/focusd/site_focus/internal/session"
	"github.com/eliteGoblin/focusd/site_focus/internal/theme"
	"github.com/eliteGoblin/focusd/site_focus/internal/usecase"
)

type hostFixture struct {
	storage *infra.MemoryStorage
	alarms  *infra.TimerAlarms
	tabs    *infra.TabRegistry
	client  *Client
}

func newHostFixture(t *testing.T) *hostFixture {
	t.Helper()
	logger := zap.NewNop()
	clock := domain.SystemClock{}

	bus := infra.NewChangeBus(logger)
	f := &hostFixture{
		storage: infra.NewMemoryStorage(bus, logger),
		alarms:  infra.NewTimerAlarms(clock, 8, logger),
		tabs:    infra.NewTabRegistry(clock, logger),
	}
	sessions := session.NewStore(f.storage, logger)
	themes := theme.NewRegistry()
	focus := usecase.NewFocusService(sessions, f.alarms, themes, clock, logger)
	popup := usecase.NewPopup(f.tabs, focus, sessions, themes, clock, nil, 0, logger)

	srv := server.New(server.Deps{
		Popup:   popup,
		Storage: f.storage,
		Alarms:  f.alarms,
		Feed:    bus,
		Tabs:    f.tabs,
		Host:    domain.HostInfo{PID: 42, Version: "test"},
		Logger:  logger,
	})
	ts := httptest.NewServer(srv.Handler())
	f.client = New(ts.URL)

	t.Cleanup(func() {
		ts.Close()
		f.alarms.Stop()
		_ = bus.Close()
	})
	return f
}

func (f *hostFixture) openPage(t *testing.T, pageURL string) *PageConn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	page, err := f.client.OpenPage(ctx, pageURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = page.Close() })
	return page
}

func TestNew_NormalizesAddr(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{addr: "127.0.0.1:7717", want: "http://127.0.0.1:7717"},
		{addr: "http://localhost:9000/", want: "http://localhost:9000"},
		{addr: "https://host.example", want: "https://host.example"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.addr).BaseURL())
		})
	}
}

func TestHealth(t *testing.T) {
	f := newHostFixture(t)

	status, err := f.client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 42, status.PID)
}

func TestHealth_HostNotRunning(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	_, err := New(addr).Health(context.Background())
	assert.ErrorIs(t, err, domain.ErrHostNotRunning)
}

func TestPopup_NoActiveTab(t *testing.T) {
	f := newHostFixture(t)

	_, err := f.client.Popup(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoActiveTab)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestStartStop(t *testing.T) {
	f := newHostFixture(t)
	ctx := context.Background()
	page := f.openPage(t, "https://news.example.com/today")

	state, err := f.client.Start(ctx, usecase.StartOptions{Timed: true, Minutes: 15, Theme: "Forest"})
	require.NoError(t, err)
	require.True(t, state.Active())
	assert.Equal(t, "news.example.com", state.Domain)
	assert.Equal(t, "Forest", state.Session.Theme)

	select {
	case <-page.Reloads():
	case <-time.After(2 * time.Second):
		t.Fatal("page was not reloaded after start")
	}

	alarm, err := f.alarms.Get(ctx, domain.SessionKey("news.example.com"))
	require.NoError(t, err)
	require.NotNil(t, alarm)

	state, err = f.client.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, state.Active())

	alarm, err = f.alarms.Get(ctx, domain.SessionKey("news.example.com"))
	require.NoError(t, err)
	assert.Nil(t, alarm)
}

func TestStart_Errors(t *testing.T) {
	f := newHostFixture(t)
	f.openPage(t, "https://example.com")

	tests := []struct {
		name    string
		opts    usecase.StartOptions
		wantErr error
	}{
		{name: "unknown theme", opts: usecase.StartOptions{Theme: "Neon"}, wantErr: domain.ErrUnknownTheme},
		{name: "negative minutes", opts: usecase.StartOptions{Timed: true, Minutes: -5}, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.client.Start(context.Background(), tt.opts)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		})
	}
}

func TestSetTheme(t *testing.T) {
	f := newHostFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.SetTheme(ctx, "Sunset"))

	items, err := f.storage.Get(ctx, domain.ThemePreferenceKey)
	require.NoError(t, err)
	assert.JSONEq(t, `"Sunset"`, string(items[domain.ThemePreferenceKey]))

	err = f.client.SetTheme(ctx, "Neon")
	assert.ErrorIs(t, err, domain.ErrUnknownTheme)
}

func TestStorage(t *testing.T) {
	f := newHostFixture(t)
	ctx := context.Background()
	store := f.client.Storage()

	require.NoError(t, store.Set(ctx, map[string]json.RawMessage{
		"focus_a.com": json.RawMessage(`{"domain":"a.com","isActive":true}`),
		"focus_b.com": json.RawMessage(`{"domain":"b.com","isActive":true}`),
	}))

	got, err := store.Get(ctx, "focus_a.com", "focus_missing.com")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.JSONEq(t, `{"domain":"a.com","isActive":true}`, string(got["focus_a.com"]))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.Remove(ctx, "focus_a.com", "focus_missing.com"))
	all, err = store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	empty, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAlarms(t *testing.T) {
	f := newHostFixture(t)
	ctx := context.Background()
	alarms := f.client.Alarms()

	require.NoError(t, alarms.Create(ctx, "focus_a.com", time.Hour))

	list, err := alarms.All(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "focus_a.com", list[0].Name)

	got, err := alarms.Get(ctx, "focus_a.com")
	require.NoError(t, err)
	require.NotNil(t, got)

	missing, err := alarms.Get(ctx, "focus_b.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	cleared, err := alarms.Clear(ctx, "focus_a.com")
	require.NoError(t, err)
	assert.True(t, cleared)

	cleared, err = alarms.Clear(ctx, "focus_a.com")
	require.NoError(t, err)
	assert.False(t, cleared)
}

func TestPageConn_ReceivesChanges(t *testing.T) {
	f := newHostFixture(t)
	page := f.openPage(t, "https://example.com/watch")
	assert.Equal(t, "https://example.com/watch", page.Tab().URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := page.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, f.storage.Set(context.Background(), map[string]json.RawMessage{
		"focus_example.com": json.RawMessage(`{"domain":"example.com","isActive":true}`),
	}))

	select {
	case change := <-changes:
		assert.Equal(t, "focus_example.com", change.Key)
		assert.False(t, change.Removed())
	case <-time.After(2 * time.Second):
		t.Fatal("change was not delivered")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-changes
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPageConn_ActivateAndClose(t *testing.T) {
	f := newHostFixture(t)
	first := f.openPage(t, "https://first.example")
	f.openPage(t, "https://second.example")

	require.NoError(t, first.Activate())
	require.Eventually(t, func() bool {
		tab, err := f.tabs.Active(context.Background())
		return err == nil && tab.ID == first.Tab().ID
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool {
		return len(f.tabs.All()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := <-first.Reloads()
	assert.False(t, ok)
	_, err := first.Subscribe(context.Background())
	assert.Error(t, err)
}
