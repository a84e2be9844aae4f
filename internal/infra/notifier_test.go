package infra

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

type invocation struct {
	name string
	args []string
}

// mockCommandRunner records commands instead of executing them
type mockCommandRunner struct {
	mu    sync.Mutex
	calls []invocation
	done  chan struct{}
	err   error
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{done: make(chan struct{}, 16)}
}

func (m *mockCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	m.mu.Lock()
	m.calls = append(m.calls, invocation{name: name, args: args})
	m.mu.Unlock()
	m.done <- struct{}{}
	return m.err
}

func (m *mockCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return nil, m.Run(ctx, name, args...)
}

func (m *mockCommandRunner) waitCall(t *testing.T) invocation {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("command was not run")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

func (m *mockCommandRunner) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func completion() domain.Notification {
	return domain.Notification{Title: "Focus Session Complete! 🎉", Message: `Great job staying focused on "example.com"!`}
}

func TestDesktopNotifier_Darwin(t *testing.T) {
	runner := newMockCommandRunner()
	n := NewDesktopNotifierWithDeps(true, "", "darwin", runner, func(string) bool { return true }, zap.NewNop())

	require.NoError(t, n.Notify(context.Background(), completion()))

	call := runner.waitCall(t)
	assert.Equal(t, "osascript", call.name)
	require.Len(t, call.args, 2)
	assert.Equal(t, "-e", call.args[0])
	assert.Contains(t, call.args[1], `display notification "Great job staying focused on \"example.com\"!"`)
	assert.Contains(t, call.args[1], `with title "Focus Session Complete! 🎉"`)
}

func TestDesktopNotifier_Linux(t *testing.T) {
	runner := newMockCommandRunner()
	n := NewDesktopNotifierWithDeps(true, "/usr/share/icons/focus.png", "linux", runner, func(string) bool { return true }, zap.NewNop())

	require.NoError(t, n.Notify(context.Background(), completion()))

	call := runner.waitCall(t)
	assert.Equal(t, "notify-send", call.name)
	assert.Contains(t, call.args, "--icon=/usr/share/icons/focus.png")
	assert.Equal(t, "Focus Session Complete! 🎉", call.args[len(call.args)-2])
}

func TestDesktopNotifier_FallsBackToLog(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		goos     string
		hasTools bool
	}{
		{name: "disabled", enabled: false, goos: "darwin", hasTools: true},
		{name: "linux without notify-send", enabled: true, goos: "linux", hasTools: false},
		{name: "unsupported os", enabled: true, goos: "windows", hasTools: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newMockCommandRunner()
			n := NewDesktopNotifierWithDeps(tt.enabled, "", tt.goos, runner,
				func(string) bool { return tt.hasTools }, zap.NewNop())

			require.NoError(t, n.Notify(context.Background(), completion()))
			time.Sleep(20 * time.Millisecond)
			assert.Zero(t, runner.count())
		})
	}
}

func TestDesktopNotifier_DeliveryFailureIsNotReturned(t *testing.T) {
	runner := newMockCommandRunner()
	runner.err = errors.New("osascript: execution error")
	n := NewDesktopNotifierWithDeps(true, "", "darwin", runner, func(string) bool { return true }, zap.NewNop())

	assert.NoError(t, n.Notify(context.Background(), completion()))
	runner.waitCall(t)
}
