package infra

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

const notifyTimeout = 5 * time.Second

// DesktopNotifier implements domain.Notifier with the OS notification tool.
// Without a usable tool, notifications are only logged.
type DesktopNotifier struct {
	enabled   bool
	goos      string
	icon      string
	cmdRunner CommandRunner
	lookPath  func(string) bool
	logger    *zap.Logger
}

// NewDesktopNotifier creates a notifier for the current OS.
func NewDesktopNotifier(enabled bool, icon string, logger *zap.Logger) *DesktopNotifier {
	return NewDesktopNotifierWithDeps(enabled, icon, runtime.GOOS, &RealCommandRunner{}, LookPath, logger)
}

// NewDesktopNotifierWithDeps creates a notifier with injectable dependencies (for testing)
func NewDesktopNotifierWithDeps(enabled bool, icon, goos string, cmdRunner CommandRunner, lookPath func(string) bool, logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{
		enabled:   enabled,
		goos:      goos,
		icon:      icon,
		cmdRunner: cmdRunner,
		lookPath:  lookPath,
		logger:    logger,
	}
}

// Notify raises n and returns once the command has been handed off.
// Delivery happens in the background; failures are logged, never returned.
func (n *DesktopNotifier) Notify(ctx context.Context, note domain.Notification) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.IconURL == "" {
		note.IconURL = n.icon
	}

	n.logger.Info("notification",
		zap.String("id", note.ID),
		zap.String("title", note.Title),
		zap.String("message", note.Message))

	if !n.enabled {
		return nil
	}

	name, args, ok := n.command(note)
	if !ok {
		n.logger.Debug("no notification tool available", zap.String("os", n.goos))
		return nil
	}

	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.cmdRunner.Run(runCtx, name, args...); err != nil {
			n.logger.Warn("failed to deliver notification",
				zap.String("id", note.ID),
				zap.String("command", name),
				zap.Error(err))
		}
	}()
	return nil
}

// command builds the OS-specific invocation for note.
func (n *DesktopNotifier) command(note domain.Notification) (string, []string, bool) {
	switch n.goos {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s",
			appleScriptString(note.Message), appleScriptString(note.Title))
		return "osascript", []string{"-e", script}, true
	case "linux":
		if !n.lookPath("notify-send") {
			return "", nil, false
		}
		args := []string{"--app-name=sitefocus"}
		if note.IconURL != "" {
			args = append(args, "--icon="+note.IconURL)
		}
		args = append(args, note.Title, note.Message)
		return "notify-send", args, true
	default:
		return "", nil, false
	}
}

// appleScriptString quotes s as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// Ensure DesktopNotifier implements domain.Notifier.
var _ domain.Notifier = (*DesktopNotifier)(nil)
