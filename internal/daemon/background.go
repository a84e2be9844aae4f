// Package daemon runs the host's background context: the wake-up handler
// and the startup reconciliation sweep.
package daemon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/session"
)

// Completion notification text.
const (
	CompletionTitle   = "Focus Session Complete! 🎉"
	completionMessage = "Great job staying focused on %s!"
)

const alarmSlack = time.Second

// BackgroundConfig holds background daemon configuration.
type BackgroundConfig struct {
	HeartbeatInterval time.Duration // How often to refresh the host registry entry
	IconURL           string        // Icon attached to completion notifications
}

// DefaultBackgroundConfig returns default background configuration.
func DefaultBackgroundConfig() BackgroundConfig {
	return BackgroundConfig{
		HeartbeatInterval: 30 * time.Second,
	}
}

// Background reacts to fired wake-ups and reconciles expired sessions on start.
type Background struct {
	config   BackgroundConfig
	sessions *session.Store
	alarms   domain.AlarmScheduler
	notifier domain.Notifier
	registry domain.HostRegistry
	clock    domain.Clock
	host     domain.HostInfo
	logger   *zap.Logger
}

// NewBackground creates the background daemon.
func NewBackground(
	config BackgroundConfig,
	sessions *session.Store,
	alarms domain.AlarmScheduler,
	notifier domain.Notifier,
	registry domain.HostRegistry,
	clock domain.Clock,
	host domain.HostInfo,
	logger *zap.Logger,
) *Background {
	return &Background{
		config:   config,
		sessions: sessions,
		alarms:   alarms,
		notifier: notifier,
		registry: registry,
		clock:    clock,
		host:     host,
		logger:   logger,
	}
}

// Run registers the host, sweeps expired sessions, then handles wake-ups
// until ctx is canceled.
func (b *Background) Run(ctx context.Context) error {
	if err := b.registry.RegisterHost(b.host); err != nil {
		b.logger.Error("failed to register host", zap.Error(err))
		return err
	}

	b.logger.Info("background started",
		zap.Int("pid", b.host.PID),
		zap.String("addr", b.host.Addr))

	if _, err := b.Sweep(ctx); err != nil {
		b.logger.Warn("startup sweep failed", zap.Error(err))
	}

	heartbeatTicker := time.NewTicker(b.config.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("background stopping")
			if err := b.registry.ClearHost(); err != nil {
				b.logger.Warn("failed to clear host entry", zap.Error(err))
			}
			return ctx.Err()

		case alarm := <-b.alarms.Fired():
			b.HandleAlarm(ctx, alarm)

		case <-heartbeatTicker.C:
			if err := b.registry.UpdateHeartbeat(); err != nil {
				b.logger.Warn("failed to update heartbeat", zap.Error(err))
			}
		}
	}
}

// HandleAlarm ends the session named by a fired wake-up and notifies the user.
// Alarms outside the session namespace are ignored. A wake-up that arrives
// after the domain was restarted, or switched to untimed, leaves the newer
// record alone and raises no notification.
func (b *Background) HandleAlarm(ctx context.Context, alarm domain.Alarm) {
	d, ok := domain.DomainFromKey(alarm.Name)
	if !ok {
		b.logger.Debug("ignoring foreign alarm", zap.String("name", alarm.Name))
		return
	}

	sess, err := b.sessions.Get(ctx, d)
	if err != nil {
		b.logger.Error("failed to read timed session", zap.String("domain", d), zap.Error(err))
		return
	}
	if sess != nil && !dueAt(*sess, b.clock.Now()) {
		b.logger.Info("ignoring stale wake-up",
			zap.String("domain", d),
			zap.Bool("timed", sess.IsTimed()),
			zap.Duration("remaining", sess.Remaining(b.clock.Now())))
		return
	}

	if sess != nil {
		if err := b.sessions.Delete(ctx, d); err != nil {
			b.logger.Error("failed to end timed session", zap.String("domain", d), zap.Error(err))
			return
		}
	}

	b.logger.Info("timed session completed", zap.String("domain", d))

	note := domain.Notification{
		Title:   CompletionTitle,
		Message: fmt.Sprintf(completionMessage, d),
		IconURL: b.config.IconURL,
	}
	if err := b.notifier.Notify(ctx, note); err != nil {
		b.logger.Warn("failed to raise notification", zap.String("domain", d), zap.Error(err))
	}
}

// dueAt reports whether a timed session has run out at now. Timers may wake a
// little ahead of the wall clock, so the last alarmSlack counts as done.
func dueAt(sess domain.Session, now time.Time) bool {
	return sess.IsTimed() && sess.Remaining(now) <= alarmSlack
}

// Sweep deletes timed sessions that ran out while no host was running and
// clears their wake-ups. Timed sessions still running get their wake-up
// re-armed for the time left. Untimed sessions are left alone. Returns the
// number of sessions removed.
func (b *Background) Sweep(ctx context.Context) (int, error) {
	sessions, err := b.sessions.List(ctx)
	if err != nil {
		return 0, err
	}

	now := b.clock.Now()
	swept := 0
	for _, sess := range sessions {
		if !sess.IsTimed() {
			continue
		}
		if !sess.Expired(now) {
			b.rearm(ctx, sess, now)
			continue
		}
		if err := b.sessions.Delete(ctx, sess.Domain); err != nil {
			b.logger.Warn("failed to sweep session", zap.String("domain", sess.Domain), zap.Error(err))
			continue
		}
		if _, err := b.alarms.Clear(ctx, domain.SessionKey(sess.Domain)); err != nil {
			b.logger.Warn("failed to clear swept wake-up", zap.String("domain", sess.Domain), zap.Error(err))
		}
		swept++
		b.logger.Info("swept expired session",
			zap.String("domain", sess.Domain),
			zap.Duration("overdue", sess.Elapsed(now)-sess.DurationValue()))
	}
	return swept, nil
}

// rearm schedules the wake-up of a running timed session if none is pending.
func (b *Background) rearm(ctx context.Context, sess domain.Session, now time.Time) {
	name := domain.SessionKey(sess.Domain)
	if pending, err := b.alarms.Get(ctx, name); err != nil || pending != nil {
		return
	}
	remaining := sess.Remaining(now)
	if err := b.alarms.Create(ctx, name, remaining); err != nil {
		b.logger.Warn("failed to re-arm wake-up", zap.String("domain", sess.Domain), zap.Error(err))
		return
	}
	b.logger.Info("re-armed wake-up",
		zap.String("domain", sess.Domain),
		zap.Duration("remaining", remaining))
}
