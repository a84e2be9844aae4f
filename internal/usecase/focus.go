// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/session"
	"github.com/eliteGoblin/focusd/site_focus/internal/theme"
)

// AlarmService is the part of the alarm scheduler that starting and stopping need.
type AlarmService interface {
	Create(ctx context.Context, name string, delay time.Duration) error
	Clear(ctx context.Context, name string) (bool, error)
}

// StartRequest describes a focus session to begin on one domain.
type StartRequest struct {
	Domain  string
	Timed   bool
	Minutes int
	Theme   string
}

// FocusService starts and stops focus sessions.
// It is shared by the popup (host side) and the overlay (page side).
type FocusService struct {
	sessions *session.Store
	alarms   AlarmService
	themes   *theme.Registry
	clock    domain.Clock
	logger   *zap.Logger
}

// NewFocusService creates a focus service.
func NewFocusService(
	sessions *session.Store,
	alarms AlarmService,
	themes *theme.Registry,
	clock domain.Clock,
	logger *zap.Logger,
) *FocusService {
	return &FocusService{
		sessions: sessions,
		alarms:   alarms,
		themes:   themes,
		clock:    clock,
		logger:   logger,
	}
}

// Start writes the session record, schedules its wake-up when timed, and
// persists the chosen theme as the user's preference.
func (f *FocusService) Start(ctx context.Context, req StartRequest) (*domain.Session, error) {
	if req.Theme == "" {
		req.Theme = theme.DefaultName
	}
	if err := f.themes.Validate(req.Theme); err != nil {
		return nil, err
	}
	if req.Timed && req.Minutes <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidDuration, req.Minutes)
	}

	var sess domain.Session
	if req.Timed {
		sess = domain.NewTimedSession(req.Domain, req.Theme, f.clock.Now(), time.Duration(req.Minutes)*time.Minute)
	} else {
		sess = domain.NewSession(req.Domain, req.Theme)
	}

	if err := f.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to start focus on %s: %w", req.Domain, err)
	}

	key := domain.SessionKey(req.Domain)
	if req.Timed {
		if err := f.alarms.Create(ctx, key, time.Duration(req.Minutes)*time.Minute); err != nil {
			return &sess, fmt.Errorf("failed to schedule wake-up for %s: %w", req.Domain, err)
		}
	} else if _, err := f.alarms.Clear(ctx, key); err != nil {
		// A wake-up left over from an earlier timed session would end this one.
		f.logger.Warn("failed to clear previous wake-up", zap.String("domain", req.Domain), zap.Error(err))
	}

	if err := f.sessions.SetTheme(ctx, req.Theme); err != nil {
		f.logger.Warn("failed to save theme preference", zap.String("theme", req.Theme), zap.Error(err))
	}

	f.logger.Info("focus started",
		zap.String("domain", req.Domain),
		zap.Bool("timed", req.Timed),
		zap.Int("minutes", req.Minutes),
		zap.String("theme", req.Theme))
	return &sess, nil
}

// Stop deletes the record and cancels the wake-up. Both steps are no-ops when
// there is nothing to remove, so concurrent stops converge.
func (f *FocusService) Stop(ctx context.Context, d string) error {
	var errs []error
	if err := f.sessions.Delete(ctx, d); err != nil {
		errs = append(errs, err)
	}
	if _, err := f.alarms.Clear(ctx, domain.SessionKey(d)); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear wake-up for %s: %w", d, err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	f.logger.Info("focus stopped", zap.String("domain", d))
	return nil
}
