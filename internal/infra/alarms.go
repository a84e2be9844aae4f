package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

// TimerAlarms implements domain.AlarmScheduler with in-process one-shot timers.
// Pending alarms do not survive a host restart.
type TimerAlarms struct {
	mu       sync.Mutex
	pending  map[string]*pendingAlarm
	stopped  bool
	fired    chan domain.Alarm
	done     chan struct{}
	inflight sync.WaitGroup
	clock    domain.Clock
	logger   *zap.Logger
}

type pendingAlarm struct {
	alarm domain.Alarm
	timer *time.Timer
}

// NewTimerAlarms creates a scheduler. Fired alarms are buffered up to buffer entries.
func NewTimerAlarms(clock domain.Clock, buffer int, logger *zap.Logger) *TimerAlarms {
	return &TimerAlarms{
		pending: make(map[string]*pendingAlarm),
		fired:   make(chan domain.Alarm, buffer),
		done:    make(chan struct{}),
		clock:   clock,
		logger:  logger,
	}
}

// Create schedules name to fire after delay, replacing any alarm with that name.
func (a *TimerAlarms) Create(ctx context.Context, name string, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.pending[name]; ok {
		existing.timer.Stop()
	}

	p := &pendingAlarm{alarm: domain.Alarm{Name: name, ScheduledTime: a.clock.Now().Add(delay)}}
	p.timer = time.AfterFunc(delay, func() { a.fire(p) })
	a.pending[name] = p

	a.logger.Debug("alarm scheduled",
		zap.String("name", name),
		zap.Time("scheduled_time", p.alarm.ScheduledTime))
	return nil
}

// fire delivers the alarm unless it was cleared or replaced in the meantime.
// A delivery nobody receives is dropped once the scheduler stops.
func (a *TimerAlarms) fire(p *pendingAlarm) {
	a.mu.Lock()
	current, ok := a.pending[p.alarm.Name]
	if a.stopped || !ok || current != p {
		a.mu.Unlock()
		return
	}
	delete(a.pending, p.alarm.Name)
	a.inflight.Add(1)
	a.mu.Unlock()
	defer a.inflight.Done()

	select {
	case a.fired <- p.alarm:
	case <-a.done:
		a.logger.Debug("alarm dropped on shutdown", zap.String("name", p.alarm.Name))
	}
}

// Clear cancels a pending alarm. Clearing an absent alarm returns false, not an error.
func (a *TimerAlarms) Clear(ctx context.Context, name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.pending[name]
	if !ok {
		return false, nil
	}
	p.timer.Stop()
	delete(a.pending, name)
	return true, nil
}

// Get returns a pending alarm, or nil.
func (a *TimerAlarms) Get(ctx context.Context, name string) (*domain.Alarm, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.pending[name]
	if !ok {
		return nil, nil
	}
	alarm := p.alarm
	return &alarm, nil
}

// All returns pending alarms ordered by scheduled time.
func (a *TimerAlarms) All(ctx context.Context) ([]domain.Alarm, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := make([]domain.Alarm, 0, len(a.pending))
	for _, p := range a.pending {
		result = append(result, p.alarm)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledTime.Before(result[j].ScheduledTime)
	})
	return result, nil
}

// Fired delivers alarms as they go off.
func (a *TimerAlarms) Fired() <-chan domain.Alarm {
	return a.fired
}

// Stop cancels every pending alarm and waits for deliveries in progress to
// give up. Alarms created afterwards never fire. Stop may be called repeatedly.
func (a *TimerAlarms) Stop() {
	a.mu.Lock()
	for name, p := range a.pending {
		p.timer.Stop()
		delete(a.pending, name)
	}
	if !a.stopped {
		a.stopped = true
		close(a.done)
	}
	a.mu.Unlock()

	a.inflight.Wait()
}

// Ensure TimerAlarms implements domain.AlarmScheduler.
var _ domain.AlarmScheduler = (*TimerAlarms)(nil)
