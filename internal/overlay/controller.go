package overlay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/session"
	"github.com/eliteGoblin/focusd/site_focus/internal/theme"
)

// DefaultTickInterval is how often the countdown is refreshed.
const DefaultTickInterval = time.Second

// Surface draws the overlay and reports button presses.
type Surface interface {
	Mount(v View)
	Update(v View)
	Unmount()
	Actions() <-chan Action
}

// Stopper ends a session: deletes its record and cancels its wake-up.
type Stopper interface {
	Stop(ctx context.Context, domain string) error
}

// Controller keeps one page's overlay in sync with its session record.
// All methods must be called from a single goroutine; Run does that.
type Controller struct {
	domain       string
	sessions     *session.Store
	focus        Stopper
	feed         domain.ChangeFeed
	themes       *theme.Registry
	surface      Surface
	clock        domain.Clock
	tickInterval time.Duration
	logger       *zap.Logger

	mounted bool
	current *domain.Session
	ticker  *time.Ticker
}

// NewController creates an overlay controller for the page's domain.
func NewController(
	pageDomain string,
	sessions *session.Store,
	focus Stopper,
	feed domain.ChangeFeed,
	themes *theme.Registry,
	surface Surface,
	clock domain.Clock,
	tickInterval time.Duration,
	logger *zap.Logger,
) *Controller {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	return &Controller{
		domain:       pageDomain,
		sessions:     sessions,
		focus:        focus,
		feed:         feed,
		themes:       themes,
		surface:      surface,
		clock:        clock,
		tickInterval: tickInterval,
		logger:       logger.With(zap.String("domain", pageDomain)),
	}
}

// Run evaluates the page once, then follows store changes, reload requests,
// countdown ticks and overlay buttons until ctx is canceled or the feed ends.
// The overlay is unmounted on return.
func (c *Controller) Run(ctx context.Context, reloads <-chan struct{}) error {
	changes, err := c.feed.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer c.unmount()

	key := domain.SessionKey(c.domain)
	c.Check(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if change.Key == key {
				c.Check(ctx)
			}

		case _, ok := <-reloads:
			if !ok {
				return nil
			}
			c.logger.Debug("page reloaded")
			c.Check(ctx)

		case <-c.tick():
			c.Tick(ctx)

		case action := <-c.surface.Actions():
			c.HandleAction(ctx, action)
		}
	}
}

// Check re-reads the record: present and active mounts, anything else unmounts.
// A failed read leaves the overlay as it was.
func (c *Controller) Check(ctx context.Context) {
	sess, err := c.sessions.Get(ctx, c.domain)
	if err != nil {
		c.logger.Warn("failed to read session", zap.Error(err))
		return
	}
	if sess != nil && sess.IsActive {
		c.mount(ctx, *sess)
		return
	}
	c.unmount()
}

// Tick refreshes the countdown and ends the session once it reaches zero.
func (c *Controller) Tick(ctx context.Context) {
	if !c.mounted || c.current == nil || !c.current.IsTimed() {
		return
	}
	now := c.clock.Now()
	if c.current.Remaining(now) <= 0 {
		c.logger.Info("countdown finished")
		c.stop(ctx)
		return
	}
	c.surface.Update(c.view(now))
}

// HandleAction reacts to an overlay button.
func (c *Controller) HandleAction(ctx context.Context, action Action) {
	if !c.mounted {
		return
	}
	switch action {
	case ActionGiveUp:
		if c.current == nil || !c.current.IsTimed() {
			return
		}
	case ActionTurnOff:
	default:
		return
	}
	c.logger.Info("overlay button pressed", zap.Stringer("action", action))
	c.stop(ctx)
}

// Mounted reports whether the overlay is shown.
func (c *Controller) Mounted() bool {
	return c.mounted
}

// Ticking reports whether the countdown is running.
func (c *Controller) Ticking() bool {
	return c.ticker != nil
}

// stop runs the overlay's stop path. The page is not reloaded; other
// observers learn about it through the change feed.
func (c *Controller) stop(ctx context.Context) {
	if err := c.focus.Stop(ctx, c.domain); err != nil {
		c.logger.Warn("failed to stop focus from overlay", zap.Error(err))
	}
	c.unmount()
}

func (c *Controller) mount(ctx context.Context, sess domain.Session) {
	c.current = &sess
	now := c.clock.Now()

	if c.mounted {
		c.surface.Update(c.view(now))
	} else {
		c.mounted = true
		c.surface.Mount(c.view(now))
		c.logger.Debug("overlay mounted", zap.Bool("timed", sess.IsTimed()))
	}

	if sess.IsTimed() {
		c.startTicker()
		c.Tick(ctx)
	} else {
		c.stopTicker()
	}
}

func (c *Controller) unmount() {
	c.stopTicker()
	c.current = nil
	if !c.mounted {
		return
	}
	c.mounted = false
	c.surface.Unmount()
	c.logger.Debug("overlay unmounted")
}

func (c *Controller) view(now time.Time) View {
	return NewView(*c.current, c.themes.Lookup(c.current.Theme), now)
}

func (c *Controller) startTicker() {
	if c.ticker == nil {
		c.ticker = time.NewTicker(c.tickInterval)
	}
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

// tick returns the ticker channel, or nil (never ready) while not counting down.
func (c *Controller) tick() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.C
}
