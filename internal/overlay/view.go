// Package overlay implements the page-side focus overlay: it mounts while the
// page's domain has an active session and counts down timed sessions.
package overlay

import (
	"fmt"
	"time"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/theme"
)

// Overlay copy.
const (
	Title        = "Focus Mode Active"
	Message      = "You're in focus mode. Stay on track with your goals."
	TimerLabel   = "Time Remaining"
	GiveUpLabel  = "Give Up"
	TurnOffLabel = "Turn Off Focus Mode"
)

// Action is a button pressed on the overlay.
type Action int

const (
	// ActionGiveUp abandons a timed session early.
	ActionGiveUp Action = iota + 1
	// ActionTurnOff ends focus mode.
	ActionTurnOff
)

func (a Action) String() string {
	switch a {
	case ActionGiveUp:
		return "give_up"
	case ActionTurnOff:
		return "turn_off"
	default:
		return "unknown"
	}
}

// View is everything a surface needs to draw the overlay.
type View struct {
	Domain    string
	Theme     theme.Theme
	Title     string
	Message   string
	Timed     bool
	Remaining time.Duration
	Buttons   []string
}

// Countdown returns the remaining time as MM:SS.
func (v View) Countdown() string {
	return FormatRemaining(v.Remaining)
}

// NewView builds the overlay for sess at now.
func NewView(sess domain.Session, t theme.Theme, now time.Time) View {
	v := View{
		Domain:  sess.Domain,
		Theme:   t,
		Title:   Title,
		Message: Message,
		Timed:   sess.IsTimed(),
		Buttons: []string{TurnOffLabel},
	}
	if v.Timed {
		v.Remaining = sess.Remaining(now)
		v.Buttons = []string{GiveUpLabel, TurnOffLabel}
	}
	return v
}

// FormatRemaining renders d as zero-padded minutes and seconds. Minutes are
// not wrapped into hours, so 90 minutes reads "90:00".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d", ms/60000, (ms%60000)/1000)
}
