package overlay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/eliteGoblin/focusd/site_focus/internal/theme"
)

const clearScreen = "\033[H\033[2J"

// TerminalSurface draws the overlay as a themed box on a terminal and reads
// button presses from line input: "g" gives up, "o" or "q" turns focus off.
type TerminalSurface struct {
	mu      sync.Mutex
	out     io.Writer
	actions chan Action
	clear   bool
	visible bool
}

// NewTerminalSurface creates a surface writing to out. clear controls whether
// each frame clears the screen first.
func NewTerminalSurface(out io.Writer, clear bool) *TerminalSurface {
	return &TerminalSurface{
		out:     out,
		actions: make(chan Action, 4),
		clear:   clear,
	}
}

// Listen reads commands from in until ctx is canceled or in is exhausted.
func (s *TerminalSurface) Listen(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		action, ok := parseAction(scanner.Text())
		if !ok {
			continue
		}
		select {
		case s.actions <- action:
		case <-ctx.Done():
			return
		}
	}
}

func parseAction(line string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "g", "give up", "giveup":
		return ActionGiveUp, true
	case "o", "q", "off", "turn off":
		return ActionTurnOff, true
	default:
		return 0, false
	}
}

// Mount shows the overlay.
func (s *TerminalSurface) Mount(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = true
	s.draw(Render(v))
}

// Update redraws a visible overlay.
func (s *TerminalSurface) Update(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.visible {
		return
	}
	s.draw(Render(v))
}

// Unmount removes the overlay.
func (s *TerminalSurface) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.visible {
		return
	}
	s.visible = false
	s.draw(lipgloss.NewStyle().Faint(true).Render("Focus mode is off. Browse freely."))
}

// Actions delivers button presses.
func (s *TerminalSurface) Actions() <-chan Action {
	return s.actions
}

func (s *TerminalSurface) draw(frame string) {
	if s.clear {
		fmt.Fprint(s.out, clearScreen)
	}
	fmt.Fprintln(s.out, frame)
}

// Render draws v as a bordered box in the theme's colors.
func Render(v View) string {
	t := v.Theme

	boxStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Accent).
		Background(t.Background).
		Foreground(t.Foreground).
		Padding(1, 4).
		Align(lipgloss.Center)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Foreground)
	timerStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	hintStyle := lipgloss.NewStyle().Faint(true)

	lines := []string{
		t.Icon,
		titleStyle.Render(v.Title),
		v.Message,
		"",
	}
	if v.Timed {
		lines = append(lines, TimerLabel, timerStyle.Render(v.Countdown()), "")
	}

	buttons := make([]string, 0, len(v.Buttons))
	for _, b := range v.Buttons {
		buttons = append(buttons, "[ "+b+" ]")
	}
	lines = append(lines, strings.Join(buttons, "  "))

	hint := "o: turn off"
	if v.Timed {
		hint = "g: give up · " + hint
	}
	lines = append(lines, hintStyle.Render(hint+" · "+v.Domain))

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
}

// Ensure TerminalSurface implements Surface.
var _ Surface = (*TerminalSurface)(nil)

// Swatch renders a short color sample of t for theme pickers.
func Swatch(t theme.Theme) string {
	return lipgloss.NewStyle().
		Background(t.Background).
		Foreground(t.Accent).
		Render(" ██ ")
}
