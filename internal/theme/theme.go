// Package theme holds the fixed set of named visual themes.
// A theme only affects rendering; session semantics never depend on it.
package theme

import "github.com/charmbracelet/lipgloss"

// DefaultName is used when no theme was chosen or a stored name is unknown.
const DefaultName = "Ocean"

// Theme is the visual identity of a focus overlay.
type Theme struct {
	Name     string
	Gradient string // CSS gradient used by browser surfaces
	Color    string
	Icon     string

	// Terminal colors for the lipgloss surface.
	Background lipgloss.Color
	Foreground lipgloss.Color
	Accent     lipgloss.Color
}

// Ocean is the default theme.
func Ocean() Theme {
	return Theme{
		Name:       "Ocean",
		Gradient:   "linear-gradient(135deg, #60a5fa 0%, #22d3ee 100%)",
		Color:      "blue",
		Icon:       "🌊",
		Background: lipgloss.Color("#1e3a8a"),
		Foreground: lipgloss.Color("#e0f2fe"),
		Accent:     lipgloss.Color("#22d3ee"),
	}
}

// Forest theme.
func Forest() Theme {
	return Theme{
		Name:       "Forest",
		Gradient:   "linear-gradient(135deg, #4ade80 0%, #10b981 100%)",
		Color:      "green",
		Icon:       "🌲",
		Background: lipgloss.Color("#14532d"),
		Foreground: lipgloss.Color("#dcfce7"),
		Accent:     lipgloss.Color("#4ade80"),
	}
}

// Sunset theme.
func Sunset() Theme {
	return Theme{
		Name:       "Sunset",
		Gradient:   "linear-gradient(135deg, #fb923c 0%, #f472b6 100%)",
		Color:      "orange",
		Icon:       "🌅",
		Background: lipgloss.Color("#7c2d12"),
		Foreground: lipgloss.Color("#ffedd5"),
		Accent:     lipgloss.Color("#f472b6"),
	}
}

// Purple theme.
func Purple() Theme {
	return Theme{
		Name:       "Purple",
		Gradient:   "linear-gradient(135deg, #a855f7 0%, #6366f1 100%)",
		Color:      "purple",
		Icon:       "🔮",
		Background: lipgloss.Color("#3b0764"),
		Foreground: lipgloss.Color("#f3e8ff"),
		Accent:     lipgloss.Color("#a855f7"),
	}
}

// Dark theme.
func Dark() Theme {
	return Theme{
		Name:       "Dark",
		Gradient:   "linear-gradient(135deg, #1f2937 0%, #111827 100%)",
		Color:      "gray",
		Icon:       "🌙",
		Background: lipgloss.Color("#111827"),
		Foreground: lipgloss.Color("#f9fafb"),
		Accent:     lipgloss.Color("#9ca3af"),
	}
}
