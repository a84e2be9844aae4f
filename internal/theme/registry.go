package theme

import (
	"fmt"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

// Registry holds the available themes in display order.
type Registry struct {
	themes []Theme
	byName map[string]Theme
}

// NewRegistry creates a registry with all built-in themes.
func NewRegistry() *Registry {
	return NewRegistryWithThemes(Ocean(), Forest(), Sunset(), Purple(), Dark())
}

// NewRegistryWithThemes creates a registry with custom themes (for testing).
// The first theme becomes the fallback.
func NewRegistryWithThemes(themes ...Theme) *Registry {
	r := &Registry{byName: make(map[string]Theme)}
	for _, t := range themes {
		r.Register(t)
	}
	return r
}

// Register adds a theme. Re-registering a name replaces it in place.
func (r *Registry) Register(t Theme) {
	if _, exists := r.byName[t.Name]; exists {
		for i := range r.themes {
			if r.themes[i].Name == t.Name {
				r.themes[i] = t
			}
		}
	} else {
		r.themes = append(r.themes, t)
	}
	r.byName[t.Name] = t
}

// Get returns a theme by exact name.
func (r *Registry) Get(name string) (Theme, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Lookup returns the named theme, falling back to the default for unknown names.
func (r *Registry) Lookup(name string) Theme {
	if t, ok := r.byName[name]; ok {
		return t
	}
	if t, ok := r.byName[DefaultName]; ok {
		return t
	}
	if len(r.themes) > 0 {
		return r.themes[0]
	}
	return Ocean()
}

// Validate rejects names that are not registered.
func (r *Registry) Validate(name string) error {
	if _, ok := r.byName[name]; !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownTheme, name)
	}
	return nil
}

// GetAll returns all themes in display order.
func (r *Registry) GetAll() []Theme {
	result := make([]Theme, len(r.themes))
	copy(result, r.themes)
	return result
}

// List returns all theme names in display order.
func (r *Registry) List() []string {
	names := make([]string, len(r.themes))
	for i, t := range r.themes {
		names[i] = t.Name
	}
	return names
}
