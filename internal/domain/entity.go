// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - it imports no other internal package.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	// SessionKeyPrefix namespaces session records in the store and alarm names.
	SessionKeyPrefix = "focus_"

	// ThemePreferenceKey stores the last chosen theme, global across domains.
	ThemePreferenceKey = "user_theme"

	// DashboardURL is the outbound link shown by the popup footer.
	DashboardURL = "https://fokus.com/dashboard"
)

// SessionKey returns the store key (and alarm name) for a domain.
func SessionKey(domain string) string {
	return SessionKeyPrefix + domain
}

// DomainFromKey extracts the domain from a session key or alarm name.
// Returns false if the key is not in the session namespace.
func DomainFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, SessionKeyPrefix) {
		return "", false
	}
	domain := strings.TrimPrefix(key, SessionKeyPrefix)
	if domain == "" {
		return "", false
	}
	return domain, true
}

// Session is the focus record for one domain. Domain is validated by the
// "sitehost" rule, which session.Store registers with IsSiteHost.
// Records are immutable: stopping deletes the record rather than editing it.
type Session struct {
	Domain    string `json:"domain" validate:"required,sitehost"`
	IsActive  bool   `json:"isActive"`
	Duration  *int64 `json:"duration,omitempty" validate:"omitempty,gt=0"`
	StartTime *int64 `json:"startTime,omitempty" validate:"omitempty,gt=0"`
	Theme     string `json:"theme,omitempty" validate:"omitempty,max=32"`
}

// NewSession builds an untimed session record.
func NewSession(domain, theme string) Session {
	return Session{Domain: domain, IsActive: true, Theme: theme}
}

// NewTimedSession builds a session that expires duration after start.
func NewTimedSession(domain, theme string, start time.Time, duration time.Duration) Session {
	d := duration.Milliseconds()
	s := start.UnixMilli()
	return Session{
		Domain:    domain,
		IsActive:  true,
		Duration:  &d,
		StartTime: &s,
		Theme:     theme,
	}
}

// IsTimed reports whether the session self-expires.
func (s Session) IsTimed() bool {
	return s.Duration != nil && s.StartTime != nil
}

// DurationValue returns the session length, zero for untimed sessions.
func (s Session) DurationValue() time.Duration {
	if s.Duration == nil {
		return 0
	}
	return time.Duration(*s.Duration) * time.Millisecond
}

// StartedAt returns when a timed session began, zero time for untimed sessions.
func (s Session) StartedAt() time.Time {
	if s.StartTime == nil {
		return time.Time{}
	}
	return time.UnixMilli(*s.StartTime)
}

// Elapsed returns now - startTime for timed sessions.
func (s Session) Elapsed(now time.Time) time.Duration {
	if !s.IsTimed() {
		return 0
	}
	return time.Duration(now.UnixMilli()-*s.StartTime) * time.Millisecond
}

// Remaining returns duration - elapsed, clamped to zero.
// Untimed sessions have no remaining time.
func (s Session) Remaining(now time.Time) time.Duration {
	if !s.IsTimed() {
		return 0
	}
	remaining := s.DurationValue() - s.Elapsed(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether a timed session has run its full duration.
// Untimed sessions never expire.
func (s Session) Expired(now time.Time) bool {
	if !s.IsTimed() {
		return false
	}
	return s.Elapsed(now) >= s.DurationValue()
}

// Alarm is a one-shot wake-up registered with the scheduler.
type Alarm struct {
	Name          string    `json:"name"`
	ScheduledTime time.Time `json:"scheduledTime"`
}

// Notification is a user-facing message raised by the host.
type Notification struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	IconURL string `json:"iconUrl,omitempty"`
}

// StorageChange describes one key mutation. A nil NewValue means the key was removed.
type StorageChange struct {
	Key      string          `json:"key"`
	OldValue json.RawMessage `json:"oldValue,omitempty"`
	NewValue json.RawMessage `json:"newValue,omitempty"`
}

// Removed reports whether the change deleted the key.
func (c StorageChange) Removed() bool {
	return len(c.NewValue) == 0
}

// Tab is an open page registered with the host.
type Tab struct {
	ID       string    `json:"id"`
	URL      string    `json:"url"`
	OpenedAt time.Time `json:"openedAt"`
}

// HostInfo is the registry entry of the running host process.
type HostInfo struct {
	PID           int    `json:"pid"`
	Addr          string `json:"addr"`
	Version       string `json:"version,omitempty"`
	StartedAt     int64  `json:"started_at"`
	LastHeartbeat int64  `json:"last_heartbeat"`
}
