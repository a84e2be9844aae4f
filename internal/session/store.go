// Package session reads and writes focus session records in the shared store.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

// Store maps domains to session records under focus_<domain> keys.
// Malformed records are logged and treated as absent.
type Store struct {
	storage  domain.Storage
	validate *validator.Validate
	logger   *zap.Logger
}

// NewStore creates a session store over storage.
func NewStore(storage domain.Storage, logger *zap.Logger) *Store {
	return &Store{
		storage:  storage,
		validate: newValidator(),
		logger:   logger,
	}
}

// newValidator accepts exactly the domains domain.HostnameOf can produce.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("sitehost", func(fl validator.FieldLevel) bool {
		return domain.IsSiteHost(fl.Field().String())
	})
	return v
}

// Get returns the session for domain, or nil if there is none.
func (s *Store) Get(ctx context.Context, d string) (*domain.Session, error) {
	key := domain.SessionKey(d)
	items, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", key, err)
	}
	raw, ok := items[key]
	if !ok {
		return nil, nil
	}
	return s.Decode(key, raw), nil
}

// Decode parses a stored record, returning nil for anything malformed.
func (s *Store) Decode(key string, raw json.RawMessage) *domain.Session {
	if len(raw) == 0 {
		return nil
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.logger.Warn("discarding unreadable session record", zap.String("key", key), zap.Error(err))
		return nil
	}
	if err := s.Validate(sess); err != nil {
		s.logger.Warn("discarding invalid session record", zap.String("key", key), zap.Error(err))
		return nil
	}
	if d, _ := domain.DomainFromKey(key); d != sess.Domain {
		s.logger.Warn("discarding session record stored under another domain",
			zap.String("key", key),
			zap.String("domain", sess.Domain))
		return nil
	}
	return &sess
}

// Validate checks field constraints and that duration and startTime come together.
func (s *Store) Validate(sess domain.Session) error {
	if err := s.validate.Struct(sess); err != nil {
		return err
	}
	if (sess.Duration == nil) != (sess.StartTime == nil) {
		return fmt.Errorf("duration and startTime must be set together")
	}
	return nil
}

// Put writes the record for its domain.
func (s *Store) Put(ctx context.Context, sess domain.Session) error {
	if err := s.Validate(sess); err != nil {
		return fmt.Errorf("invalid session for %s: %w", sess.Domain, err)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	key := domain.SessionKey(sess.Domain)
	if err := s.storage.Set(ctx, map[string]json.RawMessage{key: data}); err != nil {
		return fmt.Errorf("failed to write session %s: %w", key, err)
	}
	return nil
}

// Delete removes the record for domain. Deleting an absent record is a no-op.
func (s *Store) Delete(ctx context.Context, d string) error {
	key := domain.SessionKey(d)
	if err := s.storage.Remove(ctx, key); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", key, err)
	}
	return nil
}

// List returns every well-formed session, ordered by domain.
func (s *Store) List(ctx context.Context) ([]domain.Session, error) {
	items, err := s.storage.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]domain.Session, 0, len(items))
	for key, raw := range items {
		if _, ok := domain.DomainFromKey(key); !ok {
			continue
		}
		if sess := s.Decode(key, raw); sess != nil {
			sessions = append(sessions, *sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Domain < sessions[j].Domain })
	return sessions, nil
}

// Theme returns the stored theme preference, or "" if none is set.
func (s *Store) Theme(ctx context.Context) (string, error) {
	items, err := s.storage.Get(ctx, domain.ThemePreferenceKey)
	if err != nil {
		return "", fmt.Errorf("failed to read theme preference: %w", err)
	}
	raw, ok := items[domain.ThemePreferenceKey]
	if !ok {
		return "", nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		s.logger.Warn("ignoring unreadable theme preference", zap.Error(err))
		return "", nil
	}
	return name, nil
}

// SetTheme persists the theme preference.
func (s *Store) SetTheme(ctx context.Context, name string) error {
	data, err := json.Marshal(name)
	if err != nil {
		return fmt.Errorf("failed to encode theme: %w", err)
	}
	if err := s.storage.Set(ctx, map[string]json.RawMessage{domain.ThemePreferenceKey: data}); err != nil {
		return fmt.Errorf("failed to write theme preference: %w", err)
	}
	return nil
}
