package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
)

// Storage implements domain.Storage against the host's store.
type Storage struct {
	c *Client
}

// Storage returns the host store.
func (c *Client) Storage() *Storage {
	return &Storage{c: c}
}

// Get returns the values of the keys that exist.
func (s *Storage) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if len(keys) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	items := map[string]json.RawMessage{}
	if err := s.c.do(ctx, http.MethodGet, "/api/storage?"+keyQuery(keys), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetAll returns every stored item.
func (s *Storage) GetAll(ctx context.Context) (map[string]json.RawMessage, error) {
	items := map[string]json.RawMessage{}
	if err := s.c.do(ctx, http.MethodGet, "/api/storage", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Set writes all items.
func (s *Storage) Set(ctx context.Context, items map[string]json.RawMessage) error {
	if len(items) == 0 {
		return nil
	}
	return s.c.do(ctx, http.MethodPut, "/api/storage", items, nil)
}

// Remove deletes the keys.
func (s *Storage) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.c.do(ctx, http.MethodDelete, "/api/storage?"+keyQuery(keys), nil, nil)
}

// Alarms schedules and cancels wake-ups on the host.
type Alarms struct {
	c *Client
}

// Alarms returns the host's alarm scheduler.
func (c *Client) Alarms() *Alarms {
	return &Alarms{c: c}
}

// Create schedules name to fire after delay on the host.
func (a *Alarms) Create(ctx context.Context, name string, delay time.Duration) error {
	return a.c.do(ctx, http.MethodPost, "/api/alarms", domain.AlarmRequest{Name: name, DelayMs: delay.Milliseconds()}, nil)
}

// Clear cancels a pending alarm. Returns false if none was pending.
func (a *Alarms) Clear(ctx context.Context, name string) (bool, error) {
	var result domain.ClearResult
	if err := a.c.do(ctx, http.MethodDelete, "/api/alarms/"+url.PathEscape(name), nil, &result); err != nil {
		return false, err
	}
	return result.Cleared, nil
}

// All returns every pending alarm.
func (a *Alarms) All(ctx context.Context) ([]domain.Alarm, error) {
	var alarms []domain.Alarm
	if err := a.c.do(ctx, http.MethodGet, "/api/alarms", nil, &alarms); err != nil {
		return nil, err
	}
	return alarms, nil
}

// Get returns a pending alarm, or nil.
func (a *Alarms) Get(ctx context.Context, name string) (*domain.Alarm, error) {
	alarms, err := a.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range alarms {
		if alarms[i].Name == name {
			return &alarms[i], nil
		}
	}
	return nil, nil
}

// Ensure Storage implements domain.Storage.
var _ domain.Storage = (*Storage)(nil)
