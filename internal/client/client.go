// Package client talks to a running sitefocus host. It implements the store,
// alarm and change-feed interfaces over the host API so page contexts run the
// same overlay logic as the host.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/usecase"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response from the host.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("host returned %d: %s", e.Status, e.Message)
}

// Client calls the host HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the host listening on addr ("127.0.0.1:7717" or a full URL).
func New(addr string) *Client {
	return NewWithHTTPClient(addr, &http.Client{Timeout: defaultTimeout})
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(addr string, httpClient *http.Client) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the host's base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health returns the host status, or domain.ErrHostNotRunning.
func (c *Client) Health(ctx context.Context) (*domain.HealthStatus, error) {
	var status domain.HealthStatus
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// --- popup ---

// Popup returns the popup state for the active page.
func (c *Client) Popup(ctx context.Context) (*usecase.PopupState, error) {
	var state usecase.PopupState
	if err := c.do(ctx, http.MethodGet, "/api/popup", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Start turns focus mode on for the active page.
func (c *Client) Start(ctx context.Context, opts usecase.StartOptions) (*usecase.PopupState, error) {
	var state usecase.PopupState
	if err := c.do(ctx, http.MethodPost, "/api/popup/start", opts, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Stop turns focus mode off for the active page.
func (c *Client) Stop(ctx context.Context) (*usecase.PopupState, error) {
	var state usecase.PopupState
	if err := c.do(ctx, http.MethodPost, "/api/popup/stop", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SetTheme saves the theme preference.
func (c *Client) SetTheme(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPut, "/api/popup/theme", domain.ThemeRequest{Theme: name}, nil)
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return fmt.Errorf("%w at %s", domain.ErrHostNotRunning, c.baseURL)
		}
		return fmt.Errorf("failed to reach host: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError turns an error response into an APIError, wrapping the domain
// sentinel it stands for where there is one.
func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	apiErr := &APIError{Status: resp.StatusCode, Message: payload.Error}

	switch {
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %w", domain.ErrNoActiveTab, apiErr)
	case strings.Contains(payload.Error, domain.ErrUnknownTheme.Error()):
		return fmt.Errorf("%w: %w", domain.ErrUnknownTheme, apiErr)
	case strings.Contains(payload.Error, domain.ErrInvalidDuration.Error()):
		return fmt.Errorf("%w: %w", domain.ErrInvalidDuration, apiErr)
	default:
		return apiErr
	}
}

func keyQuery(keys []string) string {
	q := url.Values{}
	for _, k := range keys {
		q.Add("key", k)
	}
	return q.Encode()
}
