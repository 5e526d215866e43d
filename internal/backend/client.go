// Package backend is the client for the Happy Hour Deals API, which owns
// accounts, happy-hour specials, menus, favorites and check-ins.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bassista/go_happyhour/internal/apperr"
	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/state"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "http://localhost:3000/api"
	DefaultTimeout = 10 * time.Second
)

const (
	pathLogin       = "/auth/login"
	pathRegister    = "/auth/register"
	pathLogout      = "/auth/logout"
	pathRefresh     = "/auth/refresh"
	pathHappyHour   = "/happy-hour"
	pathMenuItems   = "/menu-items"
	pathPreferences = "/user/preferences"
	pathFavorites   = "/user/favorites"
	pathCheckIns    = "/user/check-ins"
	pathAnalytics   = "/analytics"
)

// TokenSource returns the bearer token for authenticated calls, or "".
type TokenSource func() string

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the custom backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
}

// New creates a client. token may be nil for anonymous use.
func New(cfg Config, token TokenSource) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		token:      token,
	}
}

func (c *Client) Login(ctx context.Context, creds state.Credentials) (state.Session, error) {
	var out state.Session
	if err := c.do(ctx, http.MethodPost, pathLogin, creds, &out); err != nil {
		return state.Session{}, fmt.Errorf("login: %w", err)
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, reg state.Registration) (state.Session, error) {
	var out state.Session
	if err := c.do(ctx, http.MethodPost, pathRegister, reg, &out); err != nil {
		return state.Session{}, fmt.Errorf("register: %w", err)
	}
	return out, nil
}

// Logout invalidates the current token server side.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, pathLogout, nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Refresh exchanges token for a new one.
func (c *Client) Refresh(ctx context.Context, token string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, pathRefresh, map[string]string{"token": token}, &out); err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	if out.Token == "" {
		return "", apperr.Newf(apperr.GenericError, "Token refresh failed")
	}
	return out.Token, nil
}

// HappyHourSpecials lists the specials a venue offers.
func (c *Client) HappyHourSpecials(ctx context.Context, venueID string) ([]state.HappyHourSpecial, error) {
	out := []state.HappyHourSpecial{}
	if err := c.do(ctx, http.MethodGet, pathHappyHour+"?"+venueQuery(venueID), nil, &out); err != nil {
		return nil, fmt.Errorf("happy hour specials for %s: %w", venueID, err)
	}
	return out, nil
}

// MenuItems lists a venue's menu.
func (c *Client) MenuItems(ctx context.Context, venueID string) ([]state.MenuItem, error) {
	out := []state.MenuItem{}
	if err := c.do(ctx, http.MethodGet, pathMenuItems+"?"+venueQuery(venueID), nil, &out); err != nil {
		return nil, fmt.Errorf("menu items for %s: %w", venueID, err)
	}
	return out, nil
}

func (c *Client) AddFavorite(ctx context.Context, venueID string) error {
	if err := c.do(ctx, http.MethodPost, pathFavorites, map[string]string{"venueId": venueID}, nil); err != nil {
		return fmt.Errorf("add favorite %s: %w", venueID, err)
	}
	return nil
}

func (c *Client) RemoveFavorite(ctx context.Context, venueID string) error {
	if err := c.do(ctx, http.MethodDelete, pathFavorites+"/"+url.PathEscape(venueID), nil, nil); err != nil {
		return fmt.Errorf("remove favorite %s: %w", venueID, err)
	}
	return nil
}

// UpdatePreferences sends a partial update and returns the fields the server
// accepted.
func (c *Client) UpdatePreferences(ctx context.Context, patch state.PreferencesPatch) (state.PreferencesPatch, error) {
	var out state.PreferencesPatch
	if err := c.do(ctx, http.MethodPut, pathPreferences, patch, &out); err != nil {
		return state.PreferencesPatch{}, fmt.Errorf("update preferences: %w", err)
	}
	return out, nil
}

// CheckIn records a visit and returns the stored check-in.
func (c *Client) CheckIn(ctx context.Context, ci state.CheckIn) (state.CheckIn, error) {
	var out state.CheckIn
	if err := c.do(ctx, http.MethodPost, pathCheckIns, ci, &out); err != nil {
		return state.CheckIn{}, fmt.Errorf("check in at %s: %w", ci.VenueID, err)
	}
	return out, nil
}

// Analytics loads the user's aggregate statistics.
func (c *Client) Analytics(ctx context.Context) (state.Analytics, error) {
	var out state.Analytics
	if err := c.do(ctx, http.MethodGet, pathAnalytics, nil, &out); err != nil {
		return state.Analytics{}, fmt.Errorf("load analytics: %w", err)
	}
	return out, nil
}

func venueQuery(id string) string {
	return url.Values{"venueId": {id}}.Encode()
}

// do sends one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	log := logger.WithComponent("backend")

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return apperr.Wrap(apperr.GenericError, fmt.Errorf("marshal request: %w", err))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperr.Wrap(apperr.GenericError, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	log.Debugf("%s %s", method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warnf("%s %s failed: %v", method, path, err)
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.FromStatus(resp.StatusCode, errorDetail(respBody))
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return apperr.Wrap(apperr.GenericError, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func errorDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	r := gjson.GetManyBytes(body, "message", "error.message", "error")
	for _, v := range r {
		if v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Wrap(apperr.Timeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Wrap(apperr.Timeout, err)
	}
	return apperr.Wrap(apperr.NetworkError, err)
}
