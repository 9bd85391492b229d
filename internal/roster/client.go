// Package roster verifies participants against an external roster
// system for programs whose platform manages its own membership.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound means the token is not on the roster for this code. This
// is a controlled re-prompt for the participant, not a failure.
var ErrNotFound = errors.New("roster entry not found")

// Info describes a rostered participant.
type Info struct {
	ParticipantID   string `json:"participant_id"`
	CycleDescriptor string `json:"cycle_descriptor,omitempty"`
}

// Verifier looks participants up on the external roster.
type Verifier interface {
	Lookup(ctx context.Context, code, token string) (Info, error)
}

// Client is the HTTP implementation of Verifier.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, Timeout: 10 * time.Second}
}

func (c *Client) Lookup(ctx context.Context, code, token string) (Info, error) {
	u := fmt.Sprintf("%s/api/rosters/%s/members/%s", c.BaseURL, url.PathEscape(code), url.PathEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Info{}, err
	}
	if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	res, err := c.httpClient().Do(req)
	if err != nil {
		return Info{}, fmt.Errorf("roster: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Info{}, fmt.Errorf("roster: read body: %w", err)
	}
	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Info{}, ErrNotFound
	default:
		return Info{}, fmt.Errorf("roster: status %d: %s", res.StatusCode, string(body))
	}
	var info Info
	if err := json.Unmarshal(body, &info); err != nil {
		return Info{}, fmt.Errorf("roster: decode: %w", err)
	}
	if info.ParticipantID == "" {
		return Info{}, fmt.Errorf("roster: response missing participant_id")
	}
	return info, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.Timeout}
}
