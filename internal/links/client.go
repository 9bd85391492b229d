// Package links talks to the unique-survey-link issuing service.
package links

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrExhausted means the issuer has no unique links left for the
// session. Callers fall back to the program's anonymous link.
var ErrExhausted = errors.New("unique links exhausted")

// Issuer mints unique survey links.
type Issuer interface {
	GetUnique(ctx context.Context, programLabel string, ordinal int) (string, error)
}

// Client is the HTTP implementation of Issuer.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, Timeout: 10 * time.Second}
}

type uniqueLinkResponse struct {
	URL string `json:"url"`
}

// GetUnique requests a fresh unique link for one survey session. A 404
// from the issuer is the defined exhaustion signal, not an error to
// propagate.
func (c *Client) GetUnique(ctx context.Context, programLabel string, ordinal int) (string, error) {
	u := fmt.Sprintf("%s/api/links/%s/%d/unique", c.BaseURL, url.PathEscape(programLabel), ordinal)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return "", err
	}
	if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	res, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("link issuer: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("link issuer: read body: %w", err)
	}
	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", ErrExhausted
	default:
		return "", fmt.Errorf("link issuer: status %s: %s", strconv.Itoa(res.StatusCode), string(body))
	}
	var parsed uniqueLinkResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("link issuer: decode: %w", err)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("link issuer: empty url in response")
	}
	return parsed.URL, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.Timeout}
}
