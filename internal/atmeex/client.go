package atmeex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultBaseURL = "https://api.iot.atmeex.com"
	defaultTimeout = 15 * time.Second
)

// Config holds the transport settings of the vendor API.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	// HTTPClient overrides the base transport; tests pass httptest clients here.
	HTTPClient *http.Client
}

// HTTPStatusError is returned for every non-2xx vendor response.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("atmeex api error %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Client talks to the Atmeex cloud REST API on behalf of one account.
type Client struct {
	baseURL  string
	email    string
	password string

	base       http.RoundTripper
	httpClient *http.Client
	authClient *http.Client

	signInMu sync.Mutex // serializes sign-in and re-authentication

	mu    sync.Mutex
	token *oauth2.Token
}

// NewClient builds a client for the account. No request is made until the first API call.
func NewClient(cfg Config, email, password string) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var base http.RoundTripper = http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		base = cfg.HTTPClient.Transport
	}

	c := &Client{
		baseURL:    baseURL,
		email:      email,
		password:   password,
		base:       base,
		authClient: &http.Client{Transport: base, Timeout: timeout},
	}
	c.httpClient = &http.Client{
		Transport: &oauth2.Transport{Source: tokenSource{c}, Base: base},
		Timeout:   timeout,
	}
	return c
}

// RestoreTokens seeds the client with previously persisted tokens.
func (c *Client) RestoreTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if access == "" && refresh == "" {
		c.token = nil
		return
	}
	c.token = &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}
}

// Tokens returns the current access and refresh tokens. Both are empty before the first sign-in.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return "", ""
	}
	return c.token.AccessToken, c.token.RefreshToken
}

// GetDevices lists every device of the account with its latest condition.
func (c *Client) GetDevices(ctx context.Context) ([]*Device, error) {
	var resp []deviceResponse
	if err := c.doJSON(ctx, http.MethodGet, "/devices", nil, &resp); err != nil {
		return nil, fmt.Errorf("get devices: %w", err)
	}

	devices := make([]*Device, 0, len(resp))
	for _, d := range resp {
		devices = append(devices, d.toDevice(c))
	}
	return devices, nil
}

func (c *Client) setParams(ctx context.Context, deviceID int64, params map[string]any) error {
	path := fmt.Sprintf("/devices/%d/params", deviceID)
	if err := c.doJSON(ctx, http.MethodPut, path, params, nil); err != nil {
		return fmt.Errorf("set params on device %d: %w", deviceID, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return err
		}
	}

	if err := c.ensureToken(ctx); err != nil {
		return err
	}
	sent, _ := c.Tokens()
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if err := c.reauthenticate(ctx, sent); err != nil {
			return err
		}
		if resp, err = c.do(ctx, method, path, body); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &HTTPStatusError{Status: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}
