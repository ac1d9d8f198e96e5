package atmeex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

type signInRequest struct {
	GrantType    string `json:"grant_type"`
	Email        string `json:"email,omitempty"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// errNotSignedIn is returned by the transport when a request goes out before ensureToken.
var errNotSignedIn = errors.New("atmeex: not signed in")

// tokenSource feeds oauth2.Transport with the token held by the client.
// Signing in happens in ensureToken, under the caller's context.
type tokenSource struct {
	c *Client
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.c.token == nil || s.c.token.AccessToken == "" {
		return nil, errNotSignedIn
	}
	return s.c.token, nil
}

// ensureToken signs in once when no access token is held. Concurrent callers wait for
// the first sign-in instead of starting their own.
func (c *Client) ensureToken(ctx context.Context) error {
	c.signInMu.Lock()
	defer c.signInMu.Unlock()
	if access, _ := c.Tokens(); access != "" {
		return nil
	}
	return c.signIn(ctx)
}

// reauthenticate runs after a 401 for the given access token: refresh first, password
// sign-in as fallback. Nothing is done when another caller already replaced the token.
func (c *Client) reauthenticate(ctx context.Context, rejected string) error {
	c.signInMu.Lock()
	defer c.signInMu.Unlock()

	access, refresh := c.Tokens()
	if access != "" && access != rejected {
		return nil
	}
	if refresh != "" {
		if err := c.exchange(ctx, signInRequest{GrantType: "refresh_token", RefreshToken: refresh}); err == nil {
			return nil
		}
	}
	return c.signIn(ctx)
}

func (c *Client) signIn(ctx context.Context) error {
	return c.exchange(ctx, signInRequest{GrantType: "basic", Email: c.email, Password: c.password})
}

func (c *Client) exchange(ctx context.Context, payload signInRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/signin", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.authClient.Do(req)
	if err != nil {
		return fmt.Errorf("atmeex sign-in (%s): %w", payload.GrantType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &HTTPStatusError{Status: resp.StatusCode, Body: string(data)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("decode sign-in response: %w", err)
	}
	if tr.AccessToken == "" {
		return fmt.Errorf("atmeex sign-in (%s): empty access token", payload.GrantType)
	}

	tok := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    "Bearer",
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if tok.RefreshToken == "" {
		_, tok.RefreshToken = c.Tokens()
	}

	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
	return nil
}
