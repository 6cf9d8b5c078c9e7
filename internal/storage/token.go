package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// TokenSource yields a bearer token for a resource scope.
type TokenSource interface {
	Token(ctx context.Context, scope string) (string, error)
}

// ClientCredentials implements the AAD client-credentials grant with per-scope
// token caching until expiry.
type ClientCredentials struct {
	LoginEndpoint string
	TenantID      string
	ClientID      string
	ClientSecret  string
	HTTPClient    *http.Client

	mu     sync.Mutex
	tokens map[string]cachedToken
}

type cachedToken struct {
	value  string
	expiry time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func NewClientCredentials(loginEndpoint, tenantID, clientID, clientSecret string) *ClientCredentials {
	return &ClientCredentials{
		LoginEndpoint: loginEndpoint,
		TenantID:      tenantID,
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
		tokens:        make(map[string]cachedToken),
	}
}

func (c *ClientCredentials) Token(ctx context.Context, scope string) (string, error) {
	c.mu.Lock()
	cached, ok := c.tokens[scope]
	c.mu.Unlock()
	if ok && time.Now().Before(cached.expiry) {
		return cached.value, nil
	}

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.LoginEndpoint, c.TenantID)
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	form.Set("scope", scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed: %d %s", resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	// Renew a minute early so in-flight calls never carry a stale token.
	expiry := time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)
	c.mu.Lock()
	c.tokens[scope] = cachedToken{value: token.AccessToken, expiry: expiry}
	c.mu.Unlock()

	return token.AccessToken, nil
}
