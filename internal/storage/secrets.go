package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// SecretStore resolves a named credential reference to its secret value.
type SecretStore interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

var ErrSecretNotFound = errors.New("secret_not_found")

// VaultClient reads secrets from a Key-Vault-style REST endpoint.
type VaultClient struct {
	endpoint   string
	tokens     TokenSource
	httpClient *http.Client
}

func NewVaultClient(endpoint string, tokens TokenSource) *VaultClient {
	return &VaultClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type vaultSecretResponse struct {
	Value string `json:"value"`
}

func (c *VaultClient) GetSecret(ctx context.Context, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/secrets/%s?api-version=7.4", c.endpoint, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create secret request: %w", err)
	}

	token, err := c.tokens.Token(ctx, "https://vault.azure.net/.default")
	if err != nil {
		return "", fmt.Errorf("acquire vault token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("secret request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrSecretNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("secret request failed: %d %s", resp.StatusCode, string(body))
	}

	var secret vaultSecretResponse
	if err := json.NewDecoder(resp.Body).Decode(&secret); err != nil {
		return "", fmt.Errorf("decode secret response: %w", err)
	}
	return secret.Value, nil
}

// EnvSecretStore resolves secrets from environment variables. Used when no
// vault endpoint is configured (local development, tests).
type EnvSecretStore struct{}

func (EnvSecretStore) GetSecret(_ context.Context, name string) (string, error) {
	key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", ErrSecretNotFound
}
