package storage

import (
	"context"
	"fmt"

	"github.com/finopslab/costlens/internal/config"
	connectiondomain "github.com/finopslab/costlens/internal/connection/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// TokenSourceFactory builds an AAD token source for one customer connection,
// resolving the client secret through the secret store.
type TokenSourceFactory func(ctx context.Context, conn *connectiondomain.CustomerConnection) (TokenSource, error)

// BlobStoreFactory builds a blob store scoped to one customer's export container.
type BlobStoreFactory func(ctx context.Context, conn *connectiondomain.CustomerConnection) (BlobStore, error)

func NewSecretStore(cfg config.Config, log *zap.Logger) SecretStore {
	if cfg.VaultEndpoint == "" {
		log.Named("storage").Warn("no vault endpoint configured, resolving credentials from environment")
		return EnvSecretStore{}
	}
	engineTokens := NewClientCredentials(cfg.LoginEndpoint, cfg.AzureTenantID, cfg.AzureClientID, cfg.AzureClientSecret)
	return NewVaultClient(cfg.VaultEndpoint, engineTokens)
}

func NewTokenSourceFactory(cfg config.Config, secrets SecretStore) TokenSourceFactory {
	return func(ctx context.Context, conn *connectiondomain.CustomerConnection) (TokenSource, error) {
		if conn.CredentialSecretRef == "" {
			return nil, connectiondomain.ErrNoCredential
		}
		secret, err := secrets.GetSecret(ctx, conn.CredentialSecretRef)
		if err != nil {
			return nil, fmt.Errorf("resolve credential %q: %w", conn.CredentialSecretRef, err)
		}
		return NewClientCredentials(cfg.LoginEndpoint, conn.TenantID, conn.ClientID, secret), nil
	}
}

func NewBlobStoreFactory(cfg config.Config, tokens TokenSourceFactory) BlobStoreFactory {
	return func(ctx context.Context, conn *connectiondomain.CustomerConnection) (BlobStore, error) {
		if conn.StorageAccount == "" || conn.StorageContainer == "" {
			return nil, connectiondomain.ErrNoStorage
		}
		source, err := tokens(ctx, conn)
		if err != nil {
			return nil, err
		}
		return NewBlobClient(conn.StorageAccount, conn.StorageContainer, cfg.BlobEndpointSuffix, source), nil
	}
}

var Module = fx.Module("storage",
	fx.Provide(NewSecretStore),
	fx.Provide(NewTokenSourceFactory),
	fx.Provide(NewBlobStoreFactory),
)
