package reservation

import (
	"context"

	"github.com/finopslab/costlens/internal/config"
	connectiondomain "github.com/finopslab/costlens/internal/connection/domain"
	"github.com/finopslab/costlens/internal/observability/metrics"
	"github.com/finopslab/costlens/internal/reservation/analyzer"
	"github.com/finopslab/costlens/internal/reservation/fetcher"
	"github.com/finopslab/costlens/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// FetcherFactory builds a fetcher bound to one customer's credential.
type FetcherFactory func(ctx context.Context, conn *connectiondomain.CustomerConnection) (*fetcher.Fetcher, error)

func NewFetcherFactory(cfg config.Config, tokens storage.TokenSourceFactory, log *zap.Logger, m *metrics.Metrics) FetcherFactory {
	return func(ctx context.Context, conn *connectiondomain.CustomerConnection) (*fetcher.Fetcher, error) {
		source, err := tokens(ctx, conn)
		if err != nil {
			return nil, err
		}
		client := fetcher.NewClient(cfg.ManagementEndpoint, source)
		return fetcher.NewFetcher(client, log, m, cfg.RefreshConcurrency), nil
	}
}

var Module = fx.Module("reservation",
	fx.Provide(NewFetcherFactory),
	fx.Provide(analyzer.New),
)
