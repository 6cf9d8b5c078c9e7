package refresh

import (
	"context"
	"strings"

	"github.com/finopslab/costlens/internal/config"
	"github.com/finopslab/costlens/internal/refresh/domain"
	"github.com/finopslab/costlens/internal/refresh/repository"
	"github.com/finopslab/costlens/internal/refresh/service"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func provideRedis(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
}

func runWorkers(lc fx.Lifecycle, s *service.RefreshService) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunWorker(ctx)
			go s.RunAutoRefresh(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

var Module = fx.Module("refresh",
	fx.Provide(provideRedis),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(s *service.RefreshService) domain.Service { return s }),
	fx.Invoke(runWorkers),
)
