package observability

import (
	"os"
	"strings"

	"github.com/finopslab/costlens/internal/config"
	"github.com/finopslab/costlens/internal/observability/logger"
	"github.com/finopslab/costlens/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideLoggerConfig,
		logger.New,
		metrics.New,
	),
)

func provideLoggerConfig(cfg config.Config) logger.Config {
	return logger.Config{
		ServiceName:   cfg.AppName,
		Environment:   cfg.Environment,
		Version:       cfg.AppVersion,
		Level:         getenv("LOG_LEVEL", "info"),
		Format:        getenv("LOG_FORMAT", "json"),
		IncludeCaller: true,
	}
}

func getenv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
