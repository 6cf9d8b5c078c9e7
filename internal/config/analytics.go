package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AnalyticsConfig carries the heuristic tables used by the reservation
// cost-benefit analyzer. The numbers are deliberate approximations: real unit
// pricing would require a price-sheet lookup that the engine does not perform.
type AnalyticsConfig struct {
	// DiscountPercentByTerm maps an ISO-8601 commitment term (P1Y, P3Y) to the
	// assumed reservation discount versus pay-as-you-go.
	DiscountPercentByTerm  map[string]float64 `mapstructure:"discountPercentByTerm"`
	DefaultDiscountPercent float64            `mapstructure:"defaultDiscountPercent"`

	// MonthlyBaselineByClass maps a resource-type class (vm, database, storage)
	// to an assumed per-unit monthly pay-as-you-go cost.
	MonthlyBaselineByClass map[string]float64 `mapstructure:"monthlyBaselineByClass"`
	DefaultMonthlyBaseline float64            `mapstructure:"defaultMonthlyBaseline"`

	// Utilization thresholds for recommendation severity.
	OptimizeThreshold float64 `mapstructure:"optimizeThreshold"`
	GoodThreshold     float64 `mapstructure:"goodThreshold"`
}

func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		DiscountPercentByTerm: map[string]float64{
			"P1Y": 35,
			"P3Y": 55,
		},
		DefaultDiscountPercent: 35,
		MonthlyBaselineByClass: map[string]float64{
			"vm":       160,
			"database": 250,
			"storage":  40,
		},
		DefaultMonthlyBaseline: 100,
		OptimizeThreshold:      80,
		GoodThreshold:          95,
	}
}

// AnalyticsConfigHolder serves the current heuristics table and hot-reloads it
// when the backing file changes.
type AnalyticsConfigHolder struct {
	current atomic.Value // holds AnalyticsConfig
}

func NewAnalyticsConfigHolder() (*AnalyticsConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("analytics")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/costlens/config")
	v.AddConfigPath("/etc/costlens")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COSTLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &AnalyticsConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultAnalyticsConfig())
		return holder, nil
	}

	cfg, err := unmarshalAnalytics(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalAnalytics(v)
		if err != nil {
			log.Printf("[analytics-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[analytics-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticAnalyticsConfigHolder serves a fixed table without file watching.
func NewStaticAnalyticsConfigHolder(cfg AnalyticsConfig) *AnalyticsConfigHolder {
	holder := &AnalyticsConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *AnalyticsConfigHolder) Get() AnalyticsConfig {
	return h.current.Load().(AnalyticsConfig)
}

func unmarshalAnalytics(v *viper.Viper) (AnalyticsConfig, error) {
	cfg := DefaultAnalyticsConfig()
	if err := v.UnmarshalKey("analytics", &cfg); err != nil {
		return cfg, err
	}
	if err := validateAnalyticsConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateAnalyticsConfig(cfg AnalyticsConfig) error {
	if cfg.DefaultDiscountPercent <= 0 || cfg.DefaultDiscountPercent >= 100 {
		return errors.New("analytics.defaultDiscountPercent must be in (0, 100)")
	}
	for term, pct := range cfg.DiscountPercentByTerm {
		if pct <= 0 || pct >= 100 {
			return errors.New("analytics.discountPercentByTerm has out-of-range entry: " + term)
		}
	}
	if cfg.DefaultMonthlyBaseline <= 0 {
		return errors.New("analytics.defaultMonthlyBaseline must be positive")
	}
	return nil
}
