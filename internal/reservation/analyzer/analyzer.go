// Package analyzer attaches cost-benefit economics to fetched reservations.
// The discount and baseline tables are heuristic approximations; real unit
// pricing would need a price-sheet lookup the engine does not perform.
package analyzer

import (
	"fmt"
	"strings"

	"github.com/finopslab/costlens/internal/config"
	"github.com/finopslab/costlens/internal/reservation/domain"
)

// Analyzer derives savings, waste and a severity-tagged recommendation per
// reservation from its utilization and commitment terms.
type Analyzer struct {
	tables *config.AnalyticsConfigHolder
}

func New(tables *config.AnalyticsConfigHolder) *Analyzer {
	return &Analyzer{tables: tables}
}

// Analyze fills the economics fields of every reservation in place.
func (a *Analyzer) Analyze(reservations []domain.Reservation) {
	cfg := a.tables.Get()
	for i := range reservations {
		a.analyzeOne(&reservations[i], cfg)
	}
}

func (a *Analyzer) analyzeOne(r *domain.Reservation, cfg config.AnalyticsConfig) {
	discount, ok := cfg.DiscountPercentByTerm[strings.ToUpper(r.Term)]
	if !ok {
		discount = cfg.DefaultDiscountPercent
	}
	r.DiscountPercent = discount
	r.BreakevenUtilization = 100 - discount

	baseline := monthlyBaseline(r.ResourceType, cfg)
	paygCost := baseline * float64(r.Quantity)
	committedCost := paygCost * (1 - discount/100)

	utilization := r.Utilization30Day
	net := paygCost*utilization/100 - committedCost
	if net >= 0 {
		r.EstimatedMonthlySavings = net
		r.MonthlyWaste = 0
	} else {
		r.EstimatedMonthlySavings = 0
		r.MonthlyWaste = -net
	}

	r.RecommendationSeverity, r.Recommendation = recommend(utilization, r.BreakevenUtilization, cfg)
}

// monthlyBaseline classifies the reserved resource type into one of the
// configured pay-as-you-go cost classes.
func monthlyBaseline(resourceType string, cfg config.AnalyticsConfig) float64 {
	t := strings.ToLower(resourceType)
	for class, baseline := range cfg.MonthlyBaselineByClass {
		if strings.Contains(t, class) {
			return baseline
		}
	}
	switch {
	case strings.Contains(t, "virtualmachine"), strings.Contains(t, "compute"):
		return classBaseline(cfg, "vm")
	case strings.Contains(t, "sql"), strings.Contains(t, "cosmos"), strings.Contains(t, "postgre"), strings.Contains(t, "mysql"):
		return classBaseline(cfg, "database")
	case strings.Contains(t, "disk"), strings.Contains(t, "blob"):
		return classBaseline(cfg, "storage")
	default:
		return cfg.DefaultMonthlyBaseline
	}
}

func classBaseline(cfg config.AnalyticsConfig, class string) float64 {
	if baseline, ok := cfg.MonthlyBaselineByClass[class]; ok {
		return baseline
	}
	return cfg.DefaultMonthlyBaseline
}

// recommend maps utilization to a recommendation, most severe first. The
// ladder is monotonic: higher utilization never yields a more severe result.
func recommend(utilization, breakeven float64, cfg config.AnalyticsConfig) (string, string) {
	switch {
	case utilization <= 0:
		return domain.SeverityCritical, "0% utilization. CANCEL this reservation immediately or move matching workloads onto it."
	case utilization < breakeven:
		return domain.SeverityHigh, fmt.Sprintf("Utilization %.0f%% is below the %.0f%% breakeven. Consider switching to pay-as-you-go or exchanging the reservation.", utilization, breakeven)
	case utilization < cfg.OptimizeThreshold:
		return domain.SeverityMedium, fmt.Sprintf("Utilization %.0f%% leaves committed capacity idle. Optimize placement to raise usage.", utilization)
	case utilization < cfg.GoodThreshold:
		return domain.SeverityLow, fmt.Sprintf("Utilization %.0f%% is GOOD. Minor headroom remains.", utilization)
	default:
		return domain.SeverityInfo, fmt.Sprintf("Utilization %.0f%% is EXCELLENT. The reservation is fully earning its discount.", utilization)
	}
}
