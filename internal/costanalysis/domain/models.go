package domain

import (
	"context"
	"time"

	exportdomain "github.com/finopslab/costlens/internal/billingexport/domain"
	connectiondomain "github.com/finopslab/costlens/internal/connection/domain"
)

// CostBreakdown is one entry of a top-N dimension.
type CostBreakdown struct {
	Name  string  `json:"name"`
	Cost  float64 `json:"cost"`
	Count int     `json:"count"`
}

// DailyCost is one day of the spend trend.
type DailyCost struct {
	Date string  `json:"date"` // 2006-01-02
	Cost float64 `json:"cost"`
}

// ResourceAuditEntry carries the detail needed for the full resource-level
// audit list.
type ResourceAuditEntry struct {
	ResourceName     string  `json:"resource_name"`
	ResourceID       string  `json:"resource_id"`
	ResourceGroup    string  `json:"resource_group"`
	ServiceName      string  `json:"service_name"`
	Region           string  `json:"region"`
	SubscriptionName string  `json:"subscription_name"`
	Cost             float64 `json:"cost"`
	Count            int     `json:"count"`
}

// LastMonthFigure exposes which export source backed the figure: "monthly" is
// authoritative, "daily" is a degraded approximation used when no monthly
// export exists, "none" means no data at all.
type LastMonthFigure struct {
	Cost   float64 `json:"cost"`
	Source string  `json:"source"`
}

const (
	LastMonthSourceMonthly = "monthly"
	LastMonthSourceDaily   = "daily"
	LastMonthSourceNone    = "none"
)

// CostSummary is the aggregated cost-analysis payload. Every cost figure is
// rounded to 2 decimal places; intermediate sums keep full precision.
type CostSummary struct {
	TotalCost  float64     `json:"total_cost"`
	DailyCosts []DailyCost `json:"daily_costs"`

	TopServices          []CostBreakdown      `json:"top_services"`
	TopResources         []CostBreakdown      `json:"top_resources"`
	TopResourceGroups    []CostBreakdown      `json:"top_resource_groups"`
	TopRegions           []CostBreakdown      `json:"top_regions"`
	TopSubscriptions     []CostBreakdown      `json:"top_subscriptions"`
	TopServiceCategories []CostBreakdown      `json:"top_service_categories"`
	ResourceAudit        []ResourceAuditEntry `json:"resource_audit"`

	CurrentMonthToDate  float64         `json:"current_month_to_date"`
	LastMonth           LastMonthFigure `json:"last_month"`
	SamePeriodLastMonth float64         `json:"same_period_last_month"`

	CurrentWeekByCategory      []CostBreakdown `json:"current_week_by_category"`
	PriorWeekByCategory        []CostBreakdown `json:"prior_week_by_category"`
	CurrentWeekByResourceGroup []CostBreakdown `json:"current_week_by_resource_group"`
	PriorWeekByResourceGroup   []CostBreakdown `json:"prior_week_by_resource_group"`
}

// Analysis is the full read-path response.
type Analysis struct {
	CustomerID  string      `json:"customer_id"`
	Period      string      `json:"period"`
	PeriodStart string      `json:"period_start"`
	PeriodEnd   string      `json:"period_end"`
	GeneratedAt time.Time   `json:"generated_at"`
	Summary     CostSummary `json:"summary"`
	// Diagnostics enumerates per-file failures that degraded, but did not
	// abort, the analysis.
	Diagnostics []string `json:"diagnostics"`
}

type Service interface {
	Analyze(ctx context.Context, customerID string, period exportdomain.Period) (*Analysis, error)
}

var (
	ErrNotConfigured = connectiondomain.ErrNotConfigured
	ErrInvalidPeriod = exportdomain.ErrInvalidPeriod
)
