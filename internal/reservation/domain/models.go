package domain

import "time"

// DailyUtilization is one day of a reservation's utilization series.
type DailyUtilization struct {
	Date               string  `json:"date"` // 2006-01-02
	UsedHours          float64 `json:"used_hours"`
	ReservedHours      float64 `json:"reserved_hours"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// CoveredResource is one workload consuming a reservation's capacity.
type CoveredResource struct {
	ResourceID string  `json:"resource_id"`
	UsedHours  float64 `json:"used_hours"`
}

// Severity levels for recommendations and insights, most severe first.
const (
	SeverityCritical = "Critical"
	SeverityHigh     = "High"
	SeverityMedium   = "Medium"
	SeverityLow      = "Low"
	SeverityInfo     = "Info"
)

// Reservation is one purchased capacity commitment, rebuilt wholesale on
// every refresh. Economics fields are filled in by the analyzer.
type Reservation struct {
	ReservationID string `json:"reservation_id"`
	OrderID       string `json:"order_id"`
	DisplayName   string `json:"display_name"`
	SKUName       string `json:"sku_name"`
	ResourceType  string `json:"resource_type"`
	Term          string `json:"term"` // ISO-8601, e.g. P1Y, P3Y
	Quantity      int    `json:"quantity"`
	Location      string `json:"location"`
	State         string `json:"state"`
	AutoRenew     bool   `json:"auto_renew"`

	PurchaseDate string `json:"purchase_date"`
	ExpiryDate   string `json:"expiry_date"`
	DaysToExpiry int    `json:"days_to_expiry"`

	// HasUtilizationData is false when every utilization call for this
	// reservation failed; the reservation is still reported.
	HasUtilizationData bool               `json:"has_utilization_data"`
	DailyUtilization   []DailyUtilization `json:"daily_utilization"`
	Utilization30Day   float64            `json:"utilization_30_day"`
	Utilization7Day    float64            `json:"utilization_7_day"`
	Utilization1Day    float64            `json:"utilization_1_day"`
	UtilizationMin     float64            `json:"utilization_min"`
	UtilizationMax     float64            `json:"utilization_max"`
	CoveredResources   []CoveredResource  `json:"covered_resources"`

	DiscountPercent         float64 `json:"discount_percent"`
	BreakevenUtilization    float64 `json:"breakeven_utilization"`
	EstimatedMonthlySavings float64 `json:"estimated_monthly_savings"`
	MonthlyWaste            float64 `json:"monthly_waste"`
	Recommendation          string  `json:"recommendation"`
	RecommendationSeverity  string  `json:"recommendation_severity"`
}

// IsActive reports whether the reservation still provides capacity.
func (r Reservation) IsActive() bool {
	return r.State == "" || r.State == "Succeeded" || r.State == "Active"
}

// PurchaseRecommendation is a suggested new commitment. Numeric fields are
// always present, defaulted to zero, so consumers never see missing keys.
type PurchaseRecommendation struct {
	SubscriptionName string  `json:"subscription_name"`
	SKUName          string  `json:"sku_name"`
	Location         string  `json:"location"`
	ResourceType     string  `json:"resource_type"`
	Term             string  `json:"term"`
	Quantity         int     `json:"quantity"`
	MonthlySavings   float64 `json:"monthly_savings"`
	AnnualSavings    float64 `json:"annual_savings"`
	CostWithRI       float64 `json:"cost_with_ri"`
	CostWithoutRI    float64 `json:"cost_without_ri"`
	SavingsPercent   float64 `json:"savings_percent"`
}

// Insight is one prioritized finding over the reservation fleet.
type Insight struct {
	Priority      string `json:"priority"` // severity constant
	Title         string `json:"title"`
	Detail        string `json:"detail"`
	ReservationID string `json:"reservation_id,omitempty"`
}

// FetchResult is everything one refresh gathered, with per-call failures
// collected instead of aborting.
type FetchResult struct {
	Reservations    []Reservation
	Recommendations []PurchaseRecommendation
	Errors          []string
	FetchedAt       time.Time
}
