package analyzer

import (
	"testing"

	"github.com/finopslab/costlens/internal/config"
	"github.com/finopslab/costlens/internal/reservation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzer() *Analyzer {
	return New(config.NewStaticAnalyticsConfigHolder(config.DefaultAnalyticsConfig()))
}

func analyzed(term, resourceType string, utilization float64, quantity int) domain.Reservation {
	out := []domain.Reservation{{
		ReservationID:      "res-1",
		Term:               term,
		ResourceType:       resourceType,
		Quantity:           quantity,
		HasUtilizationData: true,
		Utilization30Day:   utilization,
	}}
	newAnalyzer().Analyze(out)
	return out[0]
}

func TestZeroUtilizationOneYearTermIsCriticalCancel(t *testing.T) {
	r := analyzed("P1Y", "VirtualMachines", 0, 1)

	assert.Equal(t, domain.SeverityCritical, r.RecommendationSeverity)
	assert.Contains(t, r.Recommendation, "CANCEL")
	assert.Equal(t, 35.0, r.DiscountPercent)
	assert.Equal(t, 65.0, r.BreakevenUtilization)
	assert.Zero(t, r.EstimatedMonthlySavings)
	assert.Greater(t, r.MonthlyWaste, 0.0)
}

func TestNinetyPercentThreeYearTermIsLowGood(t *testing.T) {
	r := analyzed("P3Y", "VirtualMachines", 90, 1)

	assert.Equal(t, 55.0, r.DiscountPercent)
	assert.Equal(t, 45.0, r.BreakevenUtilization)
	assert.Equal(t, domain.SeverityLow, r.RecommendationSeverity)
	assert.Contains(t, r.Recommendation, "GOOD")
}

func TestUnknownTermFallsBackToDefaultDiscount(t *testing.T) {
	r := analyzed("P5Y", "VirtualMachines", 50, 1)
	assert.Equal(t, 35.0, r.DiscountPercent)
}

func TestSeverityMonotonicInUtilization(t *testing.T) {
	rank := map[string]int{
		domain.SeverityCritical: 0,
		domain.SeverityHigh:     1,
		domain.SeverityMedium:   2,
		domain.SeverityLow:      3,
		domain.SeverityInfo:     4,
	}

	previous := -1
	for utilization := 0.0; utilization <= 100; utilization++ {
		r := analyzed("P1Y", "VirtualMachines", utilization, 2)
		current := rank[r.RecommendationSeverity]
		require.GreaterOrEqual(t, current, previous,
			"severity regressed at %.0f%% utilization", utilization)
		previous = current
	}
}

func TestSavingsAndWasteSplit(t *testing.T) {
	// vm baseline 160, quantity 1, P1Y: committed = 160 * 0.65 = 104.
	fullyUsed := analyzed("P1Y", "VirtualMachines", 100, 1)
	assert.InDelta(t, 56.0, fullyUsed.EstimatedMonthlySavings, 0.01)
	assert.Zero(t, fullyUsed.MonthlyWaste)

	halfUsed := analyzed("P1Y", "VirtualMachines", 50, 1)
	assert.Zero(t, halfUsed.EstimatedMonthlySavings)
	assert.InDelta(t, 24.0, halfUsed.MonthlyWaste, 0.01)
}

func TestBaselineClassification(t *testing.T) {
	vm := analyzed("P1Y", "VirtualMachines", 100, 1)
	db := analyzed("P1Y", "SqlDatabases", 100, 1)
	disk := analyzed("P1Y", "ManagedDisk", 100, 1)
	other := analyzed("P1Y", "Mystery", 100, 1)

	// Higher baseline means more absolute savings at full utilization.
	assert.Greater(t, db.EstimatedMonthlySavings, vm.EstimatedMonthlySavings)
	assert.Greater(t, vm.EstimatedMonthlySavings, disk.EstimatedMonthlySavings)
	assert.Greater(t, other.EstimatedMonthlySavings, disk.EstimatedMonthlySavings)
}

func TestTablesSwappableViaConfig(t *testing.T) {
	cfg := config.DefaultAnalyticsConfig()
	cfg.DiscountPercentByTerm = map[string]float64{"P1Y": 20}
	a := New(config.NewStaticAnalyticsConfigHolder(cfg))

	out := []domain.Reservation{{Term: "P1Y", Quantity: 1, HasUtilizationData: true, Utilization30Day: 85}}
	a.Analyze(out)

	assert.Equal(t, 20.0, out[0].DiscountPercent)
	assert.Equal(t, 80.0, out[0].BreakevenUtilization)
}
