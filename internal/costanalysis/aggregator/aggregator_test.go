package aggregator

import (
	"fmt"
	"testing"
	"time"

	exportdomain "github.com/finopslab/costlens/internal/billingexport/domain"
	"github.com/finopslab/costlens/internal/costanalysis/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)

func record(date time.Time, service, resource, group string, cost float64) exportdomain.CostRecord {
	resourceID := resource
	if group != "" {
		resourceID = fmt.Sprintf("/subscriptions/s1/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines/%s", group, resource)
	}
	return exportdomain.CostRecord{
		BilledCost:       decimal.NewFromFloat(cost),
		ServiceName:      service,
		ServiceCategory:  "Compute",
		ResourceName:     resourceID,
		Region:           "westeurope",
		SubscriptionName: "Prod",
		SubscriptionID:   "s1",
		Date:             date,
	}
}

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestAggregateTotalAndDailyTrend(t *testing.T) {
	records := []exportdomain.CostRecord{
		record(day(10), "Virtual Machines", "vm1", "rg-a", 10.005),
		record(day(10), "Virtual Machines", "vm1", "rg-a", 0.004),
		record(day(11), "Storage", "st1", "rg-b", 5.0),
	}

	summary := Aggregate(Input{WindowRecords: records, DailyRecords: records, Now: now})

	// 10.005 + 0.004 + 5.0 rounds at the end, not per record.
	assert.Equal(t, 15.01, summary.TotalCost)

	require.Len(t, summary.DailyCosts, 2)
	assert.Equal(t, "2026-01-10", summary.DailyCosts[0].Date)
	assert.Equal(t, 10.01, summary.DailyCosts[0].Cost)
	assert.Equal(t, "2026-01-11", summary.DailyCosts[1].Date)
	assert.Equal(t, 5.0, summary.DailyCosts[1].Cost)
}

func TestAggregateTopNSortedAndCapped(t *testing.T) {
	var records []exportdomain.CostRecord
	for i := 0; i < 15; i++ {
		records = append(records, record(day(10), fmt.Sprintf("svc-%02d", i), "vm1", "rg-a", float64(i+1)))
	}

	summary := Aggregate(Input{WindowRecords: records, Now: now})

	require.Len(t, summary.TopServices, 10)
	assert.Equal(t, "svc-14", summary.TopServices[0].Name)
	assert.Equal(t, 15.0, summary.TopServices[0].Cost)
	for i := 1; i < len(summary.TopServices); i++ {
		assert.GreaterOrEqual(t, summary.TopServices[i-1].Cost, summary.TopServices[i].Cost)
	}
}

func TestAggregateTopNTieBrokenByName(t *testing.T) {
	records := []exportdomain.CostRecord{
		record(day(10), "zeta", "vm1", "rg-a", 3.0),
		record(day(10), "alpha", "vm2", "rg-a", 3.0),
	}

	summary := Aggregate(Input{WindowRecords: records, Now: now})
	require.Len(t, summary.TopServices, 2)
	assert.Equal(t, "alpha", summary.TopServices[0].Name)
	assert.Equal(t, "zeta", summary.TopServices[1].Name)
}

func TestAggregateUnknownBuckets(t *testing.T) {
	r := exportdomain.CostRecord{
		BilledCost: decimal.NewFromFloat(2.0),
		Date:       day(10),
	}

	summary := Aggregate(Input{WindowRecords: []exportdomain.CostRecord{r}, Now: now})

	require.Len(t, summary.TopResourceGroups, 1)
	assert.Equal(t, "Unknown", summary.TopResourceGroups[0].Name)
	require.Len(t, summary.TopServices, 1)
	assert.Equal(t, "Other", summary.TopServices[0].Name)
}

func TestAggregateMonthToDateFromDailyOnly(t *testing.T) {
	window := []exportdomain.CostRecord{
		record(day(5), "Virtual Machines", "vm1", "rg-a", 100.0),
	}
	daily := []exportdomain.CostRecord{
		record(day(5), "Virtual Machines", "vm1", "rg-a", 40.0),
		record(day(19), "Virtual Machines", "vm1", "rg-a", 2.0),
		// December spend must not count toward the current month.
		record(time.Date(2025, 12, 30, 0, 0, 0, 0, time.UTC), "Virtual Machines", "vm1", "rg-a", 99.0),
	}

	summary := Aggregate(Input{WindowRecords: window, DailyRecords: daily, Now: now})
	assert.Equal(t, 42.0, summary.CurrentMonthToDate)
}

func TestAggregateLastMonthFromMonthlyComparison(t *testing.T) {
	comparison := []exportdomain.CostRecord{
		record(time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC), "Virtual Machines", "vm1", "rg-a", 300.0),
		record(time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC), "Virtual Machines", "vm1", "rg-a", 100.0),
	}

	summary := Aggregate(Input{
		ComparisonRecords:     comparison,
		ComparisonFromMonthly: true,
		Now:                   now,
	})

	assert.Equal(t, domain.LastMonthSourceMonthly, summary.LastMonth.Source)
	assert.Equal(t, 400.0, summary.LastMonth.Cost)
	// Cutoff on the 20th excludes the Dec 25 record.
	assert.Equal(t, 300.0, summary.SamePeriodLastMonth)
}

func TestAggregateLastMonthFallsBackToDaily(t *testing.T) {
	daily := []exportdomain.CostRecord{
		record(time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC), "Storage", "st1", "rg-a", 55.0),
	}

	summary := Aggregate(Input{DailyRecords: daily, Now: now})
	assert.Equal(t, domain.LastMonthSourceDaily, summary.LastMonth.Source)
	assert.Equal(t, 55.0, summary.LastMonth.Cost)
}

func TestAggregateLastMonthNoData(t *testing.T) {
	summary := Aggregate(Input{Now: now})
	assert.Equal(t, domain.LastMonthSourceNone, summary.LastMonth.Source)
	assert.Zero(t, summary.LastMonth.Cost)
	assert.Zero(t, summary.SamePeriodLastMonth)
}

func TestAggregateWeeklyWindows(t *testing.T) {
	daily := []exportdomain.CostRecord{
		record(day(20), "Virtual Machines", "vm1", "rg-a", 7.0),  // current week
		record(day(14), "Virtual Machines", "vm1", "rg-a", 3.0),  // current week boundary
		record(day(13), "Virtual Machines", "vm1", "rg-a", 11.0), // prior week boundary
		record(day(7), "Virtual Machines", "vm1", "rg-a", 5.0),   // prior week boundary
		record(day(6), "Virtual Machines", "vm1", "rg-a", 99.0),  // outside both
	}

	summary := Aggregate(Input{DailyRecords: daily, Now: now})

	require.Len(t, summary.CurrentWeekByResourceGroup, 1)
	assert.Equal(t, 10.0, summary.CurrentWeekByResourceGroup[0].Cost)
	require.Len(t, summary.PriorWeekByResourceGroup, 1)
	assert.Equal(t, 16.0, summary.PriorWeekByResourceGroup[0].Cost)
}

func TestAggregateResourceAuditAggregatesByResourceID(t *testing.T) {
	records := []exportdomain.CostRecord{
		record(day(10), "Virtual Machines", "vm1", "rg-a", 1.0),
		record(day(11), "Virtual Machines", "vm1", "rg-a", 2.0),
		record(day(10), "Storage", "st1", "rg-b", 4.0),
	}

	summary := Aggregate(Input{WindowRecords: records, Now: now})

	require.Len(t, summary.ResourceAudit, 2)
	assert.Equal(t, "st1", summary.ResourceAudit[0].ResourceName)
	assert.Equal(t, 4.0, summary.ResourceAudit[0].Cost)
	assert.Equal(t, "vm1", summary.ResourceAudit[1].ResourceName)
	assert.Equal(t, 3.0, summary.ResourceAudit[1].Cost)
	assert.Equal(t, 2, summary.ResourceAudit[1].Count)
	assert.Equal(t, "rg-a", summary.ResourceAudit[1].ResourceGroup)
}

func TestAggregateEmptyInput(t *testing.T) {
	summary := Aggregate(Input{Now: now})
	assert.Zero(t, summary.TotalCost)
	assert.Empty(t, summary.DailyCosts)
	assert.Empty(t, summary.TopServices)
	assert.Empty(t, summary.ResourceAudit)
}
