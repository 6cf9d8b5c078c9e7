// Package aggregator rolls deduplicated cost records into the
// multi-dimensional summary served by the cost-analysis read path. Sums are
// accumulated as decimals and rounded to 2 decimal places only at output,
// so rounded top-N entries may not add up to the rounded total exactly.
package aggregator

import (
	"sort"
	"time"

	exportdomain "github.com/finopslab/costlens/internal/billingexport/domain"
	"github.com/finopslab/costlens/internal/costanalysis/domain"
	"github.com/shopspring/decimal"
)

const (
	topNDefault   = 10
	topNResources = 20
	auditLimit    = 500

	unknownGroup  = "Unknown"
	otherCategory = "Other"
)

// Input carries the record sets backing one summary.
type Input struct {
	// WindowRecords are deduplicated records filtered to the requested period.
	WindowRecords []exportdomain.CostRecord
	// DailyRecords are the window records when the window is backed by daily
	// exports, empty otherwise. Month-to-date and weekly figures come only
	// from here.
	DailyRecords []exportdomain.CostRecord
	// ComparisonRecords hold the prior completed month, sourced separately.
	ComparisonRecords []exportdomain.CostRecord
	// ComparisonFromMonthly marks whether ComparisonRecords came from a
	// finalized monthly export or are a daily-export approximation.
	ComparisonFromMonthly bool
	Now                   time.Time
}

type acc struct {
	name  string
	sum   decimal.Decimal
	count int
}

// Aggregate computes the full cost summary in one pass per dimension.
func Aggregate(in Input) domain.CostSummary {
	today := exportdomain.DayOf(in.Now)

	total := decimal.Zero
	byDay := map[string]*acc{}
	byService := map[string]*acc{}
	byResource := map[string]*acc{}
	byGroup := map[string]*acc{}
	byRegion := map[string]*acc{}
	bySubscription := map[string]*acc{}
	byCategory := map[string]*acc{}
	audit := map[string]*auditAcc{}

	for _, r := range in.WindowRecords {
		total = total.Add(r.BilledCost)

		add(byDay, r.Date.Format("2006-01-02"), r.BilledCost)
		add(byService, nonEmpty(r.ServiceName, otherCategory), r.BilledCost)
		add(byResource, nonEmpty(r.ShortResourceName(), unknownGroup), r.BilledCost)
		add(byGroup, nonEmpty(r.ResourceGroup(), unknownGroup), r.BilledCost)
		add(byRegion, nonEmpty(r.Region, unknownGroup), r.BilledCost)
		add(bySubscription, nonEmpty(r.SubscriptionName, unknownGroup), r.BilledCost)
		add(byCategory, nonEmpty(r.ServiceCategory, otherCategory), r.BilledCost)
		addAudit(audit, r)
	}

	summary := domain.CostSummary{
		TotalCost:            round2(total),
		DailyCosts:           dailyTrend(byDay),
		TopServices:          topN(byService, topNDefault),
		TopResources:         topN(byResource, topNResources),
		TopResourceGroups:    topN(byGroup, topNDefault),
		TopRegions:           topN(byRegion, topNDefault),
		TopSubscriptions:     topN(bySubscription, topNDefault),
		TopServiceCategories: topN(byCategory, topNDefault),
		ResourceAudit:        auditList(audit),
	}

	summary.CurrentMonthToDate = round2(sumWithin(in.DailyRecords,
		time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), today))

	summary.LastMonth, summary.SamePeriodLastMonth = lastMonthFigures(in, today)

	weekStart := today.AddDate(0, 0, -6)
	priorWeekStart := today.AddDate(0, 0, -13)
	priorWeekEnd := today.AddDate(0, 0, -7)
	summary.CurrentWeekByCategory = weeklyBreakdown(in.DailyRecords, weekStart, today, categoryKey)
	summary.PriorWeekByCategory = weeklyBreakdown(in.DailyRecords, priorWeekStart, priorWeekEnd, categoryKey)
	summary.CurrentWeekByResourceGroup = weeklyBreakdown(in.DailyRecords, weekStart, today, groupKey)
	summary.PriorWeekByResourceGroup = weeklyBreakdown(in.DailyRecords, priorWeekStart, priorWeekEnd, groupKey)

	return summary
}

func lastMonthFigures(in Input, today time.Time) (domain.LastMonthFigure, float64) {
	lastMonthStart, lastMonthEnd := exportdomain.Period{Kind: exportdomain.PeriodLastMonth}.Range(today)

	source := in.ComparisonRecords
	figure := domain.LastMonthFigure{Source: domain.LastMonthSourceMonthly}
	if len(source) == 0 || !in.ComparisonFromMonthly {
		if len(in.ComparisonRecords) > 0 {
			// Daily records covering last month: a degraded approximation.
			figure.Source = domain.LastMonthSourceDaily
		} else {
			daily := filterWithin(in.DailyRecords, lastMonthStart, lastMonthEnd)
			if len(daily) == 0 {
				return domain.LastMonthFigure{Source: domain.LastMonthSourceNone}, 0
			}
			source = daily
			figure.Source = domain.LastMonthSourceDaily
		}
	}

	figure.Cost = round2(sumWithin(source, lastMonthStart, lastMonthEnd))

	// Same day-of-month cutoff applied to last month for a fair comparison.
	cutoffDay := today.Day()
	if lastDay := lastMonthEnd.Day(); cutoffDay > lastDay {
		cutoffDay = lastDay
	}
	cutoff := time.Date(lastMonthStart.Year(), lastMonthStart.Month(), cutoffDay, 0, 0, 0, 0, time.UTC)
	samePeriod := round2(sumWithin(source, lastMonthStart, cutoff))

	return figure, samePeriod
}

func categoryKey(r exportdomain.CostRecord) string {
	return nonEmpty(r.ServiceCategory, otherCategory)
}

func groupKey(r exportdomain.CostRecord) string {
	return nonEmpty(r.ResourceGroup(), unknownGroup)
}

func weeklyBreakdown(records []exportdomain.CostRecord, start, end time.Time, key func(exportdomain.CostRecord) string) []domain.CostBreakdown {
	buckets := map[string]*acc{}
	for _, r := range records {
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		add(buckets, key(r), r.BilledCost)
	}
	return topN(buckets, topNDefault)
}

func add(buckets map[string]*acc, key string, cost decimal.Decimal) {
	entry, ok := buckets[key]
	if !ok {
		entry = &acc{name: key, sum: decimal.Zero}
		buckets[key] = entry
	}
	entry.sum = entry.sum.Add(cost)
	entry.count++
}

type auditAcc struct {
	record exportdomain.CostRecord
	sum    decimal.Decimal
	count  int
}

func addAudit(audit map[string]*auditAcc, r exportdomain.CostRecord) {
	key := r.ResourceName
	if key == "" {
		key = unknownGroup
	}
	entry, ok := audit[key]
	if !ok {
		entry = &auditAcc{record: r, sum: decimal.Zero}
		audit[key] = entry
	}
	entry.sum = entry.sum.Add(r.BilledCost)
	entry.count++
}

func auditList(audit map[string]*auditAcc) []domain.ResourceAuditEntry {
	entries := make([]domain.ResourceAuditEntry, 0, len(audit))
	for _, a := range audit {
		entries = append(entries, domain.ResourceAuditEntry{
			ResourceName:     nonEmpty(a.record.ShortResourceName(), unknownGroup),
			ResourceID:       a.record.ResourceName,
			ResourceGroup:    nonEmpty(a.record.ResourceGroup(), unknownGroup),
			ServiceName:      a.record.ServiceName,
			Region:           a.record.Region,
			SubscriptionName: a.record.SubscriptionName,
			Cost:             round2(a.sum),
			Count:            a.count,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Cost != entries[j].Cost {
			return entries[i].Cost > entries[j].Cost
		}
		return entries[i].ResourceID < entries[j].ResourceID
	})
	if len(entries) > auditLimit {
		entries = entries[:auditLimit]
	}
	return entries
}

func topN(buckets map[string]*acc, n int) []domain.CostBreakdown {
	entries := make([]*acc, 0, len(buckets))
	for _, a := range buckets {
		entries = append(entries, a)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].sum.Equal(entries[j].sum) {
			return entries[i].sum.GreaterThan(entries[j].sum)
		}
		return entries[i].name < entries[j].name
	})
	if len(entries) > n {
		entries = entries[:n]
	}

	out := make([]domain.CostBreakdown, 0, len(entries))
	for _, a := range entries {
		out = append(out, domain.CostBreakdown{
			Name:  a.name,
			Cost:  round2(a.sum),
			Count: a.count,
		})
	}
	return out
}

func dailyTrend(byDay map[string]*acc) []domain.DailyCost {
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	out := make([]domain.DailyCost, 0, len(days))
	for _, day := range days {
		out = append(out, domain.DailyCost{Date: day, Cost: round2(byDay[day].sum)})
	}
	return out
}

func sumWithin(records []exportdomain.CostRecord, start, end time.Time) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range records {
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		sum = sum.Add(r.BilledCost)
	}
	return sum
}

func filterWithin(records []exportdomain.CostRecord, start, end time.Time) []exportdomain.CostRecord {
	var out []exportdomain.CostRecord
	for _, r := range records {
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func nonEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
