// Package insights turns analyzed reservations and purchase recommendations
// into a prioritized action list. Each reservation lands in at most one
// utilization bucket; the processed set guards against duplicates.
package insights

import (
	"fmt"
	"sort"

	"github.com/finopslab/costlens/internal/reservation/domain"
)

const (
	expiryHorizonDays  = 90
	urgentExpiryDays   = 30
	healthyUtilization = 80
	renewUtilization   = 95
	exchangeBreakeven  = 65
	minAnnualSavings   = 100
	bigAnnualSavings   = 1000
	topRecommendations = 5
)

var priorityRank = map[string]int{
	domain.SeverityCritical: 0,
	domain.SeverityHigh:     1,
	domain.SeverityMedium:   2,
	domain.SeverityLow:      3,
	domain.SeverityInfo:     4,
}

// Generate builds the insight list from an analyzed fleet. Output is sorted
// by priority rank; generation order is preserved within a rank.
func Generate(reservations []domain.Reservation, recommendations []domain.PurchaseRecommendation) []domain.Insight {
	var out []domain.Insight
	processed := map[string]bool{}

	mark := func(r domain.Reservation, insight domain.Insight) {
		processed[r.ReservationID] = true
		insight.ReservationID = r.ReservationID
		out = append(out, insight)
	}

	// Zero utilization with known data.
	for _, r := range reservations {
		if processed[r.ReservationID] || !r.HasUtilizationData || r.Utilization30Day > 0 {
			continue
		}
		mark(r, domain.Insight{
			Priority: domain.SeverityCritical,
			Title:    fmt.Sprintf("Reservation %s is completely unused", displayName(r)),
			Detail:   "30-day utilization is 0%. Cancel or exchange the reservation, or move matching workloads onto it.",
		})
	}

	// Expiry-driven buckets.
	for _, r := range reservations {
		if processed[r.ReservationID] || r.DaysToExpiry <= 0 || r.DaysToExpiry > expiryHorizonDays {
			continue
		}
		switch {
		case r.HasUtilizationData && r.Utilization30Day >= renewUtilization:
			mark(r, domain.Insight{
				Priority: domain.SeverityHigh,
				Title:    fmt.Sprintf("Reservation %s expires in %d days and is heavily used", displayName(r), r.DaysToExpiry),
				Detail:   "Utilization is at or above 95%. Renew it and verify auto-renew is enabled.",
			})
		case r.HasUtilizationData && r.Utilization30Day > 0 && r.Utilization30Day < healthyUtilization:
			priority := domain.SeverityMedium
			if r.AutoRenew {
				priority = domain.SeverityHigh
			}
			mark(r, domain.Insight{
				Priority: priority,
				Title:    fmt.Sprintf("Reservation %s expires in %d days with low utilization", displayName(r), r.DaysToExpiry),
				Detail:   fmt.Sprintf("30-day utilization is %.0f%%. Do not renew; disable auto-renew if set.", r.Utilization30Day),
			})
		case !r.HasUtilizationData:
			priority := domain.SeverityMedium
			if r.DaysToExpiry <= urgentExpiryDays {
				priority = domain.SeverityHigh
			}
			mark(r, domain.Insight{
				Priority: priority,
				Title:    fmt.Sprintf("Reservation %s expires in %d days, utilization unknown", displayName(r), r.DaysToExpiry),
				Detail:   "No utilization data is available. Needs manual review before the renewal decision.",
			})
		}
	}

	// Low utilization, not covered by any bucket above.
	for _, r := range reservations {
		if processed[r.ReservationID] || !r.HasUtilizationData {
			continue
		}
		if r.Utilization30Day <= 0 || r.Utilization30Day >= healthyUtilization {
			continue
		}
		priority := domain.SeverityMedium
		if r.Utilization30Day < exchangeBreakeven {
			priority = domain.SeverityHigh
		}
		mark(r, domain.Insight{
			Priority: priority,
			Title:    fmt.Sprintf("Reservation %s is underutilized", displayName(r)),
			Detail:   fmt.Sprintf("30-day utilization is %.0f%%. Monitor usage or exchange for a smaller commitment.", r.Utilization30Day),
		})
	}

	// Top purchase recommendations by annual savings. Callers are not
	// required to pre-sort.
	recs := make([]domain.PurchaseRecommendation, len(recommendations))
	copy(recs, recommendations)
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].AnnualSavings > recs[j].AnnualSavings })

	count := 0
	for _, rec := range recs {
		if count >= topRecommendations || rec.AnnualSavings <= minAnnualSavings {
			continue
		}
		count++
		priority := domain.SeverityMedium
		if rec.AnnualSavings > bigAnnualSavings {
			priority = domain.SeverityHigh
		}
		out = append(out, domain.Insight{
			Priority: priority,
			Title:    fmt.Sprintf("Purchase opportunity: %s in %s", rec.SKUName, rec.Location),
			Detail:   fmt.Sprintf("A %s reservation would save about %.0f per year (%.0f monthly).", rec.Term, rec.AnnualSavings, rec.MonthlySavings),
		})
	}

	// Healthy fleet summary.
	healthy := 0
	for _, r := range reservations {
		if r.HasUtilizationData && r.Utilization30Day >= healthyUtilization && r.DaysToExpiry > expiryHorizonDays {
			healthy++
		}
	}
	out = append(out, domain.Insight{
		Priority: domain.SeverityInfo,
		Title:    fmt.Sprintf("%d reservations are healthy", healthy),
		Detail:   "Utilization at or above 80% with more than 90 days to expiry. No action needed.",
	})

	// A fleet with zero visible utilization usually means the reporting
	// permission is missing, not that everything is idle.
	if permissionsGap(reservations) {
		out = append([]domain.Insight{{
			Priority: domain.SeverityMedium,
			Title:    "Utilization data unavailable for all reservations",
			Detail:   "No active reservation reported utilization. Check that the credential has reservation-reader permissions.",
		}}, out...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return priorityRank[out[i].Priority] < priorityRank[out[j].Priority]
	})
	return out
}

func permissionsGap(reservations []domain.Reservation) bool {
	active := 0
	for _, r := range reservations {
		if !r.IsActive() {
			continue
		}
		active++
		if r.HasUtilizationData {
			return false
		}
	}
	return active > 0
}

func displayName(r domain.Reservation) string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.ReservationID
}
