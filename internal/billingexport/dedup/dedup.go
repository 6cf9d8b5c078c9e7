// Package dedup removes duplicate cost records produced by repeated or
// partial export runs on the same day.
package dedup

import (
	"strings"

	"github.com/finopslab/costlens/internal/billingexport/domain"
)

// Dedupe keeps the first record per (date, subscription, resource, service,
// cost) fingerprint. The key is a pragmatic fingerprint, not a guaranteed
// unique identifier: two genuine charges can collide when they share all five
// fields on one day. The recall loss is accepted over double counting.
func Dedupe(records []domain.CostRecord) []domain.CostRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.CostRecord, 0, len(records))

	for _, r := range records {
		key := fingerprint(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}

	return out
}

func fingerprint(r domain.CostRecord) string {
	return strings.Join([]string{
		r.Date.Format("20060102"),
		r.SubscriptionID,
		r.ResourceName,
		r.ServiceName,
		r.BilledCost.String(),
	}, "|")
}
