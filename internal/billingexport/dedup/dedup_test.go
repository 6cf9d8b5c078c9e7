package dedup

import (
	"testing"
	"time"

	"github.com/finopslab/costlens/internal/billingexport/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func record(day int, sub, resource, service string, cost float64) domain.CostRecord {
	return domain.CostRecord{
		BilledCost:     decimal.NewFromFloat(cost),
		SubscriptionID: sub,
		ResourceName:   resource,
		ServiceName:    service,
		Date:           time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestDedupeRemovesRepeatedExportRuns(t *testing.T) {
	records := []domain.CostRecord{
		record(10, "s1", "vm1", "Compute", 1.25),
		record(10, "s1", "vm1", "Compute", 1.25),
		record(10, "s1", "vm1", "Compute", 1.25),
		record(10, "s2", "vm1", "Compute", 1.25),
	}

	out := Dedupe(records)
	assert.Len(t, out, 2)
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	first := record(10, "s1", "vm1", "Compute", 1.25)
	first.Region = "westeurope"
	duplicate := record(10, "s1", "vm1", "Compute", 1.25)
	duplicate.Region = "northeurope"

	out := Dedupe([]domain.CostRecord{first, duplicate})
	assert.Len(t, out, 1)
	assert.Equal(t, "westeurope", out[0].Region)
}

func TestDedupeDistinguishesKeyFields(t *testing.T) {
	records := []domain.CostRecord{
		record(10, "s1", "vm1", "Compute", 1.25),
		record(11, "s1", "vm1", "Compute", 1.25),
		record(10, "s1", "vm2", "Compute", 1.25),
		record(10, "s1", "vm1", "Storage", 1.25),
		record(10, "s1", "vm1", "Compute", 1.26),
	}

	out := Dedupe(records)
	assert.Len(t, out, 5)
}

func TestDedupeIdempotent(t *testing.T) {
	records := []domain.CostRecord{
		record(10, "s1", "vm1", "Compute", 1.25),
		record(10, "s1", "vm1", "Compute", 1.25),
		record(10, "s1", "vm2", "Compute", 2.50),
	}

	once := Dedupe(records)
	twice := Dedupe(once)
	assert.Equal(t, once, twice)
}

func TestDedupeEmptyInput(t *testing.T) {
	assert.Empty(t, Dedupe(nil))
}
