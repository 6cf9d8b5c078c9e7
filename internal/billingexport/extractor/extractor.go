// Package extractor parses columnar billing export files into normalized cost
// records. Export schemas drift across versions, so every logical field is
// resolved through an ordered list of acceptable column aliases.
package extractor

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/finopslab/costlens/internal/billingexport/domain"
	"github.com/shopspring/decimal"
)

// Field aliases, first match wins. Matching is case-insensitive.
var (
	costAliases            = []string{"BilledCost", "billed_cost", "CostInBillingCurrency", "Cost"}
	serviceAliases         = []string{"ServiceName", "service_name", "ConsumedService", "MeterCategory"}
	serviceCategoryAliases = []string{"ServiceCategory", "service_category", "MeterSubCategory"}
	resourceAliases        = []string{"ResourceName", "ResourceId", "resource_id", "InstanceName"}
	resourceTypeAliases    = []string{"ResourceType", "resource_type", "MeterName"}
	regionAliases          = []string{"RegionName", "Region", "region", "ResourceLocation"}
	subNameAliases         = []string{"SubAccountName", "SubscriptionName", "subscription_name"}
	subIDAliases           = []string{"SubAccountId", "SubscriptionId", "subscription_id"}
	dateAliases            = []string{"ChargePeriodStart", "charge_period_start", "Date", "UsageDate", "BillingPeriodStart"}
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"20060102",
}

// Result carries the extracted records plus parse diagnostics.
type Result struct {
	Records []domain.CostRecord
	// Columns is the raw header list, kept for diagnostics only.
	Columns []string
	// SkippedRows counts malformed rows that were dropped.
	SkippedRows int
}

// Extract parses one export file. Rows with zero billed cost are discarded;
// malformed rows are skipped. A header-level failure returns an error and no
// records.
func Extract(data []byte, now time.Time) (Result, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return Result{}, errors.New("export file has no readable header")
	}

	index := headerIndex(header)
	result := Result{Columns: header}

	costIdx := resolve(index, costAliases)
	serviceIdx := resolve(index, serviceAliases)
	categoryIdx := resolve(index, serviceCategoryAliases)
	resourceIdx := resolve(index, resourceAliases)
	resourceTypeIdx := resolve(index, resourceTypeAliases)
	regionIdx := resolve(index, regionAliases)
	subNameIdx := resolve(index, subNameAliases)
	subIDIdx := resolve(index, subIDAliases)
	dateIdx := resolve(index, dateAliases)

	today := domain.DayOf(now)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.SkippedRows++
			continue
		}

		cost, ok := parseCost(field(row, costIdx))
		if !ok {
			result.SkippedRows++
			continue
		}
		if cost.IsZero() {
			// Zero-cost rows carry no spend and only inflate aggregates.
			continue
		}

		result.Records = append(result.Records, domain.CostRecord{
			BilledCost:       cost,
			ServiceName:      field(row, serviceIdx),
			ServiceCategory:  field(row, categoryIdx),
			ResourceName:     field(row, resourceIdx),
			ResourceType:     field(row, resourceTypeIdx),
			Region:           field(row, regionIdx),
			SubscriptionName: field(row, subNameIdx),
			SubscriptionID:   field(row, subIDIdx),
			Date:             parseDate(field(row, dateIdx), today),
		})
	}

	return result, nil
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	return index
}

func resolve(index map[string]int, aliases []string) int {
	for _, alias := range aliases {
		if i, ok := index[strings.ToLower(alias)]; ok {
			return i
		}
	}
	return -1
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseCost(raw string) (decimal.Decimal, bool) {
	if raw == "" {
		return decimal.Zero, true
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// parseDate tries the known layouts; an unparsable or missing date falls back
// to today. A tolerated approximation, not an error.
func parseDate(raw string, today time.Time) time.Time {
	if raw == "" {
		return today
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return domain.DayOf(t)
		}
	}
	return today
}
