package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidPeriod = errors.New("invalid_period")

// CostRecord is one line item from a billing export. Records are ephemeral:
// extracted, deduplicated and aggregated within a single request, never stored.
type CostRecord struct {
	BilledCost       decimal.Decimal
	ServiceName      string
	ServiceCategory  string
	ResourceName     string
	ResourceType     string
	Region           string
	SubscriptionName string
	SubscriptionID   string
	Date             time.Time // day granularity, UTC
}

// ResourceGroup derives the resource group from the path-structured resource
// identifier. Identifiers without a resourceGroups segment yield "".
func (r CostRecord) ResourceGroup() string {
	segments := strings.Split(r.ResourceName, "/")
	for i, segment := range segments {
		if strings.EqualFold(segment, "resourceGroups") && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}

// ShortResourceName returns the trailing segment of a path-structured
// identifier, or the identifier itself when it has no path.
func (r CostRecord) ShortResourceName() string {
	if idx := strings.LastIndex(r.ResourceName, "/"); idx >= 0 {
		return r.ResourceName[idx+1:]
	}
	return r.ResourceName
}

// ExportFile is a catalog entry for one billing export blob.
type ExportFile struct {
	Path         string
	LastModified time.Time
	// DateRangeKey is the billing period the export covers, e.g. "20260101-20260131".
	DateRangeKey string
	// ExportTimestamp is when the export run executed, finer than the range.
	ExportTimestamp time.Time
	// ExportTimestampDate is the day part of the timestamp, e.g. "20260112".
	ExportTimestampDate string
	// IsMonthlyExport distinguishes finalized monthly exports from running
	// month-to-date exports.
	IsMonthlyExport bool
}

// PeriodKind selects the reporting window shape.
type PeriodKind string

const (
	PeriodMonthToDate PeriodKind = "month_to_date"
	PeriodLastMonth   PeriodKind = "last_month"
	PeriodLastNDays   PeriodKind = "last_n_days"
)

// MaxRollingDays bounds the rolling window; daily exports are not retained
// beyond a year.
const MaxRollingDays = 365

// Period is a requested reporting window.
type Period struct {
	Kind PeriodKind
	Days int // only for PeriodLastNDays
}

// Range resolves the period to a [start, end] day span relative to now.
// Both bounds are inclusive, truncated to day granularity in UTC.
func (p Period) Range(now time.Time) (time.Time, time.Time) {
	today := DayOf(now)
	switch p.Kind {
	case PeriodMonthToDate:
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, today
	case PeriodLastMonth:
		firstOfThis := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := firstOfThis.AddDate(0, 0, -1)
		start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, end
	default:
		days := p.Days
		if days <= 0 {
			days = 30
		}
		if days > MaxRollingDays {
			days = MaxRollingDays
		}
		return today.AddDate(0, 0, -(days - 1)), today
	}
}

// Validate rejects unknown kinds and out-of-bounds rolling windows.
func (p Period) Validate() error {
	switch p.Kind {
	case PeriodMonthToDate, PeriodLastMonth:
		return nil
	case PeriodLastNDays:
		if p.Days < 1 || p.Days > MaxRollingDays {
			return ErrInvalidPeriod
		}
		return nil
	default:
		return ErrInvalidPeriod
	}
}

// Label renders the period for API responses, e.g. "last_30_days".
func (p Period) Label() string {
	if p.Kind == PeriodLastNDays {
		return fmt.Sprintf("last_%d_days", p.Days)
	}
	return string(p.Kind)
}

// DayOf truncates a timestamp to day granularity in UTC.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
