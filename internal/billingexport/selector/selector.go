// Package selector decides which export files back a requested reporting
// period. Daily (month-to-date) and monthly (finalized) exports overlap, and
// each export run re-emits per-subscription files at different times, so the
// selection rules exist to avoid double counting and stale snapshots.
package selector

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/finopslab/costlens/internal/billingexport/domain"
	"github.com/finopslab/costlens/internal/storage"
	"github.com/samber/lo"
)

var (
	dateRangePattern = regexp.MustCompile(`(\d{8})-(\d{8})`)
	timestampPattern = regexp.MustCompile(`(\d{8})T(\d{6})Z`)
)

// ParseBlobItem reads the date-range folder and run timestamp out of a blob
// name. Blobs without both patterns are not selectable export files.
func ParseBlobItem(item storage.BlobItem) (domain.ExportFile, bool) {
	rangeMatch := dateRangePattern.FindStringSubmatch(item.Name)
	if rangeMatch == nil {
		return domain.ExportFile{}, false
	}
	if _, err := time.Parse("20060102", rangeMatch[1]); err != nil {
		return domain.ExportFile{}, false
	}
	if _, err := time.Parse("20060102", rangeMatch[2]); err != nil {
		return domain.ExportFile{}, false
	}

	tsMatch := timestampPattern.FindStringSubmatch(item.Name)
	if tsMatch == nil {
		return domain.ExportFile{}, false
	}
	exportTimestamp, err := time.Parse("20060102T150405Z", tsMatch[0])
	if err != nil {
		return domain.ExportFile{}, false
	}

	lower := strings.ToLower(item.Name)
	return domain.ExportFile{
		Path:                item.Name,
		LastModified:        item.LastModified,
		DateRangeKey:        rangeMatch[0],
		ExportTimestamp:     exportTimestamp,
		ExportTimestampDate: tsMatch[1],
		IsMonthlyExport:     strings.Contains(lower, "monthly/") && !strings.Contains(lower, "daily/"),
	}, true
}

// ParseCatalog converts a blob listing into export files, dropping anything
// with an unparseable name.
func ParseCatalog(items []storage.BlobItem) []domain.ExportFile {
	files := make([]domain.ExportFile, 0, len(items))
	for _, item := range items {
		if file, ok := ParseBlobItem(item); ok {
			files = append(files, file)
		}
	}
	return files
}

// Select returns the minimal file set backing the requested period:
//
//	month-to-date    daily exports only (the open month has no finalized export)
//	last month       monthly exports only (never mix MTD data into final figures)
//	rolling N days   daily exports only (the only granular, refreshed source)
//
// Within each date-range group, only the files from the single most recent
// export day are kept; that day holds one complete cross-subscription
// snapshot, while older timestamps are stale partial pictures.
func Select(files []domain.ExportFile, period domain.Period, now time.Time) []domain.ExportFile {
	wantMonthly := period.Kind == domain.PeriodLastMonth
	start, end := period.Range(now)

	candidates := lo.Filter(files, func(f domain.ExportFile, _ int) bool {
		if f.IsMonthlyExport != wantMonthly {
			return false
		}
		return rangeOverlaps(f.DateRangeKey, start, end)
	})

	return freshestPerRange(candidates)
}

// SelectComparison returns the monthly export files for the immediately
// preceding calendar month, used exclusively for month-over-month comparison.
func SelectComparison(files []domain.ExportFile, now time.Time) []domain.ExportFile {
	start, end := domain.Period{Kind: domain.PeriodLastMonth}.Range(now)

	candidates := lo.Filter(files, func(f domain.ExportFile, _ int) bool {
		return f.IsMonthlyExport && rangeOverlaps(f.DateRangeKey, start, end)
	})

	return freshestPerRange(candidates)
}

// freshestPerRange groups by date-range key and keeps every file sharing the
// group's maximum export-timestamp date. Output order is deterministic
// regardless of input order.
func freshestPerRange(files []domain.ExportFile) []domain.ExportFile {
	groups := lo.GroupBy(files, func(f domain.ExportFile) string { return f.DateRangeKey })

	keys := lo.Keys(groups)
	sort.Strings(keys)

	var selected []domain.ExportFile
	for _, key := range keys {
		group := groups[key]

		maxDay := ""
		for _, f := range group {
			if f.ExportTimestampDate > maxDay {
				maxDay = f.ExportTimestampDate
			}
		}

		fresh := lo.Filter(group, func(f domain.ExportFile, _ int) bool {
			return f.ExportTimestampDate == maxDay
		})
		sort.Slice(fresh, func(i, j int) bool { return fresh[i].Path < fresh[j].Path })
		selected = append(selected, fresh...)
	}

	return selected
}

func rangeOverlaps(dateRangeKey string, start, end time.Time) bool {
	parts := dateRangePattern.FindStringSubmatch(dateRangeKey)
	if parts == nil {
		return false
	}
	rangeStart, err1 := time.Parse("20060102", parts[1])
	rangeEnd, err2 := time.Parse("20060102", parts[2])
	if err1 != nil || err2 != nil {
		return false
	}
	return !rangeEnd.Before(start) && !rangeStart.After(end)
}
