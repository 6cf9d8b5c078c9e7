package selector

import (
	"testing"
	"time"

	"github.com/finopslab/costlens/internal/billingexport/domain"
	"github.com/finopslab/costlens/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)

func blob(name string) storage.BlobItem {
	return storage.BlobItem{Name: name, LastModified: now}
}

func TestParseBlobItem(t *testing.T) {
	file, ok := ParseBlobItem(blob("exports/daily/20260101-20260131/part_20260112T031500Z_sub1.csv"))
	require.True(t, ok)
	assert.Equal(t, "20260101-20260131", file.DateRangeKey)
	assert.Equal(t, "20260112", file.ExportTimestampDate)
	assert.False(t, file.IsMonthlyExport)

	monthly, ok := ParseBlobItem(blob("exports/monthly/20251201-20251231/part_20260102T060000Z_sub1.csv"))
	require.True(t, ok)
	assert.True(t, monthly.IsMonthlyExport)
}

func TestParseBlobItemRejectsUnparseableNames(t *testing.T) {
	_, ok := ParseBlobItem(blob("exports/daily/readme.txt"))
	assert.False(t, ok)

	_, ok = ParseBlobItem(blob("exports/daily/20260101-20260131/no-timestamp.csv"))
	assert.False(t, ok)
}

func TestSelectPicksOnlyFreshestExportDay(t *testing.T) {
	catalog := ParseCatalog([]storage.BlobItem{
		blob("exports/daily/20260101-20260131/part_20260110T010000Z_sub1.csv"),
		blob("exports/daily/20260101-20260131/part_20260112T020000Z_sub1.csv"),
		blob("exports/daily/20260101-20260131/part_20260112T023000Z_sub2.csv"),
	})

	selected := Select(catalog, domain.Period{Kind: domain.PeriodMonthToDate}, now)
	require.Len(t, selected, 2)
	for _, f := range selected {
		assert.Equal(t, "20260112", f.ExportTimestampDate)
	}
}

func TestSelectLastMonthUsesMonthlyExportsOnly(t *testing.T) {
	catalog := ParseCatalog([]storage.BlobItem{
		blob("exports/daily/20251201-20251231/part_20251230T010000Z_sub1.csv"),
		blob("exports/monthly/20251201-20251231/part_20260103T010000Z_sub1.csv"),
	})

	selected := Select(catalog, domain.Period{Kind: domain.PeriodLastMonth}, now)
	require.Len(t, selected, 1)
	assert.True(t, selected[0].IsMonthlyExport)
}

func TestSelectRollingWindowUsesDailyExportsOnly(t *testing.T) {
	catalog := ParseCatalog([]storage.BlobItem{
		blob("exports/daily/20260101-20260131/part_20260119T010000Z_sub1.csv"),
		blob("exports/monthly/20251201-20251231/part_20260103T010000Z_sub1.csv"),
		blob("exports/daily/20251201-20251231/part_20251231T220000Z_sub1.csv"),
	})

	selected := Select(catalog, domain.Period{Kind: domain.PeriodLastNDays, Days: 30}, now)
	require.Len(t, selected, 2)
	for _, f := range selected {
		assert.False(t, f.IsMonthlyExport)
	}
}

func TestSelectDeterministicAcrossInputOrder(t *testing.T) {
	names := []string{
		"exports/daily/20260101-20260131/part_20260112T020000Z_sub1.csv",
		"exports/daily/20260101-20260131/part_20260112T023000Z_sub2.csv",
		"exports/daily/20260101-20260131/part_20260110T010000Z_sub1.csv",
	}

	forward := ParseCatalog([]storage.BlobItem{blob(names[0]), blob(names[1]), blob(names[2])})
	reversed := ParseCatalog([]storage.BlobItem{blob(names[2]), blob(names[1]), blob(names[0])})

	a := Select(forward, domain.Period{Kind: domain.PeriodMonthToDate}, now)
	b := Select(reversed, domain.Period{Kind: domain.PeriodMonthToDate}, now)
	assert.Equal(t, a, b)
}

func TestSelectComparisonReturnsPriorMonthMonthlyFiles(t *testing.T) {
	catalog := ParseCatalog([]storage.BlobItem{
		blob("exports/monthly/20251201-20251231/part_20260102T010000Z_sub1.csv"),
		blob("exports/monthly/20251201-20251231/part_20260103T010000Z_sub1.csv"),
		blob("exports/monthly/20251101-20251130/part_20251202T010000Z_sub1.csv"),
		blob("exports/daily/20251201-20251231/part_20251231T010000Z_sub1.csv"),
	})

	selected := SelectComparison(catalog, now)
	require.Len(t, selected, 1)
	assert.Equal(t, "20260103", selected[0].ExportTimestampDate)
	assert.Equal(t, "20251201-20251231", selected[0].DateRangeKey)
}

func TestSelectExcludesNonOverlappingRanges(t *testing.T) {
	catalog := ParseCatalog([]storage.BlobItem{
		blob("exports/daily/20250601-20250630/part_20250630T010000Z_sub1.csv"),
		blob("exports/daily/20260101-20260131/part_20260119T010000Z_sub1.csv"),
	})

	selected := Select(catalog, domain.Period{Kind: domain.PeriodMonthToDate}, now)
	require.Len(t, selected, 1)
	assert.Equal(t, "20260101-20260131", selected[0].DateRangeKey)
}
