package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	exportdomain "github.com/finopslab/costlens/internal/billingexport/domain"
	connectiondomain "github.com/finopslab/costlens/internal/connection/domain"
	"github.com/finopslab/costlens/internal/costanalysis/domain"
	"github.com/finopslab/costlens/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)

type fakeRepo struct {
	conn *connectiondomain.CustomerConnection
	err  error
}

func (f *fakeRepo) FindByCustomerID(_ context.Context, _ *gorm.DB, _ string) (*connectiondomain.CustomerConnection, error) {
	return f.conn, f.err
}

func (f *fakeRepo) List(_ context.Context, _ *gorm.DB) ([]connectiondomain.CustomerConnection, error) {
	if f.conn == nil {
		return nil, nil
	}
	return []connectiondomain.CustomerConnection{*f.conn}, nil
}

type fakeBlobStore struct {
	blobs    map[string][]byte
	failGets map[string]bool
}

func (f *fakeBlobStore) List(_ context.Context, _ string) ([]storage.BlobItem, error) {
	var items []storage.BlobItem
	for name := range f.blobs {
		items = append(items, storage.BlobItem{Name: name, LastModified: testNow})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (f *fakeBlobStore) Get(_ context.Context, name string) ([]byte, error) {
	if f.failGets[name] {
		return nil, errors.New("boom")
	}
	data, ok := f.blobs[name]
	if !ok {
		return nil, errors.New("missing blob")
	}
	return data, nil
}

func testConnection() *connectiondomain.CustomerConnection {
	return &connectiondomain.CustomerConnection{
		CustomerID:          "cust-1",
		StorageAccount:      "acct",
		StorageContainer:    "exports",
		CredentialSecretRef: "cust-1-secret",
	}
}

func newTestService(repo connectiondomain.Repository, store storage.BlobStore) *analysisService {
	svc := New(Params{
		Log:         zap.NewNop(),
		Connections: repo,
		Blobs: func(_ context.Context, _ *connectiondomain.CustomerConnection) (storage.BlobStore, error) {
			return store, nil
		},
	}).(*analysisService)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestAnalyzeAggregatesFreshestDailyExports(t *testing.T) {
	store := &fakeBlobStore{blobs: map[string][]byte{
		"daily/20260101-20260131/part_20260110T010000Z_sub1.csv": []byte("BilledCost,ServiceName,SubAccountId,Date\n99.0,Stale,s1,2026-01-05\n"),
		"daily/20260101-20260131/part_20260119T010000Z_sub1.csv": []byte("BilledCost,ServiceName,SubAccountId,Date\n10.0,Compute,s1,2026-01-05\n5.0,Storage,s1,2026-01-06\n"),
		"daily/20260101-20260131/part_20260119T013000Z_sub2.csv": []byte("BilledCost,ServiceName,SubAccountId,Date\n2.5,Compute,s2,2026-01-05\n"),
	}}

	svc := newTestService(&fakeRepo{conn: testConnection()}, store)

	analysis, err := svc.Analyze(context.Background(), "cust-1", exportdomain.Period{Kind: exportdomain.PeriodMonthToDate})
	require.NoError(t, err)

	// The stale 0110 run is superseded by the two 0119 files.
	assert.Equal(t, 17.5, analysis.Summary.TotalCost)
	assert.Equal(t, "month_to_date", analysis.Period)
	assert.Equal(t, "2026-01-01", analysis.PeriodStart)
	assert.Equal(t, "2026-01-20", analysis.PeriodEnd)
	assert.Empty(t, analysis.Diagnostics)
	assert.Equal(t, 17.5, analysis.Summary.CurrentMonthToDate)
}

func TestAnalyzeDeduplicatesAcrossFiles(t *testing.T) {
	row := "BilledCost,ServiceName,SubAccountId,ResourceId,Date\n4.0,Compute,s1,vm1,2026-01-05\n"
	store := &fakeBlobStore{blobs: map[string][]byte{
		"daily/20260101-20260131/part_20260119T010000Z_a.csv": []byte(row),
		"daily/20260101-20260131/part_20260119T020000Z_b.csv": []byte(row),
	}}

	svc := newTestService(&fakeRepo{conn: testConnection()}, store)

	analysis, err := svc.Analyze(context.Background(), "cust-1", exportdomain.Period{Kind: exportdomain.PeriodMonthToDate})
	require.NoError(t, err)
	assert.Equal(t, 4.0, analysis.Summary.TotalCost)
}

func TestAnalyzeLastMonthUsesMonthlyExports(t *testing.T) {
	store := &fakeBlobStore{blobs: map[string][]byte{
		"monthly/20251201-20251231/part_20260103T010000Z_sub1.csv": []byte("BilledCost,ServiceName,SubAccountId,Date\n200.0,Compute,s1,2025-12-15\n"),
		"daily/20251201-20251231/part_20251231T010000Z_sub1.csv":   []byte("BilledCost,ServiceName,SubAccountId,Date\n150.0,Compute,s1,2025-12-15\n"),
	}}

	svc := newTestService(&fakeRepo{conn: testConnection()}, store)

	analysis, err := svc.Analyze(context.Background(), "cust-1", exportdomain.Period{Kind: exportdomain.PeriodLastMonth})
	require.NoError(t, err)
	assert.Equal(t, 200.0, analysis.Summary.TotalCost)
	assert.Equal(t, "2025-12-01", analysis.PeriodStart)
	assert.Equal(t, "2025-12-31", analysis.PeriodEnd)
}

func TestAnalyzeLastMonthPopulatesComparisonFigure(t *testing.T) {
	store := &fakeBlobStore{blobs: map[string][]byte{
		"monthly/20251201-20251231/part_20260103T010000Z_sub1.csv": []byte("BilledCost,ServiceName,SubAccountId,Date\n200.0,Compute,s1,2025-12-15\n"),
	}}

	svc := newTestService(&fakeRepo{conn: testConnection()}, store)

	analysis, err := svc.Analyze(context.Background(), "cust-1", exportdomain.Period{Kind: exportdomain.PeriodLastMonth})
	require.NoError(t, err)
	assert.Equal(t, domain.LastMonthSourceMonthly, analysis.Summary.LastMonth.Source)
	assert.Equal(t, 200.0, analysis.Summary.LastMonth.Cost)
	assert.Equal(t, 200.0, analysis.Summary.SamePeriodLastMonth)
}

func TestAnalyzeDegradesOnFileFailure(t *testing.T) {
	store := &fakeBlobStore{
		blobs: map[string][]byte{
			"daily/20260101-20260131/part_20260119T010000Z_a.csv": []byte("BilledCost,ServiceName,SubAccountId,Date\n3.0,Compute,s1,2026-01-05\n"),
			"daily/20260101-20260131/part_20260119T020000Z_b.csv": []byte("BilledCost,ServiceName,SubAccountId,Date\n7.0,Storage,s2,2026-01-05\n"),
		},
		failGets: map[string]bool{"daily/20260101-20260131/part_20260119T020000Z_b.csv": true},
	}

	svc := newTestService(&fakeRepo{conn: testConnection()}, store)

	analysis, err := svc.Analyze(context.Background(), "cust-1", exportdomain.Period{Kind: exportdomain.PeriodMonthToDate})
	require.NoError(t, err)
	assert.Equal(t, 3.0, analysis.Summary.TotalCost)
	require.Len(t, analysis.Diagnostics, 1)
	assert.Contains(t, analysis.Diagnostics[0], "part_20260119T020000Z_b.csv")
}

func TestAnalyzeNotConfigured(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeBlobStore{})

	_, err := svc.Analyze(context.Background(), "cust-1", exportdomain.Period{Kind: exportdomain.PeriodMonthToDate})
	assert.ErrorIs(t, err, connectiondomain.ErrNotConfigured)
}

func TestAnalyzeInvalidPeriod(t *testing.T) {
	svc := newTestService(&fakeRepo{conn: testConnection()}, &fakeBlobStore{})

	_, err := svc.Analyze(context.Background(), "cust-1", exportdomain.Period{Kind: exportdomain.PeriodLastNDays, Days: 9000})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}
