package service

import (
	"context"
	"fmt"
	"time"

	"github.com/finopslab/costlens/internal/billingexport/dedup"
	exportdomain "github.com/finopslab/costlens/internal/billingexport/domain"
	"github.com/finopslab/costlens/internal/billingexport/extractor"
	"github.com/finopslab/costlens/internal/billingexport/selector"
	connectiondomain "github.com/finopslab/costlens/internal/connection/domain"
	"github.com/finopslab/costlens/internal/costanalysis/aggregator"
	"github.com/finopslab/costlens/internal/costanalysis/domain"
	"github.com/finopslab/costlens/internal/observability/metrics"
	"github.com/finopslab/costlens/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In
	DB          *gorm.DB
	Log         *zap.Logger
	Metrics     *metrics.Metrics
	Connections connectiondomain.Repository
	Blobs       storage.BlobStoreFactory
}

type analysisService struct {
	db          *gorm.DB
	log         *zap.Logger
	metrics     *metrics.Metrics
	connections connectiondomain.Repository
	blobs       storage.BlobStoreFactory
	now         func() time.Time
}

func New(p Params) domain.Service {
	return &analysisService{
		db:          p.DB,
		log:         p.Log.Named("costanalysis.service"),
		metrics:     p.Metrics,
		connections: p.Connections,
		blobs:       p.Blobs,
		now:         time.Now,
	}
}

// Analyze runs the full extraction pipeline for one customer and period:
// list exports, select the backing file set, extract and deduplicate, then
// aggregate. Per-file failures degrade the result and surface as diagnostics
// instead of failing the whole analysis.
func (s *analysisService) Analyze(ctx context.Context, customerID string, period exportdomain.Period) (*domain.Analysis, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	conn, err := s.connections.FindByCustomerID(ctx, s.db, customerID)
	if err != nil {
		return nil, fmt.Errorf("load connection: %w", err)
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}

	store, err := s.blobs(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("build blob store: %w", err)
	}

	items, err := store.List(ctx, conn.ExportPrefix)
	s.metrics.IncExternalCall("blob_list", err)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}

	now := s.now()
	catalog := selector.ParseCatalog(items)
	selected := selector.Select(catalog, period, now)
	comparison := selector.SelectComparison(catalog, now)

	windowRecords, diagnostics := s.loadRecords(ctx, store, selected, now)
	windowRecords = dedup.Dedupe(windowRecords)

	var comparisonRecords []exportdomain.CostRecord
	if period.Kind != exportdomain.PeriodLastMonth {
		var compDiags []string
		comparisonRecords, compDiags = s.loadRecords(ctx, store, comparison, now)
		comparisonRecords = dedup.Dedupe(comparisonRecords)
		diagnostics = append(diagnostics, compDiags...)
	}

	start, end := period.Range(now)
	windowRecords = filterWindow(windowRecords, start, end)
	if period.Kind == exportdomain.PeriodLastMonth {
		// The window already holds the prior month's monthly export, so it
		// backs the comparison figures too.
		comparisonRecords = windowRecords
	}

	input := aggregator.Input{
		WindowRecords:         windowRecords,
		ComparisonRecords:     comparisonRecords,
		ComparisonFromMonthly: len(comparisonRecords) > 0,
		Now:                   now,
	}
	if period.Kind != exportdomain.PeriodLastMonth {
		// Only daily exports back these windows, so the records double as the
		// daily series for month-to-date and weekly figures.
		input.DailyRecords = windowRecords
	}

	s.log.Info("analysis complete",
		zap.String("customer_id", customerID),
		zap.String("period", period.Label()),
		zap.Int("files_selected", len(selected)),
		zap.Int("records", len(windowRecords)),
		zap.Int("diagnostics", len(diagnostics)),
	)

	return &domain.Analysis{
		CustomerID:  customerID,
		Period:      period.Label(),
		PeriodStart: start.Format("2006-01-02"),
		PeriodEnd:   end.Format("2006-01-02"),
		GeneratedAt: now,
		Summary:     aggregator.Aggregate(input),
		Diagnostics: diagnostics,
	}, nil
}

// loadRecords downloads and extracts the selected files. A failing file is
// reported in the diagnostics and skipped; the remaining files still count.
func (s *analysisService) loadRecords(ctx context.Context, store storage.BlobStore, files []exportdomain.ExportFile, now time.Time) ([]exportdomain.CostRecord, []string) {
	var records []exportdomain.CostRecord
	var diagnostics []string

	for _, file := range files {
		data, err := store.Get(ctx, file.Path)
		s.metrics.IncExternalCall("blob_get", err)
		if err != nil {
			s.log.Warn("export download failed", zap.String("path", file.Path), zap.Error(err))
			diagnostics = append(diagnostics, fmt.Sprintf("download %s: %v", file.Path, err))
			continue
		}

		result, err := extractor.Extract(data, now)
		if err != nil {
			s.log.Warn("export parse failed", zap.String("path", file.Path), zap.Error(err))
			diagnostics = append(diagnostics, fmt.Sprintf("parse %s: %v", file.Path, err))
			continue
		}
		if result.SkippedRows > 0 {
			diagnostics = append(diagnostics, fmt.Sprintf("parse %s: skipped %d malformed rows", file.Path, result.SkippedRows))
		}

		s.metrics.AddExtractedRecords(len(result.Records))
		records = append(records, result.Records...)
	}

	return records, diagnostics
}

func filterWindow(records []exportdomain.CostRecord, start, end time.Time) []exportdomain.CostRecord {
	out := records[:0]
	for _, r := range records {
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}
