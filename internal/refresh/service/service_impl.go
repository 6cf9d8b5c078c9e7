package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	exportdomain "github.com/finopslab/costlens/internal/billingexport/domain"
	"github.com/finopslab/costlens/internal/config"
	connectiondomain "github.com/finopslab/costlens/internal/connection/domain"
	costdomain "github.com/finopslab/costlens/internal/costanalysis/domain"
	"github.com/finopslab/costlens/internal/observability/metrics"
	refreshdomain "github.com/finopslab/costlens/internal/refresh/domain"
	"github.com/finopslab/costlens/internal/reservation"
	"github.com/finopslab/costlens/internal/reservation/analyzer"
	resdomain "github.com/finopslab/costlens/internal/reservation/domain"
	"github.com/finopslab/costlens/internal/reservation/insights"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type job struct {
	ID         string
	CustomerID string
	LockToken  string
	EnqueuedAt time.Time
}

type reservationFetcher interface {
	Fetch(ctx context.Context, conn *connectiondomain.CustomerConnection) resdomain.FetchResult
}

type fetcherFactory func(ctx context.Context, conn *connectiondomain.CustomerConnection) (reservationFetcher, error)

type Params struct {
	fx.In
	DB          *gorm.DB
	Log         *zap.Logger
	Metrics     *metrics.Metrics
	Cfg         config.Config
	Connections connectiondomain.Repository
	Caches      refreshdomain.Repository
	Analysis    costdomain.Service
	Fetchers    reservation.FetcherFactory
	Analyzer    *analyzer.Analyzer
	Redis       *redis.Client `optional:"true"`
}

// RefreshService owns the refresh queue: Trigger claims the customer's cache
// row and enqueues, a worker goroutine drains the queue, and an auto-refresh
// ticker re-enqueues stale customers.
type RefreshService struct {
	db          *gorm.DB
	log         *zap.Logger
	metrics     *metrics.Metrics
	cfg         config.Config
	connections connectiondomain.Repository
	caches      refreshdomain.Repository
	analysis    costdomain.Service
	fetchers    fetcherFactory
	analyzer    *analyzer.Analyzer
	locker      *Locker
	queue       chan job
	now         func() time.Time
}

func New(p Params) *RefreshService {
	queueSize := p.Cfg.RefreshQueueSize
	if queueSize < 1 {
		queueSize = 64
	}
	return &RefreshService{
		db:          p.DB,
		log:         p.Log.Named("refresh.service"),
		metrics:     p.Metrics,
		cfg:         p.Cfg,
		connections: p.Connections,
		caches:      p.Caches,
		analysis:    p.Analysis,
		fetchers: func(ctx context.Context, conn *connectiondomain.CustomerConnection) (reservationFetcher, error) {
			return p.Fetchers(ctx, conn)
		},
		analyzer: p.Analyzer,
		locker:   NewLocker(p.Redis),
		queue:    make(chan job, queueSize),
		now:      time.Now,
	}
}

func lockKey(customerID string) string {
	return "costlens:refresh:" + customerID
}

// Trigger enqueues a refresh for the customer. A refresh already in flight,
// locally or on another instance, yields ErrAlreadyRunning without enqueueing.
func (s *RefreshService) Trigger(ctx context.Context, customerID string) (string, error) {
	conn, err := s.connections.FindByCustomerID(ctx, s.db, customerID)
	if err != nil {
		return "", fmt.Errorf("load connection: %w", err)
	}
	if err := conn.Validate(); err != nil {
		return "", err
	}

	token, locked, err := s.locker.TryLock(ctx, lockKey(customerID), s.cfg.RefreshLockTTL)
	if err != nil {
		return "", fmt.Errorf("acquire refresh lock: %w", err)
	}
	if !locked {
		return "", refreshdomain.ErrAlreadyRunning
	}

	claimed, err := s.caches.ClaimRunning(ctx, s.db, customerID, s.now().UTC())
	if err != nil {
		_ = s.locker.Release(ctx, lockKey(customerID), token)
		return "", fmt.Errorf("claim refresh: %w", err)
	}
	if !claimed {
		_ = s.locker.Release(ctx, lockKey(customerID), token)
		return "", refreshdomain.ErrAlreadyRunning
	}

	j := job{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		LockToken:  token,
		EnqueuedAt: s.now(),
	}

	select {
	case s.queue <- j:
		s.log.Info("refresh enqueued", zap.String("customer_id", customerID), zap.String("job_id", j.ID))
		return j.ID, nil
	default:
		s.markFailed(ctx, customerID, "refresh queue full")
		_ = s.locker.Release(ctx, lockKey(customerID), token)
		return "", refreshdomain.ErrQueueFull
	}
}

// Get returns the cached refresh state, synthesizing NoData when the customer
// was never refreshed.
func (s *RefreshService) Get(ctx context.Context, customerID string) (*refreshdomain.RefreshCache, error) {
	cache, err := s.caches.Find(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		return &refreshdomain.RefreshCache{CustomerID: customerID, Status: refreshdomain.StatusNoData}, nil
	}
	return cache, nil
}

// RunWorker drains the refresh queue until the context ends.
func (s *RefreshService) RunWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			s.runJob(j)
		}
	}
}

func (s *RefreshService) runJob(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RefreshTimeout)
	defer cancel()

	started := s.now()
	outcome := "completed"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			s.log.Error("refresh panicked", zap.String("customer_id", j.CustomerID), zap.Any("panic", r))
			s.markFailed(context.Background(), j.CustomerID, fmt.Sprintf("refresh panicked: %v", r))
		}
		_ = s.locker.Release(context.Background(), lockKey(j.CustomerID), j.LockToken)
		s.metrics.ObserveRefresh(outcome, time.Since(started))
	}()

	conn, err := s.connections.FindByCustomerID(ctx, s.db, j.CustomerID)
	if err != nil {
		outcome = "failed"
		s.markFailed(ctx, j.CustomerID, fmt.Sprintf("load connection: %v", err))
		return
	}
	if err := conn.Validate(); err != nil {
		outcome = "failed"
		s.markFailed(ctx, j.CustomerID, err.Error())
		return
	}

	var callErrors []string

	var summary datatypes.JSON
	analysis, err := s.analysis.Analyze(ctx, j.CustomerID, exportdomain.Period{Kind: exportdomain.PeriodMonthToDate})
	if err != nil {
		callErrors = append(callErrors, fmt.Sprintf("cost analysis: %v", err))
	} else {
		callErrors = append(callErrors, analysis.Diagnostics...)
		summary = mustJSON(analysis.Summary)
	}

	fetcher, err := s.fetchers(ctx, conn)
	if err != nil {
		// Credential resolution is foundational: without it nothing else runs.
		outcome = "failed"
		s.markFailed(ctx, j.CustomerID, fmt.Sprintf("resolve credential: %v", err))
		return
	}

	result := fetcher.Fetch(ctx, conn)
	s.analyzer.Analyze(result.Reservations)
	insightList := insights.Generate(result.Reservations, result.Recommendations)
	callErrors = append(callErrors, result.Errors...)

	cache, err := s.caches.Find(ctx, s.db, j.CustomerID)
	if err != nil || cache == nil {
		cache = &refreshdomain.RefreshCache{CustomerID: j.CustomerID}
	}

	refreshedAt := s.now().UTC()
	cache.Status = refreshdomain.StatusCompleted
	cache.ErrorMessage = ""
	cache.LastRefreshed = &refreshedAt
	cache.Summary = summary
	cache.Reservations = mustJSON(result.Reservations)
	cache.Insights = mustJSON(insightList)
	cache.PurchaseRecommendations = mustJSON(result.Recommendations)
	cache.Errors = mustJSON(callErrors)

	// Over-budget refreshes keep their partial data but are reported Failed.
	if ctx.Err() != nil {
		outcome = "timeout"
		cache.Status = refreshdomain.StatusFailed
		cache.ErrorMessage = fmt.Sprintf("refresh exceeded %s budget", s.cfg.RefreshTimeout)
	}

	if err := s.caches.Save(context.Background(), s.db, cache); err != nil {
		outcome = "failed"
		s.log.Error("cache write failed", zap.String("customer_id", j.CustomerID), zap.Error(err))
		return
	}

	s.log.Info("refresh finished",
		zap.String("customer_id", j.CustomerID),
		zap.String("job_id", j.ID),
		zap.String("status", cache.Status),
		zap.Int("reservations", len(result.Reservations)),
		zap.Int("insights", len(insightList)),
		zap.Int("errors", len(callErrors)),
		zap.Duration("elapsed", time.Since(started)),
	)
}

// RunAutoRefresh periodically re-enqueues customers whose cache is stale.
func (s *RefreshService) RunAutoRefresh(ctx context.Context) {
	interval := s.cfg.AutoRefreshInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshStale(ctx)
		}
	}
}

func (s *RefreshService) refreshStale(ctx context.Context) {
	conns, err := s.connections.List(ctx, s.db)
	if err != nil {
		s.log.Warn("auto-refresh listing failed", zap.Error(err))
		return
	}

	cutoff := s.now().Add(-s.cfg.AutoRefreshMaxAge)
	for _, conn := range conns {
		cache, err := s.caches.Find(ctx, s.db, conn.CustomerID)
		if err != nil {
			s.log.Warn("auto-refresh cache lookup failed", zap.String("customer_id", conn.CustomerID), zap.Error(err))
			continue
		}
		if cache != nil && cache.Status == refreshdomain.StatusRunning {
			continue
		}
		if cache != nil && cache.LastRefreshed != nil && cache.LastRefreshed.After(cutoff) {
			continue
		}

		if _, err := s.Trigger(ctx, conn.CustomerID); err != nil &&
			!errors.Is(err, refreshdomain.ErrAlreadyRunning) {
			s.log.Warn("auto-refresh trigger failed", zap.String("customer_id", conn.CustomerID), zap.Error(err))
		}
	}
}

// markFailed flips the status and message while leaving previously cached
// blobs untouched.
func (s *RefreshService) markFailed(ctx context.Context, customerID, message string) {
	cache, err := s.caches.Find(ctx, s.db, customerID)
	if err != nil {
		s.log.Error("failed-state lookup failed", zap.String("customer_id", customerID), zap.Error(err))
		return
	}
	if cache == nil {
		cache = &refreshdomain.RefreshCache{CustomerID: customerID}
	}
	cache.Status = refreshdomain.StatusFailed
	cache.ErrorMessage = message
	if err := s.caches.Save(ctx, s.db, cache); err != nil {
		s.log.Error("failed-state write failed", zap.String("customer_id", customerID), zap.Error(err))
	}
}

func mustJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(data)
}
