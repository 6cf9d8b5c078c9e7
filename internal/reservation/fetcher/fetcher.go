// Package fetcher gathers reservation inventory, utilization and purchase
// recommendations from the management plane. Every external call is isolated:
// a failure lands in the shared error list and the remaining work continues,
// so one broken reservation never empties the whole refresh.
package fetcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	connectiondomain "github.com/finopslab/costlens/internal/connection/domain"
	"github.com/finopslab/costlens/internal/observability/metrics"
	"github.com/finopslab/costlens/internal/reservation/domain"
	"go.uber.org/zap"
)

const (
	utilizationWindowDays = 30
	usageWindowDays       = 7
)

type reservationAPI interface {
	ListReservationOrders(ctx context.Context) ([]reservationOrder, error)
	ListReservations(ctx context.Context, orderID string) ([]reservationEntry, error)
	DailyUtilization(ctx context.Context, orderID, reservationID string, days int, now time.Time) ([]domain.DailyUtilization, error)
	UsageBreakdown(ctx context.Context, orderID, reservationID string, days int, now time.Time) ([]domain.CoveredResource, error)
	PurchaseRecommendations(ctx context.Context, subscriptionID, subscriptionName string) ([]domain.PurchaseRecommendation, error)
}

// Fetcher runs the reservation pipeline for one customer connection with
// bounded concurrency across reservations and subscriptions.
type Fetcher struct {
	api         reservationAPI
	log         *zap.Logger
	metrics     *metrics.Metrics
	concurrency int
	now         func() time.Time
}

func NewFetcher(api *Client, log *zap.Logger, m *metrics.Metrics, concurrency int) *Fetcher {
	return newFetcher(api, log, m, concurrency)
}

func newFetcher(api reservationAPI, log *zap.Logger, m *metrics.Metrics, concurrency int) *Fetcher {
	if concurrency < 1 {
		concurrency = 4
	}
	return &Fetcher{
		api:         api,
		log:         log.Named("reservation.fetcher"),
		metrics:     m,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Fetch collects the full reservation picture. The returned error list holds
// every per-call failure; the result itself is always usable.
func (f *Fetcher) Fetch(ctx context.Context, conn *connectiondomain.CustomerConnection) domain.FetchResult {
	now := f.now()
	result := domain.FetchResult{FetchedAt: now}

	orders, err := f.api.ListReservationOrders(ctx)
	f.metrics.IncExternalCall("reservation_orders", err)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list reservation orders: %v", err))
		f.log.Warn("reservation order listing failed", zap.Error(err))
	}

	var reservations []domain.Reservation
	for _, order := range orders {
		entries, err := f.api.ListReservations(ctx, order.Name)
		f.metrics.IncExternalCall("reservations", err)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("list reservations for order %s: %v", order.Name, err))
			continue
		}
		for _, entry := range entries {
			reservations = append(reservations, newReservation(order, entry, now))
		}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, f.concurrency)

	for i := range reservations {
		wg.Add(1)
		sem <- struct{}{}
		go func(r *domain.Reservation) {
			defer wg.Done()
			defer func() { <-sem }()
			errs := f.enrichUtilization(ctx, r, now)
			if len(errs) > 0 {
				mu.Lock()
				result.Errors = append(result.Errors, errs...)
				mu.Unlock()
			}
		}(&reservations[i])
	}

	for _, subID := range conn.SubscriptionIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(subID string) {
			defer wg.Done()
			defer func() { <-sem }()
			recs, err := f.api.PurchaseRecommendations(ctx, subID, subID)
			f.metrics.IncExternalCall("purchase_recommendations", err)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("purchase recommendations for subscription %s: %v", subID, err))
				return
			}
			result.Recommendations = append(result.Recommendations, recs...)
		}(subID)
	}

	wg.Wait()

	sort.Slice(reservations, func(i, j int) bool {
		return reservations[i].ReservationID < reservations[j].ReservationID
	})
	sort.SliceStable(result.Recommendations, func(i, j int) bool {
		return result.Recommendations[i].AnnualSavings > result.Recommendations[j].AnnualSavings
	})

	result.Reservations = reservations
	return result
}

func (f *Fetcher) enrichUtilization(ctx context.Context, r *domain.Reservation, now time.Time) []string {
	var errs []string

	series, err := f.api.DailyUtilization(ctx, r.OrderID, r.ReservationID, utilizationWindowDays, now)
	f.metrics.IncExternalCall("reservation_utilization", err)
	if err != nil {
		errs = append(errs, fmt.Sprintf("utilization for reservation %s: %v", r.ReservationID, err))
		f.log.Warn("utilization fetch failed", zap.String("reservation_id", r.ReservationID), zap.Error(err))
	} else {
		applyUtilization(r, series)
	}

	resources, err := f.api.UsageBreakdown(ctx, r.OrderID, r.ReservationID, usageWindowDays, now)
	f.metrics.IncExternalCall("reservation_usage", err)
	if err != nil {
		errs = append(errs, fmt.Sprintf("usage breakdown for reservation %s: %v", r.ReservationID, err))
	} else {
		sort.Slice(resources, func(i, j int) bool { return resources[i].UsedHours > resources[j].UsedHours })
		r.CoveredResources = resources
	}

	return errs
}

func newReservation(order reservationOrder, entry reservationEntry, now time.Time) domain.Reservation {
	term := entry.Properties.Term
	if term == "" {
		term = order.Properties.Term
	}

	expiry := entry.Properties.ExpiryDateTime
	if expiry == "" {
		expiry = entry.Properties.ExpiryDate
	}

	r := domain.Reservation{
		ReservationID: entry.Name,
		OrderID:       order.Name,
		DisplayName:   entry.Properties.DisplayName,
		SKUName:       entry.SKU.Name,
		ResourceType:  entry.Properties.ReservedResourceType,
		Term:          term,
		Quantity:      entry.Properties.Quantity,
		Location:      entry.Location,
		State:         entry.Properties.ProvisioningState,
		AutoRenew:     entry.Properties.Renew,
		PurchaseDate:  entry.Properties.EffectiveDateTime,
		ExpiryDate:    expiry,
	}
	if r.Quantity < 1 {
		r.Quantity = 1
	}
	r.DaysToExpiry = daysToExpiry(expiry, now)
	return r
}

func daysToExpiry(expiry string, now time.Time) int {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, expiry); err == nil {
			return int(t.Sub(now).Hours() / 24)
		}
	}
	return 0
}

// applyUtilization sorts the series and derives the trailing aggregates.
// An empty series means the consumption API returned nothing usable, which
// counts as having no utilization data.
func applyUtilization(r *domain.Reservation, series []domain.DailyUtilization) {
	if len(series) == 0 {
		return
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })

	r.HasUtilizationData = true
	r.DailyUtilization = series
	r.Utilization30Day = meanPercent(series)
	r.Utilization7Day = meanPercent(tail(series, 7))
	r.Utilization1Day = series[len(series)-1].UtilizationPercent

	r.UtilizationMin = series[0].UtilizationPercent
	r.UtilizationMax = series[0].UtilizationPercent
	for _, day := range series {
		if day.UtilizationPercent < r.UtilizationMin {
			r.UtilizationMin = day.UtilizationPercent
		}
		if day.UtilizationPercent > r.UtilizationMax {
			r.UtilizationMax = day.UtilizationPercent
		}
	}
}

func meanPercent(series []domain.DailyUtilization) float64 {
	if len(series) == 0 {
		return 0
	}
	sum := 0.0
	for _, day := range series {
		sum += day.UtilizationPercent
	}
	return sum / float64(len(series))
}

func tail(series []domain.DailyUtilization, n int) []domain.DailyUtilization {
	if len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}
