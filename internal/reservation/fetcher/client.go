package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/finopslab/costlens/internal/reservation/domain"
	"github.com/finopslab/costlens/internal/storage"
)

const capacityAPIVersion = "2022-11-01"
const consumptionAPIVersion = "2023-05-01"

// Client talks to the management-plane reservation and consumption APIs.
// List responses are paginated through nextLink; field names drifting across
// API versions are normalized here.
type Client struct {
	endpoint   string
	tokens     storage.TokenSource
	httpClient *http.Client
}

func NewClient(managementEndpoint string, tokens storage.TokenSource) *Client {
	return &Client{
		endpoint:   strings.TrimRight(managementEndpoint, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

type reservationOrder struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Properties struct {
		DisplayName string `json:"displayName"`
		Term        string `json:"term"`
	} `json:"properties"`
}

type reservationEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	SKU      struct {
		Name string `json:"name"`
	} `json:"sku"`
	Properties struct {
		DisplayName          string `json:"displayName"`
		ReservedResourceType string `json:"reservedResourceType"`
		Term                 string `json:"term"`
		Quantity             int    `json:"quantity"`
		ProvisioningState    string `json:"provisioningState"`
		EffectiveDateTime    string `json:"effectiveDateTime"`
		ExpiryDate           string `json:"expiryDate"`
		ExpiryDateTime       string `json:"expiryDateTime"`
		Renew                bool   `json:"renew"`
	} `json:"properties"`
}

// utilizationEntry tolerates the field variants seen across consumption API
// versions: utilizationPercent vs utilizedPercentage, usedHours vs usedQuantity.
type utilizationEntry struct {
	Properties struct {
		UsageDate                string  `json:"usageDate"`
		UtilizationPercent       float64 `json:"utilizationPercent"`
		UtilizedPercentage       float64 `json:"utilizedPercentage"`
		AvgUtilizationPercentage float64 `json:"avgUtilizationPercentage"`
		UsedHours                float64 `json:"usedHours"`
		UsedQuantity             float64 `json:"usedQuantity"`
		ReservedHours            float64 `json:"reservedHours"`
		TotalReservedQuantity    float64 `json:"totalReservedQuantity"`
	} `json:"properties"`
}

func (e utilizationEntry) normalize() domain.DailyUtilization {
	p := e.Properties

	percent := p.UtilizationPercent
	if percent == 0 && p.UtilizedPercentage != 0 {
		percent = p.UtilizedPercentage
	}
	if percent == 0 && p.AvgUtilizationPercentage != 0 {
		percent = p.AvgUtilizationPercentage
	}

	used := p.UsedHours
	if used == 0 && p.UsedQuantity != 0 {
		used = p.UsedQuantity
	}
	reserved := p.ReservedHours
	if reserved == 0 && p.TotalReservedQuantity != 0 {
		reserved = p.TotalReservedQuantity
	}

	date := p.UsageDate
	if parsed, err := time.Parse(time.RFC3339, date); err == nil {
		date = parsed.Format("2006-01-02")
	} else if len(date) >= 10 {
		date = date[:10]
	}

	return domain.DailyUtilization{
		Date:               date,
		UsedHours:          used,
		ReservedHours:      reserved,
		UtilizationPercent: percent,
	}
}

type usageDetailEntry struct {
	Properties struct {
		InstanceID   string  `json:"instanceId"`
		InstanceName string  `json:"instanceName"`
		UsedHours    float64 `json:"usedHours"`
		UsedQuantity float64 `json:"usedQuantity"`
	} `json:"properties"`
}

type recommendationEntry struct {
	Location   string `json:"location"`
	SKU        string `json:"sku"`
	Properties struct {
		ResourceType                   string  `json:"resourceType"`
		Term                           string  `json:"term"`
		RecommendedQuantity            float64 `json:"recommendedQuantity"`
		NetSavings                     float64 `json:"netSavings"`
		TotalCostWithReservedInstances float64 `json:"totalCostWithReservedInstances"`
		CostWithNoReservedInstances    float64 `json:"costWithNoReservedInstances"`
	} `json:"properties"`
}

func (c *Client) ListReservationOrders(ctx context.Context) ([]reservationOrder, error) {
	endpoint := fmt.Sprintf("%s/providers/Microsoft.Capacity/reservationOrders?api-version=%s", c.endpoint, capacityAPIVersion)
	return collectPages[reservationOrder](ctx, c, endpoint)
}

func (c *Client) ListReservations(ctx context.Context, orderID string) ([]reservationEntry, error) {
	endpoint := fmt.Sprintf("%s/providers/Microsoft.Capacity/reservationOrders/%s/reservations?api-version=%s", c.endpoint, orderID, capacityAPIVersion)
	return collectPages[reservationEntry](ctx, c, endpoint)
}

// DailyUtilization fetches the reservation's daily utilization series for the
// trailing number of days.
func (c *Client) DailyUtilization(ctx context.Context, orderID, reservationID string, days int, now time.Time) ([]domain.DailyUtilization, error) {
	start := now.AddDate(0, 0, -days).Format("2006-01-02")
	end := now.Format("2006-01-02")
	endpoint := fmt.Sprintf(
		"%s/providers/Microsoft.Capacity/reservationorders/%s/reservations/%s/providers/Microsoft.Consumption/reservationSummaries?grain=daily&$filter=properties/usageDate+ge+%s+AND+properties/usageDate+le+%s&api-version=%s",
		c.endpoint, orderID, reservationID, start, end, consumptionAPIVersion)

	entries, err := collectPages[utilizationEntry](ctx, c, endpoint)
	if err != nil {
		return nil, err
	}

	series := make([]domain.DailyUtilization, 0, len(entries))
	for _, entry := range entries {
		series = append(series, entry.normalize())
	}
	return series, nil
}

// UsageBreakdown fetches which resources consumed the reservation over the
// trailing number of days, aggregated per resource.
func (c *Client) UsageBreakdown(ctx context.Context, orderID, reservationID string, days int, now time.Time) ([]domain.CoveredResource, error) {
	start := now.AddDate(0, 0, -days).Format("2006-01-02")
	end := now.Format("2006-01-02")
	endpoint := fmt.Sprintf(
		"%s/providers/Microsoft.Capacity/reservationorders/%s/reservations/%s/providers/Microsoft.Consumption/reservationDetails?$filter=properties/usageDate+ge+%s+AND+properties/usageDate+le+%s&api-version=%s",
		c.endpoint, orderID, reservationID, start, end, consumptionAPIVersion)

	entries, err := collectPages[usageDetailEntry](ctx, c, endpoint)
	if err != nil {
		return nil, err
	}

	totals := map[string]float64{}
	for _, entry := range entries {
		id := entry.Properties.InstanceID
		if id == "" {
			id = entry.Properties.InstanceName
		}
		if id == "" {
			continue
		}
		used := entry.Properties.UsedHours
		if used == 0 {
			used = entry.Properties.UsedQuantity
		}
		totals[id] += used
	}

	resources := make([]domain.CoveredResource, 0, len(totals))
	for id, used := range totals {
		resources = append(resources, domain.CoveredResource{ResourceID: id, UsedHours: used})
	}
	return resources, nil
}

// PurchaseRecommendations fetches suggested new reservations for one
// subscription. Every numeric output field defaults to zero.
func (c *Client) PurchaseRecommendations(ctx context.Context, subscriptionID, subscriptionName string) ([]domain.PurchaseRecommendation, error) {
	endpoint := fmt.Sprintf(
		"%s/subscriptions/%s/providers/Microsoft.Consumption/reservationRecommendations?api-version=%s",
		c.endpoint, subscriptionID, consumptionAPIVersion)

	entries, err := collectPages[recommendationEntry](ctx, c, endpoint)
	if err != nil {
		return nil, err
	}

	recommendations := make([]domain.PurchaseRecommendation, 0, len(entries))
	for _, entry := range entries {
		monthly := entry.Properties.NetSavings
		costWith := entry.Properties.TotalCostWithReservedInstances
		costWithout := entry.Properties.CostWithNoReservedInstances

		savingsPercent := 0.0
		if costWithout > 0 {
			savingsPercent = (costWithout - costWith) / costWithout * 100
		}

		recommendations = append(recommendations, domain.PurchaseRecommendation{
			SubscriptionName: subscriptionName,
			SKUName:          entry.SKU,
			Location:         entry.Location,
			ResourceType:     entry.Properties.ResourceType,
			Term:             entry.Properties.Term,
			Quantity:         int(entry.Properties.RecommendedQuantity),
			MonthlySavings:   monthly,
			AnnualSavings:    monthly * 12,
			CostWithRI:       costWith,
			CostWithoutRI:    costWithout,
			SavingsPercent:   savingsPercent,
		})
	}
	return recommendations, nil
}

type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"nextLink"`
}

func collectPages[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	var items []T
	for endpoint != "" {
		var p page[T]
		if err := c.getJSON(ctx, endpoint, &p); err != nil {
			return nil, err
		}
		items = append(items, p.Value...)
		endpoint = p.NextLink
	}
	return items, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create management request: %w", err)
	}

	token, err := c.tokens.Token(ctx, c.endpoint+"/.default")
	if err != nil {
		return fmt.Errorf("acquire management token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("management request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("management request failed: %d %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode management response: %w", err)
	}
	return nil
}
