package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"resale-tracker/internal/models"
)

// RESTClient talks to a marketplace's HTTP API. Both supported
// marketplaces expose the same shape of endpoints, so one client type
// covers both; base URL and credentials decide which one it is.
type RESTClient struct {
	name     models.Provider
	baseURL  string
	apiKey   string
	currency string
	client   *resty.Client
}

type restQuote struct {
	Size       string   `json:"size"`
	SizeUnit   string   `json:"size_unit"`
	VariantRef string   `json:"variant_ref"`
	LowestAsk  *float64 `json:"lowest_ask"`
	HighestBid *float64 `json:"highest_bid"`
}

type restSnapshotResponse struct {
	ProductRef string      `json:"product_ref"`
	Currency   string      `json:"currency"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Quotes     []restQuote `json:"quotes"`
}

type restSale struct {
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
	Region     string    `json:"region"`
	Consigned  bool      `json:"consigned"`
}

type restSalesResponse struct {
	Sales []restSale `json:"sales"`
}

func NewRESTClient(name models.Provider, baseURL, apiKey, currency string, timeout time.Duration) *RESTClient {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Authorization", "Bearer "+apiKey)

	return &RESTClient{
		name:     name,
		baseURL:  baseURL,
		apiKey:   apiKey,
		currency: currency,
		client:   client,
	}
}

func (c *RESTClient) Name() models.Provider {
	return c.name
}

func (c *RESTClient) FetchMarketSnapshot(ctx context.Context, productRef string) (*ProductSnapshot, error) {
	endpoint := fmt.Sprintf("%s/v1/products/%s/market?currency=%s",
		c.baseURL, url.PathEscape(productRef), url.QueryEscape(c.currency))

	resp, err := c.client.R().SetContext(ctx).Get(endpoint)
	if err != nil {
		return nil, &Error{Provider: c.name, Status: 0, Msg: err.Error()}
	}
	if resp.StatusCode() == 404 {
		return nil, ErrNotMapped
	}
	if resp.StatusCode() != 200 {
		return nil, &Error{Provider: c.name, Status: resp.StatusCode(), Msg: string(resp.Body())}
	}

	var body restSnapshotResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode market snapshot from %s: %w", c.name, err)
	}

	snapshot := &ProductSnapshot{
		Provider:   c.name,
		ProductRef: productRef,
		Currency:   body.Currency,
		AsOf:       body.UpdatedAt,
	}
	if snapshot.Currency == "" {
		snapshot.Currency = c.currency
	}
	if snapshot.AsOf.IsZero() {
		snapshot.AsOf = time.Now()
	}
	for _, q := range body.Quotes {
		snapshot.Quotes = append(snapshot.Quotes, SizeQuote{
			Size:       q.Size,
			SizeUnit:   q.SizeUnit,
			VariantRef: q.VariantRef,
			LowestAsk:  q.LowestAsk,
			HighestBid: q.HighestBid,
		})
	}
	return snapshot, nil
}

func (c *RESTClient) FetchSalesHistory(ctx context.Context, productRef, size string, window time.Duration) ([]Sale, error) {
	since := time.Now().Add(-window).UTC().Format(time.RFC3339)
	endpoint := fmt.Sprintf("%s/v1/products/%s/sales?size=%s&since=%s",
		c.baseURL, url.PathEscape(productRef), url.QueryEscape(size), url.QueryEscape(since))

	resp, err := c.client.R().SetContext(ctx).Get(endpoint)
	if err != nil {
		return nil, &Error{Provider: c.name, Status: 0, Msg: err.Error()}
	}
	if resp.StatusCode() == 404 {
		return nil, ErrNotMapped
	}
	if resp.StatusCode() != 200 {
		return nil, &Error{Provider: c.name, Status: resp.StatusCode(), Msg: string(resp.Body())}
	}

	var body restSalesResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode sales history from %s: %w", c.name, err)
	}

	sales := make([]Sale, 0, len(body.Sales))
	for _, s := range body.Sales {
		sales = append(sales, Sale{
			Price:      s.Price,
			Currency:   s.Currency,
			OccurredAt: s.OccurredAt,
			Region:     s.Region,
			Consigned:  s.Consigned,
		})
	}
	return sales, nil
}
