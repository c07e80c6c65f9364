// Package provider defines the boundary to the upstream marketplace
// feeds. The synchronizer only ever sees the typed responses defined
// here, so untyped upstream JSON never flows past this package.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resale-tracker/internal/models"
)

// ErrNotMapped means the product/variant has no identifier on this
// provider. The item is skipped, not counted as an error, until a
// mapping is added.
var ErrNotMapped = errors.New("product not mapped to provider")

// Error is a provider call failure carrying the upstream HTTP status.
type Error struct {
	Provider models.Provider
	Status   int
	Msg      string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.Status, e.Msg)
}

// IsAuthError reports whether err is a 401/403 from a provider. Auth
// failures abort the whole account run; retrying item-by-item cannot
// help and burns the rate budget.
func IsAuthError(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Status == 401 || pe.Status == 403
	}
	return false
}

// IsRetryable reports whether err is worth retrying at the call site
// (network failure or upstream 5xx).
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Status == 0 || pe.Status >= 500
	}
	return false
}

// Sale is one historical transaction from a provider's sales feed.
type Sale struct {
	Price      float64
	Currency   string
	OccurredAt time.Time
	Region     string
	Consigned  bool
}

// SizeQuote is one size's market data inside a product snapshot.
type SizeQuote struct {
	Size       string
	SizeUnit   string
	VariantRef string
	LowestAsk  *float64
	HighestBid *float64
}

// ProductSnapshot is the full per-product response: one quote per size
// the provider lists, all in the provider's native currency.
type ProductSnapshot struct {
	Provider   models.Provider
	ProductRef string
	Currency   string
	AsOf       time.Time
	Quotes     []SizeQuote
}

// Client is implemented by each marketplace feed adapter.
type Client interface {
	// Name identifies the feed this client talks to.
	Name() models.Provider

	// FetchMarketSnapshot returns current asks/bids for every size of
	// the product. Returns ErrNotMapped when the product has no
	// identifier on this provider, or *Error on upstream failure.
	FetchMarketSnapshot(ctx context.Context, productRef string) (*ProductSnapshot, error)

	// FetchSalesHistory returns individual transactions for one size
	// inside the window ending now.
	FetchSalesHistory(ctx context.Context, productRef, size string, window time.Duration) ([]Sale, error)
}
