// Package store defines the persistence boundary for the sync engine.
// MySQL (via GORM) is the production implementation; the in-memory
// implementation backs tests. The durable schema is only ever reached
// through this interface.
package store

import (
	"context"
	"time"

	"resale-tracker/internal/models"
)

// ProductAttrs is the catalog data a provider fetch can contribute
// when a product row is first observed or enriched.
type ProductAttrs struct {
	Name        string
	Brand       string
	Colorway    string
	ProviderAID *string
	ProviderBID *string
}

// Store is the persistence interface for the sync engine and the
// read-side price API.
type Store interface {
	// GetOrCreateProduct resolves a product by style ID, creating it if
	// missing. Existing rows are enriched (never overwritten with less):
	// empty fields and missing provider IDs are filled from attrs.
	GetOrCreateProduct(ctx context.Context, styleID string, attrs ProductAttrs) (*models.Product, error)

	// GetOrCreateVariant resolves a size row under a product, creating
	// it if missing. Provider variant refs are add-only.
	GetOrCreateVariant(ctx context.Context, productID uint, styleID, size, sizeUnit string) (*models.StyleVariant, error)

	// SetVariantProviderRef records a provider-side variant identifier.
	// Identifiers may be added, never removed.
	SetVariantProviderRef(ctx context.Context, variantID uint, prov models.Provider, ref string) error

	// UpsertSnapshotIfNewer replaces the live snapshot for the
	// (variant, provider, currency) key only when the incoming
	// UpdatedAt is not older than the stored one. Returns whether the
	// write actually happened; a skip is the expected outcome for
	// logically-older data, not an error.
	UpsertSnapshotIfNewer(ctx context.Context, snap models.ProviderMarketSnapshot) (bool, error)

	// MarkSnapshotError flags the live snapshots for (variant, provider)
	// as errored without touching UpdatedAt. The mark must stay behind
	// the provider clock so the next healthy fetch with a logically
	// newer timestamp passes the staleness guard and clears it.
	MarkSnapshotError(ctx context.Context, variantID uint, prov models.Provider, msg string) error

	// AppendPriceHistory appends one point-in-time record. A re-insert
	// of an already-seen natural key is silently rejected; the bool
	// reports whether a row was actually inserted.
	AppendPriceHistory(ctx context.Context, rec models.PriceHistoryRecord) (bool, error)

	// AppendSale appends one transaction, deduplicated on the full
	// natural key the same way.
	AppendSale(ctx context.Context, rec models.SaleRecord) (bool, error)

	// LatestSnapshots returns the live snapshot per provider for a
	// variant in the given currency view.
	LatestSnapshots(ctx context.Context, variantID uint) (map[models.Provider]*models.ProviderMarketSnapshot, error)

	// FindVariant looks up a variant by its identity key. Returns
	// (nil, nil) when absent.
	FindVariant(ctx context.Context, styleID, size, sizeUnit string) (*models.StyleVariant, error)

	// ListVariants returns all size rows under a product.
	ListVariants(ctx context.Context, productID uint) ([]models.StyleVariant, error)

	// ListProducts returns the catalog, for driving sync runs.
	ListProducts(ctx context.Context) ([]models.Product, error)

	// ListActiveAccounts returns accounts eligible for syncing.
	ListActiveAccounts(ctx context.Context) ([]models.SyncAccount, error)

	// MarkAccountSynced moves the per-account last-successful-sync
	// marker. Called only when a run reaches Completed.
	MarkAccountSynced(ctx context.Context, accountID string, at time.Time) error

	// RecordAccountError stores the last error message for operator
	// visibility without touching the sync marker.
	RecordAccountError(ctx context.Context, accountID string, msg string) error
}
