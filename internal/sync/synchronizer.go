// Package sync pulls current and historical market data from the
// provider feeds and writes it through the store with two disciplines:
// staleness-guarded upserts for current rows, deduplicated appends for
// historical rows.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"resale-tracker/internal/models"
	"resale-tracker/internal/provider"
	"resale-tracker/internal/store"
)

// Options tunes retry behavior and the sales ingestion window.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
	SalesWindow  time.Duration
}

// DefaultOptions matches the production sampler settings.
func DefaultOptions() Options {
	return Options{
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
		SalesWindow:  30 * 24 * time.Hour,
	}
}

// ItemResult summarizes the writes of one (product, providers) sync.
type ItemResult struct {
	SnapshotsWritten int
	SnapshotsSkipped int // staleness guard no-ops
	HistoryAppended  int
	SalesInserted    int
	SalesDuplicates  int
	ProviderErrors   int
	NotMapped        int
}

// Synchronizer turns provider fetches into correctly-ordered store
// writes: Product, then Variant, then Snapshot, each step an
// idempotent get-or-create or upsert.
type Synchronizer struct {
	store   store.Store
	clients []provider.Client
	opts    Options
}

// NewSynchronizer wires the store and the provider clients. Clients
// are injected; nothing in this package holds global state.
func NewSynchronizer(st store.Store, clients []provider.Client, opts Options) *Synchronizer {
	return &Synchronizer{store: st, clients: clients, opts: opts}
}

// SyncProduct fetches every feed for one product and persists the
// result. A single feed failing marks that feed's snapshots as errored
// and keeps going; only an auth failure propagates, because it aborts
// the whole run.
func (s *Synchronizer) SyncProduct(ctx context.Context, product models.Product) (ItemResult, error) {
	var result ItemResult

	for _, client := range s.clients {
		ref := providerRef(product, client.Name())
		if ref == "" {
			// no mapping for this feed yet; skip until one is added
			result.NotMapped++
			continue
		}

		snap, err := s.fetchWithRetry(ctx, client, ref)
		if err != nil {
			if provider.IsAuthError(err) {
				return result, err
			}
			if errors.Is(err, provider.ErrNotMapped) {
				result.NotMapped++
				continue
			}
			result.ProviderErrors++
			log.Printf("[Synchronizer] %s fetch failed for %s: %v", client.Name(), product.StyleID, err)
			if markErr := s.markProviderError(ctx, product, client.Name(), err); markErr != nil {
				log.Printf("[Synchronizer] could not mark %s error for %s: %v", client.Name(), product.StyleID, markErr)
			}
			continue
		}

		if err := s.persistSnapshot(ctx, product, snap, &result); err != nil {
			return result, err
		}

		if err := s.ingestSales(ctx, client, product, snap, &result); err != nil {
			if provider.IsAuthError(err) {
				return result, err
			}
			result.ProviderErrors++
			log.Printf("[Synchronizer] %s sales ingest failed for %s: %v", client.Name(), product.StyleID, err)
		}
	}

	return result, nil
}

// fetchWithRetry retries retryable failures with linear backoff; auth
// and mapping errors surface immediately.
func (s *Synchronizer) fetchWithRetry(ctx context.Context, client provider.Client, ref string) (*provider.ProductSnapshot, error) {
	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * s.opts.RetryBackoff):
			}
		}

		snap, err := client.FetchMarketSnapshot(ctx, ref)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if !provider.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// persistSnapshot resolves the identity chain and writes current +
// history rows. Identity failures on one size are non-fatal: the next
// cycle's idempotent upsert repairs whatever was left half-built.
func (s *Synchronizer) persistSnapshot(ctx context.Context, product models.Product, snap *provider.ProductSnapshot, result *ItemResult) error {
	attrs := store.ProductAttrs{Name: product.Name, Brand: product.Brand}
	switch snap.Provider {
	case models.ProviderA:
		attrs.ProviderAID = &snap.ProductRef
	case models.ProviderB:
		attrs.ProviderBID = &snap.ProductRef
	}

	parent, err := s.store.GetOrCreateProduct(ctx, product.StyleID, attrs)
	if err != nil {
		return fmt.Errorf("resolve product %s: %w", product.StyleID, err)
	}

	for _, quote := range snap.Quotes {
		variant, err := s.store.GetOrCreateVariant(ctx, parent.ID, product.StyleID, quote.Size, quote.SizeUnit)
		if err != nil {
			// skipped this cycle, retried on the next once the parent exists
			log.Printf("[Synchronizer] variant %s/%s unresolved, skipping: %v", product.StyleID, quote.Size, err)
			continue
		}
		if quote.VariantRef != "" {
			if err := s.store.SetVariantProviderRef(ctx, variant.ID, snap.Provider, quote.VariantRef); err != nil {
				log.Printf("[Synchronizer] variant ref write failed for %s/%s: %v", product.StyleID, quote.Size, err)
			}
		}

		status := models.SnapshotAvailable
		if quote.LowestAsk == nil && quote.HighestBid == nil {
			status = models.SnapshotNoListing
		}

		written, err := s.store.UpsertSnapshotIfNewer(ctx, models.ProviderMarketSnapshot{
			VariantID:  variant.ID,
			Provider:   snap.Provider,
			Currency:   snap.Currency,
			LowestAsk:  quote.LowestAsk,
			HighestBid: quote.HighestBid,
			Status:     status,
			UpdatedAt:  snap.AsOf,
		})
		if err != nil {
			return fmt.Errorf("upsert snapshot %s/%s: %w", product.StyleID, quote.Size, err)
		}

		if !written {
			// incoming data was logically older; appending history here
			// would duplicate a point we already recorded
			result.SnapshotsSkipped++
			continue
		}
		result.SnapshotsWritten++

		inserted, err := s.store.AppendPriceHistory(ctx, models.PriceHistoryRecord{
			VariantID:  variant.ID,
			Provider:   snap.Provider,
			Currency:   snap.Currency,
			LowestAsk:  quote.LowestAsk,
			HighestBid: quote.HighestBid,
			RecordedAt: snap.AsOf,
		})
		if err != nil {
			return fmt.Errorf("append history %s/%s: %w", product.StyleID, quote.Size, err)
		}
		if inserted {
			result.HistoryAppended++
		}
	}

	return nil
}

// ingestSales pulls the sales window per size and appends each
// transaction under its natural key. Duplicates from overlapping
// windows are silently rejected by the store.
func (s *Synchronizer) ingestSales(ctx context.Context, client provider.Client, product models.Product, snap *provider.ProductSnapshot, result *ItemResult) error {
	for _, quote := range snap.Quotes {
		sales, err := client.FetchSalesHistory(ctx, snap.ProductRef, quote.Size, s.opts.SalesWindow)
		if err != nil {
			return err
		}
		for _, sale := range sales {
			inserted, err := s.store.AppendSale(ctx, models.SaleRecord{
				StyleID:    product.StyleID,
				Size:       quote.Size,
				Price:      sale.Price,
				Currency:   sale.Currency,
				OccurredAt: sale.OccurredAt,
				Region:     sale.Region,
				Consigned:  sale.Consigned,
				Provider:   snap.Provider,
			})
			if err != nil {
				return fmt.Errorf("append sale %s/%s: %w", product.StyleID, quote.Size, err)
			}
			if inserted {
				result.SalesInserted++
			} else {
				result.SalesDuplicates++
			}
		}
	}
	return nil
}

// markProviderError flags the feed's existing snapshots for this
// product with an error status while preserving the last known
// ask/bid and provider timestamp, so the reconciler keeps quoting at
// low confidence and the next healthy fetch clears the mark.
func (s *Synchronizer) markProviderError(ctx context.Context, product models.Product, prov models.Provider, cause error) error {
	variants, err := s.store.ListVariants(ctx, product.ID)
	if err != nil {
		return err
	}
	for _, variant := range variants {
		if err := s.store.MarkSnapshotError(ctx, variant.ID, prov, cause.Error()); err != nil {
			return err
		}
	}
	return nil
}

func providerRef(product models.Product, prov models.Provider) string {
	switch prov {
	case models.ProviderA:
		if product.ProviderAID != nil {
			return *product.ProviderAID
		}
	case models.ProviderB:
		if product.ProviderBID != nil {
			return *product.ProviderBID
		}
	}
	return ""
}
