package models

import (
	"math"
	"strconv"
	"time"
)

// PriceHistoryRecord is an append-only point-in-time capture of a
// provider's ask/bid for a variant, kept for charting and audit.
// Rows are never updated or deleted. The (variant, provider, currency,
// recorded_at) tuple is the natural key; the unique index makes a
// re-run of an overlapping ingestion window a no-op instead of a
// duplicate row.
type PriceHistoryRecord struct {
	ID         uint     `json:"id" gorm:"primaryKey"`
	VariantID  uint     `json:"variant_id" gorm:"uniqueIndex:idx_history_natural;not null"`
	Provider   Provider `json:"provider" gorm:"uniqueIndex:idx_history_natural;not null"`
	Currency   string   `json:"currency" gorm:"uniqueIndex:idx_history_natural;not null"`
	LowestAsk  *float64 `json:"lowest_ask"`
	HighestBid *float64 `json:"highest_bid"`
	// RecordedAt is the provider-reported timestamp, not insertion time.
	RecordedAt time.Time `json:"recorded_at" gorm:"uniqueIndex:idx_history_natural;not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// SaleRecord is an append-only individual transaction reported by a
// provider's sales feed. The full (style_id, size, price, currency,
// occurred_at, region, consigned) tuple is the natural key; re-running
// ingestion over an overlapping window must not multiply rows, so the
// tuple carries a composite unique index.
type SaleRecord struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	StyleID    string    `json:"style_id" gorm:"uniqueIndex:idx_sale_natural;not null"`
	Size       string    `json:"size" gorm:"uniqueIndex:idx_sale_natural;not null"`
	Price      float64   `json:"price" gorm:"uniqueIndex:idx_sale_natural;not null"`
	Currency   string    `json:"currency" gorm:"uniqueIndex:idx_sale_natural;not null"`
	OccurredAt time.Time `json:"occurred_at" gorm:"uniqueIndex:idx_sale_natural;not null"`
	Region     string    `json:"region" gorm:"uniqueIndex:idx_sale_natural;not null"`
	Consigned  bool      `json:"consigned" gorm:"uniqueIndex:idx_sale_natural;not null"`
	Provider   Provider  `json:"provider" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
}

// NaturalKey renders the dedup tuple as a stable string, useful for
// in-memory pre-checks and log lines.
func (s SaleRecord) NaturalKey() string {
	// price keyed at cent precision so float noise cannot split the key
	cents := int64(math.Round(s.Price * 100))
	return s.StyleID + "|" + s.Size + "|" +
		strconv.FormatInt(cents, 10) + "|" + s.Currency + "|" +
		s.OccurredAt.UTC().Format(time.RFC3339) + "|" + s.Region + "|" +
		strconv.FormatBool(s.Consigned)
}
