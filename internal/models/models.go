package models

import (
	"time"

	"gorm.io/gorm"
)

// Provider identifies an upstream marketplace feed.
type Provider string

const (
	ProviderA Provider = "market_a"
	ProviderB Provider = "market_b"
)

// Snapshot status values for ProviderMarketSnapshot.Status
const (
	SnapshotAvailable = "available"
	SnapshotNoListing = "no_listing"
	SnapshotError     = "error"
	SnapshotNotMapped = "not_mapped"
)

// Product represents a style (SKU) independent of size.
// Provider-specific product IDs are filled in as each feed first
// observes the style; they may be added but never removed.
type Product struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	StyleID     string         `json:"style_id" gorm:"uniqueIndex;not null"`
	Name        string         `json:"name"`
	Brand       string         `json:"brand"`
	Colorway    string         `json:"colorway"`
	ProviderAID *string        `json:"provider_a_id" gorm:"index"`
	ProviderBID *string        `json:"provider_b_id" gorm:"index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

// StyleVariant is a specific size of a style. The (style_id, size,
// size_unit) tuple is the identity key; rows are created the first time
// any provider observes the size and are immutable afterwards apart
// from provider variant IDs being filled in.
type StyleVariant struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	ProductID        uint      `json:"product_id" gorm:"not null;index"`
	Product          Product   `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	StyleID          string    `json:"style_id" gorm:"uniqueIndex:idx_variant_identity;not null"`
	Size             string    `json:"size" gorm:"uniqueIndex:idx_variant_identity;not null"`
	SizeUnit         string    `json:"size_unit" gorm:"uniqueIndex:idx_variant_identity;not null;default:'US'"`
	ProviderAVariant *string   `json:"provider_a_variant" gorm:"index"`
	ProviderBVariant *string   `json:"provider_b_variant" gorm:"index"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SyncAccount tracks per-account sync bookkeeping. LastSyncedAt moves
// only when a run completes; LastError keeps the most recent failure
// for operator visibility regardless of run outcome.
type SyncAccount struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	AccountID    string     `json:"account_id" gorm:"uniqueIndex;not null"`
	Currency     string     `json:"currency" gorm:"default:'USD'"`
	Region       string     `json:"region"`
	IsActive     bool       `json:"is_active" gorm:"default:true"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	LastError    string     `json:"last_error" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
