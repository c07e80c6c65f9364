package models

import "time"

// ProviderMarketSnapshot stores the current market state for one
// (variant, provider, currency) key. Exactly one live row exists per
// key; writers replace it only when the incoming UpdatedAt is not older
// than the stored one, so a delayed worker cannot clobber fresher data.
type ProviderMarketSnapshot struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	VariantID  uint         `json:"variant_id" gorm:"uniqueIndex:idx_snapshot_key;not null"`
	Variant    StyleVariant `json:"variant,omitempty" gorm:"foreignKey:VariantID"`
	Provider   Provider     `json:"provider" gorm:"uniqueIndex:idx_snapshot_key;not null"`
	Currency   string       `json:"currency" gorm:"uniqueIndex:idx_snapshot_key;not null"`
	LowestAsk  *float64     `json:"lowest_ask"`
	HighestBid *float64     `json:"highest_bid"`
	// available, no_listing, error, not_mapped
	Status    string    `json:"status" gorm:"not null;default:'available'"`
	LastError string    `json:"last_error" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
}
