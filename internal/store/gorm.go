package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"resale-tracker/internal/models"

	"gorm.io/gorm"
)

// GormStore implements Store on MySQL through GORM. The append-only
// tables lean on their composite unique indexes: a duplicate insert
// surfaces as a duplicate-key error and is reported as "not inserted"
// rather than failing the caller.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an initialized GORM handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetOrCreateProduct(ctx context.Context, styleID string, attrs ProductAttrs) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("style_id = ?", styleID).First(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			product = models.Product{
				StyleID:     styleID,
				Name:        attrs.Name,
				Brand:       attrs.Brand,
				Colorway:    attrs.Colorway,
				ProviderAID: attrs.ProviderAID,
				ProviderBID: attrs.ProviderBID,
			}
			if createErr := tx.Create(&product).Error; createErr != nil {
				if isDuplicateKey(createErr) {
					// lost a race with another worker; reread
					return tx.Where("style_id = ?", styleID).First(&product).Error
				}
				return createErr
			}
			return nil
		}
		if err != nil {
			return err
		}

		// enrich only: fill blanks, never blank out existing data
		updates := map[string]interface{}{}
		if product.Name == "" && attrs.Name != "" {
			updates["name"] = attrs.Name
		}
		if product.Brand == "" && attrs.Brand != "" {
			updates["brand"] = attrs.Brand
		}
		if product.Colorway == "" && attrs.Colorway != "" {
			updates["colorway"] = attrs.Colorway
		}
		if product.ProviderAID == nil && attrs.ProviderAID != nil {
			updates["provider_a_id"] = *attrs.ProviderAID
		}
		if product.ProviderBID == nil && attrs.ProviderBID != nil {
			updates["provider_b_id"] = *attrs.ProviderBID
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&product).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("style_id = ?", styleID).First(&product).Error
	})
	if err != nil {
		return nil, fmt.Errorf("get or create product %s: %w", styleID, err)
	}
	return &product, nil
}

func (s *GormStore) GetOrCreateVariant(ctx context.Context, productID uint, styleID, size, sizeUnit string) (*models.StyleVariant, error) {
	var variant models.StyleVariant
	err := s.db.WithContext(ctx).
		Where("style_id = ? AND size = ? AND size_unit = ?", styleID, size, sizeUnit).
		First(&variant).Error
	if err == nil {
		return &variant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find variant %s/%s: %w", styleID, size, err)
	}

	variant = models.StyleVariant{
		ProductID: productID,
		StyleID:   styleID,
		Size:      size,
		SizeUnit:  sizeUnit,
	}
	if err := s.db.WithContext(ctx).Create(&variant).Error; err != nil {
		if isDuplicateKey(err) {
			err = s.db.WithContext(ctx).
				Where("style_id = ? AND size = ? AND size_unit = ?", styleID, size, sizeUnit).
				First(&variant).Error
			if err != nil {
				return nil, err
			}
			return &variant, nil
		}
		return nil, fmt.Errorf("create variant %s/%s: %w", styleID, size, err)
	}
	return &variant, nil
}

func (s *GormStore) SetVariantProviderRef(ctx context.Context, variantID uint, prov models.Provider, ref string) error {
	column := "provider_a_variant"
	if prov == models.ProviderB {
		column = "provider_b_variant"
	}
	// add-only: never overwrite an existing identifier
	return s.db.WithContext(ctx).
		Model(&models.StyleVariant{}).
		Where("id = ? AND "+column+" IS NULL", variantID).
		Update(column, ref).Error
}

func (s *GormStore) UpsertSnapshotIfNewer(ctx context.Context, snap models.ProviderMarketSnapshot) (bool, error) {
	written := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ProviderMarketSnapshot
		err := tx.Where("variant_id = ? AND provider = ? AND currency = ?",
			snap.VariantID, snap.Provider, snap.Currency).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if createErr := tx.Create(&snap).Error; createErr != nil {
				if isDuplicateKey(createErr) {
					// raced; the other writer won this round
					return nil
				}
				return createErr
			}
			written = true
			return nil
		}
		if err != nil {
			return err
		}

		// staleness guard: last logically-newer wins, not last write
		if snap.UpdatedAt.Before(existing.UpdatedAt) {
			return nil
		}

		snap.ID = existing.ID
		snap.CreatedAt = existing.CreatedAt
		if saveErr := tx.Save(&snap).Error; saveErr != nil {
			return saveErr
		}
		written = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("upsert snapshot variant=%d provider=%s: %w", snap.VariantID, snap.Provider, err)
	}
	return written, nil
}

// MarkSnapshotError writes status and last_error only. UpdateColumns
// keeps GORM from auto-advancing UpdatedAt, which would put the mark
// ahead of the provider clock and block the recovery write.
func (s *GormStore) MarkSnapshotError(ctx context.Context, variantID uint, prov models.Provider, msg string) error {
	return s.db.WithContext(ctx).
		Model(&models.ProviderMarketSnapshot{}).
		Where("variant_id = ? AND provider = ?", variantID, prov).
		UpdateColumns(map[string]interface{}{
			"status":     models.SnapshotError,
			"last_error": msg,
		}).Error
}

func (s *GormStore) AppendPriceHistory(ctx context.Context, rec models.PriceHistoryRecord) (bool, error) {
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("append price history: %w", err)
	}
	return true, nil
}

func (s *GormStore) AppendSale(ctx context.Context, rec models.SaleRecord) (bool, error) {
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("append sale: %w", err)
	}
	return true, nil
}

func (s *GormStore) LatestSnapshots(ctx context.Context, variantID uint) (map[models.Provider]*models.ProviderMarketSnapshot, error) {
	var rows []models.ProviderMarketSnapshot
	if err := s.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load snapshots for variant %d: %w", variantID, err)
	}
	out := make(map[models.Provider]*models.ProviderMarketSnapshot, len(rows))
	for i := range rows {
		out[rows[i].Provider] = &rows[i]
	}
	return out, nil
}

func (s *GormStore) FindVariant(ctx context.Context, styleID, size, sizeUnit string) (*models.StyleVariant, error) {
	var variant models.StyleVariant
	err := s.db.WithContext(ctx).
		Where("style_id = ? AND size = ? AND size_unit = ?", styleID, size, sizeUnit).
		First(&variant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find variant %s/%s: %w", styleID, size, err)
	}
	return &variant, nil
}

func (s *GormStore) ListVariants(ctx context.Context, productID uint) ([]models.StyleVariant, error) {
	var variants []models.StyleVariant
	if err := s.db.WithContext(ctx).Where("product_id = ?", productID).Find(&variants).Error; err != nil {
		return nil, fmt.Errorf("list variants for product %d: %w", productID, err)
	}
	return variants, nil
}

func (s *GormStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("style_id asc").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *GormStore) ListActiveAccounts(ctx context.Context) ([]models.SyncAccount, error) {
	var accounts []models.SyncAccount
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (s *GormStore) MarkAccountSynced(ctx context.Context, accountID string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.SyncAccount{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{"last_synced_at": at, "last_error": ""}).Error
}

func (s *GormStore) RecordAccountError(ctx context.Context, accountID string, msg string) error {
	return s.db.WithContext(ctx).
		Model(&models.SyncAccount{}).
		Where("account_id = ?", accountID).
		Update("last_error", msg).Error
}

// isDuplicateKey detects a unique-index violation from the MySQL
// driver, with the GORM translated error as first choice.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}
