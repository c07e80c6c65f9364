package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"resale-tracker/internal/models"
)

// MemoryStore implements Store with in-memory maps. Used by tests and
// local development; not durable.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    uint
	products  map[string]*models.Product                // style_id
	variants  map[string]*models.StyleVariant           // style|size|unit
	snapshots map[string]*models.ProviderMarketSnapshot // variant|provider|currency
	history   map[string]models.PriceHistoryRecord      // natural key
	sales     map[string]models.SaleRecord              // natural key
	accounts  map[string]*models.SyncAccount            // account_id
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:  make(map[string]*models.Product),
		variants:  make(map[string]*models.StyleVariant),
		snapshots: make(map[string]*models.ProviderMarketSnapshot),
		history:   make(map[string]models.PriceHistoryRecord),
		sales:     make(map[string]models.SaleRecord),
		accounts:  make(map[string]*models.SyncAccount),
	}
}

// AddAccount seeds an account row, for tests and local runs.
func (s *MemoryStore) AddAccount(acct models.SyncAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	acct.ID = s.nextID
	s.accounts[acct.AccountID] = &acct
}

// Account returns a copy of the stored account row.
func (s *MemoryStore) Account(accountID string) (models.SyncAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[accountID]
	if !ok {
		return models.SyncAccount{}, false
	}
	return *acct, true
}

func variantKey(styleID, size, sizeUnit string) string {
	return styleID + "|" + size + "|" + sizeUnit
}

func snapshotKey(variantID uint, prov models.Provider, cur string) string {
	return fmt.Sprintf("%d|%s|%s", variantID, prov, cur)
}

func historyKey(rec models.PriceHistoryRecord) string {
	return fmt.Sprintf("%d|%s|%s|%d", rec.VariantID, rec.Provider, rec.Currency, rec.RecordedAt.UTC().UnixNano())
}

func (s *MemoryStore) GetOrCreateProduct(_ context.Context, styleID string, attrs ProductAttrs) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.products[styleID]; ok {
		if p.Name == "" {
			p.Name = attrs.Name
		}
		if p.Brand == "" {
			p.Brand = attrs.Brand
		}
		if p.Colorway == "" {
			p.Colorway = attrs.Colorway
		}
		if p.ProviderAID == nil && attrs.ProviderAID != nil {
			p.ProviderAID = attrs.ProviderAID
		}
		if p.ProviderBID == nil && attrs.ProviderBID != nil {
			p.ProviderBID = attrs.ProviderBID
		}
		cp := *p
		return &cp, nil
	}

	s.nextID++
	p := &models.Product{
		ID:          s.nextID,
		StyleID:     styleID,
		Name:        attrs.Name,
		Brand:       attrs.Brand,
		Colorway:    attrs.Colorway,
		ProviderAID: attrs.ProviderAID,
		ProviderBID: attrs.ProviderBID,
		CreatedAt:   time.Now(),
	}
	s.products[styleID] = p
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetOrCreateVariant(_ context.Context, productID uint, styleID, size, sizeUnit string) (*models.StyleVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := variantKey(styleID, size, sizeUnit)
	if v, ok := s.variants[key]; ok {
		cp := *v
		return &cp, nil
	}

	s.nextID++
	v := &models.StyleVariant{
		ID:        s.nextID,
		ProductID: productID,
		StyleID:   styleID,
		Size:      size,
		SizeUnit:  sizeUnit,
		CreatedAt: time.Now(),
	}
	s.variants[key] = v
	cp := *v
	return &cp, nil
}

func (s *MemoryStore) SetVariantProviderRef(_ context.Context, variantID uint, prov models.Provider, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.variants {
		if v.ID != variantID {
			continue
		}
		if prov == models.ProviderA && v.ProviderAVariant == nil {
			v.ProviderAVariant = &ref
		}
		if prov == models.ProviderB && v.ProviderBVariant == nil {
			v.ProviderBVariant = &ref
		}
		return nil
	}
	return fmt.Errorf("variant %d not found", variantID)
}

func (s *MemoryStore) UpsertSnapshotIfNewer(_ context.Context, snap models.ProviderMarketSnapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := snapshotKey(snap.VariantID, snap.Provider, snap.Currency)
	existing, ok := s.snapshots[key]
	if ok && snap.UpdatedAt.Before(existing.UpdatedAt) {
		return false, nil
	}
	if ok {
		snap.ID = existing.ID
	} else {
		s.nextID++
		snap.ID = s.nextID
	}
	cp := snap
	s.snapshots[key] = &cp
	return true, nil
}

func (s *MemoryStore) MarkSnapshotError(_ context.Context, variantID uint, prov models.Provider, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range s.snapshots {
		if snap.VariantID == variantID && snap.Provider == prov {
			snap.Status = models.SnapshotError
			snap.LastError = msg
		}
	}
	return nil
}

func (s *MemoryStore) AppendPriceHistory(_ context.Context, rec models.PriceHistoryRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey(rec)
	if _, ok := s.history[key]; ok {
		return false, nil
	}
	s.nextID++
	rec.ID = s.nextID
	s.history[key] = rec
	return true, nil
}

func (s *MemoryStore) AppendSale(_ context.Context, rec models.SaleRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.NaturalKey()
	if _, ok := s.sales[key]; ok {
		return false, nil
	}
	s.nextID++
	rec.ID = s.nextID
	s.sales[key] = rec
	return true, nil
}

func (s *MemoryStore) LatestSnapshots(_ context.Context, variantID uint) (map[models.Provider]*models.ProviderMarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.Provider]*models.ProviderMarketSnapshot)
	for _, snap := range s.snapshots {
		if snap.VariantID == variantID {
			cp := *snap
			out[snap.Provider] = &cp
		}
	}
	return out, nil
}

func (s *MemoryStore) FindVariant(_ context.Context, styleID, size, sizeUnit string) (*models.StyleVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.variants[variantKey(styleID, size, sizeUnit)]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListVariants(_ context.Context, productID uint) ([]models.StyleVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.StyleVariant
	for _, v := range s.variants {
		if v.ProductID == productID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	return out, nil
}

func (s *MemoryStore) ListActiveAccounts(_ context.Context) ([]models.SyncAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SyncAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.IsActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkAccountSynced(_ context.Context, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s not found", accountID)
	}
	t := at
	acct.LastSyncedAt = &t
	acct.LastError = ""
	return nil
}

func (s *MemoryStore) RecordAccountError(_ context.Context, accountID string, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s not found", accountID)
	}
	acct.LastError = msg
	return nil
}

// SaleCount reports stored sale rows, used by ingestion tests.
func (s *MemoryStore) SaleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sales)
}

// HistoryCount reports stored history rows.
func (s *MemoryStore) HistoryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}
