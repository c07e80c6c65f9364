package provider

import (
	"context"
	"sync"
	"time"

	"resale-tracker/internal/models"
)

// MockClient implements Client for testing. Responses and errors are
// scripted per product ref; calls are counted so tests can assert how
// far a run progressed.
type MockClient struct {
	ProviderName models.Provider

	mu        sync.Mutex
	Snapshots map[string]*ProductSnapshot
	Sales     map[string][]Sale
	// Errs maps productRef to the error FetchMarketSnapshot returns.
	Errs map[string]error
	// ErrAll, when set, fails every call (e.g. an account-wide 401).
	ErrAll error

	SnapshotCalls int
	SalesCalls    int
}

// NewMockClient creates an empty scripted client for the given feed.
func NewMockClient(name models.Provider) *MockClient {
	return &MockClient{
		ProviderName: name,
		Snapshots:    make(map[string]*ProductSnapshot),
		Sales:        make(map[string][]Sale),
		Errs:         make(map[string]error),
	}
}

func (m *MockClient) Name() models.Provider {
	return m.ProviderName
}

func (m *MockClient) FetchMarketSnapshot(_ context.Context, productRef string) (*ProductSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SnapshotCalls++
	if m.ErrAll != nil {
		return nil, m.ErrAll
	}
	if err, ok := m.Errs[productRef]; ok {
		return nil, err
	}
	snap, ok := m.Snapshots[productRef]
	if !ok {
		return nil, ErrNotMapped
	}
	return snap, nil
}

func (m *MockClient) FetchSalesHistory(_ context.Context, productRef, size string, _ time.Duration) ([]Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SalesCalls++
	if m.ErrAll != nil {
		return nil, m.ErrAll
	}
	return m.Sales[productRef+"|"+size], nil
}
