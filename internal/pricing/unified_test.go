package pricing

import (
	"testing"
	"time"

	"resale-tracker/internal/currency"
	"resale-tracker/internal/fees"
	"resale-tracker/internal/models"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testReconciler() *Reconciler {
	return NewReconciler(fees.DefaultCalculator()).WithClock(func() time.Time { return testNow })
}

func usdRates() currency.RateSnapshot {
	return currency.RateSnapshot{
		UserCurrency: "USD",
		Rates:        map[string]float64{"EUR": 1.08},
		FetchedAt:    testNow,
	}
}

func snapshot(prov models.Provider, ask, bid *float64, status string, age time.Duration) *models.ProviderMarketSnapshot {
	return &models.ProviderMarketSnapshot{
		VariantID:  1,
		Provider:   prov,
		Currency:   "USD",
		LowestAsk:  ask,
		HighestBid: bid,
		Status:     status,
		UpdatedAt:  testNow.Add(-age),
	}
}

func f(v float64) *float64 { return &v }

func TestComputeUnifiedPriceBothProviders(t *testing.T) {
	r := testReconciler()
	input := SnapshotInput{
		StyleID: "DZ5485-612",
		Size:    "10",
		A:       snapshot(models.ProviderA, f(100), f(80), models.SnapshotAvailable, 10*time.Minute),
		B:       snapshot(models.ProviderB, f(90), f(85), models.SnapshotAvailable, 10*time.Minute),
	}

	view, err := r.ComputeUnifiedPrice(input, usdRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !view.HasPrice() {
		t.Fatal("expected a price")
	}
	if *view.Value != 90 {
		t.Errorf("value = %v, want 90 (the lower ask)", *view.Value)
	}
	if view.Source != models.ProviderB {
		t.Errorf("source = %s, want %s", view.Source, models.ProviderB)
	}
	if view.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s, want high", view.Confidence)
	}
}

func TestComputeUnifiedPriceSingleProvider(t *testing.T) {
	r := testReconciler()
	input := SnapshotInput{
		StyleID: "DZ5485-612",
		Size:    "10",
		A:       snapshot(models.ProviderA, f(120), nil, models.SnapshotAvailable, 10*time.Minute),
	}

	view, err := r.ComputeUnifiedPrice(input, usdRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *view.Value != 120 {
		t.Errorf("value = %v, want 120", *view.Value)
	}
	if view.Source != models.ProviderA {
		t.Errorf("source = %s, want %s", view.Source, models.ProviderA)
	}
	if view.Confidence != ConfidenceMedium {
		t.Errorf("confidence = %s, want medium", view.Confidence)
	}
}

func TestComputeUnifiedPriceNoListings(t *testing.T) {
	r := testReconciler()
	input := SnapshotInput{
		StyleID: "DZ5485-612",
		Size:    "10",
		A:       snapshot(models.ProviderA, nil, nil, models.SnapshotNoListing, 10*time.Minute),
		B:       snapshot(models.ProviderB, nil, nil, models.SnapshotNoListing, 10*time.Minute),
	}

	view, err := r.ComputeUnifiedPrice(input, usdRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.HasPrice() {
		t.Fatal("expected no price")
	}
	// "no listing" must stay distinguishable from "feed unreachable"
	for prov, pv := range view.Providers {
		if pv.Status != models.SnapshotNoListing {
			t.Errorf("%s status = %s, want no_listing", prov, pv.Status)
		}
	}
}

func TestComputeUnifiedPriceErrorForcesLowConfidence(t *testing.T) {
	r := testReconciler()
	// Provider A errored but its last known ask is the lower one
	input := SnapshotInput{
		StyleID: "DZ5485-612",
		Size:    "10",
		A:       snapshot(models.ProviderA, f(90), nil, models.SnapshotError, 10*time.Minute),
		B:       snapshot(models.ProviderB, f(100), nil, models.SnapshotAvailable, 10*time.Minute),
	}

	view, err := r.ComputeUnifiedPrice(input, usdRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *view.Value != 90 {
		t.Errorf("value = %v, want 90", *view.Value)
	}
	if view.Confidence != ConfidenceLow {
		t.Errorf("confidence = %s, want low when winning feed errored", view.Confidence)
	}
	if view.Providers[models.ProviderA].Freshness != FreshnessError {
		t.Errorf("error must override the freshness class, got %s", view.Providers[models.ProviderA].Freshness)
	}
}

func TestComputeUnifiedPriceStaleWinnerDowngrades(t *testing.T) {
	r := testReconciler()
	input := SnapshotInput{
		StyleID: "DZ5485-612",
		Size:    "10",
		A:       snapshot(models.ProviderA, f(90), nil, models.SnapshotAvailable, 48*time.Hour),
		B:       snapshot(models.ProviderB, f(100), nil, models.SnapshotAvailable, 10*time.Minute),
	}

	view, err := r.ComputeUnifiedPrice(input, usdRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Confidence != ConfidenceLow {
		t.Errorf("confidence = %s, want low for a stale winner", view.Confidence)
	}
}

func TestFreshnessClassification(t *testing.T) {
	r := testReconciler()

	tests := []struct {
		age  time.Duration
		want Freshness
	}{
		{30 * time.Minute, FreshnessLive},
		{59 * time.Minute, FreshnessLive},
		{2 * time.Hour, FreshnessRecent},
		{23 * time.Hour, FreshnessRecent},
		{25 * time.Hour, FreshnessStale},
		{30 * 24 * time.Hour, FreshnessStale},
	}

	for _, tt := range tests {
		input := SnapshotInput{
			A: snapshot(models.ProviderA, f(100), nil, models.SnapshotAvailable, tt.age),
		}
		view, err := r.ComputeUnifiedPrice(input, usdRates())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := view.Providers[models.ProviderA].Freshness; got != tt.want {
			t.Errorf("age %v: freshness = %s, want %s", tt.age, got, tt.want)
		}
	}
}

func TestComputeUnifiedPriceConvertsCurrencies(t *testing.T) {
	r := testReconciler()
	eurSnap := snapshot(models.ProviderB, f(100), f(90), models.SnapshotAvailable, 10*time.Minute)
	eurSnap.Currency = "EUR"
	input := SnapshotInput{
		StyleID: "DZ5485-612",
		Size:    "10",
		A:       snapshot(models.ProviderA, f(110), nil, models.SnapshotAvailable, 10*time.Minute),
		B:       eurSnap,
	}

	view, err := r.ComputeUnifiedPrice(input, usdRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 100 EUR converts to 108 USD, still below Provider A's 110
	if *view.Value != 108 {
		t.Errorf("value = %v, want 108", *view.Value)
	}
	pv := view.Providers[models.ProviderB]
	if pv.AskNative == nil || *pv.AskNative != 100 {
		t.Error("native ask must be carried for audit")
	}
	if pv.Bid == nil || *pv.Bid != 97.2 {
		t.Errorf("bid = %v, want 97.2 converted", pv.Bid)
	}
}

func TestComputeUnifiedPriceWithFees(t *testing.T) {
	calc := fees.NewCalculator(map[models.Provider]fees.Schedule{
		models.ProviderA: {},
		models.ProviderB: {},
	})
	r := NewReconciler(calc).WithClock(func() time.Time { return testNow })
	profile := fees.Profile{CommissionRate: 0.09, ShippingCost: 4}

	input := SnapshotInput{
		StyleID: "DZ5485-612",
		Size:    "10",
		A:       snapshot(models.ProviderA, f(100), nil, models.SnapshotAvailable, 10*time.Minute),
		B:       snapshot(models.ProviderB, f(95), nil, models.SnapshotAvailable, 10*time.Minute),
	}

	cost := &CostBasis{Amount: 60, Currency: "USD"}
	view, err := r.ComputeUnifiedPriceWithFees(input, cost, usdRates(), profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A nets 100 - 9 - 4 = 87, B nets 95 - 8.55 - 4 = 82.45
	if view.Best.Platform != models.ProviderA {
		t.Errorf("best platform = %s, want %s (by net, not by raw ask)", view.Best.Platform, models.ProviderA)
	}
	if view.Profit == nil || *view.Profit != 27 {
		t.Errorf("profit = %v, want 27 (87 - 60)", view.Profit)
	}
	if view.ProfitPct == nil || *view.ProfitPct != 45 {
		t.Errorf("profit pct = %v, want 45", view.ProfitPct)
	}
}

func TestComputeUnifiedPriceWithFeesNoCostBasis(t *testing.T) {
	r := testReconciler()
	input := SnapshotInput{
		StyleID: "DZ5485-612",
		Size:    "10",
		A:       snapshot(models.ProviderA, f(100), nil, models.SnapshotAvailable, 10*time.Minute),
	}

	view, err := r.ComputeUnifiedPriceWithFees(input, nil, usdRates(), fees.Profile{CommissionRate: 0.09})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Profit != nil || view.ProfitPct != nil {
		t.Error("profit must be nil without a cost basis")
	}
}
