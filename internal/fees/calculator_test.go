package fees

import (
	"testing"
	"time"

	"resale-tracker/internal/currency"
	"resale-tracker/internal/models"
)

func usdRates() currency.RateSnapshot {
	return currency.RateSnapshot{
		UserCurrency: "USD",
		Rates:        map[string]float64{"EUR": 1.08},
		FetchedAt:    time.Now(),
	}
}

// calculator with a zero payment rate and no minimum, so the math in
// the table is exactly gross - commission - shipping
func bareCalculator() *Calculator {
	return NewCalculator(map[models.Provider]Schedule{
		models.ProviderA: {},
		models.ProviderB: {},
	})
}

func TestNetProceeds(t *testing.T) {
	calc := bareCalculator()
	profile := Profile{CommissionRate: 0.09, ShippingCost: 4}

	got, err := calc.NetProceeds(100, models.ProviderA, profile, "USD", usdRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Commission != 9 {
		t.Errorf("commission = %v, want 9", got.Commission)
	}
	if got.NetNative != 87 {
		t.Errorf("net = %v, want 87 (100 - 9 - 4)", got.NetNative)
	}
	if got.NetUser != 87 {
		t.Errorf("net user = %v, want 87", got.NetUser)
	}
}

func TestNetProceedsMinimumFeeFloor(t *testing.T) {
	min := 9.0
	calc := NewCalculator(map[models.Provider]Schedule{
		models.ProviderA: {MinimumFee: &min},
	})
	profile := Profile{CommissionRate: 0.09}

	// 9% of 50 is 4.50, below the 9.00 floor
	got, err := calc.NetProceeds(50, models.ProviderA, profile, "USD", usdRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Commission != 9 {
		t.Errorf("commission = %v, want floored 9", got.Commission)
	}
	if got.NetNative != 41 {
		t.Errorf("net = %v, want 41", got.NetNative)
	}
}

func TestNetProceedsPaymentFee(t *testing.T) {
	calc := NewCalculator(map[models.Provider]Schedule{
		models.ProviderB: {PaymentRate: 0.03},
	})
	profile := Profile{CommissionRate: 0.10, ShippingCost: 5}

	got, err := calc.NetProceeds(200, models.ProviderB, profile, "USD", usdRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 200 - 20 commission - 6 payment - 5 shipping
	if got.NetNative != 169 {
		t.Errorf("net = %v, want 169", got.NetNative)
	}
}

func TestNetProceedsConvertsToUserCurrency(t *testing.T) {
	calc := bareCalculator()
	profile := Profile{CommissionRate: 0.10}

	got, err := calc.NetProceeds(100, models.ProviderB, profile, "EUR", usdRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.NetNative != 90 {
		t.Errorf("net native = %v, want 90", got.NetNative)
	}
	if got.NetUser != 97.2 {
		t.Errorf("net user = %v, want 97.2 (90 EUR at 1.08)", got.NetUser)
	}
}

func TestBestPlatform(t *testing.T) {
	a := &Proceeds{Platform: models.ProviderA, NetUser: 90}
	b := &Proceeds{Platform: models.ProviderB, NetUser: 95}

	tests := []struct {
		name          string
		a, b          *Proceeds
		wantPlatform  models.Provider
		wantAdvantage *float64
	}{
		{name: "b strictly greater", a: a, b: b, wantPlatform: models.ProviderB, wantAdvantage: ptrFloat(5)},
		{name: "a strictly greater", a: &Proceeds{Platform: models.ProviderA, NetUser: 99}, b: b, wantPlatform: models.ProviderA, wantAdvantage: ptrFloat(4)},
		{name: "tie goes to provider a", a: &Proceeds{Platform: models.ProviderA, NetUser: 95}, b: b, wantPlatform: models.ProviderA, wantAdvantage: ptrFloat(0)},
		{name: "only a has data", a: a, b: nil, wantPlatform: models.ProviderA, wantAdvantage: ptrFloat(0)},
		{name: "only b has data", a: nil, b: b, wantPlatform: models.ProviderB, wantAdvantage: ptrFloat(0)},
		{name: "neither has data", a: nil, b: nil, wantPlatform: "", wantAdvantage: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BestPlatform(tt.a, tt.b)
			if got.Platform != tt.wantPlatform {
				t.Errorf("platform = %q, want %q", got.Platform, tt.wantPlatform)
			}
			if (got.Advantage == nil) != (tt.wantAdvantage == nil) {
				t.Fatalf("advantage = %v, want %v", got.Advantage, tt.wantAdvantage)
			}
			if got.Advantage != nil && *got.Advantage != *tt.wantAdvantage {
				t.Errorf("advantage = %v, want %v", *got.Advantage, *tt.wantAdvantage)
			}
		})
	}
}

func ptrFloat(v float64) *float64 { return &v }
