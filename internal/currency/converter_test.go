package currency

import (
	"errors"
	"math"
	"testing"
	"time"
)

func testSnapshot() RateSnapshot {
	return RateSnapshot{
		UserCurrency: "USD",
		Rates: map[string]float64{
			"EUR": 1.08,
			"GBP": 1.27,
		},
		FetchedAt: time.Now(),
	}
}

func TestConvert(t *testing.T) {
	rates := testSnapshot()

	tests := []struct {
		name    string
		amount  float64
		from    string
		want    float64
		wantErr bool
	}{
		{name: "eur to usd", amount: 100, from: "EUR", want: 108},
		{name: "gbp to usd", amount: 50, from: "GBP", want: 63.5},
		{name: "same currency passthrough", amount: 42.5, from: "USD", want: 42.5},
		{name: "unsupported leg", amount: 10, from: "JPY", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rates.Convert(tt.amount, tt.from)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				if !errors.Is(err, ErrUnsupportedPair) {
					t.Errorf("expected ErrUnsupportedPair, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Convert(%v, %s) = %v, want %v", tt.amount, tt.from, got, tt.want)
			}
		})
	}
}

func TestConvertRoundTrip(t *testing.T) {
	rates := testSnapshot()

	amounts := []float64{1, 99.99, 250, 1234.56}
	for _, amount := range amounts {
		converted, err := rates.Convert(amount, "EUR")
		if err != nil {
			t.Fatalf("convert: %v", err)
		}
		back, err := rates.ConvertBack(converted, "EUR")
		if err != nil {
			t.Fatalf("convert back: %v", err)
		}
		// cent tolerance: rounding happens on both legs
		if math.Abs(back-amount) > 0.01 {
			t.Errorf("round trip of %v drifted to %v", amount, back)
		}
	}
}

func TestConvertRejectsNonPositiveRate(t *testing.T) {
	rates := RateSnapshot{
		UserCurrency: "USD",
		Rates:        map[string]float64{"EUR": 0},
	}
	if _, err := rates.Convert(10, "EUR"); err == nil {
		t.Error("expected error for zero rate")
	}
}

func TestSupports(t *testing.T) {
	rates := testSnapshot()
	if !rates.Supports("EUR") {
		t.Error("EUR leg should be supported")
	}
	if !rates.Supports("USD") {
		t.Error("user currency is always supported")
	}
	if rates.Supports("JPY") {
		t.Error("JPY leg should not be supported")
	}
}
