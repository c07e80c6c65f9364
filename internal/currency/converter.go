// Package currency converts provider-native amounts into the user's
// display currency using a timestamped FX-rate snapshot. It supports
// only the legs the snapshot carries; it is not a general N×N matrix.
package currency

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnsupportedPair is returned when a requested conversion leg is
// absent from the rate snapshot.
var ErrUnsupportedPair = errors.New("unsupported currency pair")

// RateSnapshot holds the rates needed to express amounts in the user
// currency. Rates maps a source currency to its rate into UserCurrency
// (1 unit of source = rate units of user currency).
type RateSnapshot struct {
	UserCurrency string             `json:"user_currency"`
	Rates        map[string]float64 `json:"rates"`
	FetchedAt    time.Time          `json:"fetched_at"`
}

// Convert returns amount expressed in the snapshot's user currency,
// rounded to cent precision. Pure function of its inputs.
func (r RateSnapshot) Convert(amount float64, from string) (float64, error) {
	if from == r.UserCurrency {
		return RoundCents(amount), nil
	}
	rate, ok := r.Rates[from]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%w: %s->%s", ErrUnsupportedPair, from, r.UserCurrency)
	}
	return RoundCents(amount * rate), nil
}

// ConvertBack expresses a user-currency amount in the given source
// currency using the inverse of the snapshot rate.
func (r RateSnapshot) ConvertBack(amount float64, to string) (float64, error) {
	if to == r.UserCurrency {
		return RoundCents(amount), nil
	}
	rate, ok := r.Rates[to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%w: %s->%s", ErrUnsupportedPair, r.UserCurrency, to)
	}
	return RoundCents(amount / rate), nil
}

// Supports reports whether the snapshot can convert from the given
// currency into the user currency.
func (r RateSnapshot) Supports(from string) bool {
	if from == r.UserCurrency {
		return true
	}
	rate, ok := r.Rates[from]
	return ok && rate > 0
}

// RoundCents rounds to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
