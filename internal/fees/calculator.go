// Package fees computes platform-specific net seller proceeds and
// picks the platform that leaves the seller the most money.
package fees

import (
	"fmt"

	"resale-tracker/internal/currency"
	"resale-tracker/internal/models"
)

// Profile is the user-scoped fee configuration, immutable per call.
type Profile struct {
	SellerLevel    int     `json:"seller_level"`
	CommissionRate float64 `json:"commission_rate"` // fraction of gross, e.g. 0.09
	ShippingCost   float64 `json:"shipping_cost"`   // user currency
	Region         string  `json:"region"`
}

// Schedule holds the per-platform fee terms that are not user-scoped.
type Schedule struct {
	PaymentRate float64  `json:"payment_rate"` // payment processing, fraction of gross
	MinimumFee  *float64 `json:"minimum_fee"`  // commission floor, nil if none
}

// Proceeds is the full breakdown for one platform.
type Proceeds struct {
	Platform       models.Provider `json:"platform"`
	Gross          float64         `json:"gross"`
	Commission     float64         `json:"commission"`
	PaymentFee     float64         `json:"payment_fee"`
	ShippingCost   float64         `json:"shipping_cost"`
	NetNative      float64         `json:"net_native"`
	NetUser        float64         `json:"net_user"`
	NativeCurrency string          `json:"native_currency"`
	UserCurrency   string          `json:"user_currency"`
}

// Calculator applies per-platform fee schedules. Schedules are
// injected rather than read from package state so callers can pin the
// terms in effect at calculation time.
type Calculator struct {
	schedules map[models.Provider]Schedule
}

// NewCalculator builds a calculator over the given fee schedules.
func NewCalculator(schedules map[models.Provider]Schedule) *Calculator {
	return &Calculator{schedules: schedules}
}

// DefaultCalculator mirrors the published fee terms of the two feeds.
func DefaultCalculator() *Calculator {
	minA := 9.0
	return NewCalculator(map[models.Provider]Schedule{
		models.ProviderA: {PaymentRate: 0.03, MinimumFee: &minA},
		models.ProviderB: {PaymentRate: 0.029},
	})
}

// NetProceeds computes what the seller actually receives on one
// platform for a gross sale price in the platform's native currency.
// The commission is floored at the platform's minimum fee when one is
// defined.
func (c *Calculator) NetProceeds(gross float64, platform models.Provider, profile Profile, nativeCurrency string, rates currency.RateSnapshot) (Proceeds, error) {
	sched := c.schedules[platform]

	commission := gross * profile.CommissionRate
	if sched.MinimumFee != nil && commission < *sched.MinimumFee {
		commission = *sched.MinimumFee
	}
	paymentFee := gross * sched.PaymentRate

	// shipping is configured in the user currency; express it in the
	// platform's native currency before subtracting
	shippingNative, err := rates.ConvertBack(profile.ShippingCost, nativeCurrency)
	if err != nil {
		return Proceeds{}, fmt.Errorf("convert shipping cost: %w", err)
	}

	netNative := currency.RoundCents(gross - commission - paymentFee - shippingNative)
	netUser, err := rates.Convert(netNative, nativeCurrency)
	if err != nil {
		return Proceeds{}, fmt.Errorf("convert net proceeds: %w", err)
	}

	return Proceeds{
		Platform:       platform,
		Gross:          gross,
		Commission:     currency.RoundCents(commission),
		PaymentFee:     currency.RoundCents(paymentFee),
		ShippingCost:   currency.RoundCents(shippingNative),
		NetNative:      netNative,
		NetUser:        netUser,
		NativeCurrency: nativeCurrency,
		UserCurrency:   rates.UserCurrency,
	}, nil
}

// Choice reports which platform nets the seller more.
type Choice struct {
	Platform models.Provider `json:"platform"`
	Proceeds *Proceeds       `json:"proceeds"`
	// Advantage is winner minus runner-up in user currency; 0 when
	// only one platform has data, nil when neither does.
	Advantage *float64 `json:"advantage"`
}

// BestPlatform picks the strictly greater net proceeds. Ties go to
// Provider A, the default listing order.
func BestPlatform(a, b *Proceeds) Choice {
	switch {
	case a == nil && b == nil:
		return Choice{}
	case b == nil:
		zero := 0.0
		return Choice{Platform: a.Platform, Proceeds: a, Advantage: &zero}
	case a == nil:
		zero := 0.0
		return Choice{Platform: b.Platform, Proceeds: b, Advantage: &zero}
	}

	if b.NetUser > a.NetUser {
		adv := currency.RoundCents(b.NetUser - a.NetUser)
		return Choice{Platform: b.Platform, Proceeds: b, Advantage: &adv}
	}
	adv := currency.RoundCents(a.NetUser - b.NetUser)
	return Choice{Platform: a.Platform, Proceeds: a, Advantage: &adv}
}
