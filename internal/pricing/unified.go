// Package pricing reconciles the two marketplace feeds into one
// trusted price per (style, size), grades how much that price can be
// trusted, and extends it with fee-aware net proceeds and realized
// profit. Everything here is deterministic and side-effect-free: the
// caller hands in already-persisted snapshots and an FX snapshot, and
// no I/O happens.
package pricing

import (
	"fmt"
	"time"

	"resale-tracker/internal/currency"
	"resale-tracker/internal/fees"
	"resale-tracker/internal/models"
)

// Confidence grades how much the reconciled price can be trusted.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"   // both feeds agree on having data
	ConfidenceMedium Confidence = "medium" // single feed
	ConfidenceLow    Confidence = "low"    // winning feed errored or went stale
)

// Freshness classifies the age of a provider snapshot.
type Freshness string

const (
	FreshnessLive   Freshness = "live"   // under an hour old
	FreshnessRecent Freshness = "recent" // under a day old
	FreshnessStale  Freshness = "stale"
	// FreshnessError replaces the age classification when the provider
	// itself reported a failure; error always wins over age.
	FreshnessError Freshness = "error"
)

const (
	liveWindow   = time.Hour
	recentWindow = 24 * time.Hour
)

// SnapshotInput carries the latest persisted snapshot per feed for one
// variant. A nil entry means nothing has ever been persisted for that
// feed.
type SnapshotInput struct {
	StyleID string
	Size    string
	A       *models.ProviderMarketSnapshot
	B       *models.ProviderMarketSnapshot
}

// ProviderView is the per-feed slice of a price view. Converted and
// native amounts are both carried so the original inputs stay
// auditable.
type ProviderView struct {
	Provider       models.Provider `json:"provider"`
	Ask            *float64        `json:"ask"`
	AskNative      *float64        `json:"ask_native"`
	Bid            *float64        `json:"bid"`
	BidNative      *float64        `json:"bid_native"`
	NativeCurrency string          `json:"native_currency"`
	Status         string          `json:"status"`
	Freshness      Freshness       `json:"freshness"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PriceView is the reconciled result. Value is nil when neither feed
// has a listing; that is "no price", which callers must distinguish
// from a feed error, so the per-provider statuses are always carried.
type PriceView struct {
	StyleID    string                           `json:"style_id"`
	Size       string                           `json:"size"`
	Value      *float64                         `json:"value"`
	Currency   string                           `json:"currency"`
	Source     models.Provider                  `json:"source,omitempty"`
	Confidence Confidence                       `json:"confidence,omitempty"`
	Providers  map[models.Provider]ProviderView `json:"providers"`
}

// HasPrice reports whether reconciliation produced a usable value.
func (v *PriceView) HasPrice() bool {
	return v != nil && v.Value != nil
}

// CostBasis is what the seller paid, in its original currency.
type CostBasis struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// PriceViewWithFees extends the reconciled view with per-platform net
// proceeds and profit against a cost basis.
type PriceViewWithFees struct {
	PriceView
	Proceeds  map[models.Provider]*fees.Proceeds `json:"proceeds"`
	Best      fees.Choice                        `json:"best"`
	CostBasis *float64                           `json:"cost_basis"` // user currency
	Profit    *float64                           `json:"profit"`
	ProfitPct *float64                           `json:"profit_pct"`
}

// Reconciler combines feed snapshots into unified price views. The fee
// calculator and clock are injected; there is no package state.
type Reconciler struct {
	fees *fees.Calculator
	now  func() time.Time
}

// NewReconciler builds a reconciler over the given fee calculator.
func NewReconciler(calc *fees.Calculator) *Reconciler {
	return &Reconciler{fees: calc, now: time.Now}
}

// WithClock pins the clock used for freshness classification. Tests
// use it to make age math deterministic.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// ComputeUnifiedPrice merges the two feeds into one trusted price.
//
//  1. Each feed's lowest ask is converted into the user currency.
//  2. Both present: the minimum wins, confidence high.
//  3. One present: it wins, confidence medium.
//  4. Neither present: Value stays nil ("no price", not an error).
//  5. Winning feed errored or stale: confidence drops to low.
//
// Bid data is carried through converted and native, independent of the
// ask-based winner.
func (r *Reconciler) ComputeUnifiedPrice(input SnapshotInput, rates currency.RateSnapshot) (*PriceView, error) {
	view := &PriceView{
		StyleID:   input.StyleID,
		Size:      input.Size,
		Currency:  rates.UserCurrency,
		Providers: make(map[models.Provider]ProviderView, 2),
	}

	type candidate struct {
		provider models.Provider
		ask      float64
		view     ProviderView
	}
	var candidates []candidate

	for _, snap := range []*models.ProviderMarketSnapshot{input.A, input.B} {
		if snap == nil {
			continue
		}
		pv, err := r.providerView(snap, rates)
		if err != nil {
			return nil, err
		}
		view.Providers[snap.Provider] = pv
		if pv.Ask != nil {
			candidates = append(candidates, candidate{provider: snap.Provider, ask: *pv.Ask, view: pv})
		}
	}

	switch len(candidates) {
	case 0:
		// no listing anywhere; statuses above tell callers whether that
		// is an empty market or an unreachable feed
		return view, nil
	case 1:
		view.Value = &candidates[0].ask
		view.Source = candidates[0].provider
		view.Confidence = ConfidenceMedium
	default:
		winner := candidates[0]
		if candidates[1].ask < winner.ask {
			winner = candidates[1]
		}
		view.Value = &winner.ask
		view.Source = winner.provider
		view.Confidence = ConfidenceHigh
	}

	// the winner's own health caps confidence
	winnerView := view.Providers[view.Source]
	if winnerView.Status == models.SnapshotError || winnerView.Freshness == FreshnessStale || winnerView.Freshness == FreshnessError {
		view.Confidence = ConfidenceLow
	}

	return view, nil
}

// ComputeUnifiedPriceWithFees reconciles the price, computes each
// platform's net proceeds from its own native ask, picks the best
// platform by net (not by raw ask), and reports realized profit
// against the cost basis. Profit is nil when no cost basis is given.
func (r *Reconciler) ComputeUnifiedPriceWithFees(input SnapshotInput, cost *CostBasis, rates currency.RateSnapshot, profile fees.Profile) (*PriceViewWithFees, error) {
	base, err := r.ComputeUnifiedPrice(input, rates)
	if err != nil {
		return nil, err
	}

	out := &PriceViewWithFees{
		PriceView: *base,
		Proceeds:  make(map[models.Provider]*fees.Proceeds, 2),
	}

	var pa, pb *fees.Proceeds
	for prov, pv := range base.Providers {
		if pv.AskNative == nil {
			continue
		}
		p, err := r.fees.NetProceeds(*pv.AskNative, prov, profile, pv.NativeCurrency, rates)
		if err != nil {
			return nil, fmt.Errorf("net proceeds for %s: %w", prov, err)
		}
		out.Proceeds[prov] = &p
		switch prov {
		case models.ProviderA:
			pa = &p
		case models.ProviderB:
			pb = &p
		}
	}

	out.Best = fees.BestPlatform(pa, pb)

	if cost != nil {
		costUser, err := rates.Convert(cost.Amount, cost.Currency)
		if err != nil {
			return nil, fmt.Errorf("convert cost basis: %w", err)
		}
		out.CostBasis = &costUser
		if out.Best.Proceeds != nil {
			profit := currency.RoundCents(out.Best.Proceeds.NetUser - costUser)
			out.Profit = &profit
			if costUser > 0 {
				pct := currency.RoundCents(profit / costUser * 100)
				out.ProfitPct = &pct
			}
		}
	}

	return out, nil
}

// providerView converts one snapshot into its per-feed view, applying
// the freshness rules. An upstream error overrides the age class.
func (r *Reconciler) providerView(snap *models.ProviderMarketSnapshot, rates currency.RateSnapshot) (ProviderView, error) {
	pv := ProviderView{
		Provider:       snap.Provider,
		NativeCurrency: snap.Currency,
		Status:         snap.Status,
		UpdatedAt:      snap.UpdatedAt,
		Freshness:      r.classify(snap.UpdatedAt),
	}
	if snap.Status == models.SnapshotError {
		pv.Freshness = FreshnessError
	}

	if snap.LowestAsk != nil {
		native := *snap.LowestAsk
		converted, err := rates.Convert(native, snap.Currency)
		if err != nil {
			return ProviderView{}, fmt.Errorf("convert %s ask: %w", snap.Provider, err)
		}
		pv.AskNative = &native
		pv.Ask = &converted
	}
	if snap.HighestBid != nil {
		native := *snap.HighestBid
		converted, err := rates.Convert(native, snap.Currency)
		if err != nil {
			return ProviderView{}, fmt.Errorf("convert %s bid: %w", snap.Provider, err)
		}
		pv.BidNative = &native
		pv.Bid = &converted
	}
	return pv, nil
}

func (r *Reconciler) classify(updatedAt time.Time) Freshness {
	age := r.now().Sub(updatedAt)
	switch {
	case age < liveWindow:
		return FreshnessLive
	case age < recentWindow:
		return FreshnessRecent
	default:
		return FreshnessStale
	}
}
