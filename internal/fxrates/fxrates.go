// Package fxrates produces the FX-rate snapshots the converter and
// reconciler consume. Rates come from a configurable HTTP endpoint,
// with a static fallback so the engine keeps answering when the feed
// is down.
package fxrates

import (
	"fmt"
	"log"
	"sync"
	"time"

	"resale-tracker/internal/currency"

	"github.com/go-resty/resty/v2"
)

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Fetcher pulls rate snapshots and caches the last good one.
type Fetcher struct {
	client       *resty.Client
	url          string
	userCurrency string
	ttl          time.Duration

	mu     sync.RWMutex
	cached *currency.RateSnapshot
}

// NewFetcher builds a fetcher for the given endpoint. url may be
// empty; Snapshot then always serves the static fallback.
func NewFetcher(url, userCurrency string) *Fetcher {
	return &Fetcher{
		client:       resty.New().SetTimeout(15 * time.Second),
		url:          url,
		userCurrency: userCurrency,
		ttl:          time.Hour,
	}
}

// Snapshot returns the current rate snapshot, refreshing from the
// endpoint when the cached one has expired. A fetch failure falls back
// to the last good snapshot, then to the static rates.
func (f *Fetcher) Snapshot() currency.RateSnapshot {
	f.mu.RLock()
	cached := f.cached
	f.mu.RUnlock()

	if cached != nil && time.Since(cached.FetchedAt) < f.ttl {
		return *cached
	}

	snap, err := f.fetch()
	if err != nil {
		log.Printf("[FX Rates] fetch failed: %v", err)
		if cached != nil {
			return *cached
		}
		return fallbackSnapshot(f.userCurrency)
	}

	f.mu.Lock()
	f.cached = &snap
	f.mu.Unlock()
	return snap
}

func (f *Fetcher) fetch() (currency.RateSnapshot, error) {
	if f.url == "" {
		return currency.RateSnapshot{}, fmt.Errorf("no FX endpoint configured")
	}

	var body ratesResponse
	resp, err := f.client.R().
		SetQueryParam("base", f.userCurrency).
		SetResult(&body).
		Get(f.url)
	if err != nil {
		return currency.RateSnapshot{}, fmt.Errorf("request FX rates: %w", err)
	}
	if resp.StatusCode() != 200 {
		return currency.RateSnapshot{}, fmt.Errorf("FX endpoint returned %d", resp.StatusCode())
	}
	if len(body.Rates) == 0 {
		return currency.RateSnapshot{}, fmt.Errorf("FX endpoint returned no rates")
	}

	// the endpoint reports user->foreign; the converter wants
	// foreign->user, so invert each leg
	rates := make(map[string]float64, len(body.Rates))
	for cur, rate := range body.Rates {
		if rate > 0 {
			rates[cur] = 1 / rate
		}
	}
	return currency.RateSnapshot{
		UserCurrency: f.userCurrency,
		Rates:        rates,
		FetchedAt:    time.Now(),
	}, nil
}

// fallbackSnapshot carries rough pinned rates for the legs the two
// feeds actually use, so conversion degrades instead of failing.
func fallbackSnapshot(userCurrency string) currency.RateSnapshot {
	rates := map[string]float64{}
	if userCurrency == "USD" {
		rates["EUR"] = 1.08
		rates["GBP"] = 1.27
	}
	return currency.RateSnapshot{
		UserCurrency: userCurrency,
		Rates:        rates,
		FetchedAt:    time.Now(),
	}
}
