// Package priceanalyzer classifies the current electricity price against a
// forward 24h window using percentile tiers. It never does its own I/O; the
// caller supplies the already-fetched price series and a tzclock.Clock so
// the window is DST-aware.
package priceanalyzer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mkallio/heatopt/internal/herrors"
	"github.com/mkallio/heatopt/internal/tzclock"
)

// Tier is the classification bucket a price falls into.
type Tier string

const (
	TierVeryCheap     Tier = "very_cheap"
	TierCheap         Tier = "cheap"
	TierNormal        Tier = "normal"
	TierExpensive     Tier = "expensive"
	TierVeryExpensive Tier = "very_expensive"
)

// PricePoint is one hour-aligned entry in a price series. PriceMinor is the
// price in currency minor units per kWh, to avoid float drift.
type PricePoint struct {
	Time       time.Time
	PriceMinor int64
	Currency   string
}

// Classification is the result of one Classify call.
type Classification struct {
	CurrentPrice   int64
	PercentileRank float64
	Tier           Tier
	WindowMin      int64
	WindowMax      int64
	Window         []PricePoint
}

// Classify filters series to the DST-aware window [now, now+24h) via clock,
// ranks against every entry in that window, and classifies the current price (the first window entry at
// or after now) into a tier.
//
// pCheap is the user-configured cheap percentile in (0, 0.5]; m is the
// adaptive cheapTierMultiplier in [0.5, 1.5] (default 1.0).
func Classify(series []PricePoint, now time.Time, clock *tzclock.Clock, pCheap, m float64) (Classification, error) {
	if len(series) == 0 {
		return Classification{}, fmt.Errorf("priceanalyzer: empty series")
	}

	newest := series[0].Time
	for _, p := range series {
		if p.Time.After(newest) {
			newest = p.Time
		}
	}
	if now.Sub(newest) > 2*time.Hour {
		return Classification{}, herrors.New(herrors.KindStaleData, "stale_prices", herrors.ErrStalePrices)
	}

	start, end := clock.WindowHoursAhead(now, 24)

	window := make([]PricePoint, 0, len(series))
	for _, p := range series {
		if p.Time.Before(start) || !p.Time.Before(end) {
			continue
		}
		if math.IsNaN(float64(p.PriceMinor)) || math.IsInf(float64(p.PriceMinor), 0) {
			continue
		}
		window = append(window, p)
	}
	if len(window) == 0 {
		return Classification{}, fmt.Errorf("priceanalyzer: no valid points in forward window")
	}

	sort.Slice(window, func(i, j int) bool { return window[i].Time.Before(window[j].Time) })

	prices := make([]int64, len(window))
	for i, p := range window {
		prices[i] = p.PriceMinor
	}
	sorted := append([]int64(nil), prices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	// current price: the window entry with time <= now closest to now, or
	// the first entry if now is before the window starts.
	current := window[0].PriceMinor
	for _, p := range window {
		if !p.Time.After(now) {
			current = p.PriceMinor
		}
	}

	rank := percentileRank(sorted, current)
	tier := classifyTier(rank, pCheap, m)

	return Classification{
		CurrentPrice:   current,
		PercentileRank: rank,
		Tier:           tier,
		WindowMin:      sorted[0],
		WindowMax:      sorted[len(sorted)-1],
		Window:         window,
	}, nil
}

// WindowTiers classifies every entry of c.Window against the same sorted
// percentile distribution Classify used for the current price, in window
// order. Callers that need "how many of the next N hours are cheap" (the
// decision engine's preheat/coast triggers) slice the result themselves.
func WindowTiers(c Classification, pCheap, m float64) []Tier {
	if len(c.Window) == 0 {
		return nil
	}
	prices := make([]int64, len(c.Window))
	for i, p := range c.Window {
		prices[i] = p.PriceMinor
	}
	sorted := append([]int64(nil), prices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	tiers := make([]Tier, len(c.Window))
	for i, p := range c.Window {
		rank := percentileRank(sorted, p.PriceMinor)
		tiers[i] = classifyTier(rank, pCheap, m)
	}
	return tiers
}

// percentileRank returns the fraction of sorted values <= v, in [0,1].
func percentileRank(sorted []int64, v int64) float64 {
	count := 0
	for _, s := range sorted {
		if s <= v {
			count++
		}
	}
	return float64(count) / float64(len(sorted))
}

func classifyTier(rank, pCheap, m float64) Tier {
	switch {
	case rank <= pCheap*m:
		return TierVeryCheap
	case rank <= 2*pCheap:
		return TierCheap
	case rank >= 1-pCheap:
		return TierVeryExpensive
	case rank >= 1-2*pCheap:
		return TierExpensive
	default:
		return TierNormal
	}
}
