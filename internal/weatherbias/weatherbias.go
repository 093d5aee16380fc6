// Package weatherbias turns a short-horizon outdoor-temperature forecast
// into a small, bounded setpoint bias: preheat ahead of an incoming cold
// snap during a near-term cheap window, coast ahead of a warm spell during a
// near-term expensive window.
package weatherbias

import (
	"time"

	"github.com/mkallio/heatopt/internal/priceanalyzer"
)

const (
	maxBiasC      = 0.7
	maxPreheatC   = 0.5
	maxCoastC     = 0.3
	staleAfter    = time.Hour
	forecastSpan  = 6 * time.Hour
	dropThreshold = 3.0 // °C
)

// ForecastPoint is one hourly outdoor-temperature forecast entry.
type ForecastPoint struct {
	Time     time.Time
	OutdoorC float64
	Tier     priceanalyzer.Tier // price tier expected at that hour, if known
}

// Result carries the computed bias plus a reason token for the decision
// trace; ReasonToken is "no_weather" whenever the bias could not be computed
// from live data.
type Result struct {
	BiasC       float64
	ReasonToken string
}

// Compute derives the bounded weather bias per the design: up to +0.5°C
// preheat when the outdoor temperature is expected to drop at least
// dropThreshold during a near-term cheap window, up to -0.3°C coast when it
// is expected to rise at least dropThreshold during a near-term expensive
// window. fetchedAt is when the forecast was retrieved; if now-fetchedAt
// exceeds staleAfter, or there is no forecast, the bias is 0 with reason
// "no_weather".
func Compute(currentOutdoorC float64, forecast []ForecastPoint, fetchedAt, now time.Time) Result {
	if len(forecast) == 0 || now.Sub(fetchedAt) > staleAfter {
		return Result{BiasC: 0, ReasonToken: "no_weather"}
	}

	horizon := now.Add(forecastSpan)
	var minDrop, maxRise float64
	var cheapDrop, expensiveRise bool

	for _, p := range forecast {
		if p.Time.Before(now) || p.Time.After(horizon) {
			continue
		}
		delta := currentOutdoorC - p.OutdoorC // positive: colder than now
		if delta > minDrop {
			minDrop = delta
		}
		if delta >= dropThreshold && isCheapTier(p.Tier) {
			cheapDrop = true
		}

		rise := -delta
		if rise > maxRise {
			maxRise = rise
		}
		if rise >= dropThreshold && isExpensiveTier(p.Tier) {
			expensiveRise = true
		}
	}

	var bias float64
	token := "weather_neutral"

	switch {
	case minDrop >= dropThreshold && cheapDrop:
		bias = maxPreheatC
		token = "weather_preheat"
	case maxRise >= dropThreshold && expensiveRise:
		bias = -maxCoastC
		token = "weather_coast"
	}

	bias = clamp(bias, -maxBiasC, maxBiasC)
	return Result{BiasC: bias, ReasonToken: token}
}

func isCheapTier(t priceanalyzer.Tier) bool {
	return t == priceanalyzer.TierCheap || t == priceanalyzer.TierVeryCheap
}

func isExpensiveTier(t priceanalyzer.Tier) bool {
	return t == priceanalyzer.TierExpensive || t == priceanalyzer.TierVeryExpensive
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
