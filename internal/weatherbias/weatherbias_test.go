package weatherbias

import (
	"testing"
	"time"

	"github.com/mkallio/heatopt/internal/priceanalyzer"
)

func TestNoForecastYieldsNoWeatherToken(t *testing.T) {
	now := time.Now()
	got := Compute(5.0, nil, now, now)
	if got.ReasonToken != "no_weather" || got.BiasC != 0 {
		t.Errorf("expected zero bias with no_weather token, got %+v", got)
	}
}

func TestStaleForecastYieldsNoWeatherToken(t *testing.T) {
	now := time.Now()
	fetched := now.Add(-2 * time.Hour)
	forecast := []ForecastPoint{{Time: now.Add(time.Hour), OutdoorC: -5, Tier: priceanalyzer.TierCheap}}
	got := Compute(5.0, forecast, fetched, now)
	if got.ReasonToken != "no_weather" {
		t.Errorf("expected no_weather for a stale forecast, got %+v", got)
	}
}

func TestColdSnapDuringCheapWindowProducesPreheatBias(t *testing.T) {
	now := time.Now()
	forecast := []ForecastPoint{
		{Time: now.Add(1 * time.Hour), OutdoorC: -1, Tier: priceanalyzer.TierCheap},
	}
	got := Compute(5.0, forecast, now, now) // drop of 6C, cheap
	if got.BiasC != maxPreheatC {
		t.Errorf("expected max preheat bias %v, got %v", maxPreheatC, got.BiasC)
	}
	if got.ReasonToken != "weather_preheat" {
		t.Errorf("expected weather_preheat token, got %s", got.ReasonToken)
	}
}

func TestColdSnapDuringNormalWindowYieldsNoBias(t *testing.T) {
	now := time.Now()
	forecast := []ForecastPoint{
		{Time: now.Add(1 * time.Hour), OutdoorC: -1, Tier: priceanalyzer.TierNormal},
	}
	got := Compute(5.0, forecast, now, now)
	if got.BiasC != 0 {
		t.Errorf("expected zero bias without a cheap window, got %v", got.BiasC)
	}
}

func TestWarmSpellDuringExpensiveWindowProducesCoastBias(t *testing.T) {
	now := time.Now()
	forecast := []ForecastPoint{
		{Time: now.Add(1 * time.Hour), OutdoorC: 12, Tier: priceanalyzer.TierExpensive},
	}
	got := Compute(5.0, forecast, now, now) // rise of 7C, expensive
	if got.BiasC != -maxCoastC {
		t.Errorf("expected max coast bias %v, got %v", -maxCoastC, got.BiasC)
	}
	if got.ReasonToken != "weather_coast" {
		t.Errorf("expected weather_coast token, got %s", got.ReasonToken)
	}
}

func TestBiasNeverExceedsOverallBound(t *testing.T) {
	now := time.Now()
	forecast := []ForecastPoint{{Time: now.Add(time.Hour), OutdoorC: -50, Tier: priceanalyzer.TierVeryCheap}}
	got := Compute(10.0, forecast, now, now)
	if got.BiasC > maxBiasC || got.BiasC < -maxBiasC {
		t.Errorf("bias escaped its bound: %v", got.BiasC)
	}
}

func TestQualifyingDropDuringCheapWindowTriggersEvenWhenNotTheLargestDrop(t *testing.T) {
	now := time.Now()
	forecast := []ForecastPoint{
		{Time: now.Add(1 * time.Hour), OutdoorC: 1, Tier: priceanalyzer.TierNormal},  // drop of 4C, not cheap
		{Time: now.Add(2 * time.Hour), OutdoorC: 1.7, Tier: priceanalyzer.TierCheap}, // drop of 3.3C, cheap
	}
	got := Compute(5.0, forecast, now, now)
	if got.BiasC != maxPreheatC {
		t.Errorf("expected max preheat bias %v for a qualifying cheap-window drop, got %v", maxPreheatC, got.BiasC)
	}
	if got.ReasonToken != "weather_preheat" {
		t.Errorf("expected weather_preheat token, got %s", got.ReasonToken)
	}
}

func TestPointsOutsideHorizonAreIgnored(t *testing.T) {
	now := time.Now()
	forecast := []ForecastPoint{{Time: now.Add(10 * time.Hour), OutdoorC: -50, Tier: priceanalyzer.TierVeryCheap}}
	got := Compute(5.0, forecast, now, now)
	if got.BiasC != 0 {
		t.Errorf("expected zero bias when all points fall outside the horizon, got %+v", got)
	}
}
