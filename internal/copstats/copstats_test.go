package copstats

import (
	"testing"
	"time"
)

func TestRingCapsAt31(t *testing.T) {
	var r Ring
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		r.Push(Snapshot{Timestamp: base.Add(time.Duration(i) * 24 * time.Hour)})
	}
	if len(r.Entries()) != ringCap {
		t.Errorf("expected ring capped at %d, got %d", ringCap, len(r.Entries()))
	}
	latest, ok := r.Latest()
	if !ok {
		t.Fatal("expected a latest entry")
	}
	if !latest.Timestamp.Equal(base.Add(39 * 24 * time.Hour)) {
		t.Errorf("latest entry is not the most recently pushed one: %v", latest.Timestamp)
	}
}

func TestCOPHandlesZeroConsumed(t *testing.T) {
	e := EnergyTotals{ProducedKWh: 5, ConsumedKWh: 0}
	cop := e.COP()
	if cop <= 0 {
		t.Errorf("expected a large positive COP from the epsilon floor, got %v", cop)
	}
}

func TestSeasonalDefaultMapping(t *testing.T) {
	var agg Aggregator
	agg.PushDaily(Snapshot{
		Timestamp: time.Now(),
		Heat:      EnergyTotals{ProducedKWh: 10, ConsumedKWh: 4},
		Water:     EnergyTotals{ProducedKWh: 6, ConsumedKWh: 3},
	})

	winter := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	got := agg.Seasonal(winter, SeasonalConfig{})
	if got != 2.5 {
		t.Errorf("expected heating COP 2.5 in January, got %v", got)
	}

	summer := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	got = agg.Seasonal(summer, SeasonalConfig{})
	if got != 2.0 {
		t.Errorf("expected DHW COP 2.0 in July, got %v", got)
	}
}

func TestSeasonalOverride(t *testing.T) {
	var agg Aggregator
	agg.PushDaily(Snapshot{
		Heat:  EnergyTotals{ProducedKWh: 10, ConsumedKWh: 5},
		Water: EnergyTotals{ProducedKWh: 20, ConsumedKWh: 5},
	})

	cfg := SeasonalConfig{Override: func(m time.Month) (bool, bool) {
		return false, true // always use DHW, even in winter
	}}

	winter := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	got := agg.Seasonal(winter, cfg)
	if got != 4.0 {
		t.Errorf("expected overridden DHW COP 4.0, got %v", got)
	}
}

func TestSeasonalNoDataReturnsZero(t *testing.T) {
	var agg Aggregator
	got := agg.Seasonal(time.Now(), SeasonalConfig{})
	if got != 0 {
		t.Errorf("expected 0 with no snapshots, got %v", got)
	}
}

func TestLoadEntriesRestoresLatest(t *testing.T) {
	var r Ring
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	r.LoadEntries([]Snapshot{
		{Timestamp: base},
		{Timestamp: base.Add(24 * time.Hour)},
	})
	latest, ok := r.Latest()
	if !ok {
		t.Fatal("expected a latest entry after LoadEntries")
	}
	if !latest.Timestamp.Equal(base.Add(24 * time.Hour)) {
		t.Errorf("latest entry = %v, want %v", latest.Timestamp, base.Add(24*time.Hour))
	}
}

func TestLoadEntriesCapsAtRingCap(t *testing.T) {
	var r Ring
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var entries []Snapshot
	for i := 0; i < 40; i++ {
		entries = append(entries, Snapshot{Timestamp: base.Add(time.Duration(i) * 24 * time.Hour)})
	}
	r.LoadEntries(entries)
	if len(r.Entries()) != ringCap {
		t.Errorf("expected restored ring capped at %d, got %d", ringCap, len(r.Entries()))
	}
}
