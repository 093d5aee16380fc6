// Package copstats aggregates coefficient-of-performance snapshots into
// daily/weekly/monthly bounded rings and exposes the seasonally-selected
// current value used as a decision-engine bias input.
package copstats

import "time"

const ringCap = 31

// EnergyTotals are the cumulative produced/consumed counters read from the
// device for one circuit (heating or DHW) over one period.
type EnergyTotals struct {
	ProducedKWh float64
	ConsumedKWh float64
}

// COP computes produced/consumed with an epsilon floor on the denominator.
func (e EnergyTotals) COP() float64 {
	const eps = 1e-6
	denom := e.ConsumedKWh
	if denom < eps {
		denom = eps
	}
	return e.ProducedKWh / denom
}

// Snapshot is one push into a ring: heating and DHW totals at a point in
// time.
type Snapshot struct {
	Timestamp time.Time
	Heat      EnergyTotals
	Water     EnergyTotals
}

// Ring is a fixed-capacity, oldest-evicted snapshot buffer.
type Ring struct {
	entries []Snapshot
}

func (r *Ring) Push(s Snapshot) {
	r.entries = append(r.entries, s)
	if len(r.entries) > ringCap {
		r.entries = r.entries[len(r.entries)-ringCap:]
	}
}

func (r *Ring) Entries() []Snapshot { return append([]Snapshot(nil), r.entries...) }

// LoadEntries restores a previously persisted ring, capping to ringCap in
// case the stored slice predates a capacity change.
func (r *Ring) LoadEntries(entries []Snapshot) {
	r.entries = append([]Snapshot(nil), entries...)
	if len(r.entries) > ringCap {
		r.entries = r.entries[len(r.entries)-ringCap:]
	}
}

func (r *Ring) Latest() (Snapshot, bool) {
	if len(r.entries) == 0 {
		return Snapshot{}, false
	}
	return r.entries[len(r.entries)-1], true
}

// Aggregator owns the three rings and knows how to select the seasonally
// relevant COP value.
type Aggregator struct {
	Daily   Ring
	Weekly  Ring
	Monthly Ring
}

// SeasonalConfig lets the user override the default Oct-Apr heating /
// May-Sep DHW season-to-circuit mapping.
type SeasonalConfig struct {
	// Override, if non-nil, is consulted first: Override(month) returns
	// (useHeatingCOP, true) to force a circuit for that calendar month, or
	// (_, false) to fall through to the default mapping.
	Override func(month time.Month) (useHeating bool, ok bool)
}

// PushDaily/PushWeekly/PushMonthly append a snapshot to the respective ring;
// the caller (orchestrator) decides when each local boundary has been
// crossed. The scheduler fires the daily snapshot at local 00:05 and the
// monthly one on the 1st at 00:15; the weekly snapshot is pushed by the
// weekly recalibration job (Sunday 02:00 local).
func (a *Aggregator) PushDaily(s Snapshot)   { a.Daily.Push(s) }
func (a *Aggregator) PushWeekly(s Snapshot)  { a.Weekly.Push(s) }
func (a *Aggregator) PushMonthly(s Snapshot) { a.Monthly.Push(s) }

// Seasonal returns the current seasonally-appropriate COP: heating COP for
// Oct-Apr, DHW COP for May-Sep, using the most recent daily snapshot. The
// mapping is overridable via cfg.Override.
func (a *Aggregator) Seasonal(now time.Time, cfg SeasonalConfig) float64 {
	latest, ok := a.Daily.Latest()
	if !ok {
		return 0
	}

	useHeating := defaultIsHeatingSeason(now.Month())
	if cfg.Override != nil {
		if forced, had := cfg.Override(now.Month()); had {
			useHeating = forced
		}
	}

	if useHeating {
		return latest.Heat.COP()
	}
	return latest.Water.COP()
}

func defaultIsHeatingSeason(m time.Month) bool {
	switch m {
	case time.October, time.November, time.December, time.January, time.February, time.March, time.April:
		return true
	default:
		return false
	}
}
