// Package hotwater learns the household's hot-water draw pattern from
// bounded 5-minute consumption samples, condensing them into an
// hour-of-day/day-of-week demand table capped well under the footprint the
// design allows for persisted learning state.
package hotwater

import (
	"math"
	"sort"
	"time"
)

// Sample is one consumption reading, taken at most every 5 minutes.
type Sample struct {
	Timestamp      time.Time
	ConsumptionKWh float64
}

const (
	maxRawSamples  = 2016 // 7 days at 5-minute resolution
	condenseAfter  = 7 * 24 * time.Hour
	dedupThreshold = 0.01 // kWh; samples within this delta of the prior one are dropped
)

// Learner accumulates raw samples, condenses them into hourly demand
// buckets, and answers demand predictions and peak-hour queries.
type Learner struct {
	raw []Sample

	hourlyDemand  [24]float64
	byDayOfWeek   [7][24]float64
	sampleCounts  [7][24]int
	totalSamples  int
}

// NewLearner returns an empty learner.
func NewLearner() *Learner { return &Learner{} }

// State is the serializable snapshot of a Learner's folded demand tables and
// still-raw samples, for persisting and restoring across a restart the same
// way thermal.Model persists its Characteristics.
type State struct {
	Raw          []Sample
	HourlyDemand [24]float64
	ByDayOfWeek  [7][24]float64
	SampleCounts [7][24]int
	TotalSamples int
}

// State returns the learner's current state for persistence.
func (l *Learner) State() State {
	return State{
		Raw:          append([]Sample(nil), l.raw...),
		HourlyDemand: l.hourlyDemand,
		ByDayOfWeek:  l.byDayOfWeek,
		SampleCounts: l.sampleCounts,
		TotalSamples: l.totalSamples,
	}
}

// LoadState restores a previously persisted state, e.g. on process startup.
func (l *Learner) LoadState(s State) {
	l.raw = append([]Sample(nil), s.Raw...)
	l.hourlyDemand = s.HourlyDemand
	l.byDayOfWeek = s.ByDayOfWeek
	l.sampleCounts = s.SampleCounts
	l.totalSamples = s.TotalSamples
}

// AddSample appends a reading, deduplicating against the immediately prior
// sample by consumption delta (vendor polling sometimes repeats a reading)
// and dropping the oldest once the raw ring exceeds its bound.
func (l *Learner) AddSample(s Sample) {
	if n := len(l.raw); n > 0 {
		prev := l.raw[n-1]
		delta := s.ConsumptionKWh - prev.ConsumptionKWh
		if delta < 0 {
			delta = -delta
		}
		if delta < dedupThreshold {
			return
		}
	}
	l.raw = append(l.raw, s)
	if len(l.raw) > maxRawSamples {
		l.raw = l.raw[len(l.raw)-maxRawSamples:]
	}
}

// Condense folds raw samples older than condenseAfter (relative to now) into
// the hourlyDemand/byDayOfWeek tables as a running mean, and drops them from
// the raw ring. Samples newer than the cutoff are kept raw for finer-grained
// near-term prediction.
func (l *Learner) Condense(now time.Time) {
	cutoff := now.Add(-condenseAfter)
	var kept []Sample
	for _, s := range l.raw {
		if s.Timestamp.Before(cutoff) {
			l.fold(s)
		} else {
			kept = append(kept, s)
		}
	}
	l.raw = kept
}

func (l *Learner) fold(s Sample) {
	hour := s.Timestamp.Hour()
	dow := int(s.Timestamp.Weekday())

	l.sampleCounts[dow][hour]++
	n := float64(l.sampleCounts[dow][hour])
	l.byDayOfWeek[dow][hour] += (s.ConsumptionKWh - l.byDayOfWeek[dow][hour]) / n

	l.totalSamples++
	hn := 0
	for d := 0; d < 7; d++ {
		hn += l.sampleCounts[d][hour]
	}
	l.hourlyDemand[hour] += (s.ConsumptionKWh - l.hourlyDemand[hour]) / float64(hn)
}

// Confidence is 0-100, rising with total folded samples and saturating once
// a full week of hourly buckets (168) have at least 4 observations each.
func (l *Learner) Confidence() int {
	credit := 0
	for d := 0; d < 7; d++ {
		for h := 0; h < 24; h++ {
			credit += min(l.sampleCounts[d][h], 4)
		}
	}
	pct := float64(credit) / (168.0 * 4.0) * 100.0
	if pct > 100 {
		pct = 100
	}
	return int(math.Round(pct))
}

// Predict returns the expected hot-water demand, normalized to the
// household's own peak hour so the result is a comparable demandScore in
// [0,1], for a given hour and day of week. Falls back to the hour-only
// aggregate when the specific day/hour bucket has no observations yet.
func (l *Learner) Predict(hour int, dow time.Weekday) float64 {
	raw := l.hourlyDemand[hour]
	if l.sampleCounts[int(dow)][hour] > 0 {
		raw = l.byDayOfWeek[int(dow)][hour]
	}
	peak := l.peakDemand()
	if peak <= 0 {
		return 0
	}
	score := raw / peak
	return clamp01(score)
}

func (l *Learner) peakDemand() float64 {
	var max float64
	for _, v := range l.hourlyDemand {
		if v > max {
			max = v
		}
	}
	return max
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PeakHoursNext returns the n hours (0-23) with the highest learned demand,
// ranked descending, ties broken by earlier hour first.
func (l *Learner) PeakHoursNext(n int) []int {
	type hd struct {
		hour   int
		demand float64
	}
	hds := make([]hd, 24)
	for h := 0; h < 24; h++ {
		hds[h] = hd{hour: h, demand: l.hourlyDemand[h]}
	}
	sort.SliceStable(hds, func(i, j int) bool {
		if hds[i].demand != hds[j].demand {
			return hds[i].demand > hds[j].demand
		}
		return hds[i].hour < hds[j].hour
	})
	if n > len(hds) {
		n = len(hds)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = hds[i].hour
	}
	return out
}
