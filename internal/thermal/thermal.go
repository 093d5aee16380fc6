// Package thermal implements the online thermal characteristics estimator:
// a bounded sample buffer, hour-aggregate condensation for samples older
// than 30 days, and a weekly closed-form least-squares calibration that
// blends the new fit with the prior estimate.
package thermal

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Sample is one thermal observation, collected at most every 5 minutes.
type Sample struct {
	Timestamp     time.Time
	IndoorC       float64
	OutdoorC      float64
	SetpointC     float64
	HeatingActive bool
	WindMps       float64
	HasWeather    bool
}

// HourAggregate is a condensed hour of samples: the mean of each field plus
// the net indoor delta over the hour, which is what the regression fits.
type HourAggregate struct {
	HourStart     time.Time
	IndoorC       float64
	OutdoorC      float64
	SetpointC     float64
	WindMps       float64
	DeltaIndoorC  float64
	HeatingActive bool
}

// Characteristics is the persisted, learned thermal model of the home.
type Characteristics struct {
	HeatingRatePerHour float64
	CoolingRatePerHour float64
	OutdoorImpact      float64
	WindImpact         float64
	ThermalMass        float64
	LastUpdated        time.Time
	ModelConfidence    float64
}

const minAggregatesForFit = 24

// Model holds the bounded sample ring, the condensed aggregates, and the
// current Characteristics.
type Model struct {
	samples     []Sample
	aggregates  []HourAggregate
	chars       Characteristics
	maxSamples  int
}

// NewModel creates an empty model. Characteristics start at their zero
// value (confidence 0) until the first successful calibration.
func NewModel() *Model {
	return &Model{maxSamples: 20000}
}

// LoadCharacteristics restores previously persisted characteristics, e.g.
// after a process restart.
func (m *Model) LoadCharacteristics(c Characteristics) { m.chars = c }

// Characteristics returns the current learned characteristics.
func (m *Model) Characteristics() Characteristics { return m.chars }

// AddSample appends a new observation, dropping the oldest once the bounded
// ring is full.
func (m *Model) AddSample(s Sample) {
	m.samples = append(m.samples, s)
	if len(m.samples) > m.maxSamples {
		m.samples = m.samples[len(m.samples)-m.maxSamples:]
	}
}

// Condense moves samples older than the cutoff into hour-aggregates and
// removes them from the raw sample ring, keeping total storage bounded.
func (m *Model) Condense(cutoff time.Time) {
	var kept []Sample
	buckets := map[time.Time][]Sample{}

	for _, s := range m.samples {
		if s.Timestamp.Before(cutoff) {
			hour := s.Timestamp.Truncate(time.Hour)
			buckets[hour] = append(buckets[hour], s)
		} else {
			kept = append(kept, s)
		}
	}

	for hour, bucket := range buckets {
		m.aggregates = append(m.aggregates, aggregateHour(hour, bucket))
	}
	sort.Slice(m.aggregates, func(i, j int) bool {
		return m.aggregates[i].HourStart.Before(m.aggregates[j].HourStart)
	})

	m.samples = kept
}

func aggregateHour(hour time.Time, bucket []Sample) HourAggregate {
	sort.Slice(bucket, func(i, j int) bool { return bucket[i].Timestamp.Before(bucket[j].Timestamp) })

	var sumIndoor, sumOutdoor, sumSetpoint, sumWind float64
	heating := false
	for _, s := range bucket {
		sumIndoor += s.IndoorC
		sumOutdoor += s.OutdoorC
		sumSetpoint += s.SetpointC
		sumWind += s.WindMps
		heating = heating || s.HeatingActive
	}
	n := float64(len(bucket))
	delta := bucket[len(bucket)-1].IndoorC - bucket[0].IndoorC

	return HourAggregate{
		HourStart:     hour,
		IndoorC:       sumIndoor / n,
		OutdoorC:      sumOutdoor / n,
		SetpointC:     sumSetpoint / n,
		WindMps:       sumWind / n,
		DeltaIndoorC:  delta,
		HeatingActive: heating,
	}
}

// Calibrate requires at least minAggregatesForFit hour aggregates; it counts
// them and does not check that they are consecutive. With fewer, it leaves the characteristics unchanged and lowers
// modelConfidence by 5% (bounded at 0), per the design's weekly-calibration
// rule. With enough data it fits
//
//	ΔindoorC ≈ α·(setpointC − indoorC) − β·(indoorC − outdoorC) − γ·wind
//
// via ordinary least squares over the normal equations (gonum/mat), blends
// 0.2·fit + 0.8·prior, and raises confidence proportionally to sample count.
func (m *Model) Calibrate(now time.Time) (Characteristics, error) {
	if len(m.aggregates) < minAggregatesForFit {
		m.chars.ModelConfidence = max0(m.chars.ModelConfidence - 0.05)
		return m.chars, nil
	}

	rows := len(m.aggregates)
	X := mat.NewDense(rows, 3, nil)
	y := mat.NewVecDense(rows, nil)

	for i, a := range m.aggregates {
		X.Set(i, 0, a.SetpointC-a.IndoorC)
		X.Set(i, 1, a.IndoorC-a.OutdoorC)
		X.Set(i, 2, a.WindMps)
		y.SetVec(i, a.DeltaIndoorC)
	}

	coeffs, err := solveLeastSquares(X, y)
	if err != nil {
		m.chars.ModelConfidence = max0(m.chars.ModelConfidence - 0.05)
		return m.chars, nil
	}

	fitHeating := coeffs[0]
	fitOutdoor := -coeffs[1]
	fitWind := -coeffs[2]
	fitCooling := coeffs[1] // cooling rate tracks the outdoor-coupling term's magnitude
	fitMass := estimateThermalMass(m.aggregates)

	blended := Characteristics{
		HeatingRatePerHour: blend(m.chars.HeatingRatePerHour, fitHeating),
		CoolingRatePerHour: blend(m.chars.CoolingRatePerHour, fitCooling),
		OutdoorImpact:      blend(m.chars.OutdoorImpact, fitOutdoor),
		WindImpact:         blend(m.chars.WindImpact, fitWind),
		ThermalMass:        blend(m.chars.ThermalMass, fitMass),
		LastUpdated:        now,
		ModelConfidence:    min1(m.chars.ModelConfidence + float64(rows)/500.0),
	}

	m.chars = blended
	return m.chars, nil
}

// blend implements "new = 0.2·fit + 0.8·prior". For a zero prior (first
// calibration ever) the fit is taken in full so an empty model doesn't
// start locked near zero forever.
func blend(prior, fit float64) float64 {
	if prior == 0 {
		return fit
	}
	return 0.2*fit + 0.8*prior
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

// estimateThermalMass is a simple proxy: the inverse of the average
// absolute hourly indoor swing, scaled by a fixed reference — larger
// swings imply a lower thermal mass (the home responds faster).
func estimateThermalMass(aggs []HourAggregate) float64 {
	if len(aggs) == 0 {
		return 0
	}
	var sum float64
	for _, a := range aggs {
		d := a.DeltaIndoorC
		if d < 0 {
			d = -d
		}
		sum += d
	}
	avg := sum / float64(len(aggs))
	if avg == 0 {
		return 1.0
	}
	return 1.0 / avg
}

// solveLeastSquares solves the normal equations (X^T X) beta = X^T y.
func solveLeastSquares(X mat.Matrix, y mat.Vector) ([]float64, error) {
	var xtx mat.Dense
	xtx.Mul(X.T(), X)

	var xty mat.Dense
	xty.Mul(X.T(), y)

	var beta mat.Dense
	if err := beta.Solve(&xtx, &xty); err != nil {
		return nil, err
	}

	_, cols := beta.Dims()
	_ = cols
	out := make([]float64, beta.RawMatrix().Rows)
	for i := range out {
		out[i] = beta.At(i, 0)
	}
	return out, nil
}
