// Package orchestrator wires every learner, adapter, and the decision and
// constraint layers together into the hourly optimization procedure and the
// weekly thermal recalibration procedure (§4.11), owning the only shared
// mutable surface: bounded storage, accessed exclusively from this package.
package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/mkallio/heatopt/internal/adaptive"
	"github.com/mkallio/heatopt/internal/config"
	"github.com/mkallio/heatopt/internal/constraintkernel"
	"github.com/mkallio/heatopt/internal/copstats"
	"github.com/mkallio/heatopt/internal/decision"
	"github.com/mkallio/heatopt/internal/devices"
	"github.com/mkallio/heatopt/internal/herrors"
	"github.com/mkallio/heatopt/internal/hotwater"
	"github.com/mkallio/heatopt/internal/priceanalyzer"
	"github.com/mkallio/heatopt/internal/priceprovider"
	"github.com/mkallio/heatopt/internal/savings"
	"github.com/mkallio/heatopt/internal/storage"
	"github.com/mkallio/heatopt/internal/thermal"
	"github.com/mkallio/heatopt/internal/timeline"
	"github.com/mkallio/heatopt/internal/tzclock"
	"github.com/mkallio/heatopt/internal/weather"
	"github.com/mkallio/heatopt/internal/weatherbias"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxHistoryEntries = 500

// OptimizationOutcome is one persisted hourly cycle result.
type OptimizationOutcome struct {
	ID           string
	Timestamp    time.Time
	ReasonTokens []string
	Zone1Applied float64
	Zone1Changed bool
	Zone2Applied *float64
	TankApplied  *float64
	SavingsMinor int64
	Skipped      bool
	SkipReason   string
}

// Health is the last-known health snapshot (§6 status()).
type Health struct {
	Healthy     bool
	LastError   string
	MemoryBytes int64
	QueueDepth  int
}

// Orchestrator owns all learners and the constraint kernel during a cycle,
// and is the only component that talks to storage.
type Orchestrator struct {
	cfg   config.RunConfig
	clock *tzclock.Clock
	store *storage.Store

	deviceAdapter devices.Adapter
	priceProvider priceprovider.Provider
	weatherProv   weather.Provider
	timelineSink  timeline.Sink
	logger        zerolog.Logger

	thermalModel *thermal.Model
	copAgg       *copstats.Aggregator
	adaptiveP    adaptive.Parameters
	hotWater     *hotwater.Learner

	mu              sync.Mutex
	lastChangeZ1    time.Time
	lastChangeZ2    time.Time
	lastChangeTank  time.Time
	zoneStateZ1     decision.ZoneState
	zoneStateZ2     decision.ZoneState
	zoneStateTank   decision.ZoneState
	lastHourRan     tzclock.LocalHourKey
	apiErrorsWindow []time.Time
	health          Health

	lastDhwCumulativeKWh float64
	lastDhwCumulativeDay int
}

// New builds an orchestrator from its collaborators, loading persisted
// learner state from storage.
func New(cfg config.RunConfig, clock *tzclock.Clock, store *storage.Store, deviceAdapter devices.Adapter, priceProvider priceprovider.Provider, weatherProv weather.Provider, sink timeline.Sink, logger zerolog.Logger) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:           cfg,
		clock:         clock,
		store:         store,
		deviceAdapter: deviceAdapter,
		priceProvider: priceProvider,
		weatherProv:   weatherProv,
		timelineSink:  sink,
		logger:        logger,
		thermalModel:  thermal.NewModel(),
		copAgg:        &copstats.Aggregator{},
		adaptiveP:     adaptive.Defaults(),
		hotWater:      hotwater.NewLearner(),
		zoneStateZ1:   decision.StateIdle,
		zoneStateZ2:   decision.StateIdle,
		zoneStateTank: decision.StateIdle,
	}

	var chars thermal.Characteristics
	if ok, err := store.Get(storage.KeyThermalCharacteristics, &chars); err == nil && ok {
		o.thermalModel.LoadCharacteristics(chars)
	}
	var params adaptive.Parameters
	if ok, err := store.Get(storage.KeyAdaptiveParameters, &params); err == nil && ok {
		o.adaptiveP = params
	}
	var dailyEntries []copstats.Snapshot
	if ok, err := store.Get(storage.KeyCOPDaily, &dailyEntries); err == nil && ok {
		o.copAgg.Daily.LoadEntries(dailyEntries)
	}
	var weeklyEntries []copstats.Snapshot
	if ok, err := store.Get(storage.KeyCOPWeekly, &weeklyEntries); err == nil && ok {
		o.copAgg.Weekly.LoadEntries(weeklyEntries)
	}
	var monthlyEntries []copstats.Snapshot
	if ok, err := store.Get(storage.KeyCOPMonthly, &monthlyEntries); err == nil && ok {
		o.copAgg.Monthly.LoadEntries(monthlyEntries)
	}
	var hwState hotwater.State
	if ok, err := store.Get(storage.KeyHotWaterPattern, &hwState); err == nil && ok {
		o.hotWater.LoadState(hwState)
	}

	return o, nil
}

// updateHealth records the outcome of the most recent cycle for the §6
// status() call: live process memory via runtime.MemStats and the current
// API-error backlog as the queue depth.
func (o *Orchestrator) updateHealth(healthy bool, lastErr string) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	o.mu.Lock()
	o.health = Health{
		Healthy:     healthy,
		LastError:   lastErr,
		MemoryBytes: int64(mem.Alloc),
		QueueDepth:  len(o.apiErrorsWindow),
	}
	o.mu.Unlock()
}

// ingestHotWaterSample feeds the hot-water learner from the device's
// cumulative daily DHW-consumption counter, converting it to a per-cycle
// delta since AddSample's dedup logic expects successive readings, not a
// resettable daily total. A lower cumulative value than last cycle's means
// the device's daily counter rolled over at local midnight.
func (o *Orchestrator) ingestHotWaterSample(now time.Time, dailyDhwConsumedKWh float64) {
	day := now.YearDay()
	delta := dailyDhwConsumedKWh
	if o.lastDhwCumulativeDay == day && dailyDhwConsumedKWh >= o.lastDhwCumulativeKWh {
		delta = dailyDhwConsumedKWh - o.lastDhwCumulativeKWh
	}
	o.lastDhwCumulativeKWh = dailyDhwConsumedKWh
	o.lastDhwCumulativeDay = day

	if delta <= 0 {
		return
	}
	o.hotWater.AddSample(hotwater.Sample{Timestamp: now, ConsumptionKWh: delta})
	o.hotWater.Condense(now)
	_ = o.store.Set(storage.KeyHotWaterPattern, o.hotWater.State())
}

// healthCheck implements step 1 of the hourly procedure.
func (o *Orchestrator) healthCheck(ctx context.Context, lastPriceFetch, lastDeviceSuccess time.Time) error {
	now := o.clock.NowLocal()

	if now.Sub(lastPriceFetch) >= 90*time.Minute {
		return herrors.New(herrors.KindStaleData, "stale_prices", herrors.ErrStalePrices)
	}
	if now.Sub(lastDeviceSuccess) >= 15*time.Minute {
		return herrors.New(herrors.KindTransientExternal, "device_unreachable", nil)
	}
	if err := config.Validate(o.cfg); err != nil {
		return err
	}

	o.mu.Lock()
	recent := 0
	cutoff := now.Add(-30 * time.Minute)
	kept := o.apiErrorsWindow[:0]
	for _, t := range o.apiErrorsWindow {
		if t.After(cutoff) {
			kept = append(kept, t)
			recent++
		}
	}
	o.apiErrorsWindow = kept
	o.mu.Unlock()

	if recent > 3 {
		return herrors.New(herrors.KindTransientExternal, "too_many_api_errors", nil)
	}
	return nil
}

func (o *Orchestrator) recordAPIError() {
	o.mu.Lock()
	o.apiErrorsWindow = append(o.apiErrorsWindow, time.Now())
	o.mu.Unlock()
}

// alreadyRanThisHour guards idempotency per the design's §5 requirement:
// repeated hourly triggers within the same local hour must not produce more
// than one device write per zone.
func (o *Orchestrator) alreadyRanThisHour(now time.Time) bool {
	key := o.clock.HourKey(now)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastHourRan == key {
		return true
	}
	o.lastHourRan = key
	return false
}

// RunHourly executes the full hourly procedure (§4.11, steps 1-9).
func (o *Orchestrator) RunHourly(ctx context.Context, lastPriceFetch, lastDeviceSuccess time.Time) (OptimizationOutcome, error) {
	now := o.clock.NowLocal()

	if o.alreadyRanThisHour(now) {
		return OptimizationOutcome{Timestamp: now, Skipped: true, SkipReason: "already_ran_this_hour"}, nil
	}

	if err := o.healthCheck(ctx, lastPriceFetch, lastDeviceSuccess); err != nil {
		o.updateHealth(false, err.Error())
		o.emit(ctx, "optimization skipped", err.Error())
		return OptimizationOutcome{Timestamp: now, Skipped: true, SkipReason: err.Error()}, nil
	}

	snap, err := o.deviceAdapter.Snapshot(ctx, o.cfg.DeviceID, o.cfg.BuildingID)
	if err != nil {
		o.recordAPIError()
		o.updateHealth(false, err.Error())
		o.emit(ctx, "optimization skipped", "device snapshot failed: "+err.Error())
		return OptimizationOutcome{Timestamp: now, Skipped: true, SkipReason: "device_snapshot_failed"}, nil
	}
	o.ingestHotWaterSample(now, snap.DailyDhwConsumedKWh)

	quote, err := o.priceProvider.GetPrices(ctx, now, o.cfg.CurrencyCode)
	if err != nil {
		o.recordAPIError()
		o.updateHealth(false, err.Error())
		o.emit(ctx, "optimization skipped", "price fetch failed: "+err.Error())
		return OptimizationOutcome{Timestamp: now, Skipped: true, SkipReason: "price_fetch_failed"}, nil
	}

	series := toPricePoints(quote)
	classification, err := priceanalyzer.Classify(series, now, o.clock, o.cfg.PreheatCheapPercentile, 1.0)
	if err != nil {
		o.updateHealth(false, err.Error())
		o.emit(ctx, "optimization skipped", "price classification failed: "+err.Error())
		return OptimizationOutcome{Timestamp: now, Skipped: true, SkipReason: "price_classification_failed"}, nil
	}

	params := o.adaptiveP.Blended()
	windowTiers := priceanalyzer.WindowTiers(classification, o.cfg.PreheatCheapPercentile, params.CheapTierMultiplier)
	nextSix := forwardTiers(classification.Window, windowTiers, now, 6)
	nextThree := forwardTiers(classification.Window, windowTiers, now, 3)
	tierByHour := tierLookup(classification.Window, windowTiers)

	var weatherBias weatherbias.Result
	if o.weatherProv != nil {
		if fc, fetchedAt, werr := o.weatherProv.Forecast(ctx, 0, 0); werr == nil {
			points := make([]weatherbias.ForecastPoint, 0, len(fc.Hourly))
			for _, h := range fc.Hourly {
				points = append(points, weatherbias.ForecastPoint{Time: h.Time, OutdoorC: h.TempC, Tier: tierByHour[h.Time.Truncate(time.Hour)]})
			}
			weatherBias = weatherbias.Compute(snap.Outdoor, points, fetchedAt, now)
		} else {
			weatherBias = weatherbias.Result{ReasonToken: "no_weather"}
		}
	}

	seasonalCOP := o.copAgg.Seasonal(now, copstats.SeasonalConfig{})

	z1Inputs := decision.ZoneInputs{
		Enabled:      true,
		ValidReading: true,
		IndoorC:      snap.IndoorZ1,
		CurrentSetC:  snap.SetpointZ1,
		Band:         decision.ComfortBand{LowerC: o.cfg.ComfortOccupied.LowerC, UpperC: o.cfg.ComfortOccupied.UpperC},
		Classification: classification,
		SeasonalCOP:    seasonalCOP,
		COPThresholds:  params.COPThresholds,
		COPWeight:      o.cfg.COPWeight,
		Thermal: decision.ThermalInputs{
			Confidence:             o.thermalModel.Characteristics().ModelConfidence,
			PreheatAggressiveness:  params.PreheatAggressiveness,
			CoastingReduction:      params.CoastingReduction,
		},
		WeatherBiasC:   weatherBias.BiasC,
		NextSixHours:   nextSix,
		NextThreeHours: nextThree,
	}

	z2Inputs := decision.ZoneInputs{}
	z2CurrentSet := snap.SetpointZ1
	if o.cfg.EnableZone2 {
		z2Inputs = z1Inputs
		z2Inputs.ValidReading = snap.IndoorZ2 != nil && validIndoor(*snap.IndoorZ2)
		if snap.IndoorZ2 != nil {
			z2Inputs.IndoorC = *snap.IndoorZ2
		}
		if snap.SetpointZ2 != nil {
			z2CurrentSet = *snap.SetpointZ2
			z2Inputs.CurrentSetC = z2CurrentSet
		}
		z2Inputs.Enabled = true
		z2Inputs.Band = decision.ComfortBand{LowerC: o.cfg.Zone2Occupied.LowerC, UpperC: o.cfg.Zone2Occupied.UpperC}
	}

	tankInputs := decision.TankInputs{}
	if o.cfg.EnableTankControl {
		valid := snap.TankTemp != nil && *snap.TankTemp >= 0 && *snap.TankTemp <= 90
		demandNext4h := 0.0
		for h := 0; h < 4; h++ {
			at := now.Add(time.Duration(h) * time.Hour)
			if d := o.hotWater.Predict(at.Hour(), at.Weekday()); d > demandNext4h {
				demandNext4h = d
			}
		}
		tankInputs = decision.TankInputs{
			Enabled:      true,
			ValidReading: valid,
			MinC:         o.cfg.TankMinC,
			MaxC:         o.cfg.TankMaxC,
			StepC:        o.cfg.TankStepC,
			DemandNext4h: demandNext4h,
			Tier:         classification.Tier,
		}
		if snap.TankTemp != nil {
			tankInputs.CurrentC = *snap.TankTemp
		}
	}

	proposal := decision.Propose(z1Inputs, z2Inputs, tankInputs, now)

	z1Result := constraintkernel.Apply(proposal.Zone1.TargetC, snap.SetpointZ1, constraintkernel.ZoneConstraints{
		MinC: o.cfg.ComfortAway.LowerC, MaxC: o.cfg.ComfortOccupied.UpperC,
		StepC: o.cfg.TempStepC, DeadbandC: o.cfg.DeadbandC, MinChangeMinutes: o.cfg.MinChangeMinutes,
	}, o.lastChangeZ1, now)

	outcome := OptimizationOutcome{ID: uuid.NewString(), Timestamp: now, ReasonTokens: proposal.ReasonTokens, Zone1Applied: z1Result.AppliedC, Zone1Changed: z1Result.Changed}

	if z1Result.Changed {
		if err := o.deviceAdapter.SetSetpoint(ctx, o.cfg.DeviceID, o.cfg.BuildingID, devices.ZoneOne, z1Result.AppliedC); err != nil {
			o.recordAPIError()
		} else {
			o.mu.Lock()
			o.lastChangeZ1 = now
			o.mu.Unlock()
		}
	}
	minChange := time.Duration(o.cfg.MinChangeMinutes) * time.Minute
	o.mu.Lock()
	o.zoneStateZ1 = decision.NextZoneState(o.zoneStateZ1, proposal.Zone1.Action, z1Result.LockoutActive, snap.IndoorZ1, o.cfg.ComfortOccupied.UpperC, classification.Tier, now.Sub(o.lastChangeZ1) >= minChange)
	o.mu.Unlock()

	var zone2Applied *float64
	if proposal.Zone2 != nil {
		z2Result := constraintkernel.Apply(proposal.Zone2.TargetC, z2CurrentSet, constraintkernel.ZoneConstraints{
			MinC: o.cfg.Zone2Away.LowerC, MaxC: o.cfg.Zone2Occupied.UpperC,
			StepC: o.cfg.Zone2StepC, DeadbandC: o.cfg.DeadbandC, MinChangeMinutes: o.cfg.MinChangeMinutes,
		}, o.lastChangeZ2, now)
		if z2Result.Changed {
			if err := o.deviceAdapter.SetSetpoint(ctx, o.cfg.DeviceID, o.cfg.BuildingID, devices.ZoneTwo, z2Result.AppliedC); err == nil {
				o.mu.Lock()
				o.lastChangeZ2 = now
				o.mu.Unlock()
			}
		}
		o.mu.Lock()
		o.zoneStateZ2 = decision.NextZoneState(o.zoneStateZ2, proposal.Zone2.Action, z2Result.LockoutActive, z2Inputs.IndoorC, o.cfg.Zone2Occupied.UpperC, classification.Tier, now.Sub(o.lastChangeZ2) >= minChange)
		o.mu.Unlock()
		zone2Applied = &z2Result.AppliedC
	}
	outcome.Zone2Applied = zone2Applied

	var tankApplied *float64
	if proposal.Tank != nil {
		tankResult := constraintkernel.Apply(proposal.Tank.TargetC, tankInputs.CurrentC, constraintkernel.ZoneConstraints{
			MinC: o.cfg.TankMinC, MaxC: o.cfg.TankMaxC,
			StepC: o.cfg.TankStepC, DeadbandC: o.cfg.TankStepC, MinChangeMinutes: o.cfg.MinChangeMinutes,
		}, o.lastChangeTank, now)
		if tankResult.Changed {
			if err := o.deviceAdapter.SetSetpoint(ctx, o.cfg.DeviceID, o.cfg.BuildingID, devices.ZoneTank, tankResult.AppliedC); err == nil {
				o.mu.Lock()
				o.lastChangeTank = now
				o.mu.Unlock()
			}
		}
		o.mu.Lock()
		o.zoneStateTank = decision.NextZoneState(o.zoneStateTank, proposal.Tank.Action, tankResult.LockoutActive, tankInputs.CurrentC, o.cfg.TankMaxC, classification.Tier, now.Sub(o.lastChangeTank) >= minChange)
		o.mu.Unlock()
		tankApplied = &tankResult.AppliedC
	}
	outcome.TankApplied = tankApplied

	kLoss := savings.KLossForSpace(o.thermalModel.Characteristics().CoolingRatePerHour, o.thermalModel.Characteristics().ModelConfidence)
	savingsResult := savings.HourlySavings(o.cfg.ComfortOccupied.UpperC, z1Result.AppliedC, savings.EnergyRateInputs{
		KLossKWhPerCPerHour: kLoss, PriceMinorPerKWh: classification.CurrentPrice,
	})
	outcome.SavingsMinor = savingsResult.SavingsMinor

	if err := o.persistOutcome(outcome); err != nil {
		return outcome, err
	}

	o.emit(ctx, "optimization cycle", fmt.Sprintf("zone1 applied %.1f°C, saved %d", z1Result.AppliedC, savingsResult.SavingsMinor))

	o.thermalModel.AddSample(thermal.Sample{
		Timestamp: now, IndoorC: snap.IndoorZ1, OutdoorC: snap.Outdoor, SetpointC: z1Result.AppliedC, HasWeather: o.weatherProv != nil,
	})
	o.adaptiveP = adaptive.Ingest(o.adaptiveP, adaptive.OutcomeFeedback{
		RealizedSavings: savingsResult.SavingsMinor,
	})
	_ = o.store.Set(storage.KeyAdaptiveParameters, o.adaptiveP)

	o.updateHealth(true, "")
	return outcome, nil
}

func (o *Orchestrator) persistOutcome(outcome OptimizationOutcome) error {
	var history []OptimizationOutcome
	_, _ = o.store.Get(storage.KeyOptimizationHistory, &history)
	history = append(history, outcome)
	if len(history) > maxHistoryEntries {
		history = history[len(history)-maxHistoryEntries:]
	}
	return o.store.Set(storage.KeyOptimizationHistory, history)
}

func (o *Orchestrator) emit(ctx context.Context, title, body string) {
	if o.timelineSink == nil {
		return
	}
	_ = o.timelineSink.Emit(ctx, timeline.Entry{Title: title, Body: body})
}

// RunWeekly executes the weekly thermal recalibration procedure, plus a
// weekly COP snapshot push against the same energy totals read.
func (o *Orchestrator) RunWeekly(ctx context.Context) error {
	now := o.clock.NowLocal()
	o.thermalModel.Condense(now.Add(-30 * 24 * time.Hour))
	chars, err := o.thermalModel.Calibrate(now)
	if err != nil {
		return err
	}
	if err := o.store.Set(storage.KeyThermalCharacteristics, chars); err != nil {
		return err
	}

	if err := o.pushCOPSnapshot(ctx, now, o.copAgg.PushWeekly, storage.KeyCOPWeekly, func() []copstats.Snapshot { return o.copAgg.Weekly.Entries() }); err != nil {
		o.logger.Warn().Err(err).Msg("weekly COP snapshot failed")
	}

	o.emit(ctx, "thermal calibration", fmt.Sprintf("confidence now %.2f", chars.ModelConfidence))
	return nil
}

// RunDailySnapshot pulls the device's cumulative daily energy totals and
// pushes a COP snapshot onto the daily ring, persisting it via
// storage.KeyCOPDaily so Seasonal has a live value to read.
func (o *Orchestrator) RunDailySnapshot(ctx context.Context) error {
	now := o.clock.NowLocal()
	return o.pushCOPSnapshot(ctx, now, o.copAgg.PushDaily, storage.KeyCOPDaily, func() []copstats.Snapshot { return o.copAgg.Daily.Entries() })
}

// RunMonthlySnapshot is RunDailySnapshot's monthly counterpart, pushing onto
// the monthly ring and persisting via storage.KeyCOPMonthly.
func (o *Orchestrator) RunMonthlySnapshot(ctx context.Context) error {
	now := o.clock.NowLocal()
	return o.pushCOPSnapshot(ctx, now, o.copAgg.PushMonthly, storage.KeyCOPMonthly, func() []copstats.Snapshot { return o.copAgg.Monthly.Entries() })
}

// pushCOPSnapshot reads the device's cumulative daily energy totals, pushes
// them onto the ring selected by push, and persists the ring's entries
// under key. The orchestrator, not copstats, decides which ring each cron
// boundary targets per copstats' own boundary-ownership contract.
func (o *Orchestrator) pushCOPSnapshot(ctx context.Context, now time.Time, push func(copstats.Snapshot), key string, entries func() []copstats.Snapshot) error {
	totals, err := o.deviceAdapter.EnergyTotalsDaily(ctx, o.cfg.DeviceID, o.cfg.BuildingID)
	if err != nil {
		o.recordAPIError()
		return err
	}
	snap := copstats.Snapshot{
		Timestamp: now,
		Heat:      copstats.EnergyTotals{ProducedKWh: totals.HeatProducedKWh, ConsumedKWh: totals.HeatConsumedKWh},
		Water:     copstats.EnergyTotals{ProducedKWh: totals.DhwProducedKWh, ConsumedKWh: totals.DhwConsumedKWh},
	}
	push(snap)
	if err := o.store.Set(key, entries()); err != nil {
		return err
	}
	o.emit(ctx, "cop snapshot", fmt.Sprintf("heat COP %.2f, dhw COP %.2f", snap.Heat.COP(), snap.Water.COP()))
	return nil
}

// Status implements the §6 status() call.
func (o *Orchestrator) Status() Health {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.health
}

// History returns up to the last n persisted optimization outcomes, most
// recent last, for the read-only status surface.
func (o *Orchestrator) History(n int) ([]OptimizationOutcome, error) {
	var history []OptimizationOutcome
	if _, err := o.store.Get(storage.KeyOptimizationHistory, &history); err != nil {
		return nil, err
	}
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	return history, nil
}

// Outcome looks up one persisted outcome by its ID.
func (o *Orchestrator) Outcome(id string) (OptimizationOutcome, bool, error) {
	var history []OptimizationOutcome
	if _, err := o.store.Get(storage.KeyOptimizationHistory, &history); err != nil {
		return OptimizationOutcome{}, false, err
	}
	for _, entry := range history {
		if entry.ID == id {
			return entry, true, nil
		}
	}
	return OptimizationOutcome{}, false, nil
}

// forwardTiers returns the tiers of the first n window entries at or after
// now, in time order.
func forwardTiers(window []priceanalyzer.PricePoint, tiers []priceanalyzer.Tier, now time.Time, n int) []priceanalyzer.Tier {
	var out []priceanalyzer.Tier
	for i, p := range window {
		if p.Time.Before(now) {
			continue
		}
		out = append(out, tiers[i])
		if len(out) == n {
			break
		}
	}
	return out
}

// tierLookup indexes a classified window by hour-truncated time, for
// correlating a weather forecast's own hourly points to a price tier.
func tierLookup(window []priceanalyzer.PricePoint, tiers []priceanalyzer.Tier) map[time.Time]priceanalyzer.Tier {
	out := make(map[time.Time]priceanalyzer.Tier, len(window))
	for i, p := range window {
		out[p.Time.Truncate(time.Hour)] = tiers[i]
	}
	return out
}

func validIndoor(v float64) bool { return v >= -30 && v <= 50 }

func toPricePoints(q priceprovider.Quote) []priceanalyzer.PricePoint {
	return q.Series
}
