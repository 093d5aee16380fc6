// Package decision implements the pure decision function that combines
// price, thermal, COP, adaptive, hot-water, and weather inputs into a
// per-zone setpoint proposal. It performs no I/O and holds no state: every
// call is a deterministic function of its arguments, which keeps it
// trivially testable and replayable from recorded cycle inputs.
package decision

import (
	"time"

	"github.com/mkallio/heatopt/internal/adaptive"
	"github.com/mkallio/heatopt/internal/priceanalyzer"
)

// ComfortBand is the occupied/away temperature band for one zone.
type ComfortBand struct {
	LowerC float64
	UpperC float64
}

func (b ComfortBand) mid() float64   { return (b.LowerC + b.UpperC) / 2 }
func (b ComfortBand) span() float64  { return b.UpperC - b.LowerC }
func (b ComfortBand) clamp(v float64) float64 {
	if v < b.LowerC {
		return b.LowerC
	}
	if v > b.UpperC {
		return b.UpperC
	}
	return v
}

// PlannedAction is the high-level action attached to a zone's proposal.
type PlannedAction string

const (
	ActionPreheat PlannedAction = "preheat"
	ActionCoast   PlannedAction = "coast"
	ActionMaintain PlannedAction = "maintain"
	ActionBoost   PlannedAction = "boost"
	ActionDhwNow  PlannedAction = "dhw_now"
	ActionDhwDelay PlannedAction = "dhw_delay"
)

// ZoneState is the per-zone anti-cycling state machine's current state,
// tracked by the orchestrator across cycles and advanced by this package's
// NextZoneState.
type ZoneState string

const (
	StateIdle       ZoneState = "idle"
	StatePreheating ZoneState = "preheating"
	StateCoasting   ZoneState = "coasting"
	StateBoosting   ZoneState = "boosting"
	StateDhwHeating ZoneState = "dhw_heating"
	StateLocked     ZoneState = "locked"
)

// ThermalInputs is the subset of learned thermal characteristics the
// decision function needs.
type ThermalInputs struct {
	Confidence            float64
	PreheatAggressiveness float64
	CoastingReduction     float64
}

// ZoneInputs bundles everything the decision function needs for one zone.
type ZoneInputs struct {
	Enabled        bool
	ValidReading   bool
	IndoorC        float64
	CurrentSetC    float64
	Band           ComfortBand
	Classification priceanalyzer.Classification
	SeasonalCOP    float64
	COPThresholds  adaptive.COPThresholds
	COPWeight      float64
	Thermal        ThermalInputs
	NextSixHours   []priceanalyzer.Tier // forward tiers for the next 6 hours, in order
	NextThreeHours []priceanalyzer.Tier
	WeatherBiasC   float64
}

// ZoneProposal is the per-zone output.
type ZoneProposal struct {
	TargetC     float64
	Action      PlannedAction
	ReasonTokens []string
}

// TankInputs bundles the tank-specific decision inputs.
type TankInputs struct {
	Enabled        bool
	ValidReading   bool
	CurrentC       float64
	MinC           float64
	MaxC           float64
	StepC          float64
	DemandNext4h   float64 // hot-water learner's predicted demand score, [0,1]
	Tier           priceanalyzer.Tier
}

// Proposal is the full decision output for one cycle.
type Proposal struct {
	Zone1        ZoneProposal
	Zone2        *ZoneProposal
	Tank         *ZoneProposal
	ReasonTokens []string
}

// Propose derives the zone1 (always), zone2 (optional) and tank (optional)
// targets for one optimization cycle.
func Propose(zone1, zone2 ZoneInputs, tank TankInputs, now time.Time) Proposal {
	var reasons []string

	z1 := proposeZone(zone1)
	reasons = append(reasons, z1.ReasonTokens...)

	out := Proposal{Zone1: z1}

	if zone2.Enabled && zone2.ValidReading {
		z2 := proposeZone(zone2)
		out.Zone2 = &z2
		reasons = append(reasons, z2.ReasonTokens...)
	} else if zone2.Enabled && !zone2.ValidReading {
		reasons = append(reasons, "zone2_sensor_invalid")
	}

	if tank.Enabled && tank.ValidReading {
		tp := proposeTank(tank)
		out.Tank = &tp
		reasons = append(reasons, tp.ReasonTokens...)
	} else if tank.Enabled && !tank.ValidReading {
		reasons = append(reasons, "tank_sensor_invalid")
	}

	out.ReasonTokens = reasons
	return out
}

// proposeZone implements the §4.9 zone-target derivation, step by step:
// base percentile offset, COP bias, thermal planning bias (with graduated
// confidence blending below 0.3), weather bias, then clamp to the comfort
// band.
func proposeZone(z ZoneInputs) ZoneProposal {
	var reasons []string

	mid := z.Band.mid()
	span := z.Band.span()

	base := mid + (0.5-z.Classification.PercentileRank)*span
	target := base

	copWeight := z.COPWeight
	if copWeight == 0 {
		copWeight = 0.3
	}
	switch {
	case z.SeasonalCOP >= z.COPThresholds.Excellent:
		target += 0.2
		reasons = append(reasons, "cop_excellent")
	case z.SeasonalCOP >= z.COPThresholds.Good:
		target -= 0.3 * absf(base-mid)
		reasons = append(reasons, "cop_good")
	case z.SeasonalCOP >= z.COPThresholds.Poor:
		target -= 0.8 * copWeight
		reasons = append(reasons, "cop_fair")
	default:
		if z.SeasonalCOP > 0 {
			target -= 1.2 * copWeight
			reasons = append(reasons, "cop_poor")
		}
	}

	preheatAgg := z.Thermal.PreheatAggressiveness
	coastRed := z.Thermal.CoastingReduction
	if z.Thermal.Confidence < 0.3 {
		conf := z.Thermal.Confidence
		preheatAgg = preheatAgg*conf + defaultPreheatAggressiveness*(1-conf)
		coastRed = coastRed*conf + defaultCoastingReduction*(1-conf)
	}

	cheapAhead := countTier(z.NextSixHours, priceanalyzer.TierCheap) + countTier(z.NextSixHours, priceanalyzer.TierVeryCheap)
	expensiveAhead := countTier(z.NextThreeHours, priceanalyzer.TierExpensive) + countTier(z.NextThreeHours, priceanalyzer.TierVeryExpensive)
	currentIsCheap := z.Classification.Tier == priceanalyzer.TierCheap || z.Classification.Tier == priceanalyzer.TierVeryCheap

	action := ActionMaintain
	switch {
	case cheapAhead >= 2 && !currentIsCheap:
		target += preheatAgg
		action = ActionPreheat
		reasons = append(reasons, "thermal_preheat")
	case expensiveAhead >= 1 && z.IndoorC >= mid:
		target -= coastRed
		action = ActionCoast
		reasons = append(reasons, "thermal_coast")
	}

	target += z.WeatherBiasC
	if z.WeatherBiasC != 0 {
		reasons = append(reasons, "weather_bias")
	}

	target = z.Band.clamp(target)

	if action == ActionMaintain && target > z.CurrentSetC {
		action = ActionBoost
	}

	return ZoneProposal{TargetC: target, Action: action, ReasonTokens: reasons}
}

const (
	defaultPreheatAggressiveness = 0.3
	defaultCoastingReduction     = 0.3
)

// proposeTank implements the §4.9 tank-target derivation.
func proposeTank(t TankInputs) ZoneProposal {
	const demandThreshold = 0.3

	switch {
	case t.DemandNext4h >= demandThreshold && (t.Tier == priceanalyzer.TierVeryCheap || t.Tier == priceanalyzer.TierCheap):
		target := t.CurrentC + t.StepC
		if target > t.MaxC {
			target = t.MaxC
		}
		return ZoneProposal{TargetC: target, Action: ActionDhwNow, ReasonTokens: []string{"dhw_demand_cheap"}}
	case t.Tier == priceanalyzer.TierVeryExpensive && t.DemandNext4h <= demandThreshold:
		target := t.CurrentC - t.StepC
		if target < t.MinC {
			target = t.MinC
		}
		return ZoneProposal{TargetC: target, Action: ActionDhwDelay, ReasonTokens: []string{"dhw_delay_expensive"}}
	default:
		return ZoneProposal{TargetC: t.CurrentC, Action: ActionMaintain}
	}
}

func countTier(tiers []priceanalyzer.Tier, want priceanalyzer.Tier) int {
	n := 0
	for _, t := range tiers {
		if t == want {
			n++
		}
	}
	return n
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// NextZoneState advances the per-zone state machine given the action just
// proposed and whether the constraint kernel locked the zone out.
func NextZoneState(current ZoneState, action PlannedAction, lockoutActive bool, indoorC, upperC float64, tier priceanalyzer.Tier, lockExpired bool) ZoneState {
	if lockoutActive {
		return StateLocked
	}
	if current == StateLocked {
		if lockExpired {
			return StateIdle
		}
		return StateLocked
	}

	switch current {
	case StateIdle:
		switch action {
		case ActionPreheat:
			return StatePreheating
		case ActionBoost:
			return StateBoosting
		case ActionDhwNow:
			return StateDhwHeating
		case ActionCoast:
			return StateCoasting
		}
		return StateIdle
	case StatePreheating:
		if indoorC >= upperC || (tier != priceanalyzer.TierCheap && tier != priceanalyzer.TierVeryCheap) {
			return StateIdle
		}
		return StatePreheating
	default:
		if action == ActionMaintain {
			return StateIdle
		}
		return current
	}
}
