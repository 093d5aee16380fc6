// Package config defines the recognized settings surface (§6) and loads it
// with viper, following the teacher's pattern: a well-known config
// directory under $HOME, YAML config file, environment override, and
// sensible defaults set before read.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mkallio/heatopt/internal/herrors"
)

// PriceSource selects which price backend is active.
type PriceSource string

const (
	PriceSourceRetail    PriceSource = "retail"
	PriceSourceWholesale PriceSource = "wholesale"
)

// ComfortBand mirrors the data-model ComfortBand: {lowerC, upperC} per mode.
type ComfortBand struct {
	LowerC float64
	UpperC float64
}

// RunConfig is the fully-resolved settings surface the orchestrator
// operates against for one run.
type RunConfig struct {
	DeviceCredentials string
	DeviceID          string
	BuildingID        string

	PriceSource          PriceSource
	RetailToken          string
	WholesaleArea        string
	WholesaleToken       string
	CurrencyCode         string
	EnableConsumerMarkup bool
	MarkupPercentageBps  int64
	MarkupFixedMinor     int64

	ComfortOccupied ComfortBand
	ComfortAway     ComfortBand
	TempStepC       float64
	DeadbandC       float64
	MinChangeMinutes int

	EnableZone2    bool
	Zone2Occupied  ComfortBand
	Zone2Away      ComfortBand
	Zone2StepC     float64

	EnableTankControl bool
	TankOccupied      ComfortBand
	TankAway          ComfortBand
	TankStepC         float64
	TankMinC          float64
	TankMaxC          float64

	PreheatCheapPercentile float64
	COPWeight              float64
	AutoSeasonalMode       bool
	SummerMode             bool

	TimeZoneName string

	LogLevel     string
	LogToTimeline bool
}

// Defaults returns the built-in defaults for every optional setting, per §6.
func Defaults() RunConfig {
	return RunConfig{
		PriceSource:            PriceSourceRetail,
		CurrencyCode:           "GBP",
		ComfortOccupied:        ComfortBand{LowerC: 19, UpperC: 22},
		ComfortAway:            ComfortBand{LowerC: 15, UpperC: 18},
		TempStepC:              0.5,
		DeadbandC:              0.3,
		MinChangeMinutes:       30,
		Zone2Occupied:          ComfortBand{LowerC: 19, UpperC: 22},
		Zone2Away:              ComfortBand{LowerC: 15, UpperC: 18},
		Zone2StepC:             0.5,
		TankOccupied:           ComfortBand{LowerC: 45, UpperC: 55},
		TankAway:               ComfortBand{LowerC: 40, UpperC: 50},
		TankStepC:              2.0,
		TankMinC:               35,
		TankMaxC:               60,
		PreheatCheapPercentile: 0.25,
		COPWeight:              0.3,
		AutoSeasonalMode:       true,
		SummerMode:             false,
		TimeZoneName:           "UTC",
		LogLevel:               "info",
		LogToTimeline:          true,
	}
}

// Load reads settings from configDir/config.yaml (creating the directory if
// missing), applies environment overrides, and validates the result.
func Load(configDir string) (RunConfig, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return RunConfig{}, herrors.New(herrors.KindConfig, "config_dir_create", err)
	}

	v := viper.New()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("HEATOPT")

	applyDefaults(v, Defaults())

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return RunConfig{}, herrors.New(herrors.KindConfig, "config_read", err)
		}
	}

	cfg := decode(v)
	if err := Validate(cfg); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

func applyDefaults(v *viper.Viper, d RunConfig) {
	v.SetDefault("price_source", string(d.PriceSource))
	v.SetDefault("currency_code", d.CurrencyCode)
	v.SetDefault("comfort_lower_occupied", d.ComfortOccupied.LowerC)
	v.SetDefault("comfort_upper_occupied", d.ComfortOccupied.UpperC)
	v.SetDefault("comfort_lower_away", d.ComfortAway.LowerC)
	v.SetDefault("comfort_upper_away", d.ComfortAway.UpperC)
	v.SetDefault("temp_step", d.TempStepC)
	v.SetDefault("deadband_c", d.DeadbandC)
	v.SetDefault("min_change_minutes", d.MinChangeMinutes)
	v.SetDefault("enable_zone2", d.EnableZone2)
	v.SetDefault("zone2_lower_occupied", d.Zone2Occupied.LowerC)
	v.SetDefault("zone2_upper_occupied", d.Zone2Occupied.UpperC)
	v.SetDefault("zone2_lower_away", d.Zone2Away.LowerC)
	v.SetDefault("zone2_upper_away", d.Zone2Away.UpperC)
	v.SetDefault("zone2_step", d.Zone2StepC)
	v.SetDefault("enable_tank_control", d.EnableTankControl)
	v.SetDefault("tank_lower_occupied", d.TankOccupied.LowerC)
	v.SetDefault("tank_upper_occupied", d.TankOccupied.UpperC)
	v.SetDefault("tank_lower_away", d.TankAway.LowerC)
	v.SetDefault("tank_upper_away", d.TankAway.UpperC)
	v.SetDefault("tank_min_c", d.TankMinC)
	v.SetDefault("tank_max_c", d.TankMaxC)
	v.SetDefault("tank_step", d.TankStepC)
	v.SetDefault("preheat_cheap_percentile", d.PreheatCheapPercentile)
	v.SetDefault("cop_weight", d.COPWeight)
	v.SetDefault("auto_seasonal_mode", d.AutoSeasonalMode)
	v.SetDefault("summer_mode", d.SummerMode)
	v.SetDefault("time_zone_name", d.TimeZoneName)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_to_timeline", d.LogToTimeline)
}

func decode(v *viper.Viper) RunConfig {
	return RunConfig{
		DeviceCredentials: v.GetString("device_credentials"),
		DeviceID:          v.GetString("device_id"),
		BuildingID:        v.GetString("building_id"),

		PriceSource:          PriceSource(v.GetString("price_source")),
		RetailToken:          v.GetString("retail_token"),
		WholesaleArea:        v.GetString("wholesale_area"),
		WholesaleToken:       v.GetString("wholesale_token"),
		CurrencyCode:         v.GetString("currency_code"),
		EnableConsumerMarkup: v.GetBool("enable_consumer_markup"),

		ComfortOccupied: ComfortBand{LowerC: v.GetFloat64("comfort_lower_occupied"), UpperC: v.GetFloat64("comfort_upper_occupied")},
		ComfortAway:     ComfortBand{LowerC: v.GetFloat64("comfort_lower_away"), UpperC: v.GetFloat64("comfort_upper_away")},
		TempStepC:        v.GetFloat64("temp_step"),
		DeadbandC:        v.GetFloat64("deadband_c"),
		MinChangeMinutes: v.GetInt("min_change_minutes"),

		EnableZone2:   v.GetBool("enable_zone2"),
		Zone2Occupied: ComfortBand{LowerC: v.GetFloat64("zone2_lower_occupied"), UpperC: v.GetFloat64("zone2_upper_occupied")},
		Zone2Away:     ComfortBand{LowerC: v.GetFloat64("zone2_lower_away"), UpperC: v.GetFloat64("zone2_upper_away")},
		Zone2StepC:    v.GetFloat64("zone2_step"),

		EnableTankControl: v.GetBool("enable_tank_control"),
		TankOccupied:      ComfortBand{LowerC: v.GetFloat64("tank_lower_occupied"), UpperC: v.GetFloat64("tank_upper_occupied")},
		TankAway:          ComfortBand{LowerC: v.GetFloat64("tank_lower_away"), UpperC: v.GetFloat64("tank_upper_away")},
		TankStepC:         v.GetFloat64("tank_step"),
		TankMinC:          v.GetFloat64("tank_min_c"),
		TankMaxC:          v.GetFloat64("tank_max_c"),

		PreheatCheapPercentile: v.GetFloat64("preheat_cheap_percentile"),
		COPWeight:              v.GetFloat64("cop_weight"),
		AutoSeasonalMode:       v.GetBool("auto_seasonal_mode"),
		SummerMode:             v.GetBool("summer_mode"),

		TimeZoneName: v.GetString("time_zone_name"),

		LogLevel:      v.GetString("log_level"),
		LogToTimeline: v.GetBool("log_to_timeline"),
	}
}

// Validate checks the settings invariants from §3/§6, surfacing a
// KindConfig error that tells the orchestrator to refuse scheduling.
func Validate(cfg RunConfig) error {
	if cfg.DeviceCredentials == "" {
		return herrors.New(herrors.KindConfig, "missing_device_credentials", nil)
	}
	if cfg.ComfortOccupied.UpperC < cfg.ComfortOccupied.LowerC+0.5 {
		return herrors.New(herrors.KindConfig, "invalid_comfort_band_occupied", nil)
	}
	if cfg.ComfortAway.UpperC < cfg.ComfortAway.LowerC+0.5 {
		return herrors.New(herrors.KindConfig, "invalid_comfort_band_away", nil)
	}
	if cfg.TempStepC <= 0 || cfg.TempStepC > 2.0 {
		return herrors.New(herrors.KindConfig, "invalid_temp_step", nil)
	}
	if cfg.DeadbandC < 0 || cfg.DeadbandC > cfg.TempStepC {
		return herrors.New(herrors.KindConfig, "invalid_deadband", nil)
	}
	if cfg.TimeZoneName == "" {
		return herrors.New(herrors.KindConfig, "missing_time_zone_name", herrors.ErrInvalidTimezone)
	}
	if _, err := currency.ParseISO(cfg.CurrencyCode); err != nil {
		return herrors.New(herrors.KindConfig, "invalid_currency_code", err)
	}
	return nil
}

// FormatMinorUnits renders a minor-unit amount (e.g. pence, cents) as a
// localized currency string, for CLI/status output echoing currency_code.
func FormatMinorUnits(minorUnits int64, currencyCode string) (string, error) {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return "", fmt.Errorf("parsing currency code %q: %w", currencyCode, err)
	}
	amount := unit.Amount(float64(minorUnits) / 100)
	p := message.NewPrinter(language.English)
	return p.Sprintf("%v", currency.Symbol(amount)), nil
}

// DefaultConfigDir returns the well-known config directory under $HOME,
// mirroring the teacher's ~/.smartrun convention.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".heatopt"), nil
}
