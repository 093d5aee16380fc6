package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mkallio/heatopt/internal/config"
	"github.com/mkallio/heatopt/internal/devices"
	"github.com/mkallio/heatopt/internal/orchestrator"
	"github.com/mkallio/heatopt/internal/priceprovider"
	"github.com/mkallio/heatopt/internal/scheduler"
	"github.com/mkallio/heatopt/internal/storage"
	"github.com/mkallio/heatopt/internal/timeline"
	"github.com/mkallio/heatopt/internal/tzclock"
	"github.com/mkallio/heatopt/internal/uiapi"
	"github.com/mkallio/heatopt/internal/weather"
)

func main() {
	var port int
	var cfgDir string
	var dbPath string

	rootCmd := &cobra.Command{
		Use:   "hpoptimizerd",
		Short: "heat pump price optimizer daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgDir == "" {
				dir, err := config.DefaultConfigDir()
				if err != nil {
					return err
				}
				cfgDir = dir
			}
			if dbPath == "" {
				dbPath = cfgDir + "/heatopt.db"
			}

			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

			cfg, err := config.Load(cfgDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			clock, err := tzclock.NewClock(cfg.TimeZoneName)
			if err != nil {
				return err
			}

			store, err := storage.Open(dbPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer store.Close()

			deviceAdapter := devices.NewHTTPVendorAdapter("https://vendor.example.com", cfg.DeviceCredentials)

			var priceProvider priceprovider.Provider
			if cfg.PriceSource == config.PriceSourceWholesale {
				fx := priceprovider.NewFXConverter(priceprovider.DefaultFXBaseURL)
				markup := priceprovider.MarkupConfig{Enabled: cfg.EnableConsumerMarkup, FixedMinor: cfg.MarkupFixedMinor, PercentageBps: cfg.MarkupPercentageBps}
				priceProvider = priceprovider.NewWholesaleClient(priceprovider.DefaultWholesaleBaseURL, cfg.WholesaleToken, cfg.WholesaleArea, markup, fx)
			} else {
				priceProvider = priceprovider.NewRetailClient(priceprovider.DefaultRetailBaseURL, cfg.RetailToken, "C")
			}

			weatherProvider := weather.NewOpenMeteoAdapter()
			sink := timeline.FallbackSink{Primary: timeline.LogSink{Logger: logger}, Fallback: timeline.LogSink{Logger: logger}}

			orch, err := orchestrator.New(cfg, clock, store, deviceAdapter, priceProvider, weatherProvider, sink, logger)
			if err != nil {
				return err
			}

			var lastPriceFetch, lastDeviceSuccess time.Time
			jobs := scheduler.Jobs{
				Hourly: func(ctx context.Context) {
					now := time.Now()
					outcome, err := orch.RunHourly(ctx, lastPriceFetch, lastDeviceSuccess)
					if err != nil {
						logger.Error().Err(err).Msg("hourly optimization cycle failed")
						return
					}
					if !outcome.Skipped {
						lastPriceFetch = now
						lastDeviceSuccess = now
					}
				},
				DailySnapshot: func(ctx context.Context) {
					if err := orch.RunDailySnapshot(ctx); err != nil {
						logger.Error().Err(err).Msg("daily COP snapshot failed")
					}
				},
				WeeklyRecalibration: func(ctx context.Context) {
					if err := orch.RunWeekly(ctx); err != nil {
						logger.Error().Err(err).Msg("weekly recalibration failed")
					}
				},
				MonthlySnapshot: func(ctx context.Context) {
					if err := orch.RunMonthlySnapshot(ctx); err != nil {
						logger.Error().Err(err).Msg("monthly COP snapshot failed")
					}
				},
			}

			sched, err := scheduler.New(cfg.TimeZoneName, jobs, logger)
			if err != nil {
				return fmt.Errorf("starting scheduler: %w", err)
			}
			defer sched.Stop()

			srv := uiapi.NewServer(orch)
			addr := fmt.Sprintf(":%d", port)
			logger.Info().Int("port", port).Str("db", dbPath).Msg("hpoptimizerd starting")

			return http.ListenAndServe(addr, srv.Handler())
		},
	}

	rootCmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP port")
	rootCmd.Flags().StringVar(&cfgDir, "config-dir", "", "config directory")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "database path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
