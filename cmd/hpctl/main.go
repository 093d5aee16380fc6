package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mkallio/heatopt/internal/config"
	"github.com/mkallio/heatopt/internal/devices"
	"github.com/mkallio/heatopt/internal/orchestrator"
	"github.com/mkallio/heatopt/internal/priceprovider"
	"github.com/mkallio/heatopt/internal/storage"
	"github.com/mkallio/heatopt/internal/timeline"
	"github.com/mkallio/heatopt/internal/tzclock"
	"github.com/mkallio/heatopt/internal/weather"
	"github.com/rs/zerolog"
)

var (
	cfgDir string
	dbPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hpctl",
		Short: "hpctl - control and inspect the heat pump price optimizer",
		Long: `hpctl manages the settings, prices, and run history of the heat
pump price optimizer daemon (hpoptimizerd).`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgDir, "config-dir", "", "config directory (default is $HOME/.heatopt)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default is <config-dir>/heatopt.db)")

	cobra.OnInitialize(initPaths)

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(fetchPricesCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(runOnceCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initPaths() {
	if cfgDir == "" {
		dir, err := config.DefaultConfigDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfgDir = dir
	}
	if dbPath == "" {
		dbPath = cfgDir + "/heatopt.db"
	}
}

func loadConfig() (config.RunConfig, error) {
	return config.Load(cfgDir)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file and open the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Defaults()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			v := viper.New()
			v.SetConfigFile(cfgDir + "/config.yaml")
			v.SetConfigType("yaml")
			v.Set("currency_code", cfg.CurrencyCode)
			v.Set("time_zone_name", cfg.TimeZoneName)
			v.Set("comfort_lower_occupied", cfg.ComfortOccupied.LowerC)
			v.Set("comfort_upper_occupied", cfg.ComfortOccupied.UpperC)
			if err := v.WriteConfig(); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			store, err := storage.Open(dbPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer store.Close()

			fmt.Println("initialized config at", cfgDir+"/config.yaml")
			fmt.Println("database:", dbPath)
			return nil
		},
	}
}

func fetchPricesCmd() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "fetch-prices",
		Short: "Fetch the current price series from the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			provider := buildPriceProvider(cfg, region)

			quote, err := provider.GetPrices(ctx, time.Now(), cfg.CurrencyCode)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(quote)
		},
	}

	cmd.Flags().StringVarP(&region, "region", "r", "C", "retail region code (when price_source=retail)")
	return cmd
}

func buildPriceProvider(cfg config.RunConfig, region string) priceprovider.Provider {
	if cfg.PriceSource == config.PriceSourceWholesale {
		fx := priceprovider.NewFXConverter(priceprovider.DefaultFXBaseURL)
		markup := priceprovider.MarkupConfig{
			Enabled: cfg.EnableConsumerMarkup, FixedMinor: cfg.MarkupFixedMinor, PercentageBps: cfg.MarkupPercentageBps,
		}
		return priceprovider.NewWholesaleClient(priceprovider.DefaultWholesaleBaseURL, cfg.WholesaleToken, cfg.WholesaleArea, markup, fx)
	}
	return priceprovider.NewRetailClient(priceprovider.DefaultRetailBaseURL, cfg.RetailToken, region)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print a freshly built orchestrator's health and the stored history",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, store, err := buildOrchestrator()
			if err != nil {
				return err
			}
			defer store.Close()

			health := o.Status()
			fmt.Printf("healthy: %v\n", health.Healthy)
			if health.LastError != "" {
				fmt.Printf("last error: %s\n", health.LastError)
			}
			fmt.Printf("memory: %s\n", humanize.Bytes(uint64(health.MemoryBytes)))
			fmt.Printf("queue depth: %d\n", health.QueueDepth)

			history, err := o.History(5)
			if err != nil {
				return err
			}
			cfg, cfgErr := loadConfig()
			currencyCode := "GBP"
			if cfgErr == nil {
				currencyCode = cfg.CurrencyCode
			}

			fmt.Println("recent outcomes:")
			for _, h := range history {
				saved, fmtErr := config.FormatMinorUnits(h.SavingsMinor, currencyCode)
				if fmtErr != nil {
					saved = fmt.Sprintf("%d", h.SavingsMinor)
				}
				fmt.Printf("  %s  zone1=%.1f°C saved=%s (%s)\n", h.ID, h.Zone1Applied, saved, humanize.Time(h.Timestamp))
			}
			return nil
		},
	}
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect or change the settings surface",
	}
	cmd.AddCommand(settingsGetCmd())
	cmd.AddCommand(settingsSetCmd())
	return cmd
}

func settingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the effective configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}

func settingsSetCmd() *cobra.Command {
	var key, value string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set a single settings key in the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			v.SetConfigFile(cfgDir + "/config.yaml")
			v.SetConfigType("yaml")
			_ = v.ReadInConfig()
			v.Set(key, value)
			if err := v.WriteConfig(); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			if _, err := config.Load(cfgDir); err != nil {
				return fmt.Errorf("the new value failed validation: %w", err)
			}
			fmt.Printf("set %s = %s\n", key, value)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "settings key (required)")
	cmd.Flags().StringVar(&value, "value", "", "new value (required)")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("value")
	return cmd
}

func runOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Trigger a single hourly optimization cycle synchronously",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, store, err := buildOrchestrator()
			if err != nil {
				return err
			}
			defer store.Close()

			now := time.Now()
			outcome, err := o.RunHourly(context.Background(), now, now)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(outcome)
		},
	}
}

func buildOrchestrator() (*orchestrator.Orchestrator, *storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	clock, err := tzclock.NewClock(cfg.TimeZoneName)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}

	deviceAdapter := devices.NewHTTPVendorAdapter("https://vendor.example.com", cfg.DeviceCredentials)
	priceProvider := buildPriceProvider(cfg, "C")
	weatherProvider := weather.NewOpenMeteoAdapter()
	sink := timeline.FallbackSink{Primary: timeline.LogSink{Logger: zerolog.Nop()}, Fallback: timeline.LogSink{Logger: zerolog.Nop()}}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	o, err := orchestrator.New(cfg, clock, store, deviceAdapter, priceProvider, weatherProvider, sink, logger)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return o, store, nil
}
