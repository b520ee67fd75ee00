package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sentibot/internal/logger"
	"sentibot/internal/store"
	"sentibot/internal/trace"
)

var version = "dev"

var (
	configPath string
	force      bool
	cfg        *store.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sentibot",
	Short:   "Sentiment-driven trading signals",
	Long:    "Sentibot aggregates multi-source news sentiment per symbol and turns it into buy/sell/hold decisions with idempotent trade tracking.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		_ = godotenv.Load()

		if err := logger.Init(); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		if err := trace.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
		}

		var err error
		cfg, err = store.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")

	runCmd.Flags().BoolVar(&force, "force", false, "Run even outside the configured schedule window")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sentibot", version)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one scan-score-decide-trade cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		defer func() { _ = trace.Shutdown(context.Background()) }()

		if !force {
			ok, err := withinWindow(cfg, time.Now())
			if err != nil {
				return err
			}
			if !ok {
				logger.Info(ctx, "Outside schedule window, nothing to do (use --force to override)",
					"window_start", cfg.Run.WindowStart, "window_end", cfg.Run.WindowEnd)
				return nil
			}
		}

		summary, err := runOnce(ctx, cfg)
		if err != nil {
			return err
		}
		if summary.WriteErrors > 0 {
			// Decisions were made but not all were durably recorded.
			os.Exit(2)
		}
		return nil
	},
}
