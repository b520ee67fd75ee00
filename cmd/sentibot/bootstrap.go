package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"sentibot/internal/aggregate"
	"sentibot/internal/broker/alpaca"
	"sentibot/internal/decision"
	"sentibot/internal/decisionstore"
	"sentibot/internal/engine"
	"sentibot/internal/logger"
	"sentibot/internal/report"
	"sentibot/internal/sentiment"
	"sentibot/internal/sources"
	"sentibot/internal/store"
	"sentibot/internal/types"
)

const sourceTimeout = 30 * time.Second

// runOnce wires the pipeline from configuration and executes a single run.
func runOnce(ctx context.Context, cfg *store.Config) (types.RunSummary, error) {
	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	} else if os.Getenv("ALPACA_API_KEY") == "" || os.Getenv("ALPACA_SECRET_KEY") == "" {
		return types.RunSummary{}, fmt.Errorf("LIVE mode requires ALPACA_API_KEY and ALPACA_SECRET_KEY")
	}

	srcs := sources.Build(cfg.Sources, cfg.Scoring.MaxHeadlinesPerSource, sourceTimeout)
	if len(srcs) == 0 {
		return types.RunSummary{}, fmt.Errorf("no sources enabled")
	}

	aggregator := aggregate.New(
		sentiment.NewScorer(),
		cfg.SourceWeights(),
		cfg.Scoring.DecayLambdaPerHour,
		cfg.Scoring.MinHeadlineLength,
	)

	decider := decision.New(cfg.Thresholds.Buy, cfg.Thresholds.Sell)
	history := decisionstore.New(cfg.Store.Path, cfg.Store.ArchiveDir)

	executor := alpaca.New(alpaca.Params{
		Mode:      cfg.Mode,
		APIKey:    os.Getenv("ALPACA_API_KEY"),
		SecretKey: os.Getenv("ALPACA_SECRET_KEY"),
		BaseURL:   cfg.Broker.BaseURL,
	})

	reporter := report.New(cfg.Report.CSVDir, report.EmailConfig{
		Enabled:     cfg.Report.Email.Enabled,
		Host:        cfg.Report.Email.Host,
		Port:        cfg.Report.Email.Port,
		From:        cfg.Report.Email.From,
		To:          cfg.Report.Email.To,
		Username:    cfg.Report.Email.Username,
		PasswordEnv: cfg.Report.Email.PasswordEnv,
	})

	eng := engine.New(cfg, srcs, aggregator, decider, history, executor, reporter)
	return eng.Run(ctx)
}

// withinWindow reports whether now falls inside the configured
// schedule window. An unset window means every invocation runs.
func withinWindow(cfg *store.Config, now time.Time) (bool, error) {
	if cfg.Run.WindowStart == "" || cfg.Run.WindowEnd == "" {
		return true, nil
	}

	start, err := time.Parse("15:04", cfg.Run.WindowStart)
	if err != nil {
		return false, fmt.Errorf("bad run.window_start %q: %w", cfg.Run.WindowStart, err)
	}
	end, err := time.Parse("15:04", cfg.Run.WindowEnd)
	if err != nil {
		return false, fmt.Errorf("bad run.window_end %q: %w", cfg.Run.WindowEnd, err)
	}

	minutes := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if startMin <= endMin {
		return minutes >= startMin && minutes <= endMin, nil
	}
	// Window crosses midnight.
	return minutes >= startMin || minutes <= endMin, nil
}
