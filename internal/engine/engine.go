package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sentibot/internal/aggregate"
	"sentibot/internal/decision"
	"sentibot/internal/decisionstore"
	"sentibot/internal/interfaces"
	"sentibot/internal/logger"
	"sentibot/internal/sources"
	"sentibot/internal/store"
	"sentibot/internal/trace"
	"sentibot/internal/types"
)

// Engine drives one run: snapshot the decision history, process every
// symbol in parallel against that snapshot, then append all new records
// in a single batch. Each invocation is a fresh process; the decision
// store is the only cross-run state.
type Engine struct {
	cfg      *store.Config
	srcs     []interfaces.Source
	agg      *aggregate.Aggregator
	dec      *decision.Engine
	history  *decisionstore.Store
	executor interfaces.TradeExecutor
	reporter interfaces.Reporter
	now      func() time.Time
}

func New(
	cfg *store.Config,
	srcs []interfaces.Source,
	agg *aggregate.Aggregator,
	dec *decision.Engine,
	history *decisionstore.Store,
	executor interfaces.TradeExecutor,
	reporter interfaces.Reporter,
) *Engine {
	return &Engine{
		cfg:      cfg,
		srcs:     srcs,
		agg:      agg,
		dec:      dec,
		history:  history,
		executor: executor,
		reporter: reporter,
		now:      time.Now,
	}
}

type symbolOutcome struct {
	record      *types.DecisionRecord
	traded      bool
	tradeFailed bool
}

// Run processes the configured symbol universe once. The returned
// summary is always populated, even when individual symbols failed.
// Store write failures are reported in the summary, not as an error:
// the run completed, just degraded.
func (e *Engine) Run(ctx context.Context) (types.RunSummary, error) {
	runID := uuid.NewString()[:8]
	started := e.now()
	summary := types.RunSummary{RunID: runID, StartedAt: started}

	if e.cfg.Run.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.Run.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	ctx, span := trace.StartSpan(ctx, "run")
	defer span.End()

	logger.Info(ctx, "Run starting", "run_id", runID, "symbols", len(e.cfg.Symbols), "mode", e.cfg.Mode)

	// Read the full history once; every symbol in this run sees the
	// same view of "previous decision".
	snapshot, err := e.history.Snapshot(ctx)
	if err != nil {
		return summary, err
	}
	if n := snapshot.SkippedRows(); n > 0 {
		logger.Warn(ctx, "Decision store contained unreadable rows", "skipped", n)
	}

	var (
		mu       sync.Mutex
		outcomes []symbolOutcome
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Run.MaxParallelSymbols)

	for _, symbol := range e.cfg.Symbols {
		g.Go(func() error {
			outcome := e.processSymbol(gctx, runID, symbol, snapshot)
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	records := make([]types.DecisionRecord, 0, len(outcomes))
	for _, o := range outcomes {
		if o.record == nil {
			summary.Skipped++
			continue
		}
		summary.Processed++
		if o.traded {
			summary.Traded++
		}
		if o.tradeFailed {
			summary.Failed++
		}
		records = append(records, *o.record)
	}

	if err := e.history.Append(ctx, records); err != nil {
		// Decisions were made but not durably recorded; surface loudly
		// and let the caller exit non-zero.
		summary.WriteErrors = len(records)
		logger.Error(ctx, "Failed to append decision records", "run_id", runID, "records", len(records), "error", err)
	}

	summary.Duration = e.now().Sub(started).Round(time.Millisecond).String()

	if e.reporter != nil {
		if err := e.reporter.EmitSummary(ctx, runID, records, summary); err != nil {
			logger.Warn(ctx, "Reporter failed", "run_id", runID, "error", err)
		}
	}

	logger.Info(ctx, "Run finished",
		"run_id", runID,
		"duration", summary.Duration,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"traded", summary.Traded,
		"failed", summary.Failed,
		"write_errors", summary.WriteErrors,
	)

	return summary, nil
}

// processSymbol runs the fetch -> score -> aggregate -> decide -> trade
// pipeline for one symbol. It never returns an error: failures degrade
// to a skipped symbol or a record with trade_executed=false.
func (e *Engine) processSymbol(ctx context.Context, runID, symbol string, snapshot *decisionstore.Snapshot) symbolOutcome {
	if ctx.Err() != nil {
		logger.Warn(ctx, "Symbol abandoned, run deadline reached", "symbol", symbol)
		return symbolOutcome{}
	}

	ctx, span := trace.StartSpan(ctx, "process-symbol")
	defer span.End()

	items := sources.FetchAll(ctx, e.srcs, symbol, e.cfg.Scoring.MaxHeadlinesTotal)

	agg, err := e.agg.Aggregate(ctx, e.now(), runID, symbol, items)
	if errors.Is(err, aggregate.ErrNoData) {
		logger.Warn(ctx, "No qualifying items, symbol skipped", "symbol", symbol, "fetched", len(items))
		return symbolOutcome{}
	}
	if err != nil {
		logger.ErrorWithErr(ctx, "Aggregation failed, symbol skipped", err, "symbol", symbol)
		return symbolOutcome{}
	}

	current := e.dec.Classify(agg.Score)
	previous := snapshot.LatestDecisionFor(symbol)

	logger.Decision(ctx, symbol, string(current), agg.Score, string(previous),
		"items", agg.ItemCount, "dominant_source", agg.DominantSource)

	record := types.DecisionRecord{
		RunID:            runID,
		Symbol:           symbol,
		Timestamp:        agg.Timestamp.UTC().Format(time.RFC3339),
		Score:            agg.Score,
		Decision:         current,
		PreviousDecision: previous,
	}

	side := e.dec.TradeSide(current, previous)
	if side == "" {
		if current == types.Sell && previous != types.Buy {
			logger.Info(ctx, "SELL without prior BUY, not opening a short", "symbol", symbol, "previous", string(previous))
		}
		return symbolOutcome{record: &record}
	}

	qty := e.cfg.QtyFor(symbol)
	resp, err := e.executor.SubmitOrder(ctx, types.OrderReq{Symbol: symbol, Side: side, Qty: qty})
	if err != nil {
		// The decision still gets persisted; the order is not retried
		// within this run.
		logger.ErrorWithErr(ctx, "Order submission failed", err, "symbol", symbol, "side", side, "qty", qty)
		return symbolOutcome{record: &record, tradeFailed: true}
	}

	record.TradeExecuted = true
	logger.Trade(ctx, symbol, side, qty, resp.OrderID, "status", resp.Status)
	return symbolOutcome{record: &record, traded: true}
}
