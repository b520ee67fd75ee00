package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sentibot/internal/types"
)

func TestEmitSummaryWritesCSV(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, EmailConfig{})

	records := []types.DecisionRecord{
		{RunID: "abc123", Symbol: "AAPL", Timestamp: "2026-08-29T12:00:00Z", Score: 0.82, Decision: types.Buy, PreviousDecision: types.NoPrior, TradeExecuted: true},
	}
	summary := types.RunSummary{RunID: "abc123", Processed: 1, Traded: 1, Duration: "1.2s"}

	if err := r.EmitSummary(context.Background(), "abc123", records, summary); err != nil {
		t.Fatalf("EmitSummary: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "abc123.csv"))
	if err != nil {
		t.Fatalf("report CSV not written: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "AAPL") || !strings.Contains(content, "BUY") {
		t.Errorf("report missing record fields: %q", content)
	}
}

func TestEmitSummaryNoOutputsConfigured(t *testing.T) {
	r := New("", EmailConfig{})

	err := r.EmitSummary(context.Background(), "abc123", nil, types.RunSummary{})
	if err != nil {
		t.Fatalf("expected nil with nothing configured, got %v", err)
	}
}

func TestBuildBody(t *testing.T) {
	records := []types.DecisionRecord{
		{Symbol: "AAPL", Score: 0.82, Decision: types.Buy, PreviousDecision: types.NoPrior, TradeExecuted: true},
		{Symbol: "TSLA", Score: 0.31, Decision: types.Sell, PreviousDecision: types.Hold},
	}
	summary := types.RunSummary{Processed: 2, Traded: 1, Duration: "900ms"}

	body := buildBody("run42", records, summary)
	if !strings.Contains(body, "Run run42 finished in 900ms") {
		t.Errorf("missing header: %q", body)
	}
	if !strings.Contains(body, "processed=2") || !strings.Contains(body, "traded=1") {
		t.Errorf("missing counters: %q", body)
	}
	if !strings.Contains(body, "[order placed]") {
		t.Errorf("executed marker missing: %q", body)
	}
	if strings.Count(body, "[order placed]") != 1 {
		t.Errorf("executed marker should appear once: %q", body)
	}
}
