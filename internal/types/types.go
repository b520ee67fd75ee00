package types

import "time"

// HeadlineItem is one raw text item pulled from a source during a run.
// Items are ephemeral; only derived aggregates are persisted.
type HeadlineItem struct {
	Text       string
	SourceID   string
	ObservedAt time.Time
}

// ScoredItem is a HeadlineItem after sentiment scoring and weighting.
type ScoredItem struct {
	SourceID   string
	Polarity   float64 // raw compound score in [-1,1]
	Normalized float64 // (Polarity+1)/2, in [0,1]
	Weighted   float64 // Normalized * source weight * decay
	ObservedAt time.Time
}

// SymbolAggregate is the single per-symbol, per-run sentiment signal.
type SymbolAggregate struct {
	Symbol         string
	RunID          string
	Timestamp      time.Time
	Score          float64
	ItemCount      int
	DominantSource string
}

type Decision string

const (
	Buy  Decision = "BUY"
	Sell Decision = "SELL"
	Hold Decision = "HOLD"

	// NoPrior marks a symbol with no recorded decision history.
	NoPrior Decision = "N/A"
)

// DecisionRecord is the persisted outcome of one symbol in one run.
// Timestamp is serialized as RFC 3339 so rows sort unambiguously.
type DecisionRecord struct {
	RunID            string   `csv:"run_id"`
	Symbol           string   `csv:"symbol"`
	Timestamp        string   `csv:"timestamp"`
	Score            float64  `csv:"score"`
	Decision         Decision `csv:"decision"`
	PreviousDecision Decision `csv:"previous_decision"`
	TradeExecuted    bool     `csv:"trade_executed"`
}

// Time parses the record timestamp; the zero time is returned for
// rows whose timestamp cannot be parsed.
func (r DecisionRecord) Time() time.Time {
	t, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

type OrderReq struct {
	Symbol string
	Side   string // "buy" or "sell"
	Qty    int
}

type OrderResp struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// RunSummary is what a run reports back regardless of per-symbol failures.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	Duration    string    `json:"duration"`
	Processed   int       `json:"processed"`
	Skipped     int       `json:"skipped"`
	Traded      int       `json:"traded"`
	Failed      int       `json:"failed"`
	WriteErrors int       `json:"write_errors"`
}
