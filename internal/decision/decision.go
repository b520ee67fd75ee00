package decision

import (
	"sentibot/internal/types"
)

// Engine converts aggregate scores into BUY/SELL/HOLD decisions and
// applies the long-only trade-trigger rule against the symbol's prior
// decision.
//
// Thresholds are calibrated against the normalized-weighted-mean scale:
// [0,1] with neutral at 0.5.
type Engine struct {
	buyThreshold  float64
	sellThreshold float64
}

func New(buyThreshold, sellThreshold float64) *Engine {
	return &Engine{buyThreshold: buyThreshold, sellThreshold: sellThreshold}
}

// Classify is a pure function of the score and the two thresholds.
func (e *Engine) Classify(score float64) types.Decision {
	switch {
	case score > e.buyThreshold:
		return types.Buy
	case score < e.sellThreshold:
		return types.Sell
	default:
		return types.Hold
	}
}

// TradeSide decides whether the transition from previous to current
// warrants an order, and which side. An empty string means no order.
//
// The strategy is long-only: BUY opens (or re-enters) a position when
// the last recorded decision was anything else; SELL only ever closes a
// position previously opened by a BUY. A fresh SELL with no prior BUY
// never opens a short.
func (e *Engine) TradeSide(current, previous types.Decision) string {
	switch current {
	case types.Buy:
		if previous != types.Buy {
			return "buy"
		}
	case types.Sell:
		if previous == types.Buy {
			return "sell"
		}
	}
	return ""
}
