package aggregate

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"sentibot/internal/interfaces"
	"sentibot/internal/logger"
	"sentibot/internal/types"
)

// ErrNoData means no qualifying item survived filtering and scoring.
// Callers must not conflate this with a neutral 0.0 score.
var ErrNoData = errors.New("aggregate: no qualifying items")

const defaultWeight = 1.0

// Aggregator reduces a symbol's headline items to one weighted,
// time-decayed sentiment score on the normalized [0,1] scale.
type Aggregator struct {
	scorer    interfaces.Scorer
	weights   map[string]float64 // source_id -> weight
	lambda    float64            // decay constant per hour, 0 disables decay
	minLength int
}

func New(scorer interfaces.Scorer, weights map[string]float64, lambdaPerHour float64, minLength int) *Aggregator {
	if weights == nil {
		weights = map[string]float64{}
	}
	return &Aggregator{
		scorer:    scorer,
		weights:   weights,
		lambda:    lambdaPerHour,
		minLength: minLength,
	}
}

// Aggregate scores and combines items into a SymbolAggregate.
//
// The score is the weight-and-decay weighted mean of normalized
// polarities: sum(normalized*weight*decay) / sum(weight*decay). With all
// weights equal and no decay this reduces to the arithmetic mean of the
// normalized values. Weights shift the mean toward heavier sources but
// the result always stays within [0,1].
func (a *Aggregator) Aggregate(ctx context.Context, now time.Time, runID, symbol string, items []types.HeadlineItem) (types.SymbolAggregate, error) {
	agg := types.SymbolAggregate{Symbol: symbol, RunID: runID, Timestamp: now}

	var (
		num          float64
		den          float64
		bySource     = map[string]float64{}
		skippedShort int
		skippedScore int
	)

	for _, item := range a.dedupe(items) {
		text := strings.TrimSpace(item.Text)
		if len(text) < a.minLength {
			skippedShort++
			continue
		}

		polarity, err := a.scorer.Score(text)
		if err != nil {
			skippedScore++
			logger.Warn(ctx, "Item excluded from aggregate", "symbol", symbol, "source", item.SourceID, "error", err)
			continue
		}

		normalized := (polarity + 1) / 2

		weight, ok := a.weights[item.SourceID]
		if !ok {
			weight = defaultWeight
			logger.Warn(ctx, "Unknown source, using default weight", "symbol", symbol, "source", item.SourceID)
		}

		decay := a.decay(now, item.ObservedAt)

		num += normalized * weight * decay
		den += weight * decay
		bySource[item.SourceID] += weight * decay
		agg.ItemCount++
	}

	if skippedShort > 0 || skippedScore > 0 {
		logger.Debug(ctx, "Items filtered before aggregation",
			"symbol", symbol, "too_short", skippedShort, "scoring_failed", skippedScore)
	}

	if agg.ItemCount == 0 || den == 0 {
		return agg, ErrNoData
	}

	agg.Score = num / den
	agg.DominantSource = dominant(bySource)
	return agg, nil
}

// decay returns exp(-lambda * age_hours). Items with no observation time
// and future-dated items count as fresh.
func (a *Aggregator) decay(now, observedAt time.Time) float64 {
	if a.lambda == 0 || observedAt.IsZero() {
		return 1.0
	}
	ageHours := now.Sub(observedAt).Hours()
	if ageHours <= 0 {
		return 1.0
	}
	return math.Exp(-a.lambda * ageHours)
}

// dedupe drops items whose trimmed text matches an earlier item
// case-insensitively, so one viral headline carried by several feeds
// counts once.
func (a *Aggregator) dedupe(items []types.HeadlineItem) []types.HeadlineItem {
	seen := make(map[string]bool, len(items))
	out := make([]types.HeadlineItem, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item.Text))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func dominant(bySource map[string]float64) string {
	var best string
	var bestMass float64
	for id, mass := range bySource {
		if mass > bestMass || (mass == bestMass && (best == "" || id < best)) {
			best, bestMass = id, mass
		}
	}
	return best
}
