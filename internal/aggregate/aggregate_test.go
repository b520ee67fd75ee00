package aggregate

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"sentibot/internal/types"
)

// stubScorer maps exact text to a fixed polarity.
type stubScorer struct {
	scores map[string]float64
	err    error
}

func (s *stubScorer) Score(text string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	if v, ok := s.scores[text]; ok {
		return v, nil
	}
	return 0, nil
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregateEqualWeightsIsMeanOfNormalized(t *testing.T) {
	scorer := &stubScorer{scores: map[string]float64{
		"great news for shareholders": 0.8,
		"bad news for shareholders":   -0.8,
	}}
	agg := New(scorer, map[string]float64{"A": 1.0, "B": 1.0}, 0, 1)

	now := time.Now()
	items := []types.HeadlineItem{
		{Text: "great news for shareholders", SourceID: "A", ObservedAt: now},
		{Text: "bad news for shareholders", SourceID: "B", ObservedAt: now},
	}

	result, err := agg.Aggregate(context.Background(), now, "run1", "AAPL", items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// normalized = [0.9, 0.1], equal weights -> simple mean 0.5
	if !almostEqual(result.Score, 0.5) {
		t.Errorf("expected score 0.5, got %f", result.Score)
	}
	if result.ItemCount != 2 {
		t.Errorf("expected 2 items, got %d", result.ItemCount)
	}
}

func TestAggregateSingleItemWeightedMean(t *testing.T) {
	scorer := &stubScorer{scores: map[string]float64{
		"record quarterly earnings beat": 0.9,
	}}
	agg := New(scorer, map[string]float64{"bloomberg": 1.2}, 0, 1)

	now := time.Now()
	items := []types.HeadlineItem{
		{Text: "record quarterly earnings beat", SourceID: "bloomberg", ObservedAt: now},
	}

	result, err := agg.Aggregate(context.Background(), now, "run1", "AAPL", items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// normalized = 0.95, weighted mean divides the weight back out:
	// (0.95*1.2) / 1.2 = 0.95
	if !almostEqual(result.Score, 0.95) {
		t.Errorf("expected score 0.95, got %f", result.Score)
	}
	if result.DominantSource != "bloomberg" {
		t.Errorf("expected dominant source bloomberg, got %s", result.DominantSource)
	}
}

func TestAggregateNormalizationBounds(t *testing.T) {
	for _, polarity := range []float64{-1, -0.5, 0, 0.5, 1} {
		scorer := &stubScorer{scores: map[string]float64{"some headline text": polarity}}
		agg := New(scorer, nil, 0, 1)

		now := time.Now()
		result, err := agg.Aggregate(context.Background(), now, "r", "SYM", []types.HeadlineItem{
			{Text: "some headline text", SourceID: "A", ObservedAt: now},
		})
		if err != nil {
			t.Fatalf("polarity %f: unexpected error: %v", polarity, err)
		}

		want := (polarity + 1) / 2
		if !almostEqual(result.Score, want) {
			t.Errorf("polarity %f: expected %f, got %f", polarity, want, result.Score)
		}
		if result.Score < 0 || result.Score > 1 {
			t.Errorf("polarity %f: score %f out of [0,1]", polarity, result.Score)
		}
	}
}

func TestAggregateDedupCaseInsensitive(t *testing.T) {
	scorer := &stubScorer{scores: map[string]float64{
		"viral headline everyone carries": 1.0,
	}}
	agg := New(scorer, map[string]float64{"A": 1.0, "B": 1.0}, 0, 1)

	now := time.Now()
	items := []types.HeadlineItem{
		{Text: "Viral Headline Everyone Carries", SourceID: "A", ObservedAt: now},
		{Text: "viral headline everyone carries", SourceID: "B", ObservedAt: now},
		{Text: "  VIRAL HEADLINE EVERYONE CARRIES  ", SourceID: "B", ObservedAt: now},
	}

	result, err := agg.Aggregate(context.Background(), now, "r", "SYM", items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ItemCount != 1 {
		t.Errorf("expected duplicate text to count once, got %d items", result.ItemCount)
	}
}

func TestAggregateNoDataIsNotZeroScore(t *testing.T) {
	agg := New(&stubScorer{}, nil, 0, 10)

	now := time.Now()
	_, err := agg.Aggregate(context.Background(), now, "r", "SYM", nil)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData for empty input, got %v", err)
	}

	// Items all below the minimum length get filtered, still no data.
	_, err = agg.Aggregate(context.Background(), now, "r", "SYM", []types.HeadlineItem{
		{Text: "short", SourceID: "A", ObservedAt: now},
	})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData for all-filtered input, got %v", err)
	}
}

func TestAggregateScoringErrorSkipsItem(t *testing.T) {
	scorer := &stubScorer{err: errors.New("scoring broken")}
	agg := New(scorer, nil, 0, 1)

	now := time.Now()
	_, err := agg.Aggregate(context.Background(), now, "r", "SYM", []types.HeadlineItem{
		{Text: "a headline that cannot be scored", SourceID: "A", ObservedAt: now},
	})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData when every item fails scoring, got %v", err)
	}
}

func TestAggregateUnknownSourceDefaultsToWeightOne(t *testing.T) {
	scorer := &stubScorer{scores: map[string]float64{
		"headline from nowhere special": 0.5,
	}}
	agg := New(scorer, map[string]float64{"known": 2.0}, 0, 1)

	now := time.Now()
	result, err := agg.Aggregate(context.Background(), now, "r", "SYM", []types.HeadlineItem{
		{Text: "headline from nowhere special", SourceID: "mystery", ObservedAt: now},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Weight 1.0 divides out in the weighted mean.
	if !almostEqual(result.Score, 0.75) {
		t.Errorf("expected 0.75, got %f", result.Score)
	}
}

func TestAggregateDecayPrefersFreshItems(t *testing.T) {
	scorer := &stubScorer{scores: map[string]float64{
		"fresh strongly positive headline": 1.0,
		"stale strongly negative headline": -1.0,
	}}
	agg := New(scorer, nil, 0.1, 1)

	now := time.Now()
	items := []types.HeadlineItem{
		{Text: "fresh strongly positive headline", SourceID: "A", ObservedAt: now},
		{Text: "stale strongly negative headline", SourceID: "A", ObservedAt: now.Add(-48 * time.Hour)},
	}

	result, err := agg.Aggregate(context.Background(), now, "r", "SYM", items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// decay(fresh)=1, decay(48h)=exp(-4.8)~=0.0082; the fresh item
	// should dominate and pull the mean well above neutral.
	if result.Score <= 0.9 {
		t.Errorf("expected fresh item to dominate (score > 0.9), got %f", result.Score)
	}
}

func TestAggregateFutureObservationCountsAsFresh(t *testing.T) {
	scorer := &stubScorer{scores: map[string]float64{
		"headline from the near future": 0.4,
	}}
	agg := New(scorer, nil, 0.1, 1)

	now := time.Now()
	result, err := agg.Aggregate(context.Background(), now, "r", "SYM", []types.HeadlineItem{
		{Text: "headline from the near future", SourceID: "A", ObservedAt: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(result.Score, 0.7) {
		t.Errorf("expected decay 1.0 for future timestamp, got score %f", result.Score)
	}
}

func TestAggregateMixedWeights(t *testing.T) {
	scorer := &stubScorer{scores: map[string]float64{
		"very bullish headline indeed": 1.0,
		"mildly bullish other story":   0.0,
	}}
	agg := New(scorer, map[string]float64{"heavy": 1.3, "light": 0.5}, 0, 1)

	now := time.Now()
	result, err := agg.Aggregate(context.Background(), now, "r", "SYM", []types.HeadlineItem{
		{Text: "very bullish headline indeed", SourceID: "heavy", ObservedAt: now},
		{Text: "mildly bullish other story", SourceID: "light", ObservedAt: now},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// (1.0*1.3 + 0.5*0.5) / (1.3+0.5) = 1.55/1.8
	want := 1.55 / 1.8
	if !almostEqual(result.Score, want) {
		t.Errorf("expected %f, got %f", want, result.Score)
	}
	if result.DominantSource != "heavy" {
		t.Errorf("expected dominant source heavy, got %s", result.DominantSource)
	}
}
