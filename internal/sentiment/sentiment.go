package sentiment

import (
	"errors"
	"strings"

	"github.com/jonreiter/govader"
)

// ErrEmptyText is returned when there is nothing to score.
var ErrEmptyText = errors.New("sentiment: empty text")

// Scorer wraps a VADER lexicon analyzer. The analyzer's lexicon is
// read-only after construction, so a single Scorer may be shared across
// goroutines.
type Scorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewScorer() *Scorer {
	return &Scorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score returns the compound polarity of text in [-1, 1].
// Empty or whitespace-only input fails closed with ErrEmptyText.
func (s *Scorer) Score(text string) (float64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, ErrEmptyText
	}
	return s.analyzer.PolarityScores(trimmed).Compound, nil
}
