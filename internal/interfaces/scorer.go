package interfaces

// Scorer computes the raw polarity of a text item, in [-1, 1].
// Implementations must be deterministic, side-effect free and safe for
// concurrent use across symbols.
type Scorer interface {
	Score(text string) (float64, error)
}
