package interfaces

import (
	"context"

	"sentibot/internal/types"
)

// Source supplies raw headline items for a symbol. Implementations fail
// soft: on network or parse failure they return what they have plus the
// error, and the caller treats the source as contributing zero items.
type Source interface {
	ID() string
	Fetch(ctx context.Context, symbol string) ([]types.HeadlineItem, error)
}
