package interfaces

import (
	"context"

	"sentibot/internal/types"
)

type Reporter interface {
	EmitSummary(ctx context.Context, runID string, records []types.DecisionRecord, summary types.RunSummary) error
}
