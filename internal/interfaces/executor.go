package interfaces

import (
	"context"

	"sentibot/internal/types"
)

type TradeExecutor interface {
	SubmitOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
}
