package alpaca

import (
	"context"
	"errors"
	"fmt"
	"sync"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sentibot/internal/interfaces"
	"sentibot/internal/logger"
	"sentibot/internal/types"
)

// Params configures the executor explicitly; there is no package-level
// client, so tests can construct executors with doubles or DRY_RUN.
type Params struct {
	Mode      string // DRY_RUN or LIVE
	APIKey    string
	SecretKey string
	BaseURL   string
}

// Executor submits market orders through Alpaca's trading API.
type Executor struct {
	p      Params
	client *alpacaapi.Client

	accountOnce sync.Once
	accountErr  error
}

var _ interfaces.TradeExecutor = (*Executor)(nil)

var ErrMissingCredentials = errors.New("alpaca: API credentials are not set")

func New(p Params) *Executor {
	e := &Executor{p: p}
	if p.Mode != "DRY_RUN" {
		e.client = alpacaapi.NewClient(alpacaapi.ClientOpts{
			APIKey:    p.APIKey,
			APISecret: p.SecretKey,
			BaseURL:   p.BaseURL,
		})
	}
	return e
}

// SubmitOrder places a day market order. In DRY_RUN mode the order is
// simulated locally and always accepted.
func (e *Executor) SubmitOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	if req.Side != "buy" && req.Side != "sell" {
		return types.OrderResp{}, fmt.Errorf("alpaca: invalid order side %q", req.Side)
	}
	if req.Qty <= 0 {
		return types.OrderResp{}, fmt.Errorf("alpaca: invalid quantity %d", req.Qty)
	}

	if e.p.Mode == "DRY_RUN" {
		resp := types.OrderResp{OrderID: "dry-" + uuid.NewString(), Status: "simulated"}
		logger.Info(ctx, "DRY_RUN order simulated", "symbol", req.Symbol, "side", req.Side, "qty", req.Qty)
		return resp, nil
	}

	if e.p.APIKey == "" || e.p.SecretKey == "" {
		return types.OrderResp{}, ErrMissingCredentials
	}

	if err := e.checkAccount(ctx); err != nil {
		return types.OrderResp{}, err
	}

	qty := decimal.NewFromInt(int64(req.Qty))
	side := alpacaapi.Buy
	if req.Side == "sell" {
		side = alpacaapi.Sell
	}

	order, err := e.client.PlaceOrder(alpacaapi.PlaceOrderRequest{
		Symbol:      req.Symbol,
		Qty:         &qty,
		Side:        side,
		Type:        alpacaapi.Market,
		TimeInForce: alpacaapi.Day,
	})
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("alpaca: place order for %s: %w", req.Symbol, err)
	}

	return types.OrderResp{OrderID: order.ID, Status: string(order.Status)}, nil
}

// checkAccount validates credentials and trade permissions once per
// process, before the first live order.
func (e *Executor) checkAccount(ctx context.Context) error {
	e.accountOnce.Do(func() {
		account, err := e.client.GetAccount()
		if err != nil {
			e.accountErr = fmt.Errorf("alpaca: account check failed: %w", err)
			return
		}
		logger.Info(ctx, "Alpaca account verified", "status", account.Status)
		if account.TradingBlocked || account.AccountBlocked {
			e.accountErr = errors.New("alpaca: account or trading is blocked")
		}
	})
	return e.accountErr
}
