package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/orders"
)

const orderSchema = `{
		"type": "object",
		"required": ["ticker", "base_amount", "is_ask"%s],
		"properties": {
			"ticker": {"type": "string", "description": "Market ticker, e.g. ETH, BTC, SOL"},
			"base_amount": {"type": ["number", "string"], "description": "Order size in base asset units"},%s
			"is_ask": {"type": "boolean", "description": "true to sell, false to buy"},
			"leverage": {"type": "integer", "minimum": 1, "maximum": 100, "default": 10},
			"api_key_index": {"type": "integer", "minimum": 0, "maximum": 254, "default": 0}
		}
	}`

type orderInput struct {
	Ticker      string           `json:"ticker"`
	BaseAmount  decimal.Decimal  `json:"base_amount"`
	Price       *decimal.Decimal `json:"price"`
	IsAsk       *bool            `json:"is_ask"`
	Leverage    *int             `json:"leverage"`
	APIKeyIndex int              `json:"api_key_index"`
}

func (in orderInput) validate(needPrice bool) error {
	if err := requireTicker(in.Ticker); err != nil {
		return err
	}
	if in.IsAsk == nil {
		return apperr.New(apperr.InvalidParameter, "is_ask is required")
	}
	if needPrice && in.Price == nil {
		return apperr.New(apperr.InvalidParameter, "price is required")
	}
	if in.Leverage != nil && (*in.Leverage < orders.MinLeverage || *in.Leverage > orders.MaxLeverage) {
		return apperr.New(apperr.InvalidParameter, "leverage must be between %d and %d", orders.MinLeverage, orders.MaxLeverage)
	}
	return nil
}

func side(isAsk bool) string {
	if isAsk {
		return "sell"
	}
	return "buy"
}

func (r *Registry) registerTrading() {
	r.register(&Tool{
		Name:        "create_market_order",
		Description: "Create a market order on Lighter. Sets cross-margin leverage for the market first, then submits an immediate-or-cancel order bounded around the top bid.",
		InputSchema: json.RawMessage(fmt.Sprintf(orderSchema, "", "")),
		handler: func(ctx context.Context, c orders.Caller, args json.RawMessage) (string, any, error) {
			var in orderInput
			if err := decode(args, &in); err != nil {
				return "", nil, err
			}
			if err := in.validate(false); err != nil {
				return "", nil, err
			}
			res, err := r.orders.CreateMarketOrder(ctx, c, orders.MarketOrderRequest{
				Ticker:      in.Ticker,
				BaseAmount:  in.BaseAmount,
				IsAsk:       *in.IsAsk,
				Leverage:    intOr(in.Leverage, 0),
				APIKeyIndex: in.APIKeyIndex,
			})
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Market %s order created for %s %s. Transaction Hash: %s",
				side(res.IsAsk), in.BaseAmount, res.Ticker, res.TxHash), res, nil
		},
	})

	r.register(&Tool{
		Name:        "create_limit_order",
		Description: "Create a good-till-time limit order on Lighter. Sets cross-margin leverage for the market first.",
		InputSchema: json.RawMessage(fmt.Sprintf(orderSchema, `, "price"`, `
			"price": {"type": ["number", "string"], "description": "Limit price in USDC"},`)),
		handler: func(ctx context.Context, c orders.Caller, args json.RawMessage) (string, any, error) {
			var in orderInput
			if err := decode(args, &in); err != nil {
				return "", nil, err
			}
			if err := in.validate(true); err != nil {
				return "", nil, err
			}
			res, err := r.orders.CreateLimitOrder(ctx, c, orders.LimitOrderRequest{
				Ticker:      in.Ticker,
				BaseAmount:  in.BaseAmount,
				Price:       *in.Price,
				IsAsk:       *in.IsAsk,
				Leverage:    intOr(in.Leverage, 0),
				APIKeyIndex: in.APIKeyIndex,
			})
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Limit %s order created for %s %s at %s USDC. Transaction Hash: %s",
				side(res.IsAsk), in.BaseAmount, res.Ticker, in.Price, res.TxHash), res, nil
		},
	})

	r.register(&Tool{
		Name:        "close_position",
		Description: "Close a position with a reduce-only market order for its full size, and wait for the exchange to confirm it.",
		InputSchema: json.RawMessage(`{
		"type": "object",
		"required": ["ticker"],
		"properties": {
			"ticker": {"type": "string"},
			"position_index": {"type": "integer", "minimum": -1, "default": -1, "description": "Index among this market's positions; -1 picks the first"},
			"api_key_index": {"type": "integer", "minimum": 0, "maximum": 254, "default": 0}
		}
	}`),
		handler: func(ctx context.Context, c orders.Caller, args json.RawMessage) (string, any, error) {
			var in struct {
				Ticker        string `json:"ticker"`
				PositionIndex *int   `json:"position_index"`
				APIKeyIndex   int    `json:"api_key_index"`
			}
			if err := decode(args, &in); err != nil {
				return "", nil, err
			}
			if err := requireTicker(in.Ticker); err != nil {
				return "", nil, err
			}
			res, err := r.orders.ClosePosition(ctx, c, orders.ClosePositionRequest{
				Ticker:        in.Ticker,
				PositionIndex: intOr(in.PositionIndex, orders.AutoSelect),
				APIKeyIndex:   in.APIKeyIndex,
			})
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Position closed for %s. Transaction Hash: %s", res.Ticker, res.TxHash), res, nil
		},
	})

	r.register(&Tool{
		Name:        "cancel_order",
		Description: "Cancel a resting order by its exchange order index.",
		InputSchema: json.RawMessage(`{
		"type": "object",
		"required": ["ticker", "order_index"],
		"properties": {
			"ticker": {"type": "string"},
			"order_index": {"type": "integer", "minimum": 0, "description": "Exchange-assigned order index"},
			"api_key_index": {"type": "integer", "minimum": 0, "maximum": 254, "default": 0}
		}
	}`),
		handler: func(ctx context.Context, c orders.Caller, args json.RawMessage) (string, any, error) {
			var in struct {
				Ticker      string `json:"ticker"`
				OrderIndex  *int64 `json:"order_index"`
				APIKeyIndex int    `json:"api_key_index"`
			}
			if err := decode(args, &in); err != nil {
				return "", nil, err
			}
			if err := requireTicker(in.Ticker); err != nil {
				return "", nil, err
			}
			if in.OrderIndex == nil {
				return "", nil, apperr.New(apperr.InvalidParameter, "order_index is required")
			}
			res, err := r.orders.CancelOrder(ctx, c, orders.CancelOrderRequest{
				Ticker:      in.Ticker,
				OrderIndex:  *in.OrderIndex,
				APIKeyIndex: in.APIKeyIndex,
			})
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Cancel submitted for %s order %d. Transaction Hash: %s", res.Ticker, *in.OrderIndex, res.TxHash), res, nil
		},
	})

	r.register(&Tool{
		Name:        "add_tp_sl_orders",
		Description: "Add take-profit and/or stop-loss orders that close an existing position when the trigger price is reached.",
		InputSchema: json.RawMessage(`{
		"type": "object",
		"required": ["ticker"],
		"properties": {
			"ticker": {"type": "string"},
			"position_index": {"type": "integer", "minimum": -1, "default": -1},
			"take_profit_price": {"type": ["number", "string"], "description": "Trigger price for the take-profit order"},
			"stop_loss_price": {"type": ["number", "string"], "description": "Trigger price for the stop-loss order"},
			"api_key_index": {"type": "integer", "minimum": 0, "maximum": 254, "default": 0}
		}
	}`),
		handler: func(ctx context.Context, c orders.Caller, args json.RawMessage) (string, any, error) {
			var in struct {
				Ticker          string           `json:"ticker"`
				PositionIndex   *int             `json:"position_index"`
				TakeProfitPrice *decimal.Decimal `json:"take_profit_price"`
				StopLossPrice   *decimal.Decimal `json:"stop_loss_price"`
				APIKeyIndex     int              `json:"api_key_index"`
			}
			if err := decode(args, &in); err != nil {
				return "", nil, err
			}
			if err := requireTicker(in.Ticker); err != nil {
				return "", nil, err
			}
			res, err := r.orders.AddTpSl(ctx, c, orders.TpSlRequest{
				Ticker:          in.Ticker,
				PositionIndex:   intOr(in.PositionIndex, orders.AutoSelect),
				TakeProfitPrice: in.TakeProfitPrice,
				StopLossPrice:   in.StopLossPrice,
				APIKeyIndex:     in.APIKeyIndex,
			})
			if err != nil {
				return "", nil, err
			}
			var kinds, hashes []string
			if res.TakeProfit != nil {
				kinds = append(kinds, "Take Profit")
				hashes = append(hashes, res.TakeProfit.TxHash)
			}
			if res.StopLoss != nil {
				kinds = append(kinds, "Stop Loss")
				hashes = append(hashes, res.StopLoss.TxHash)
			}
			return fmt.Sprintf("%s orders created for %s position. Transaction Hashes: %s",
				strings.Join(kinds, " and "), res.Ticker, strings.Join(hashes, ", ")), res, nil
		},
	})
}
