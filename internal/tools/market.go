package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/orders"
)

type fundingRow struct {
	Symbol string  `json:"symbol"`
	Rate   float64 `json:"rate"`
}

func (r *Registry) registerMarket() {
	r.register(&Tool{
		Name:        "fetch_price",
		Description: "Fetch the current bid side of a Lighter order book. No wallet needed.",
		Public:      true,
		InputSchema: json.RawMessage(`{
		"type": "object",
		"required": ["ticker"],
		"properties": {
			"ticker": {"type": "string", "description": "Ticker to fetch price for (e.g. ETH, BTC, SOL, DOGE)"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100, "default": 10, "description": "Number of orders to fetch"}
		}
	}`),
		handler: func(ctx context.Context, _ orders.Caller, args json.RawMessage) (string, any, error) {
			var in struct {
				Ticker string `json:"ticker"`
				Limit  *int   `json:"limit"`
			}
			if err := decode(args, &in); err != nil {
				return "", nil, err
			}
			if err := requireTicker(in.Ticker); err != nil {
				return "", nil, err
			}
			limit := intOr(in.Limit, 10)
			if limit < 1 || limit > 100 {
				return "", nil, apperr.New(apperr.InvalidParameter, "limit must be between 1 and 100")
			}
			q, err := r.orders.Price(ctx, in.Ticker, limit)
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Current %s price: %s USDC", q.Ticker, q.TopBid), q, nil
		},
	})

	r.register(&Tool{
		Name:        "fetch_funding_rates",
		Description: "Fetch current Lighter funding rates. With compare_hyperliquid, also compare against Hyperliquid and report which venue to long and short.",
		Public:      true,
		InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"symbols": {"type": "array", "items": {"type": "string"}, "description": "Only these symbols; all when omitted"},
			"compare_hyperliquid": {"type": "boolean", "default": false}
		}
	}`),
		handler: func(ctx context.Context, _ orders.Caller, args json.RawMessage) (string, any, error) {
			var in struct {
				Symbols            []string `json:"symbols"`
				CompareHyperliquid bool     `json:"compare_hyperliquid"`
			}
			if err := decode(args, &in); err != nil {
				return "", nil, err
			}
			if r.funding == nil {
				return "", nil, apperr.New(apperr.UpstreamError, "funding rates are not configured")
			}

			if in.CompareHyperliquid {
				spreads, err := r.funding.Compare(ctx, in.Symbols)
				if err != nil {
					return "", nil, err
				}
				return fmt.Sprintf("Compared funding rates for %d symbols across venues", len(spreads)), spreads, nil
			}

			rates, err := r.funding.Rates(ctx, in.Symbols)
			if err != nil {
				return "", nil, err
			}
			rows := make([]fundingRow, 0, len(rates))
			for _, rt := range rates {
				rows = append(rows, fundingRow{Symbol: rt.Symbol, Rate: rt.Rate})
			}
			return fmt.Sprintf("Retrieved %d funding rates from Lighter", len(rows)), rows, nil
		},
	})
}
