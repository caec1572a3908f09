package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/orders"
)

type positionRow struct {
	Symbol           string `json:"symbol"`
	MarketID         int    `json:"market_id"`
	Position         string `json:"position"`
	PositionValue    string `json:"position_value"`
	AvgEntryPrice    string `json:"avg_entry_price"`
	UnrealizedPnL    string `json:"unrealized_pnl"`
	RealizedPnL      string `json:"realized_pnl"`
	LiquidationPrice string `json:"liquidation_price"`
	PositionType     string `json:"position_type"`
	MarginType       string `json:"margin_type"`
}

func (r *Registry) registerWallet() {
	r.register(&Tool{
		Name:        "getUserAddresses",
		Description: "List the wallet addresses available to the authenticated user, and the one currently selected for this session.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		handler: func(ctx context.Context, c orders.Caller, _ json.RawMessage) (string, any, error) {
			out, err := r.orders.UserAddresses(ctx, c)
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Found %d wallet(s). Call chooseWallet with one of these addresses.", len(out.Wallets)), out, nil
		},
	})

	r.register(&Tool{
		Name:        "chooseWallet",
		Description: "Select the wallet used by every trading tool in this session.",
		InputSchema: json.RawMessage(`{
		"type": "object",
		"required": ["address"],
		"properties": {
			"address": {"type": "string", "description": "Wallet address returned by getUserAddresses"}
		}
	}`),
		handler: func(ctx context.Context, c orders.Caller, args json.RawMessage) (string, any, error) {
			var in struct {
				Address string `json:"address"`
			}
			if err := decode(args, &in); err != nil {
				return "", nil, err
			}
			rec, err := r.orders.ChooseWallet(ctx, c, in.Address)
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Wallet %s selected", rec.Address), rec, nil
		},
	})

	r.register(&Tool{
		Name:        "fetch_wallet_balances",
		Description: "Retrieve the Lighter account balance (USDC) of the selected wallet.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		handler: func(ctx context.Context, c orders.Caller, _ json.RawMessage) (string, any, error) {
			b, err := r.orders.Balances(ctx, c)
			if err != nil {
				return "", nil, err
			}
			if !b.Found {
				return fmt.Sprintf("No Lighter account found for wallet %s. The wallet may not be registered on Lighter yet.", b.Wallet), b, nil
			}
			return fmt.Sprintf("Retrieved Lighter balances for wallet %s", b.Wallet), b, nil
		},
	})

	r.register(&Tool{
		Name:        "get_positions",
		Description: "List the open positions (position value > 0) of the selected wallet's Lighter account.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		handler: func(ctx context.Context, c orders.Caller, _ json.RawMessage) (string, any, error) {
			_, views, err := r.orders.Positions(ctx, c)
			if err != nil {
				return "", nil, err
			}
			rows := make([]positionRow, 0, len(views))
			for _, v := range views {
				rows = append(rows, positionRow{
					Symbol:           v.Ticker,
					MarketID:         v.MarketID,
					Position:         v.Size.String(),
					PositionValue:    v.PositionValue.String(),
					AvgEntryPrice:    v.AvgEntryPrice.String(),
					UnrealizedPnL:    v.UnrealizedPnL.String(),
					RealizedPnL:      v.RealizedPnL.String(),
					LiquidationPrice: v.LiquidationPrice.String(),
					PositionType:     v.Side(),
					MarginType:       v.MarginMode.String(),
				})
			}
			return fmt.Sprintf("Retrieved %d positions with value > 0", len(rows)), rows, nil
		},
	})

	r.register(&Tool{
		Name:        "fetch_referral_points",
		Description: "Fetch the referral points of the selected wallet's Lighter account. Signs a short-lived auth token with the wallet.",
		InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"expiry_minutes": {"type": "integer", "minimum": 1, "maximum": 1440, "default": 60, "description": "Validity of the auth token in minutes"},
			"api_key_index": {"type": "integer", "minimum": 0, "maximum": 254, "default": 0}
		}
	}`),
		handler: func(ctx context.Context, c orders.Caller, args json.RawMessage) (string, any, error) {
			var in struct {
				ExpiryMinutes *int `json:"expiry_minutes"`
				APIKeyIndex   int  `json:"api_key_index"`
			}
			if err := decode(args, &in); err != nil {
				return "", nil, err
			}
			minutes := intOr(in.ExpiryMinutes, 60)
			if minutes < 1 || minutes > 1440 {
				return "", nil, apperr.New(apperr.InvalidParameter, "expiry_minutes must be between 1 and 1440")
			}
			res, err := r.orders.ReferralPoints(ctx, c, time.Duration(minutes)*time.Minute, in.APIKeyIndex)
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Retrieved referral points for account %d", res.AccountIndex), res, nil
		},
	})

	r.register(&Tool{
		Name:        "setup_lighter_api_key",
		Description: "Generate a new Lighter API key for the selected wallet's account and register it with a wallet signature.",
		InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"api_key_index": {"type": "integer", "minimum": 0, "maximum": 254, "description": "Slot to register; defaults to the slot after the highest in use"}
		}
	}`),
		handler: func(ctx context.Context, c orders.Caller, args json.RawMessage) (string, any, error) {
			var in struct {
				APIKeyIndex *int `json:"api_key_index"`
			}
			if err := decode(args, &in); err != nil {
				return "", nil, err
			}
			res, err := r.orders.SetupAPIKey(ctx, c, orders.SetupAPIKeyRequest{APIKeyIndex: in.APIKeyIndex})
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("API key registered at index %d for account %d. Transaction Hash: %s",
				res.APIKeyIndex, res.AccountIndex, res.TxHash), res, nil
		},
	})
}
