package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"lighter-mcp/internal/orders"
)

const amountSchema = `{
		"type": "object",
		"required": ["usdc_amount"],
		"properties": {
			"usdc_amount": {"type": ["number", "string"], "description": "Amount of USDC"}%s
		}
	}`

func (r *Registry) registerFunds() {
	r.register(&Tool{
		Name:        "withdraw",
		Description: "Withdraw USDC from the Lighter account to the selected wallet, and wait for the exchange to confirm it.",
		InputSchema: json.RawMessage(fmt.Sprintf(amountSchema, `,
			"api_key_index": {"type": "integer", "minimum": 0, "maximum": 254, "default": 0}`)),
		handler: func(ctx context.Context, c orders.Caller, args json.RawMessage) (string, any, error) {
			var in struct {
				USDCAmount  decimal.Decimal `json:"usdc_amount"`
				APIKeyIndex int             `json:"api_key_index"`
			}
			if err := decode(args, &in); err != nil {
				return "", nil, err
			}
			res, err := r.orders.Withdraw(ctx, c, orders.WithdrawRequest{USDCAmount: in.USDCAmount, APIKeyIndex: in.APIKeyIndex})
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Withdrew %s USDC. Transaction Hash: %s", res.USDCAmount, res.TxHash), res, nil
		},
	})

	r.register(&Tool{
		Name:        "deposit",
		Description: "Deposit USDC from the selected wallet on Arbitrum into Lighter, and wait for the transfer to be mined.",
		InputSchema: json.RawMessage(fmt.Sprintf(amountSchema, "")),
		handler: func(ctx context.Context, c orders.Caller, args json.RawMessage) (string, any, error) {
			var in struct {
				USDCAmount decimal.Decimal `json:"usdc_amount"`
			}
			if err := decode(args, &in); err != nil {
				return "", nil, err
			}
			res, err := r.orders.Deposit(ctx, c, in.USDCAmount)
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Deposited %s USDC. Transaction Hash: %s", res.USDCAmount, res.TxHash), res, nil
		},
	})
}
