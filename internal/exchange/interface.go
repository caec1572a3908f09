package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// AccountLookup resolves an exchange account from the wallet's L1 address.
type AccountLookup interface {
	AccountByL1Address(ctx context.Context, address string) (*Account, error)
}

// MarketData serves resting orders for one market.
type MarketData interface {
	OrderBookOrders(ctx context.Context, marketID, limit int) (*OrderBook, error)
}

// TxStatusSource reports the lifecycle state of a submitted transaction.
type TxStatusSource interface {
	TxStatus(ctx context.Context, hash string) (TxStatus, error)
}

type FundingSource interface {
	FundingRates(ctx context.Context) ([]FundingRate, error)
}

type Account struct {
	Index            int64           `json:"index"`
	L1Address        string          `json:"l1_address"`
	AccountType      int             `json:"account_type"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Collateral       decimal.Decimal `json:"collateral"`
	TotalAssetValue  decimal.Decimal `json:"total_asset_value"`
	Positions        []Position      `json:"positions"`
}

type MarginMode int

const (
	CrossMargin    MarginMode = 0
	IsolatedMargin MarginMode = 1
)

func (m MarginMode) String() string {
	if m == IsolatedMargin {
		return "Isolated"
	}
	return "Cross"
}

type Position struct {
	MarketID              int             `json:"market_id"`
	Symbol                string          `json:"symbol"`
	Sign                  int             `json:"sign"` // 1 long, -1 short
	Size                  decimal.Decimal `json:"position"`
	AvgEntryPrice         decimal.Decimal `json:"avg_entry_price"`
	PositionValue         decimal.Decimal `json:"position_value"`
	UnrealizedPnL         decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL           decimal.Decimal `json:"realized_pnl"`
	LiquidationPrice      decimal.Decimal `json:"liquidation_price"`
	AllocatedMargin       decimal.Decimal `json:"allocated_margin"`
	InitialMarginFraction decimal.Decimal `json:"initial_margin_fraction"`
	MarginMode            MarginMode      `json:"margin_mode"`
	OpenOrderCount        int             `json:"open_order_count"`
}

// Active reports whether the position carries value.
func (p Position) Active() bool { return p.PositionValue.IsPositive() }

func (p Position) Side() string {
	if p.Sign == 1 {
		return "Long"
	}
	return "Short"
}

type BookOrder struct {
	OrderIndex          int64           `json:"order_index"`
	OrderID             string          `json:"order_id"`
	OwnerAccountIndex   int64           `json:"owner_account_index"`
	InitialBaseAmount   decimal.Decimal `json:"initial_base_amount"`
	RemainingBaseAmount decimal.Decimal `json:"remaining_base_amount"`
	Price               decimal.Decimal `json:"price"`
	OrderExpiry         int64           `json:"order_expiry"`
}

type OrderBook struct {
	MarketID int         `json:"market_id"`
	Bids     []BookOrder `json:"bids"`
	Asks     []BookOrder `json:"asks"`
}

type FundingRate struct {
	MarketID int     `json:"market_id"`
	Exchange string  `json:"exchange"`
	Symbol   string  `json:"symbol"`
	Rate     float64 `json:"rate"`
}

type TxState string

const (
	TxPending   TxState = "pending"
	TxConfirmed TxState = "confirmed"
	TxFailed    TxState = "failed"
)

// TxStatus is the exchange's view of a transaction. Code is the raw
// exchange status; State is its pending/confirmed/failed classification.
type TxStatus struct {
	Hash  string
	Code  int
	Name  string
	State TxState
}

func (s TxStatus) Terminal() bool { return s.State != TxPending }
