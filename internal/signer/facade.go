// Package signer is the boundary to the wallet hub that custodies keys.
// Nothing in this module holds private keys; every signature and every
// signed Lighter transaction comes from a Facade.
package signer

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"lighter-mcp/internal/exchange"
	"lighter-mcp/internal/session"
)

// Wallet chain identifiers understood by the hub.
const (
	ChainBase     = "evm:eip155:8453"
	ChainArbitrum = "evm:eip155:42161"
	ChainEthereum = "evm:eip155:1"
)

// ErrNoSigner is returned by ResolveAccount when the hub has no signer for
// the wallet on the requested chain.
var ErrNoSigner = errors.New("no signer account for wallet")

type Facade interface {
	// WalletRecords lists the wallets owned by the authenticated identity.
	WalletRecords(ctx context.Context) ([]session.WalletRecord, error)
	ResolveAccount(ctx context.Context, wallet, chainID string) (Handle, error)
	SignMessage(ctx context.Context, message, chainID, wallet string) (string, error)
}

// Handle signs and submits on behalf of one wallet. Each call is one
// signed submission; a nil error means TxHash is valid.
type Handle interface {
	Address() string

	UpdateLeverage(ctx context.Context, p LeverageParams) (Submission, error)
	CreateOrder(ctx context.Context, p OrderParams) (Submission, error)
	CreateMarketOrder(ctx context.Context, p MarketOrderParams) (Submission, error)
	CancelOrder(ctx context.Context, p CancelParams) (Submission, error)
	CreateTpLimitOrder(ctx context.Context, p TriggerOrderParams) (Submission, error)
	CreateSlLimitOrder(ctx context.Context, p TriggerOrderParams) (Submission, error)
	Withdraw(ctx context.Context, p WithdrawParams) (Submission, error)

	GenerateAPIKey(ctx context.Context) (APIKeyPair, error)
	ChangePubKey(ctx context.Context, p ChangePubKeyParams) (Submission, error)

	// SignTransaction signs an RLP-encoded EVM transaction.
	SignTransaction(ctx context.Context, chainID string, unsigned []byte) ([]byte, error)
}

type Submission struct {
	Payload json.RawMessage `json:"tx_info"`
	TxHash  string          `json:"tx_hash"`
}

// Account identifies the Lighter account and API key slot that sign.
type Account struct {
	AccountIndex int64 `json:"account_index"`
	APIKeyIndex  int   `json:"api_key_index"`
}

type OrderType int

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
	OrderTypeStopLoss
	OrderTypeStopLossLimit
	OrderTypeTakeProfit
	OrderTypeTakeProfitLimit
)

type TimeInForce int

const (
	ImmediateOrCancel TimeInForce = iota
	GoodTillTime
	PostOnly
)

type LeverageParams struct {
	Account
	MarketIndex int `json:"market_index"`
	// InitialMarginFraction is 10000 / leverage.
	InitialMarginFraction int                 `json:"initial_margin_fraction"`
	MarginMode            exchange.MarginMode `json:"margin_mode"`
}

type OrderParams struct {
	Account
	MarketIndex      int         `json:"market_index"`
	ClientOrderIndex int64       `json:"client_order_index"`
	BaseAmount       int64       `json:"base_amount"`
	Price            int64       `json:"price"`
	IsAsk            bool        `json:"is_ask"`
	OrderType        OrderType   `json:"order_type"`
	TimeInForce      TimeInForce `json:"time_in_force"`
	ReduceOnly       bool        `json:"reduce_only"`
	TriggerPrice     int64       `json:"trigger_price"`
	OrderExpiry      int64       `json:"order_expiry"`
}

type MarketOrderParams struct {
	Account
	MarketIndex      int   `json:"market_index"`
	ClientOrderIndex int64 `json:"client_order_index"`
	BaseAmount       int64 `json:"base_amount"`
	// AvgExecutionPrice bounds the fill: a ceiling for bids, a floor for asks.
	AvgExecutionPrice int64 `json:"avg_execution_price"`
	IsAsk             bool  `json:"is_ask"`
	ReduceOnly        bool  `json:"reduce_only"`
}

type TriggerOrderParams struct {
	Account
	MarketIndex      int   `json:"market_index"`
	ClientOrderIndex int64 `json:"client_order_index"`
	BaseAmount       int64 `json:"base_amount"`
	TriggerPrice     int64 `json:"trigger_price"`
	Price            int64 `json:"price"`
	IsAsk            bool  `json:"is_ask"`
	ReduceOnly       bool  `json:"reduce_only"`
}

type CancelParams struct {
	Account
	MarketIndex int   `json:"market_index"`
	OrderIndex  int64 `json:"order_index"`
}

type WithdrawParams struct {
	Account
	// USDCAmount is in USDC base units (6 decimals).
	USDCAmount int64 `json:"usdc_amount"`
}

type APIKeyPair struct {
	PublicKey string `json:"public_key"`
	// KeyRef names the private key inside the hub; the key never leaves it.
	KeyRef string `json:"key_ref"`
}

type ChangePubKeyParams struct {
	Account
	PublicKey   string `json:"public_key"`
	KeyRef      string `json:"key_ref"`
	Nonce       int64  `json:"nonce"`
	L1Signature string `json:"l1_signature"`
}
