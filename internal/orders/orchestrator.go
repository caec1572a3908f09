// Package orders turns tool parameters into scaled, signed and sequenced
// Lighter transactions.
//
// Every order-affecting call runs the same prefix: the session must have a
// bound wallet, the ticker must be in the catalog, the hub must have a
// signer for the wallet, and the wallet must have a Lighter account. The
// first two steps are local so bad input fails before any network call.
//
// Multi-step flows (leverage then order, take-profit then stop-loss) are
// not transactional. A failure after an earlier submission is reported as
// one failure that lists the hashes already submitted.
package orders

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/account"
	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/confirm"
	"lighter-mcp/internal/exchange"
	"lighter-mcp/internal/market"
	"lighter-mcp/internal/session"
	"lighter-mcp/internal/signer"
)

const (
	MinLeverage = 1
	MaxLeverage = 100

	// DefaultOrderExpiry asks the exchange for its default 28-day expiry.
	DefaultOrderExpiry int64 = -1

	// USDCScale converts USDC to base units (6 decimals).
	USDCScale int64 = 1_000_000
)

// Caller is the session context of one tool invocation.
type Caller struct {
	SessionID string
	Signer    signer.Facade
}

type Options struct {
	DefaultLeverage int
	MaxSlippage     decimal.Decimal
	// ChainID is the wallet chain the hub signs Lighter transactions on.
	ChainID string
}

type Orchestrator struct {
	catalog  *market.Catalog
	sessions *session.Registry
	accounts *account.Resolver
	market   exchange.MarketData
	waiter   *confirm.Waiter
	opts     Options
	log      *logrus.Entry

	accountAPI AccountAPI
	depositor  Depositor

	now func() time.Time
}

func New(
	catalog *market.Catalog,
	sessions *session.Registry,
	accounts *account.Resolver,
	marketData exchange.MarketData,
	waiter *confirm.Waiter,
	opts Options,
	log *logrus.Entry,
) *Orchestrator {
	if opts.DefaultLeverage == 0 {
		opts.DefaultLeverage = 10
	}
	if opts.ChainID == "" {
		opts.ChainID = signer.ChainBase
	}
	return &Orchestrator{
		catalog:  catalog,
		sessions: sessions,
		accounts: accounts,
		market:   marketData,
		waiter:   waiter,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// orderContext is everything the common prefix resolves.
type orderContext struct {
	wallet  string
	market  market.Descriptor
	handle  signer.Handle
	account *exchange.Account
	signAs  signer.Account
}

func (oc *orderContext) fields() logrus.Fields {
	f := logrus.Fields{"wallet": oc.wallet, "account_index": oc.account.Index}
	if oc.market.Ticker != "" {
		f["ticker"] = oc.market.Ticker
		f["market_id"] = oc.market.MarketID
	}
	return f
}

func (o *Orchestrator) requireWallet(c Caller) (string, error) {
	if c.SessionID == "" || c.Signer == nil {
		return "", apperr.New(apperr.AuthenticationMissing, "No authentication context on request")
	}
	return o.sessions.Require(c.SessionID)
}

// prepare runs the common prefix for operations on one market.
func (o *Orchestrator) prepare(ctx context.Context, c Caller, ticker string, apiKeyIndex int) (*orderContext, error) {
	wallet, err := o.requireWallet(c)
	if err != nil {
		return nil, err
	}
	d, err := o.catalog.Resolve(ticker)
	if err != nil {
		return nil, err
	}
	return o.bindAccount(ctx, c, &orderContext{wallet: wallet, market: d}, apiKeyIndex)
}

// prepareAccount runs the common prefix for account-level operations.
func (o *Orchestrator) prepareAccount(ctx context.Context, c Caller, apiKeyIndex int) (*orderContext, error) {
	wallet, err := o.requireWallet(c)
	if err != nil {
		return nil, err
	}
	return o.bindAccount(ctx, c, &orderContext{wallet: wallet}, apiKeyIndex)
}

func (o *Orchestrator) bindAccount(ctx context.Context, c Caller, oc *orderContext, apiKeyIndex int) (*orderContext, error) {
	if apiKeyIndex < 0 || apiKeyIndex > 254 {
		return nil, apperr.New(apperr.InvalidParameter, "api_key_index must be between 0 and 254")
	}

	var err error
	oc.handle, err = c.Signer.ResolveAccount(ctx, oc.wallet, o.opts.ChainID)
	if err != nil {
		if errors.Is(err, signer.ErrNoSigner) {
			return nil, apperr.New(apperr.WalletNotSelected,
				"No signing account for wallet %s. Choose a wallet first with chooseWallet.", oc.wallet)
		}
		return nil, apperr.Wrap(apperr.UpstreamError, err, "Failed to resolve signing account")
	}

	if oc.account, err = o.accounts.Resolve(ctx, oc.wallet); err != nil {
		return nil, err
	}
	oc.signAs = signer.Account{AccountIndex: oc.account.Index, APIKeyIndex: apiKeyIndex}
	return oc, nil
}

func (o *Orchestrator) clientOrderIndex() int64 {
	return o.now().UnixMilli()
}

func validateLeverage(leverage int) error {
	if leverage < MinLeverage || leverage > MaxLeverage {
		return apperr.New(apperr.InvalidParameter, "leverage must be between %d and %d, got %d", MinLeverage, MaxLeverage, leverage)
	}
	return nil
}

func (o *Orchestrator) leverageOrDefault(leverage int) (int, error) {
	if leverage == 0 {
		leverage = o.opts.DefaultLeverage
	}
	return leverage, validateLeverage(leverage)
}

// updateLeverage sets cross-margin leverage for the market as its own
// signed transaction and returns the hash.
func (o *Orchestrator) updateLeverage(ctx context.Context, oc *orderContext, leverage int) (string, error) {
	sub, err := oc.handle.UpdateLeverage(ctx, signer.LeverageParams{
		Account:               oc.signAs,
		MarketIndex:           oc.market.MarketID,
		InitialMarginFraction: InitialMarginFraction(leverage),
		MarginMode:            exchange.CrossMargin,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.LeverageUpdateFailed, err, "Leverage update failed")
	}
	if o.log != nil {
		o.log.WithFields(oc.fields()).WithFields(logrus.Fields{"leverage": leverage, "tx_hash": sub.TxHash}).Info("leverage updated")
	}
	return sub.TxHash, nil
}

// InitialMarginFraction is Lighter's encoding of leverage, in basis points.
func InitialMarginFraction(leverage int) int {
	return 10000 / leverage
}

// Result is what a successful submission reports back.
type Result struct {
	Ticker           string           `json:"ticker"`
	MarketID         int              `json:"market_id"`
	TxHash           string           `json:"tx_hash"`
	Payload          []byte           `json:"-"`
	Status           string           `json:"status"`
	ClientOrderIndex int64            `json:"client_order_index,omitempty"`
	BaseAmount       int64            `json:"scaled_base_amount,omitempty"`
	Price            int64            `json:"scaled_price,omitempty"`
	IsAsk            bool             `json:"is_ask"`
	LeverageTxHash   string           `json:"leverage_tx_hash,omitempty"`
	Leverage         int              `json:"leverage,omitempty"`
	Receipt          *confirm.Receipt `json:"-"`
}

const (
	StatusSubmitted = "submitted"
	StatusConfirmed = "confirmed"
)
