package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/exchange"
	"lighter-mcp/internal/exchange/lighter"
	"lighter-mcp/internal/session"
)

// AccountAPI is the part of the Lighter API that needs an account index.
type AccountAPI interface {
	ReferralPoints(ctx context.Context, accountIndex int64, authToken string) (*lighter.ReferralPoints, error)
	APIKeys(ctx context.Context, accountIndex int64) ([]lighter.APIKey, error)
}

func (o *Orchestrator) SetAccountAPI(api AccountAPI) { o.accountAPI = api }

type UserAddresses struct {
	Wallets  []session.WalletRecord `json:"wallets"`
	Selected string                 `json:"selected,omitempty"`
}

// UserAddresses lists the caller's wallets and the one bound to the session.
func (o *Orchestrator) UserAddresses(ctx context.Context, c Caller) (*UserAddresses, error) {
	if c.SessionID == "" || c.Signer == nil {
		return nil, apperr.New(apperr.AuthenticationMissing, "No authentication context on request")
	}
	records, err := c.Signer.WalletRecords(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, err, "Failed to list wallets")
	}
	out := &UserAddresses{Wallets: records}
	out.Selected, _ = o.sessions.Get(c.SessionID)
	return out, nil
}

// ChooseWallet binds address to the caller's session.
func (o *Orchestrator) ChooseWallet(ctx context.Context, c Caller, address string) (session.WalletRecord, error) {
	if c.SessionID == "" || c.Signer == nil {
		return session.WalletRecord{}, apperr.New(apperr.AuthenticationMissing, "No authentication context on request")
	}
	records, err := c.Signer.WalletRecords(ctx)
	if err != nil {
		return session.WalletRecord{}, apperr.Wrap(apperr.UpstreamError, err, "Failed to list wallets")
	}
	return o.sessions.Bind(c.SessionID, address, records)
}

type PriceQuote struct {
	Ticker   string               `json:"ticker"`
	MarketID int                  `json:"market_id"`
	TopBid   decimal.Decimal      `json:"top_bid"`
	Bids     []exchange.BookOrder `json:"bids"`
}

// Price needs no session; it reads the public order book.
func (o *Orchestrator) Price(ctx context.Context, ticker string, limit int) (*PriceQuote, error) {
	if limit == 0 {
		limit = 10
	}
	if limit < 1 || limit > 100 {
		return nil, apperr.New(apperr.InvalidParameter, "limit must be between 1 and 100")
	}
	d, err := o.catalog.Resolve(ticker)
	if err != nil {
		return nil, err
	}
	book, err := o.market.OrderBookOrders(ctx, d.MarketID, limit)
	if err != nil {
		return nil, err
	}
	if len(book.Bids) == 0 {
		return nil, apperr.New(apperr.NoLiquidity, "No bids in the %s order book", d.Ticker)
	}
	return &PriceQuote{Ticker: d.Ticker, MarketID: d.MarketID, TopBid: book.Bids[0].Price, Bids: book.Bids}, nil
}

type PositionView struct {
	Ticker string `json:"ticker"`
	exchange.Position
}

// Positions returns the account's active positions.
func (o *Orchestrator) Positions(ctx context.Context, c Caller) (*exchange.Account, []PositionView, error) {
	wallet, err := o.requireWallet(c)
	if err != nil {
		return nil, nil, err
	}
	acct, err := o.accounts.Resolve(ctx, wallet)
	if err != nil {
		return nil, nil, err
	}
	var out []PositionView
	for _, p := range acct.Positions {
		if !p.Active() {
			continue
		}
		ticker := strings.ToUpper(p.Symbol)
		if d, ok := o.catalog.ByMarketID(p.MarketID); ok {
			ticker = d.Ticker
		}
		out = append(out, PositionView{Ticker: ticker, Position: p})
	}
	return acct, out, nil
}

type Balances struct {
	Wallet           string `json:"wallet"`
	Found            bool   `json:"found"`
	AccountIndex     int64  `json:"account_index,omitempty"`
	AvailableBalance string `json:"available_balance"`
	Collateral       string `json:"collateral"`
	Status           string `json:"status"`
}

// Balances reports an unregistered wallet as a zero balance, not an error.
func (o *Orchestrator) Balances(ctx context.Context, c Caller) (*Balances, error) {
	wallet, err := o.requireWallet(c)
	if err != nil {
		return nil, err
	}
	acct, found, err := o.accounts.Lookup(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if !found {
		return &Balances{Wallet: wallet, AvailableBalance: "0", Collateral: "0", Status: "No account found"}, nil
	}
	return &Balances{
		Wallet:           wallet,
		Found:            true,
		AccountIndex:     acct.Index,
		AvailableBalance: acct.AvailableBalance.String(),
		Collateral:       acct.Collateral.String(),
		Status:           "active",
	}, nil
}

// AuthTokenMessage is the message a wallet signs to authenticate API
// reads for accountIndex until expiry.
func AuthTokenMessage(accountIndex int64, apiKeyIndex int, expiry time.Time) string {
	return fmt.Sprintf("%d:%d:%d", accountIndex, apiKeyIndex, expiry.Unix())
}

type ReferralResult struct {
	Wallet         string `json:"wallet"`
	AccountIndex   int64  `json:"account_index"`
	ReferralPoints string `json:"referral_points"`
	LastUpdated    string `json:"last_updated"`
}

func (o *Orchestrator) ReferralPoints(ctx context.Context, c Caller, validFor time.Duration, apiKeyIndex int) (*ReferralResult, error) {
	if o.accountAPI == nil {
		return nil, apperr.New(apperr.UpstreamError, "referral lookups are not configured")
	}
	if validFor <= 0 {
		return nil, apperr.New(apperr.InvalidParameter, "token validity must be positive")
	}
	oc, err := o.prepareAccount(ctx, c, apiKeyIndex)
	if err != nil {
		return nil, err
	}

	msg := AuthTokenMessage(oc.account.Index, apiKeyIndex, o.now().Add(validFor))
	token, err := c.Signer.SignMessage(ctx, msg, o.opts.ChainID, oc.wallet)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, err, "Failed to create authentication signature")
	}

	pts, err := o.accountAPI.ReferralPoints(ctx, oc.account.Index, token)
	if err != nil {
		return nil, err
	}
	return &ReferralResult{
		Wallet:         oc.wallet,
		AccountIndex:   oc.account.Index,
		ReferralPoints: pts.ReferralPoints,
		LastUpdated:    o.now().UTC().Format(time.RFC3339),
	}, nil
}
