package lighter

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/exchange"
)

type accountsResponse struct {
	envelope
	Total    int           `json:"total"`
	Accounts []accountWire `json:"accounts"`
}

type accountWire struct {
	Index            int64          `json:"index"`
	L1Address        string         `json:"l1_address"`
	AccountType      int            `json:"account_type"`
	AvailableBalance string         `json:"available_balance"`
	Collateral       string         `json:"collateral"`
	TotalAssetValue  string         `json:"total_asset_value"`
	Positions        []positionWire `json:"positions"`
}

type positionWire struct {
	MarketID              int    `json:"market_id"`
	Symbol                string `json:"symbol"`
	Sign                  int    `json:"sign"`
	Position              string `json:"position"`
	AvgEntryPrice         string `json:"avg_entry_price"`
	PositionValue         string `json:"position_value"`
	UnrealizedPnL         string `json:"unrealized_pnl"`
	RealizedPnL           string `json:"realized_pnl"`
	LiquidationPrice      string `json:"liquidation_price"`
	AllocatedMargin       string `json:"allocated_margin"`
	InitialMarginFraction string `json:"initial_margin_fraction"`
	MarginMode            int    `json:"margin_mode"`
	OpenOrderCount        int    `json:"open_order_count"`
}

func (w accountWire) toAccount() *exchange.Account {
	a := &exchange.Account{
		Index:            w.Index,
		L1Address:        w.L1Address,
		AccountType:      w.AccountType,
		AvailableBalance: dec(w.AvailableBalance),
		Collateral:       dec(w.Collateral),
		TotalAssetValue:  dec(w.TotalAssetValue),
		Positions:        make([]exchange.Position, 0, len(w.Positions)),
	}
	for _, p := range w.Positions {
		a.Positions = append(a.Positions, exchange.Position{
			MarketID:              p.MarketID,
			Symbol:                p.Symbol,
			Sign:                  p.Sign,
			Size:                  dec(p.Position),
			AvgEntryPrice:         dec(p.AvgEntryPrice),
			PositionValue:         dec(p.PositionValue),
			UnrealizedPnL:         dec(p.UnrealizedPnL),
			RealizedPnL:           dec(p.RealizedPnL),
			LiquidationPrice:      dec(p.LiquidationPrice),
			AllocatedMargin:       dec(p.AllocatedMargin),
			InitialMarginFraction: dec(p.InitialMarginFraction),
			MarginMode:            exchange.MarginMode(p.MarginMode),
			OpenOrderCount:        p.OpenOrderCount,
		})
	}
	return a
}

// AccountByL1Address looks the account up by wallet address. Lighter's
// "account not found" code maps to AccountNotFound; other non-2xx answers
// map to UpstreamError.
func (c *Client) AccountByL1Address(ctx context.Context, address string) (*exchange.Account, error) {
	return c.account(ctx, "l1_address", address)
}

func (c *Client) AccountByIndex(ctx context.Context, index int64) (*exchange.Account, error) {
	return c.account(ctx, "index", strconv.FormatInt(index, 10))
}

func (c *Client) account(ctx context.Context, by, value string) (*exchange.Account, error) {
	var out accountsResponse
	env, err := c.get(ctx, "/api/v1/account", map[string]string{"by": by, "value": value}, &out)
	if err != nil {
		if env != nil && env.Code == CodeAccountNotFound {
			return nil, apperr.New(apperr.AccountNotFound, "No Lighter account found for %s", value)
		}
		return nil, asUpstream(err, "Account lookup")
	}
	if out.Code == CodeAccountNotFound || len(out.Accounts) == 0 {
		return nil, apperr.New(apperr.AccountNotFound, "No Lighter account found for %s", value)
	}
	if out.Code != CodeOK {
		return nil, apperr.New(apperr.UpstreamError, "Account lookup returned code %d: %s", out.Code, out.Message)
	}
	return out.Accounts[0].toAccount(), nil
}

type APIKey struct {
	AccountIndex int64  `json:"account_index"`
	APIKeyIndex  int    `json:"api_key_index"`
	Nonce        int64  `json:"nonce"`
	PublicKey    string `json:"public_key"`
}

type apiKeysResponse struct {
	envelope
	APIKeys []APIKey `json:"api_keys"`
}

// AllAPIKeys is the api_key_index value that lists every key of an account.
const AllAPIKeys = 255

func (c *Client) APIKeys(ctx context.Context, accountIndex int64) ([]APIKey, error) {
	var out apiKeysResponse
	_, err := c.get(ctx, "/api/v1/apikeys", map[string]string{
		"account_index": strconv.FormatInt(accountIndex, 10),
		"api_key_index": strconv.Itoa(AllAPIKeys),
	}, &out)
	if err != nil {
		return nil, asUpstream(err, "API key lookup")
	}
	if out.Code != CodeOK {
		return nil, errors.Errorf("api key lookup returned code %d: %s", out.Code, out.Message)
	}
	return out.APIKeys, nil
}
