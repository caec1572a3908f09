// Package tools exposes the orchestrator as named tools with JSON input
// schemas. Every call returns the same envelope: {success, message, data}
// on success and {success:false, message} on failure.
package tools

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/deposit"
	"lighter-mcp/internal/exchange"
	"lighter-mcp/internal/funding"
	"lighter-mcp/internal/orders"
	"lighter-mcp/internal/session"
)

// Orders is the orchestrator surface the tools drive.
type Orders interface {
	UserAddresses(ctx context.Context, c orders.Caller) (*orders.UserAddresses, error)
	ChooseWallet(ctx context.Context, c orders.Caller, address string) (session.WalletRecord, error)
	CreateMarketOrder(ctx context.Context, c orders.Caller, req orders.MarketOrderRequest) (*orders.Result, error)
	CreateLimitOrder(ctx context.Context, c orders.Caller, req orders.LimitOrderRequest) (*orders.Result, error)
	ClosePosition(ctx context.Context, c orders.Caller, req orders.ClosePositionRequest) (*orders.Result, error)
	CancelOrder(ctx context.Context, c orders.Caller, req orders.CancelOrderRequest) (*orders.Result, error)
	AddTpSl(ctx context.Context, c orders.Caller, req orders.TpSlRequest) (*orders.TpSlResult, error)
	Price(ctx context.Context, ticker string, limit int) (*orders.PriceQuote, error)
	Balances(ctx context.Context, c orders.Caller) (*orders.Balances, error)
	Positions(ctx context.Context, c orders.Caller) (*exchange.Account, []orders.PositionView, error)
	ReferralPoints(ctx context.Context, c orders.Caller, validFor time.Duration, apiKeyIndex int) (*orders.ReferralResult, error)
	SetupAPIKey(ctx context.Context, c orders.Caller, req orders.SetupAPIKeyRequest) (*orders.SetupAPIKeyResult, error)
	Withdraw(ctx context.Context, c orders.Caller, req orders.WithdrawRequest) (*orders.WithdrawResult, error)
	Deposit(ctx context.Context, c orders.Caller, amount decimal.Decimal) (*deposit.Result, error)
}

// Funding is the funding-rate surface. Compare may be unavailable, in
// which case compare_hyperliquid is rejected.
type Funding interface {
	Rates(ctx context.Context, symbols []string) ([]exchange.FundingRate, error)
	Compare(ctx context.Context, symbols []string) ([]funding.Spread, error)
}

type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Tool is one named operation. Handlers return the success message and
// data, or an error that becomes a failure envelope.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage

	// Public tools work without a wallet session.
	Public  bool
	handler func(ctx context.Context, c orders.Caller, args json.RawMessage) (string, any, error)
}

type Registry struct {
	tools   map[string]*Tool
	orders  Orders
	funding Funding
	log     *logrus.Entry
}

func NewRegistry(o Orders, f Funding, log *logrus.Entry) *Registry {
	r := &Registry{tools: make(map[string]*Tool), orders: o, funding: f, log: log}
	r.registerWallet()
	r.registerTrading()
	r.registerMarket()
	r.registerFunds()
	return r
}

func (r *Registry) register(t *Tool) {
	if _, dup := r.tools[t.Name]; dup {
		panic("tools: duplicate tool " + t.Name)
	}
	r.tools[t.Name] = t
}

// List returns the tools sorted by name.
func (r *Registry) List() []*Tool {
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Call runs the named tool. Errors never escape: every outcome, including
// an unknown tool or a panic in a handler, is an envelope.
func (r *Registry) Call(ctx context.Context, name string, c orders.Caller, args json.RawMessage) (env Envelope) {
	t, ok := r.tools[name]
	if !ok {
		return failure(apperr.New(apperr.InvalidParameter, "Unknown tool %q", name))
	}

	log := r.log
	if log != nil {
		log = log.WithFields(logrus.Fields{"tool": name, "session_id": c.SessionID})
		log.Debug("tool called")
	}
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			if log != nil {
				log.WithField("panic", p).Error("tool panicked")
			}
			env = failure(apperr.New(apperr.UpstreamError, "Internal error while running %s", name))
		}
	}()

	if !t.Public && (c.SessionID == "" || c.Signer == nil) {
		return failure(apperr.New(apperr.AuthenticationMissing, "No authentication context on request"))
	}
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	msg, data, err := t.handler(ctx, c, args)
	if err != nil {
		if log != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"kind":    apperr.KindOf(err),
				"elapsed": time.Since(start).String(),
			}).Warn("tool failed")
		}
		return failure(err)
	}
	if log != nil {
		log.WithField("elapsed", time.Since(start).String()).Info("tool completed")
	}
	return Envelope{Success: true, Message: msg, Data: data}
}

func failure(err error) Envelope {
	return Envelope{Success: false, Message: err.Error()}
}

// decode parses tool arguments, reporting malformed input as
// InvalidParameter.
func decode(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return apperr.Wrap(apperr.InvalidParameter, err, "Invalid tool arguments")
	}
	return nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func requireTicker(ticker string) error {
	if ticker == "" {
		return apperr.New(apperr.InvalidParameter, "ticker is required")
	}
	return nil
}
