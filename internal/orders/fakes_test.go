package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"lighter-mcp/internal/account"
	"lighter-mcp/internal/confirm"
	"lighter-mcp/internal/exchange"
	"lighter-mcp/internal/exchange/lighter"
	"lighter-mcp/internal/market"
	"lighter-mcp/internal/session"
	"lighter-mcp/internal/signer"
)

const testWallet = "0xAbC0000000000000000000000000000000000001"

var testRecords = []session.WalletRecord{{Address: testWallet, ChainID: signer.ChainBase}}

// call records one signed submission made through the fake handle.
type call struct {
	op     string
	params any
}

type fakeHandle struct {
	mu      sync.Mutex
	calls   []call
	failOn  map[string]error
	counter int
}

func (h *fakeHandle) Address() string { return testWallet }

func (h *fakeHandle) record(op string, p any) (signer.Submission, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call{op: op, params: p})
	if err := h.failOn[op]; err != nil {
		return signer.Submission{}, err
	}
	h.counter++
	payload, _ := json.Marshal(p)
	return signer.Submission{Payload: payload, TxHash: fmt.Sprintf("0x%s%d", op, h.counter)}, nil
}

func (h *fakeHandle) ops() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.calls))
	for _, c := range h.calls {
		out = append(out, c.op)
	}
	return out
}

func (h *fakeHandle) find(op string) any {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.calls {
		if c.op == op {
			return c.params
		}
	}
	return nil
}

func (h *fakeHandle) UpdateLeverage(_ context.Context, p signer.LeverageParams) (signer.Submission, error) {
	return h.record("update_leverage", p)
}
func (h *fakeHandle) CreateOrder(_ context.Context, p signer.OrderParams) (signer.Submission, error) {
	return h.record("create_order", p)
}
func (h *fakeHandle) CreateMarketOrder(_ context.Context, p signer.MarketOrderParams) (signer.Submission, error) {
	return h.record("create_market_order", p)
}
func (h *fakeHandle) CancelOrder(_ context.Context, p signer.CancelParams) (signer.Submission, error) {
	return h.record("cancel_order", p)
}
func (h *fakeHandle) CreateTpLimitOrder(_ context.Context, p signer.TriggerOrderParams) (signer.Submission, error) {
	return h.record("create_tp_limit_order", p)
}
func (h *fakeHandle) CreateSlLimitOrder(_ context.Context, p signer.TriggerOrderParams) (signer.Submission, error) {
	return h.record("create_sl_limit_order", p)
}
func (h *fakeHandle) Withdraw(_ context.Context, p signer.WithdrawParams) (signer.Submission, error) {
	return h.record("withdraw", p)
}
func (h *fakeHandle) ChangePubKey(_ context.Context, p signer.ChangePubKeyParams) (signer.Submission, error) {
	return h.record("change_pub_key", p)
}
func (h *fakeHandle) GenerateAPIKey(context.Context) (signer.APIKeyPair, error) {
	return signer.APIKeyPair{PublicKey: "0xabcdef", KeyRef: "key-1"}, nil
}
func (h *fakeHandle) SignTransaction(_ context.Context, _ string, unsigned []byte) ([]byte, error) {
	return unsigned, nil
}

type fakeFacade struct {
	handle   *fakeHandle
	noSigner bool
	resolves int
	messages []string
}

func (f *fakeFacade) WalletRecords(context.Context) ([]session.WalletRecord, error) {
	return testRecords, nil
}

func (f *fakeFacade) ResolveAccount(context.Context, string, string) (signer.Handle, error) {
	f.resolves++
	if f.noSigner {
		return nil, signer.ErrNoSigner
	}
	return f.handle, nil
}

func (f *fakeFacade) SignMessage(_ context.Context, message, _, _ string) (string, error) {
	f.messages = append(f.messages, message)
	return "0xsig", nil
}

type fakeExchange struct {
	mu        sync.Mutex
	account   *exchange.Account
	accErr    error
	bids      []exchange.BookOrder
	txStates  []exchange.TxState
	txCalls   int
	network   int
	apiKeys   []lighter.APIKey
	lastToken string
}

func (f *fakeExchange) AccountByL1Address(context.Context, string) (*exchange.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.network++
	if f.accErr != nil {
		return nil, f.accErr
	}
	return f.account, nil
}

func (f *fakeExchange) OrderBookOrders(_ context.Context, marketID, _ int) (*exchange.OrderBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.network++
	return &exchange.OrderBook{MarketID: marketID, Bids: f.bids}, nil
}

func (f *fakeExchange) TxStatus(_ context.Context, hash string) (exchange.TxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.network++
	i := f.txCalls
	if i >= len(f.txStates) {
		i = len(f.txStates) - 1
	}
	f.txCalls++
	st := f.txStates[i]
	return exchange.TxStatus{Hash: hash, Name: string(st), State: st}, nil
}

func (f *fakeExchange) ReferralPoints(_ context.Context, idx int64, token string) (*lighter.ReferralPoints, error) {
	f.lastToken = token
	return &lighter.ReferralPoints{AccountIndex: idx, ReferralPoints: "12.5"}, nil
}

func (f *fakeExchange) APIKeys(context.Context, int64) ([]lighter.APIKey, error) {
	return f.apiKeys, nil
}

type fixture struct {
	orch   *Orchestrator
	ex     *fakeExchange
	facade *fakeFacade
	handle *fakeHandle
	caller Caller
}

var fixedNow = time.UnixMilli(1_700_000_000_123)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := market.LoadEmbedded()
	require.NoError(t, err)

	ex := &fakeExchange{
		account: &exchange.Account{
			Index:            42,
			L1Address:        testWallet,
			AvailableBalance: decimal.RequireFromString("1000"),
		},
		bids:     []exchange.BookOrder{{Price: decimal.RequireFromString("4000")}},
		txStates: []exchange.TxState{exchange.TxPending, exchange.TxConfirmed},
	}
	handle := &fakeHandle{failOn: map[string]error{}}
	facade := &fakeFacade{handle: handle}

	sessions := session.NewRegistry(nil, nil)
	_, err = sessions.Bind("sess-1", testWallet, testRecords)
	require.NoError(t, err)

	waiter := confirm.NewWaiter(ex, confirm.Policy{Timeout: time.Second, Interval: 5 * time.Millisecond}, nil)
	orch := New(catalog, sessions, account.NewResolver(ex, nil), ex, waiter, Options{
		DefaultLeverage: 10,
		MaxSlippage:     decimal.RequireFromString("0.05"),
	}, nil)
	orch.SetAccountAPI(ex)
	orch.now = func() time.Time { return fixedNow }

	return &fixture{
		orch:   orch,
		ex:     ex,
		facade: facade,
		handle: handle,
		caller: Caller{SessionID: "sess-1", Signer: facade},
	}
}

func position(marketID, sign int, size, entry, value string) exchange.Position {
	return exchange.Position{
		MarketID:      marketID,
		Sign:          sign,
		Size:          decimal.RequireFromString(size),
		AvgEntryPrice: decimal.RequireFromString(entry),
		PositionValue: decimal.RequireFromString(value),
	}
}

func dptr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
