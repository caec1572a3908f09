package orders

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/exchange"
	"lighter-mcp/internal/signer"
)

func TestCreateLimitOrderScalesETH(t *testing.T) {
	f := newFixture(t)

	res, err := f.orch.CreateLimitOrder(context.Background(), f.caller, LimitOrderRequest{
		Ticker:     "eth",
		BaseAmount: decimal.RequireFromString("0.5"),
		Price:      decimal.RequireFromString("4000.25"),
		Leverage:   5,
	})
	require.NoError(t, err)

	assert.Equal(t, "ETH", res.Ticker)
	assert.Equal(t, int64(5000), res.BaseAmount)
	assert.Equal(t, int64(400025), res.Price)
	assert.Equal(t, fixedNow.UnixMilli(), res.ClientOrderIndex)
	assert.Equal(t, StatusSubmitted, res.Status)
	assert.Equal(t, []string{"update_leverage", "create_order"}, f.handle.ops())

	lev := f.handle.find("update_leverage").(signer.LeverageParams)
	assert.Equal(t, 2000, lev.InitialMarginFraction)
	assert.Equal(t, exchange.CrossMargin, lev.MarginMode)
	assert.Equal(t, int64(42), lev.AccountIndex)

	order := f.handle.find("create_order").(signer.OrderParams)
	assert.Equal(t, signer.GoodTillTime, order.TimeInForce)
	assert.Equal(t, DefaultOrderExpiry, order.OrderExpiry)
	assert.False(t, order.ReduceOnly)
	assert.Equal(t, res.LeverageTxHash, "0xupdate_leverage1")
}

func TestCreateMarketOrderBoundsAroundTopBid(t *testing.T) {
	cases := []struct {
		name  string
		isAsk bool
		bound int64
	}{
		{"buy", false, 420000},
		{"sell", true, 380000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			res, err := f.orch.CreateMarketOrder(context.Background(), f.caller, MarketOrderRequest{
				Ticker:     "ETH",
				BaseAmount: decimal.RequireFromString("0.1"),
				IsAsk:      tc.isAsk,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.bound, res.Price)
			assert.Equal(t, int64(1000), res.BaseAmount)
			assert.Equal(t, 10, res.Leverage)

			mo := f.handle.find("create_market_order").(signer.MarketOrderParams)
			assert.Equal(t, tc.bound, mo.AvgExecutionPrice)
			assert.False(t, mo.ReduceOnly)
		})
	}
}

func TestCreateMarketOrderNoLiquidity(t *testing.T) {
	f := newFixture(t)
	f.ex.bids = nil

	_, err := f.orch.CreateMarketOrder(context.Background(), f.caller, MarketOrderRequest{
		Ticker:     "ETH",
		BaseAmount: decimal.RequireFromString("0.1"),
	})
	assert.True(t, apperr.Is(err, apperr.NoLiquidity))
	assert.Empty(t, f.handle.ops())
}

func TestOversizedOrderIsNeverSigned(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.CreateLimitOrder(context.Background(), f.caller, LimitOrderRequest{
		Ticker:     "ETH",
		BaseAmount: decimal.RequireFromString("1000000000000000"),
		Price:      decimal.NewFromInt(4000),
	})
	assert.Equal(t, apperr.InvalidParameter, apperr.KindOf(err))

	_, err = f.orch.CreateMarketOrder(context.Background(), f.caller, MarketOrderRequest{
		Ticker:     "ETH",
		BaseAmount: decimal.RequireFromString("1844674407370955.1617"),
	})
	assert.Equal(t, apperr.InvalidParameter, apperr.KindOf(err))
	assert.Empty(t, f.handle.ops())
}

func TestLeverageFailureAbortsOrder(t *testing.T) {
	f := newFixture(t)
	f.handle.failOn["update_leverage"] = errors.New("nonce too low")

	_, err := f.orch.CreateLimitOrder(context.Background(), f.caller, LimitOrderRequest{
		Ticker:     "ETH",
		BaseAmount: decimal.RequireFromString("0.5"),
		Price:      decimal.RequireFromString("4000"),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.LeverageUpdateFailed, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "nonce too low")
	assert.Equal(t, []string{"update_leverage"}, f.handle.ops())
}

func TestOrderFailureReportsLeverageHash(t *testing.T) {
	f := newFixture(t)
	f.handle.failOn["create_market_order"] = errors.New("insufficient margin")

	_, err := f.orch.CreateMarketOrder(context.Background(), f.caller, MarketOrderRequest{
		Ticker:     "ETH",
		BaseAmount: decimal.RequireFromString("0.1"),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.OrderRejected, apperr.KindOf(err))

	var e *apperr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, []string{"0xupdate_leverage1"}, e.TxHashes)
	assert.Contains(t, err.Error(), "already submitted: 0xupdate_leverage1")
}

func TestInvalidInputFailsBeforeNetwork(t *testing.T) {
	cases := []struct {
		name string
		run  func(f *fixture) error
		kind apperr.Kind
	}{
		{
			name: "unknown ticker on market order",
			run: func(f *fixture) error {
				_, err := f.orch.CreateMarketOrder(context.Background(), f.caller, MarketOrderRequest{
					Ticker: "NOPE", BaseAmount: decimal.NewFromInt(1),
				})
				return err
			},
			kind: apperr.TickerNotFound,
		},
		{
			name: "unknown ticker on cancel",
			run: func(f *fixture) error {
				_, err := f.orch.CancelOrder(context.Background(), f.caller, CancelOrderRequest{Ticker: "NOPE", OrderIndex: 7})
				return err
			},
			kind: apperr.TickerNotFound,
		},
		{
			name: "empty ticker on cancel",
			run: func(f *fixture) error {
				_, err := f.orch.CancelOrder(context.Background(), f.caller, CancelOrderRequest{OrderIndex: 7})
				return err
			},
			kind: apperr.TickerNotFound,
		},
		{
			name: "empty ticker on close",
			run: func(f *fixture) error {
				_, err := f.orch.ClosePosition(context.Background(), f.caller, ClosePositionRequest{})
				return err
			},
			kind: apperr.TickerNotFound,
		},
		{
			name: "leverage out of range",
			run: func(f *fixture) error {
				_, err := f.orch.CreateMarketOrder(context.Background(), f.caller, MarketOrderRequest{
					Ticker: "ETH", BaseAmount: decimal.NewFromInt(1), Leverage: 101,
				})
				return err
			},
			kind: apperr.InvalidParameter,
		},
		{
			name: "negative order index",
			run: func(f *fixture) error {
				_, err := f.orch.CancelOrder(context.Background(), f.caller, CancelOrderRequest{Ticker: "ETH", OrderIndex: -1})
				return err
			},
			kind: apperr.InvalidParameter,
		},
		{
			name: "no tp or sl",
			run: func(f *fixture) error {
				_, err := f.orch.AddTpSl(context.Background(), f.caller, TpSlRequest{Ticker: "ETH"})
				return err
			},
			kind: apperr.NoOrdersSpecified,
		},
		{
			name: "withdraw amount overflows units",
			run: func(f *fixture) error {
				_, err := f.orch.Withdraw(context.Background(), f.caller, WithdrawRequest{
					USDCAmount: decimal.RequireFromString("18446744073709.551617"),
				})
				return err
			},
			kind: apperr.InvalidParameter,
		},
		{
			name: "api key index out of range",
			run: func(f *fixture) error {
				_, err := f.orch.ClosePosition(context.Background(), f.caller, ClosePositionRequest{Ticker: "ETH", APIKeyIndex: 255})
				return err
			},
			kind: apperr.InvalidParameter,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			err := tc.run(f)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
			assert.Zero(t, f.ex.network)
			assert.Zero(t, f.facade.resolves)
			assert.Empty(t, f.handle.ops())
		})
	}
}

func TestSessionAndAuthChecks(t *testing.T) {
	f := newFixture(t)
	req := MarketOrderRequest{Ticker: "ETH", BaseAmount: decimal.NewFromInt(1)}

	_, err := f.orch.CreateMarketOrder(context.Background(), Caller{Signer: f.facade}, req)
	assert.Equal(t, apperr.AuthenticationMissing, apperr.KindOf(err))

	_, err = f.orch.CreateMarketOrder(context.Background(), Caller{SessionID: "other", Signer: f.facade}, req)
	assert.Equal(t, apperr.WalletNotSelected, apperr.KindOf(err))

	f.facade.noSigner = true
	_, err = f.orch.CreateMarketOrder(context.Background(), f.caller, req)
	assert.Equal(t, apperr.WalletNotSelected, apperr.KindOf(err))

	assert.Zero(t, f.ex.network)
	assert.Empty(t, f.handle.ops())
}

func TestAccountNotFoundStopsOrder(t *testing.T) {
	f := newFixture(t)
	f.ex.accErr = apperr.New(apperr.AccountNotFound, "Account not found for %s", testWallet)

	_, err := f.orch.CreateLimitOrder(context.Background(), f.caller, LimitOrderRequest{
		Ticker: "ETH", BaseAmount: decimal.NewFromInt(1), Price: decimal.NewFromInt(4000),
	})
	assert.Equal(t, apperr.AccountNotFound, apperr.KindOf(err))
	assert.Empty(t, f.handle.ops())
}

func TestClosePositionNoPosition(t *testing.T) {
	f := newFixture(t)
	f.ex.account.Positions = []exchange.Position{position(0, 1, "0.5", "3000", "1500")}

	_, err := f.orch.ClosePosition(context.Background(), f.caller, ClosePositionRequest{Ticker: "DOGE", PositionIndex: AutoSelect})
	require.Error(t, err)
	assert.Equal(t, apperr.PositionNotFound, apperr.KindOf(err))
	assert.Equal(t, "No positions found for DOGE", err.Error())
	assert.Empty(t, f.handle.ops())
}

func TestClosePositionWaitsForConfirmation(t *testing.T) {
	f := newFixture(t)
	f.ex.account.Positions = []exchange.Position{
		position(0, 1, "0.5", "3000", "1500"),
		position(0, -1, "-0.2", "3100", "620"),
	}

	res, err := f.orch.ClosePosition(context.Background(), f.caller, ClosePositionRequest{Ticker: "ETH", PositionIndex: AutoSelect})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, res.Status)
	assert.True(t, res.IsAsk)
	assert.Equal(t, int64(5000), res.BaseAmount)
	assert.Equal(t, int64(150000), res.Price)
	require.NotNil(t, res.Receipt)
	assert.Equal(t, 2, res.Receipt.Attempts)

	mo := f.handle.find("create_market_order").(signer.MarketOrderParams)
	assert.True(t, mo.ReduceOnly)
	assert.NotContains(t, f.handle.ops(), "update_leverage")
}

func TestClosePositionShortBuysBack(t *testing.T) {
	f := newFixture(t)
	f.ex.account.Positions = []exchange.Position{
		position(0, 1, "0.5", "3000", "1500"),
		position(0, -1, "0.2", "3100", "620"),
	}

	res, err := f.orch.ClosePosition(context.Background(), f.caller, ClosePositionRequest{Ticker: "ETH", PositionIndex: 1})
	require.NoError(t, err)
	assert.False(t, res.IsAsk)
	assert.Equal(t, int64(2000), res.BaseAmount)
	assert.Equal(t, int64(620000), res.Price)
}

func TestClosePositionIndexOutOfRange(t *testing.T) {
	f := newFixture(t)
	f.ex.account.Positions = []exchange.Position{position(0, 1, "0.5", "3000", "1500")}

	_, err := f.orch.ClosePosition(context.Background(), f.caller, ClosePositionRequest{Ticker: "ETH", PositionIndex: 3})
	require.Error(t, err)
	assert.Equal(t, apperr.PositionIndexOutOfRange, apperr.KindOf(err))
	assert.Equal(t, "Position index 3 out of range. Available positions: 0-0", err.Error())
}

func TestClosePositionFailedOnChain(t *testing.T) {
	f := newFixture(t)
	f.ex.account.Positions = []exchange.Position{position(0, 1, "0.5", "3000", "1500")}
	f.ex.txStates = []exchange.TxState{exchange.TxFailed}

	_, err := f.orch.ClosePosition(context.Background(), f.caller, ClosePositionRequest{Ticker: "ETH", PositionIndex: AutoSelect})
	assert.Equal(t, apperr.TransactionFailed, apperr.KindOf(err))
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)

	res, err := f.orch.CancelOrder(context.Background(), f.caller, CancelOrderRequest{Ticker: "BTC", OrderIndex: 281474976710656})
	require.NoError(t, err)
	assert.Equal(t, 1, res.MarketID)

	p := f.handle.find("cancel_order").(signer.CancelParams)
	assert.Equal(t, int64(281474976710656), p.OrderIndex)
	assert.Equal(t, 1, p.MarketIndex)
}

func TestAddTpSlUsesConsecutiveClientIndexes(t *testing.T) {
	f := newFixture(t)
	f.ex.account.Positions = []exchange.Position{position(0, 1, "0.5", "3000", "1500")}

	res, err := f.orch.AddTpSl(context.Background(), f.caller, TpSlRequest{
		Ticker:          "ETH",
		PositionIndex:   AutoSelect,
		TakeProfitPrice: dptr("3500"),
		StopLossPrice:   dptr("2800.5"),
	})
	require.NoError(t, err)
	require.NotNil(t, res.TakeProfit)
	require.NotNil(t, res.StopLoss)
	assert.Equal(t, res.TakeProfit.ClientOrderIndex+1, res.StopLoss.ClientOrderIndex)
	assert.Equal(t, int64(350000), res.TakeProfit.TriggerPrice)
	assert.Equal(t, int64(280050), res.StopLoss.TriggerPrice)
	assert.True(t, res.IsAsk)

	sl := f.handle.find("create_sl_limit_order").(signer.TriggerOrderParams)
	assert.True(t, sl.ReduceOnly)
	assert.Equal(t, sl.TriggerPrice, sl.Price)
	assert.Equal(t, int64(5000), sl.BaseAmount)
}

func TestAddTpSlOnlyStopLoss(t *testing.T) {
	f := newFixture(t)
	f.ex.account.Positions = []exchange.Position{position(0, -1, "0.5", "3000", "1500")}

	res, err := f.orch.AddTpSl(context.Background(), f.caller, TpSlRequest{
		Ticker: "ETH", PositionIndex: AutoSelect, StopLossPrice: dptr("3300"),
	})
	require.NoError(t, err)
	assert.Nil(t, res.TakeProfit)
	assert.Equal(t, fixedNow.UnixMilli()+1, res.StopLoss.ClientOrderIndex)
	assert.False(t, res.IsAsk)
	assert.Equal(t, []string{"create_sl_limit_order"}, f.handle.ops())
}

func TestAddTpSlPartialFailureListsTakeProfitHash(t *testing.T) {
	f := newFixture(t)
	f.ex.account.Positions = []exchange.Position{position(0, 1, "0.5", "3000", "1500")}
	f.handle.failOn["create_sl_limit_order"] = errors.New("trigger too close")

	_, err := f.orch.AddTpSl(context.Background(), f.caller, TpSlRequest{
		Ticker: "ETH", PositionIndex: AutoSelect, TakeProfitPrice: dptr("3500"), StopLossPrice: dptr("2800"),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.OrderRejected, apperr.KindOf(err))
	assert.True(t, strings.HasPrefix(err.Error(), "Stop Loss order failed"))
	assert.Contains(t, err.Error(), "0xcreate_tp_limit_order1")
}

func TestAddTpSlIgnoresZeroValuePositions(t *testing.T) {
	f := newFixture(t)
	f.ex.account.Positions = []exchange.Position{position(0, 1, "0", "0", "0")}

	_, err := f.orch.AddTpSl(context.Background(), f.caller, TpSlRequest{
		Ticker: "ETH", PositionIndex: AutoSelect, TakeProfitPrice: dptr("3500"),
	})
	assert.Equal(t, apperr.PositionNotFound, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "Please open a position first")
}

func TestWithdrawWaitsForConfirmation(t *testing.T) {
	f := newFixture(t)

	res, err := f.orch.Withdraw(context.Background(), f.caller, WithdrawRequest{USDCAmount: decimal.RequireFromString("25.5")})
	require.NoError(t, err)
	assert.Equal(t, int64(25_500_000), res.ScaledAmount)
	assert.Equal(t, int64(42), res.AccountIndex)
	assert.Equal(t, 2, f.ex.txCalls)

	p := f.handle.find("withdraw").(signer.WithdrawParams)
	assert.Equal(t, int64(25_500_000), p.USDCAmount)
}

func TestWithdrawRejectsOverdraw(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Withdraw(context.Background(), f.caller, WithdrawRequest{USDCAmount: decimal.NewFromInt(5000)})
	assert.Equal(t, apperr.InvalidParameter, apperr.KindOf(err))
	assert.Empty(t, f.handle.ops())

	_, err = f.orch.Withdraw(context.Background(), f.caller, WithdrawRequest{USDCAmount: decimal.Zero})
	assert.Equal(t, apperr.InvalidParameter, apperr.KindOf(err))
}
