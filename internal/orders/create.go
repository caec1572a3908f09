package orders

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/market"
	"lighter-mcp/internal/signer"
)

type MarketOrderRequest struct {
	Ticker      string
	BaseAmount  decimal.Decimal
	IsAsk       bool
	Leverage    int
	APIKeyIndex int
}

type LimitOrderRequest struct {
	Ticker      string
	BaseAmount  decimal.Decimal
	Price       decimal.Decimal
	IsAsk       bool
	Leverage    int
	APIKeyIndex int
}

// CreateMarketOrder bounds the fill around the top bid, sets leverage,
// then submits an immediate-or-cancel order.
func (o *Orchestrator) CreateMarketOrder(ctx context.Context, c Caller, req MarketOrderRequest) (*Result, error) {
	leverage, err := o.leverageOrDefault(req.Leverage)
	if err != nil {
		return nil, err
	}
	oc, err := o.prepare(ctx, c, req.Ticker, req.APIKeyIndex)
	if err != nil {
		return nil, err
	}
	baseAmount, err := oc.market.ScalePositiveAmount("base_amount", req.BaseAmount)
	if err != nil {
		return nil, err
	}

	topBid, err := o.topBid(ctx, oc.market)
	if err != nil {
		return nil, err
	}
	bound, err := o.executionBound(oc.market, topBid, req.IsAsk)
	if err != nil {
		return nil, err
	}

	levHash, err := o.updateLeverage(ctx, oc, leverage)
	if err != nil {
		return nil, err
	}

	coi := o.clientOrderIndex()
	sub, err := oc.handle.CreateMarketOrder(ctx, signer.MarketOrderParams{
		Account:           oc.signAs,
		MarketIndex:       oc.market.MarketID,
		ClientOrderIndex:  coi,
		BaseAmount:        baseAmount,
		AvgExecutionPrice: bound,
		IsAsk:             req.IsAsk,
		ReduceOnly:        false,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.OrderRejected, err, "Market order failed").WithTx(levHash)
	}

	if o.log != nil {
		o.log.WithFields(oc.fields()).WithFields(logrus.Fields{
			"tx_hash":    sub.TxHash,
			"base":       baseAmount,
			"price_cap":  bound,
			"is_ask":     req.IsAsk,
			"top_bid":    topBid.String(),
			"client_idx": coi,
		}).Info("market order submitted")
	}
	return &Result{
		Ticker:           oc.market.Ticker,
		MarketID:         oc.market.MarketID,
		TxHash:           sub.TxHash,
		Payload:          sub.Payload,
		Status:           StatusSubmitted,
		ClientOrderIndex: coi,
		BaseAmount:       baseAmount,
		Price:            bound,
		IsAsk:            req.IsAsk,
		LeverageTxHash:   levHash,
		Leverage:         leverage,
	}, nil
}

// CreateLimitOrder submits a good-till-time order at the scaled price.
func (o *Orchestrator) CreateLimitOrder(ctx context.Context, c Caller, req LimitOrderRequest) (*Result, error) {
	leverage, err := o.leverageOrDefault(req.Leverage)
	if err != nil {
		return nil, err
	}
	oc, err := o.prepare(ctx, c, req.Ticker, req.APIKeyIndex)
	if err != nil {
		return nil, err
	}
	baseAmount, err := oc.market.ScalePositiveAmount("base_amount", req.BaseAmount)
	if err != nil {
		return nil, err
	}
	price, err := oc.market.ScalePositivePrice("price", req.Price)
	if err != nil {
		return nil, err
	}

	levHash, err := o.updateLeverage(ctx, oc, leverage)
	if err != nil {
		return nil, err
	}

	coi := o.clientOrderIndex()
	sub, err := oc.handle.CreateOrder(ctx, signer.OrderParams{
		Account:          oc.signAs,
		MarketIndex:      oc.market.MarketID,
		ClientOrderIndex: coi,
		BaseAmount:       baseAmount,
		Price:            price,
		IsAsk:            req.IsAsk,
		OrderType:        signer.OrderTypeLimit,
		TimeInForce:      signer.GoodTillTime,
		ReduceOnly:       false,
		OrderExpiry:      DefaultOrderExpiry,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.OrderRejected, err, "Limit order failed").WithTx(levHash)
	}

	if o.log != nil {
		o.log.WithFields(oc.fields()).WithFields(logrus.Fields{
			"tx_hash": sub.TxHash,
			"base":    baseAmount,
			"price":   price,
			"is_ask":  req.IsAsk,
		}).Info("limit order submitted")
	}
	return &Result{
		Ticker:           oc.market.Ticker,
		MarketID:         oc.market.MarketID,
		TxHash:           sub.TxHash,
		Payload:          sub.Payload,
		Status:           StatusSubmitted,
		ClientOrderIndex: coi,
		BaseAmount:       baseAmount,
		Price:            price,
		IsAsk:            req.IsAsk,
		LeverageTxHash:   levHash,
		Leverage:         leverage,
	}, nil
}

func (o *Orchestrator) topBid(ctx context.Context, d market.Descriptor) (decimal.Decimal, error) {
	book, err := o.market.OrderBookOrders(ctx, d.MarketID, 1)
	if err != nil {
		return decimal.Zero, err
	}
	if len(book.Bids) == 0 || !book.Bids[0].Price.IsPositive() {
		return decimal.Zero, apperr.New(apperr.NoLiquidity, "No bids in the %s order book", d.Ticker)
	}
	return book.Bids[0].Price, nil
}

// executionBound is the worst acceptable average fill: above the reference
// price for bids, below it for asks.
func (o *Orchestrator) executionBound(d market.Descriptor, ref decimal.Decimal, isAsk bool) (int64, error) {
	factor := decimal.NewFromInt(1).Add(o.opts.MaxSlippage)
	if isAsk {
		factor = decimal.NewFromInt(1).Sub(o.opts.MaxSlippage)
	}
	return d.ScalePrice(ref.Mul(factor))
}
