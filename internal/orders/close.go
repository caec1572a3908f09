package orders

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/exchange"
	"lighter-mcp/internal/signer"
)

type ClosePositionRequest struct {
	Ticker        string
	PositionIndex int
	APIKeyIndex   int
}

type CancelOrderRequest struct {
	Ticker      string
	OrderIndex  int64
	APIKeyIndex int
}

// ClosePosition submits a reduce-only market order for the full size of the
// selected position and waits for the exchange to confirm it.
func (o *Orchestrator) ClosePosition(ctx context.Context, c Caller, req ClosePositionRequest) (*Result, error) {
	oc, err := o.prepare(ctx, c, req.Ticker, req.APIKeyIndex)
	if err != nil {
		return nil, err
	}

	candidates := openPositions(oc.account.Positions, oc.market.MarketID)
	if len(candidates) == 0 {
		return nil, apperr.New(apperr.PositionNotFound, "No positions found for %s", oc.market.Ticker)
	}
	pos, err := selectPosition(candidates, req.PositionIndex)
	if err != nil {
		return nil, err
	}

	isAsk := closingSide(pos)
	baseAmount, err := oc.market.ScaleAmount(pos.Size.Abs())
	if err != nil {
		return nil, err
	}
	if baseAmount == 0 {
		return nil, apperr.New(apperr.InvalidParameter,
			"Position size %s is below the smallest unit for %s", pos.Size, oc.market.Ticker)
	}
	bound, err := o.closeBound(ctx, oc, pos, isAsk)
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
		IsAsk:             isAsk,
		ReduceOnly:        true,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.OrderRejected, err, "Close order failed")
	}

	log := o.log
	if log != nil {
		log = log.WithFields(oc.fields()).WithField("tx_hash", sub.TxHash)
		log.WithFields(logrus.Fields{"base": baseAmount, "is_ask": isAsk}).Info("close order submitted, waiting for confirmation")
	}

	receipt, err := o.waiter.Wait(ctx, sub.TxHash)
	if err != nil {
		return nil, err
	}
	if !receipt.Confirmed() {
		return nil, apperr.New(apperr.TransactionFailed,
			"Close transaction %s finished with status %s", sub.TxHash, receipt.Status.Name)
	}
	if log != nil {
		log.WithField("attempts", receipt.Attempts).Info("position closed")
	}

	return &Result{
		Ticker:           oc.market.Ticker,
		MarketID:         oc.market.MarketID,
		TxHash:           sub.TxHash,
		Payload:          sub.Payload,
		Status:           StatusConfirmed,
		ClientOrderIndex: coi,
		BaseAmount:       baseAmount,
		Price:            bound,
		IsAsk:            isAsk,
		Receipt:          &receipt,
	}, nil
}

// closeBound derives the execution bound from the entry price: up to twice
// the entry when buying back a short, down to half of it when selling a
// long. Without an entry price it falls back to the book.
func (o *Orchestrator) closeBound(ctx context.Context, oc *orderContext, pos exchange.Position, isAsk bool) (int64, error) {
	if pos.AvgEntryPrice.IsPositive() {
		ref := pos.AvgEntryPrice.Mul(decimal.NewFromInt(2))
		if isAsk {
			ref = pos.AvgEntryPrice.Div(decimal.NewFromInt(2))
		}
		return oc.market.ScalePrice(ref)
	}
	topBid, err := o.topBid(ctx, oc.market)
	if err != nil {
		return 0, err
	}
	return o.executionBound(oc.market, topBid, isAsk)
}

// CancelOrder cancels a resting order by its exchange order index.
func (o *Orchestrator) CancelOrder(ctx context.Context, c Caller, req CancelOrderRequest) (*Result, error) {
	if req.OrderIndex < 0 {
		return nil, apperr.New(apperr.InvalidParameter, "order_index must be non-negative")
	}
	oc, err := o.prepare(ctx, c, req.Ticker, req.APIKeyIndex)
	if err != nil {
		return nil, err
	}

	sub, err := oc.handle.CancelOrder(ctx, signer.CancelParams{
		Account:     oc.signAs,
		MarketIndex: oc.market.MarketID,
		OrderIndex:  req.OrderIndex,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.OrderRejected, err, "Cancel order failed")
	}
	if o.log != nil {
		o.log.WithFields(oc.fields()).WithFields(logrus.Fields{"order_index": req.OrderIndex, "tx_hash": sub.TxHash}).Info("cancel submitted")
	}
	return &Result{
		Ticker:   oc.market.Ticker,
		MarketID: oc.market.MarketID,
		TxHash:   sub.TxHash,
		Payload:  sub.Payload,
		Status:   StatusSubmitted,
	}, nil
}
