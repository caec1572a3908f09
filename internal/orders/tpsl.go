package orders

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/signer"
)

type TpSlRequest struct {
	Ticker          string
	PositionIndex   int
	TakeProfitPrice *decimal.Decimal
	StopLossPrice   *decimal.Decimal
	APIKeyIndex     int
}

type TpSlLeg struct {
	ClientOrderIndex int64  `json:"client_order_index"`
	TriggerPrice     int64  `json:"scaled_trigger_price"`
	TxHash           string `json:"tx_hash"`
}

type TpSlResult struct {
	Ticker     string   `json:"ticker"`
	MarketID   int      `json:"market_id"`
	BaseAmount int64    `json:"scaled_base_amount"`
	IsAsk      bool     `json:"is_ask"`
	TakeProfit *TpSlLeg `json:"take_profit,omitempty"`
	StopLoss   *TpSlLeg `json:"stop_loss,omitempty"`
}

// AddTpSl places reduce-only take-profit and/or stop-loss orders that close
// the selected active position. The stop-loss client index is always the
// take-profit index plus one.
func (o *Orchestrator) AddTpSl(ctx context.Context, c Caller, req TpSlRequest) (*TpSlResult, error) {
	if req.TakeProfitPrice == nil && req.StopLossPrice == nil {
		return nil, apperr.New(apperr.NoOrdersSpecified,
			"No orders created. Please specify at least one of take_profit_price or stop_loss_price.")
	}
	oc, err := o.prepare(ctx, c, req.Ticker, req.APIKeyIndex)
	if err != nil {
		return nil, err
	}

	var tpPrice, slPrice int64
	if req.TakeProfitPrice != nil {
		if tpPrice, err = oc.market.ScalePositivePrice("take_profit_price", *req.TakeProfitPrice); err != nil {
			return nil, err
		}
	}
	if req.StopLossPrice != nil {
		if slPrice, err = oc.market.ScalePositivePrice("stop_loss_price", *req.StopLossPrice); err != nil {
			return nil, err
		}
	}

	candidates := activePositions(oc.account.Positions, oc.market.MarketID)
	if len(candidates) == 0 {
		return nil, apperr.New(apperr.PositionNotFound,
			"No positions found for %s. Please open a position first.", oc.market.Ticker)
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

	res := &TpSlResult{
		Ticker:     oc.market.Ticker,
		MarketID:   oc.market.MarketID,
		BaseAmount: baseAmount,
		IsAsk:      isAsk,
	}
	primary := o.clientOrderIndex()

	leg := func(idx, price int64) signer.TriggerOrderParams {
		return signer.TriggerOrderParams{
			Account:          oc.signAs,
			MarketIndex:      oc.market.MarketID,
			ClientOrderIndex: idx,
			BaseAmount:       baseAmount,
			TriggerPrice:     price,
			Price:            price,
			IsAsk:            isAsk,
			ReduceOnly:       true,
		}
	}

	var submitted []string
	if req.TakeProfitPrice != nil {
		sub, err := oc.handle.CreateTpLimitOrder(ctx, leg(primary, tpPrice))
		if err != nil {
			return nil, apperr.Wrap(apperr.OrderRejected, err, "Take Profit order failed")
		}
		res.TakeProfit = &TpSlLeg{ClientOrderIndex: primary, TriggerPrice: tpPrice, TxHash: sub.TxHash}
		submitted = append(submitted, sub.TxHash)
	}
	if req.StopLossPrice != nil {
		sub, err := oc.handle.CreateSlLimitOrder(ctx, leg(primary+1, slPrice))
		if err != nil {
			return nil, apperr.Wrap(apperr.OrderRejected, err, "Stop Loss order failed").WithTx(submitted...)
		}
		res.StopLoss = &TpSlLeg{ClientOrderIndex: primary + 1, TriggerPrice: slPrice, TxHash: sub.TxHash}
	}

	if o.log != nil {
		o.log.WithFields(oc.fields()).WithFields(logrus.Fields{
			"take_profit": res.TakeProfit != nil,
			"stop_loss":   res.StopLoss != nil,
			"base":        baseAmount,
		}).Info("tp/sl orders submitted")
	}
	return res, nil
}
