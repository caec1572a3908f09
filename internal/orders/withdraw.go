package orders

import (
	"context"

	"github.com/shopspring/decimal"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/market"
	"lighter-mcp/internal/signer"
)

type WithdrawRequest struct {
	USDCAmount  decimal.Decimal
	APIKeyIndex int
}

type WithdrawResult struct {
	TxHash       string `json:"tx_hash"`
	USDCAmount   string `json:"usdc_amount"`
	ScaledAmount int64  `json:"scaled_amount"`
	Status       string `json:"status"`
	AccountIndex int64  `json:"account_index"`
}

// Withdraw moves USDC from the Lighter account back to L1 and waits until
// the exchange has committed or executed it.
func (o *Orchestrator) Withdraw(ctx context.Context, c Caller, req WithdrawRequest) (*WithdrawResult, error) {
	if !req.USDCAmount.IsPositive() {
		return nil, apperr.New(apperr.InvalidParameter, "usdc_amount must be greater than 0")
	}
	amount, err := market.Scale(req.USDCAmount, USDCScale)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, apperr.New(apperr.InvalidParameter, "usdc_amount %s is below 0.000001 USDC", req.USDCAmount)
	}

	oc, err := o.prepareAccount(ctx, c, req.APIKeyIndex)
	if err != nil {
		return nil, err
	}
	if oc.account.AvailableBalance.LessThan(req.USDCAmount) {
		return nil, apperr.New(apperr.InvalidParameter,
			"usdc_amount %s exceeds available balance %s", req.USDCAmount, oc.account.AvailableBalance)
	}

	sub, err := oc.handle.Withdraw(ctx, signer.WithdrawParams{Account: oc.signAs, USDCAmount: amount})
	if err != nil {
		return nil, apperr.Wrap(apperr.OrderRejected, err, "Withdraw failed")
	}

	receipt, err := o.waiter.Wait(ctx, sub.TxHash)
	if err != nil {
		return nil, err
	}
	if !receipt.Confirmed() {
		return nil, apperr.New(apperr.TransactionFailed,
			"Withdraw transaction %s finished with status %s", sub.TxHash, receipt.Status.Name)
	}
	if o.log != nil {
		o.log.WithFields(oc.fields()).WithField("tx_hash", sub.TxHash).WithField("usdc", req.USDCAmount.String()).Info("withdrawal confirmed")
	}

	return &WithdrawResult{
		TxHash:       sub.TxHash,
		USDCAmount:   req.USDCAmount.String(),
		ScaledAmount: amount,
		Status:       receipt.Status.Name,
		AccountIndex: oc.account.Index,
	}, nil
}
