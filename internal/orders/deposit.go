package orders

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/deposit"
	"lighter-mcp/internal/signer"
)

type Depositor interface {
	WalletChain() string
	Deposit(ctx context.Context, h signer.Handle, amount decimal.Decimal) (*deposit.Result, error)
}

func (o *Orchestrator) SetDepositor(d Depositor) { o.depositor = d }

// Deposit funds the selected wallet's Lighter account from L1. The wallet
// does not need a Lighter account yet; the first deposit creates it.
func (o *Orchestrator) Deposit(ctx context.Context, c Caller, amount decimal.Decimal) (*deposit.Result, error) {
	if o.depositor == nil {
		return nil, apperr.New(apperr.UpstreamError, "deposits are not configured")
	}
	wallet, err := o.requireWallet(c)
	if err != nil {
		return nil, err
	}
	h, err := c.Signer.ResolveAccount(ctx, wallet, o.depositor.WalletChain())
	if err != nil {
		if errors.Is(err, signer.ErrNoSigner) {
			return nil, apperr.New(apperr.WalletNotSelected,
				"No signing account for wallet %s on %s. Choose a wallet first with chooseWallet.", wallet, o.depositor.WalletChain())
		}
		return nil, apperr.Wrap(apperr.UpstreamError, err, "Failed to resolve signing account")
	}
	return o.depositor.Deposit(ctx, h, amount)
}
