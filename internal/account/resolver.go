package account

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/exchange"
)

// Resolver turns a wallet address into a fresh account snapshot. Nothing
// is cached: every call hits the lookup once, with no retries.
type Resolver struct {
	lookup exchange.AccountLookup
	log    *logrus.Entry
}

func NewResolver(lookup exchange.AccountLookup, log *logrus.Entry) *Resolver {
	return &Resolver{lookup: lookup, log: log}
}

func (r *Resolver) Resolve(ctx context.Context, wallet string) (*exchange.Account, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, apperr.New(apperr.InvalidParameter, "wallet address is required")
	}

	acct, err := r.lookup.AccountByL1Address(ctx, wallet)
	if err != nil {
		if apperr.KindOf(err) == apperr.UpstreamError && r.log != nil {
			r.log.WithError(err).WithField("wallet", wallet).Warn("account lookup failed")
		}
		var e *apperr.Error
		if !errors.As(err, &e) {
			return nil, apperr.Wrap(apperr.UpstreamError, err, "Account lookup failed")
		}
		return nil, err
	}
	return acct, nil
}

// Lookup is Resolve with AccountNotFound reported as found=false instead
// of an error, for read-only views where an unregistered wallet is normal.
func (r *Resolver) Lookup(ctx context.Context, wallet string) (*exchange.Account, bool, error) {
	acct, err := r.Resolve(ctx, wallet)
	if apperr.Is(err, apperr.AccountNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return acct, true, nil
}
