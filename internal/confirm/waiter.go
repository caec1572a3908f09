package confirm

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/config"
	"lighter-mcp/internal/exchange"
)

// Policy bounds one wait: poll every Interval, give up after Timeout.
type Policy struct {
	Timeout  time.Duration
	Interval time.Duration
}

func PolicyFromConfig(cfg config.ConfirmConfig) Policy {
	return Policy{Timeout: cfg.Timeout(), Interval: cfg.Interval()}
}

func (p Policy) validate() error {
	if p.Interval <= 0 || p.Timeout <= 0 {
		return errors.Errorf("invalid confirmation policy: timeout=%s interval=%s", p.Timeout, p.Interval)
	}
	return nil
}

type Receipt struct {
	Hash     string
	Status   exchange.TxStatus
	Attempts int
	Elapsed  time.Duration
}

func (r Receipt) Terminal() bool  { return r.Status.Terminal() }
func (r Receipt) Confirmed() bool { return r.Status.State == exchange.TxConfirmed }

type Waiter struct {
	source exchange.TxStatusSource
	policy Policy
	log    *logrus.Entry
}

func NewWaiter(source exchange.TxStatusSource, policy Policy, log *logrus.Entry) *Waiter {
	return &Waiter{source: source, policy: policy, log: log}
}

// Wait polls with the waiter's default policy.
func (w *Waiter) Wait(ctx context.Context, hash string) (Receipt, error) {
	return w.WaitWith(ctx, hash, w.policy)
}

// WaitWith polls until the transaction is terminal. A terminal receipt is
// returned even when the transaction failed; callers decide what counts as
// success. Status lookup errors are retried until the deadline.
func (w *Waiter) WaitWith(ctx context.Context, hash string, p Policy) (Receipt, error) {
	if err := p.validate(); err != nil {
		return Receipt{}, apperr.Wrap(apperr.InvalidParameter, err, "Cannot wait for transaction")
	}

	start := time.Now()
	deadline := time.NewTimer(p.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	receipt := Receipt{Hash: hash}
	var lastErr error
	for {
		receipt.Attempts++
		st, err := w.source.TxStatus(ctx, hash)
		receipt.Elapsed = time.Since(start)
		if err != nil {
			lastErr = err
			if w.log != nil {
				w.log.WithError(err).WithFields(logrus.Fields{"tx_hash": hash, "attempt": receipt.Attempts}).Warn("transaction status lookup failed")
			}
		} else {
			receipt.Status = st
			if st.Terminal() {
				if w.log != nil {
					w.log.WithFields(logrus.Fields{
						"tx_hash":  hash,
						"status":   st.Name,
						"attempts": receipt.Attempts,
						"elapsed":  receipt.Elapsed.String(),
					}).Info("transaction reached terminal status")
				}
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			return receipt, apperr.Wrap(apperr.TransactionTimeout, ctx.Err(), "Stopped waiting for transaction "+hash)
		case <-deadline.C:
			e := apperr.New(apperr.TransactionTimeout,
				"Transaction %s not confirmed within %s (%d status checks)", hash, p.Timeout, receipt.Attempts)
			if lastErr != nil {
				e = apperr.Wrap(apperr.TransactionTimeout, lastErr, e.Message+", last error")
			}
			return receipt, e
		case <-ticker.C:
		}
	}
}
