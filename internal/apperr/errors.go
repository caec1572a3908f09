// Package apperr holds the closed set of failures the tool layer knows how
// to report. Anything else reaching the boundary is treated as upstream.
package apperr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type Kind string

const (
	AuthenticationMissing   Kind = "authentication_missing"
	WalletNotSelected       Kind = "wallet_not_selected"
	WalletRecordNotFound    Kind = "wallet_record_not_found"
	AccountNotFound         Kind = "account_not_found"
	TickerNotFound          Kind = "ticker_not_found"
	UpstreamError           Kind = "upstream_error"
	NoLiquidity             Kind = "no_liquidity"
	PositionNotFound        Kind = "position_not_found"
	PositionIndexOutOfRange Kind = "position_index_out_of_range"
	LeverageUpdateFailed    Kind = "leverage_update_failed"
	OrderRejected           Kind = "order_rejected"
	TransactionTimeout      Kind = "transaction_timeout"
	TransactionFailed       Kind = "transaction_failed_on_chain"
	NoOrdersSpecified       Kind = "no_orders_specified"
	InvalidParameter        Kind = "invalid_parameter"
)

// Error is a tagged failure. Status is only set for UpstreamError.
// TxHashes lists transactions already submitted before the failure.
type Error struct {
	Kind     Kind
	Message  string
	Status   int
	TxHashes []string
	cause    error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.TxHashes) > 0 {
		msg = fmt.Sprintf("%s (already submitted: %s)", msg, strings.Join(e.TxHashes, ", "))
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags cause with kind, prefixing its text with msg.
func Wrap(kind Kind, cause error, msg string) *Error {
	text := msg
	if cause != nil {
		text = fmt.Sprintf("%s: %s", msg, cause.Error())
	}
	return &Error{Kind: kind, Message: text, cause: cause}
}

func Upstream(status int, format string, args ...any) *Error {
	e := New(UpstreamError, format, args...)
	e.Status = status
	return e
}

// WithTx returns a copy of e that also reports the given submitted hashes.
func (e *Error) WithTx(hashes ...string) *Error {
	cp := *e
	cp.TxHashes = append(append([]string(nil), e.TxHashes...), hashes...)
	return &cp
}

// KindOf reports the tag of err, or UpstreamError for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UpstreamError
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
