package lighter

import (
	"context"

	"github.com/pkg/errors"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/exchange"
)

// Transaction status codes reported by /api/v1/tx.
const (
	TxStatusPending   = 0
	TxStatusQueued    = 1
	TxStatusCommitted = 2
	TxStatusExecuted  = 3
	TxStatusFailed    = 4
	TxStatusRejected  = 5
)

var txStatusNames = map[int]string{
	TxStatusPending:   "pending",
	TxStatusQueued:    "queued",
	TxStatusCommitted: "committed",
	TxStatusExecuted:  "executed",
	TxStatusFailed:    "failed",
	TxStatusRejected:  "rejected",
}

type txResponse struct {
	envelope
	Hash   string `json:"hash"`
	Type   int    `json:"type"`
	Status int    `json:"status"`
}

// ClassifyTxStatus maps a raw status code onto pending/confirmed/failed.
func ClassifyTxStatus(code int) exchange.TxState {
	switch code {
	case TxStatusCommitted, TxStatusExecuted:
		return exchange.TxConfirmed
	case TxStatusFailed, TxStatusRejected:
		return exchange.TxFailed
	default:
		return exchange.TxPending
	}
}

// TxStatus reports a transaction's state. A hash the indexer has not seen
// yet reads as pending.
func (c *Client) TxStatus(ctx context.Context, hash string) (exchange.TxStatus, error) {
	var out txResponse
	env, err := c.get(ctx, "/api/v1/tx", map[string]string{"by": "hash", "value": hash}, &out)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && isNotFound(se.status, se.env) {
			return exchange.TxStatus{Hash: hash, Name: "pending", State: exchange.TxPending}, nil
		}
		return exchange.TxStatus{}, asUpstream(err, "Transaction status lookup")
	}
	if out.Code != CodeOK {
		if isNotFound(0, *env) {
			return exchange.TxStatus{Hash: hash, Name: "pending", State: exchange.TxPending}, nil
		}
		return exchange.TxStatus{}, apperr.New(apperr.UpstreamError,
			"Transaction status lookup returned code %d: %s", out.Code, out.Message)
	}

	name, ok := txStatusNames[out.Status]
	if !ok {
		name = "unknown"
	}
	return exchange.TxStatus{
		Hash:  hash,
		Code:  out.Status,
		Name:  name,
		State: ClassifyTxStatus(out.Status),
	}, nil
}
