package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/signer"
)

// MaxAPIKeyIndex is the highest assignable slot; 255 means "all keys".
const MaxAPIKeyIndex = 254

type SetupAPIKeyRequest struct {
	// APIKeyIndex forces a slot. Nil picks the slot after the highest in use.
	APIKeyIndex *int
}

type SetupAPIKeyResult struct {
	AccountIndex int64  `json:"account_index"`
	APIKeyIndex  int    `json:"api_key_index"`
	PublicKey    string `json:"public_key"`
	KeyRef       string `json:"key_ref"`
	TxHash       string `json:"tx_hash"`
}

// RegisterAPIKeyMessage is the L1 message that authorizes a new API key.
func RegisterAPIKeyMessage(pubKey string, nonce, accountIndex int64, apiKeyIndex int) string {
	pubKey = strings.TrimPrefix(pubKey, "0x")
	return fmt.Sprintf("Register Lighter Account\n\npubkey: 0x%s\nnonce: 0x%016x\naccount index: 0x%016x\napi key index: 0x%016x\nOnly sign this message for a trusted client!",
		pubKey, nonce, accountIndex, apiKeyIndex)
}

// SetupAPIKey has the hub generate a key pair, signs the registration
// message with the wallet, and submits the key change.
func (o *Orchestrator) SetupAPIKey(ctx context.Context, c Caller, req SetupAPIKeyRequest) (*SetupAPIKeyResult, error) {
	if o.accountAPI == nil {
		return nil, apperr.New(apperr.UpstreamError, "api key lookups are not configured")
	}
	if req.APIKeyIndex != nil && (*req.APIKeyIndex < 0 || *req.APIKeyIndex > MaxAPIKeyIndex) {
		return nil, apperr.New(apperr.InvalidParameter, "api_key_index must be between 0 and %d", MaxAPIKeyIndex)
	}

	oc, err := o.prepareAccount(ctx, c, 0)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(oc.account.L1Address, oc.wallet) {
		return nil, apperr.New(apperr.InvalidParameter,
			"Account %d belongs to %s, not the selected wallet %s", oc.account.Index, oc.account.L1Address, oc.wallet)
	}

	target := 0
	if req.APIKeyIndex != nil {
		target = *req.APIKeyIndex
	} else {
		keys, err := o.accountAPI.APIKeys(ctx, oc.account.Index)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if k.APIKeyIndex+1 > target {
				target = k.APIKeyIndex + 1
			}
		}
		if target > MaxAPIKeyIndex {
			return nil, apperr.New(apperr.InvalidParameter, "No free API key slot on account %d", oc.account.Index)
		}
	}

	pair, err := oc.handle.GenerateAPIKey(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, err, "Failed to generate API key")
	}

	const nonce = 0
	msg := RegisterAPIKeyMessage(pair.PublicKey, nonce, oc.account.Index, target)
	l1Sig, err := c.Signer.SignMessage(ctx, msg, o.opts.ChainID, oc.wallet)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, err, "Failed to sign API key registration")
	}

	sub, err := oc.handle.ChangePubKey(ctx, signer.ChangePubKeyParams{
		Account:     signer.Account{AccountIndex: oc.account.Index, APIKeyIndex: target},
		PublicKey:   pair.PublicKey,
		KeyRef:      pair.KeyRef,
		Nonce:       nonce,
		L1Signature: l1Sig,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.OrderRejected, err, "API key registration failed")
	}

	if o.log != nil {
		o.log.WithFields(oc.fields()).WithFields(logrus.Fields{"api_key_index": target, "tx_hash": sub.TxHash}).Info("api key registered")
	}
	return &SetupAPIKeyResult{
		AccountIndex: oc.account.Index,
		APIKeyIndex:  target,
		PublicKey:    pair.PublicKey,
		KeyRef:       pair.KeyRef,
		TxHash:       sub.TxHash,
	}, nil
}
