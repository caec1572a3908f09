package signer

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// rsv is the split form some wallets return instead of a hex signature.
// Components are hex strings, with or without 0x.
type rsv struct {
	R string `json:"r"`
	S string `json:"s"`
	V any    `json:"v"`
}

// NormalizeSignature accepts either a JSON string or an {r,s,v} object and
// returns a 0x-prefixed 65-byte hex signature.
func NormalizeSignature(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if !strings.HasPrefix(s, "0x") {
			s = "0x" + s
		}
		if _, err := hexutil.Decode(s); err != nil {
			return "", errors.Wrap(err, "signature is not hex")
		}
		return s, nil
	}

	var parts rsv
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", errors.Wrap(err, "unrecognised signature format")
	}
	return FormatRSV(parts.R, parts.S, parts.V)
}

// FormatRSV joins r, s and v as 0x || r(32) || s(32) || v(1).
func FormatRSV(r, s string, v any) (string, error) {
	rb := common.FromHex(r)
	sb := common.FromHex(s)
	if len(rb) == 0 || len(rb) > 32 || len(sb) == 0 || len(sb) > 32 {
		return "", errors.Errorf("invalid r/s length %d/%d", len(rb), len(sb))
	}

	vb, err := parseV(v)
	if err != nil {
		return "", err
	}

	sig := make([]byte, 65)
	copy(sig[32-len(rb):32], rb)
	copy(sig[64-len(sb):64], sb)
	sig[64] = vb
	return hexutil.Encode(sig), nil
}

// parseV reads v given as a hex string ("1b", "0x1c") or a JSON number.
func parseV(v any) (byte, error) {
	switch t := v.(type) {
	case float64:
		if t < 0 || t > 255 {
			return 0, errors.Errorf("v out of range: %v", t)
		}
		return byte(t), nil
	case string:
		n, ok := new(big.Int).SetString(strings.TrimPrefix(strings.ToLower(t), "0x"), 16)
		if !ok || n.Sign() < 0 || n.BitLen() > 8 {
			return 0, errors.Errorf("invalid v %q", t)
		}
		return byte(n.Uint64()), nil
	default:
		return 0, errors.Errorf("invalid v type %T", v)
	}
}

// ChecksumAddress validates a hex address and returns its EIP-55 form.
func ChecksumAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", errors.Errorf("invalid address %q", addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}
