// Package deposit moves USDC from a wallet on Arbitrum into Lighter by
// transferring it to the Lighter bridge contract.
package deposit

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/config"
	"lighter-mcp/internal/market"
	"lighter-mcp/internal/signer"
)

const erc20ABIJSON = `[
  {"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// USDCScale is USDC's 6 decimals.
const USDCScale int64 = 1_000_000

// fallbackGasLimit is used when the node cannot estimate the transfer.
const fallbackGasLimit uint64 = 800_000

// Chain is the subset of ethclient.Client a deposit needs.
type Chain interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Depositor struct {
	chain       Chain
	erc20       abi.ABI
	usdc        common.Address
	bridge      common.Address
	walletChain string
	chainID     *big.Int
	timeout     time.Duration
	interval    time.Duration
	log         *logrus.Entry
}

type Result struct {
	TxHash       string `json:"tx_hash"`
	From         string `json:"from"`
	To           string `json:"to"`
	USDCAmount   string `json:"usdc_amount"`
	ScaledAmount int64  `json:"scaled_amount"`
	BlockNumber  uint64 `json:"block_number"`
	GasUsed      uint64 `json:"gas_used"`
	Status       string `json:"status"`
}

// Dial connects to the configured RPC endpoint.
func Dial(cfg config.DepositConfig, log *logrus.Entry) (*Depositor, error) {
	c, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", cfg.RPCURL)
	}
	return New(c, cfg, log)
}

func New(chain Chain, cfg config.DepositConfig, log *logrus.Entry) (*Depositor, error) {
	a, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "parse erc20 abi")
	}
	if !common.IsHexAddress(cfg.USDCAddress) {
		return nil, errors.Errorf("invalid usdc address %q", cfg.USDCAddress)
	}
	if cfg.BridgeAddress != "" && !common.IsHexAddress(cfg.BridgeAddress) {
		return nil, errors.Errorf("invalid bridge address %q", cfg.BridgeAddress)
	}
	if cfg.ChainID <= 0 {
		return nil, errors.Errorf("invalid deposit chain id %d", cfg.ChainID)
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Depositor{
		chain:       chain,
		erc20:       a,
		usdc:        common.HexToAddress(cfg.USDCAddress),
		bridge:      common.HexToAddress(cfg.BridgeAddress),
		walletChain: cfg.WalletChainID,
		chainID:     big.NewInt(cfg.ChainID),
		timeout:     timeout,
		interval:    2 * time.Second,
		log:         log,
	}, nil
}

// WalletChain is the hub chain id the depositing wallet must sign on.
func (d *Depositor) WalletChain() string { return d.walletChain }

// Deposit transfers amount USDC from the handle's wallet to the bridge and
// waits for the transfer to be mined.
func (d *Depositor) Deposit(ctx context.Context, h signer.Handle, amount decimal.Decimal) (*Result, error) {
	if !amount.IsPositive() {
		return nil, apperr.New(apperr.InvalidParameter, "usdc_amount must be greater than 0")
	}
	scaled, err := market.Scale(amount, USDCScale)
	if err != nil {
		return nil, err
	}
	if scaled == 0 {
		return nil, apperr.New(apperr.InvalidParameter, "usdc_amount %s is below 0.000001 USDC", amount)
	}
	if d.bridge == (common.Address{}) {
		return nil, apperr.New(apperr.InvalidParameter, "Deposits are disabled: no bridge address configured")
	}
	addr, err := signer.ChecksumAddress(h.Address())
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidParameter, err, "Signing account is not an EVM address")
	}
	from := common.HexToAddress(addr)

	data, err := d.erc20.Pack("transfer", d.bridge, big.NewInt(scaled))
	if err != nil {
		return nil, errors.Wrap(err, "pack transfer")
	}
	tx, err := d.buildTx(ctx, from, data)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, err, "Failed to prepare deposit transaction")
	}

	signed, err := d.sign(ctx, h, from, tx)
	if err != nil {
		return nil, err
	}
	if err := d.chain.SendTransaction(ctx, signed); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, err, "Failed to broadcast deposit")
	}

	log := d.log
	if log != nil {
		log = log.WithFields(logrus.Fields{"tx_hash": signed.Hash().Hex(), "from": from.Hex(), "usdc": amount.String()})
		log.Info("deposit broadcast, waiting for receipt")
	}

	receipt, err := d.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, apperr.New(apperr.TransactionFailed,
			"Deposit transaction %s reverted in block %d", signed.Hash().Hex(), receipt.BlockNumber.Uint64())
	}
	if log != nil {
		log.WithField("block", receipt.BlockNumber.Uint64()).Info("deposit mined")
	}

	return &Result{
		TxHash:       signed.Hash().Hex(),
		From:         from.Hex(),
		To:           d.bridge.Hex(),
		USDCAmount:   amount.String(),
		ScaledAmount: scaled,
		BlockNumber:  receipt.BlockNumber.Uint64(),
		GasUsed:      receipt.GasUsed,
		Status:       "success",
	}, nil
}

func (d *Depositor) buildTx(ctx context.Context, from common.Address, data []byte) (*types.Transaction, error) {
	nonce, err := d.chain.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, errors.Wrap(err, "pending nonce")
	}
	gasPrice, err := d.chain.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "suggest gas price")
	}
	usdc := d.usdc
	gasLimit, err := d.chain.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &usdc, Data: data, Value: big.NewInt(0)})
	if err != nil {
		if d.log != nil {
			d.log.WithError(err).Warn("gas estimate failed, using fallback limit")
		}
		gasLimit = fallbackGasLimit
	}
	return types.NewTransaction(nonce, d.usdc, big.NewInt(0), gasLimit, gasPrice, data), nil
}

// sign hands the RLP-encoded unsigned transaction to the hub and checks
// that what comes back is the same transfer, signed by from for this chain.
func (d *Depositor) sign(ctx context.Context, h signer.Handle, from common.Address, tx *types.Transaction) (*types.Transaction, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "encode unsigned deposit")
	}
	signedRaw, err := h.SignTransaction(ctx, d.walletChain, raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, err, "Failed to sign deposit transaction")
	}
	signed := new(types.Transaction)
	if err := signed.UnmarshalBinary(signedRaw); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, err, "Signer returned an undecodable transaction")
	}
	if !sameTransfer(signed, tx) {
		return nil, apperr.New(apperr.UpstreamError, "Signer returned a different transaction than requested")
	}
	if signed.ChainId().Cmp(d.chainID) != 0 {
		return nil, apperr.New(apperr.UpstreamError,
			"Signer returned a transaction for chain %s, expected %s", signed.ChainId(), d.chainID)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(d.chainID), signed)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, err, "Signer returned an invalid signature")
	}
	if sender != from {
		return nil, apperr.New(apperr.UpstreamError, "Signer signed as %s, expected %s", sender.Hex(), from.Hex())
	}
	return signed, nil
}

func sameTransfer(signed, want *types.Transaction) bool {
	return signed.To() != nil && *signed.To() == *want.To() &&
		bytes.Equal(signed.Data(), want.Data()) &&
		signed.Nonce() == want.Nonce() &&
		signed.Value().Cmp(want.Value()) == 0 &&
		signed.Gas() == want.Gas() &&
		signed.GasPrice().Cmp(want.GasPrice()) == 0
}

// waitMined polls for the receipt until it exists or the timeout passes.
func (d *Depositor) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		receipt, err := d.chain.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && d.log != nil {
			d.log.WithError(err).WithField("tx_hash", hash.Hex()).Warn("receipt lookup failed")
		}
		select {
		case <-ctx.Done():
			return nil, apperr.Wrap(apperr.TransactionTimeout, ctx.Err(),
				"Deposit transaction "+hash.Hex()+" not mined in time")
		case <-ticker.C:
		}
	}
}
