package signer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/config"
	"lighter-mcp/internal/session"
)

// Hub talks to the wallet hub over HTTP. It is shared by all requests;
// ForCredentials scopes it to one caller's token.
type Hub struct {
	http *resty.Client
	log  *logrus.Entry
}

type Credentials struct {
	Token        string
	DeploymentID string
}

func NewHub(cfg config.HubConfig, log *logrus.Entry) *Hub {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Hub{http: client, log: log}
}

// ForCredentials returns a Facade acting for the caller behind creds.
func (h *Hub) ForCredentials(creds Credentials) Facade {
	return &hubFacade{hub: h, creds: creds}
}

type hubFacade struct {
	hub   *Hub
	creds Credentials
}

var _ Facade = (*hubFacade)(nil)

func (f *hubFacade) request(ctx context.Context) *resty.Request {
	r := f.hub.http.R().SetContext(ctx).SetAuthToken(f.creds.Token)
	if f.creds.DeploymentID != "" {
		r.SetHeader("X-Deployment-Id", f.creds.DeploymentID)
	}
	return r
}

type hubError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func checkResponse(resp *resty.Response, err error, what string) error {
	if err != nil {
		return errors.Wrapf(err, "hub %s", what)
	}
	if resp.IsSuccess() {
		return nil
	}
	var he hubError
	_ = json.Unmarshal(resp.Body(), &he)
	msg := he.Error
	if msg == "" {
		msg = he.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(string(resp.Body()))
	}
	return errors.Errorf("hub %s failed with status %d: %s", what, resp.StatusCode(), msg)
}

func walletPath(wallet string, parts ...string) string {
	p := "/v1/wallets/" + url.PathEscape(wallet)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (f *hubFacade) WalletRecords(ctx context.Context) ([]session.WalletRecord, error) {
	var out struct {
		Wallets []session.WalletRecord `json:"wallets"`
	}
	resp, err := f.request(ctx).SetResult(&out).Get("/v1/wallets")
	if err := checkResponse(resp, err, "wallet list"); err != nil {
		return nil, err
	}
	return out.Wallets, nil
}

func (f *hubFacade) ResolveAccount(ctx context.Context, wallet, chainID string) (Handle, error) {
	var out struct {
		Address string `json:"address"`
	}
	resp, err := f.request(ctx).SetResult(&out).Get(walletPath(wallet, "accounts", chainID))
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNoSigner
	}
	if err := checkResponse(resp, err, "account resolution"); err != nil {
		return nil, err
	}
	if out.Address == "" {
		return nil, ErrNoSigner
	}
	return &hubHandle{facade: f, address: out.Address, chainID: chainID}, nil
}

func (f *hubFacade) SignMessage(ctx context.Context, message, chainID, wallet string) (string, error) {
	var out struct {
		Signature json.RawMessage `json:"signature"`
	}
	resp, err := f.request(ctx).
		SetBody(map[string]string{"message": message, "chain_id": chainID}).
		SetResult(&out).
		Post(walletPath(wallet, "sign-message"))
	if err := checkResponse(resp, err, "message signing"); err != nil {
		return "", err
	}
	if len(out.Signature) == 0 {
		return "", errors.New("hub returned no signature")
	}
	return NormalizeSignature(out.Signature)
}

type hubHandle struct {
	facade  *hubFacade
	address string
	chainID string
}

var _ Handle = (*hubHandle)(nil)

func (h *hubHandle) Address() string { return h.address }

type submitResponse struct {
	TxInfo json.RawMessage `json:"tx_info"`
	TxHash string          `json:"tx_hash"`
	Error  string          `json:"error"`
}

// submit signs and sends one Lighter transaction through the hub.
func (h *hubHandle) submit(ctx context.Context, op string, params any) (Submission, error) {
	var out submitResponse
	resp, err := h.facade.request(ctx).
		SetBody(params).
		SetResult(&out).
		Post(walletPath(h.address, "lighter", op))
	if err := checkResponse(resp, err, op); err != nil {
		return Submission{}, err
	}
	if out.Error != "" {
		return Submission{Payload: out.TxInfo}, errors.New(out.Error)
	}
	if out.TxHash == "" {
		return Submission{Payload: out.TxInfo}, errors.Errorf("%s returned no transaction hash", op)
	}

	if h.facade.hub.log != nil {
		h.facade.hub.log.WithFields(logrus.Fields{"op": op, "wallet": h.address, "tx_hash": out.TxHash}).Info("lighter transaction submitted")
	}
	return Submission{Payload: out.TxInfo, TxHash: out.TxHash}, nil
}

func (h *hubHandle) UpdateLeverage(ctx context.Context, p LeverageParams) (Submission, error) {
	return h.submit(ctx, "update_leverage", p)
}

func (h *hubHandle) CreateOrder(ctx context.Context, p OrderParams) (Submission, error) {
	return h.submit(ctx, "create_order", p)
}

func (h *hubHandle) CreateMarketOrder(ctx context.Context, p MarketOrderParams) (Submission, error) {
	return h.submit(ctx, "create_market_order", p)
}

func (h *hubHandle) CancelOrder(ctx context.Context, p CancelParams) (Submission, error) {
	return h.submit(ctx, "cancel_order", p)
}

func (h *hubHandle) CreateTpLimitOrder(ctx context.Context, p TriggerOrderParams) (Submission, error) {
	return h.submit(ctx, "create_tp_limit_order", p)
}

func (h *hubHandle) CreateSlLimitOrder(ctx context.Context, p TriggerOrderParams) (Submission, error) {
	return h.submit(ctx, "create_sl_limit_order", p)
}

func (h *hubHandle) Withdraw(ctx context.Context, p WithdrawParams) (Submission, error) {
	return h.submit(ctx, "withdraw", p)
}

func (h *hubHandle) ChangePubKey(ctx context.Context, p ChangePubKeyParams) (Submission, error) {
	return h.submit(ctx, "change_pub_key", p)
}

func (h *hubHandle) GenerateAPIKey(ctx context.Context) (APIKeyPair, error) {
	var out APIKeyPair
	resp, err := h.facade.request(ctx).
		SetResult(&out).
		Post(walletPath(h.address, "lighter", "generate_api_key"))
	if err := checkResponse(resp, err, "api key generation"); err != nil {
		return APIKeyPair{}, err
	}
	if out.PublicKey == "" {
		return APIKeyPair{}, errors.New("hub returned no public key")
	}
	return out, nil
}

func (h *hubHandle) SignTransaction(ctx context.Context, chainID string, unsigned []byte) ([]byte, error) {
	var out struct {
		SignedTransaction string `json:"signed_transaction"`
	}
	resp, err := h.facade.request(ctx).
		SetBody(map[string]string{"chain_id": chainID, "transaction": hexutil.Encode(unsigned)}).
		SetResult(&out).
		Post(walletPath(h.address, "sign-transaction"))
	if err := checkResponse(resp, err, "transaction signing"); err != nil {
		return nil, err
	}
	signed, err := hexutil.Decode(out.SignedTransaction)
	if err != nil {
		return nil, errors.Wrap(err, "decode signed transaction")
	}
	return signed, nil
}
