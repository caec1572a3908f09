package lighter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/config"
	"lighter-mcp/internal/exchange"
)

// Lighter API status codes seen in response bodies.
const (
	CodeOK              = 200
	CodeAccountNotFound = 21100
)

type Client struct {
	cfg  config.LighterConfig
	http *resty.Client
	log  *logrus.Entry
}

var (
	_ exchange.AccountLookup  = (*Client)(nil)
	_ exchange.MarketData     = (*Client)(nil)
	_ exchange.TxStatusSource = (*Client)(nil)
	_ exchange.FundingSource  = (*Client)(nil)
)

// envelope is the code/message pair every Lighter response carries.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewClient(cfg config.LighterConfig, log *logrus.Entry) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	host := strings.TrimSuffix(cfg.BaseURL, "/")

	// No retries: a failed lookup fails the whole tool call.
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "lighter-mcp")

	return &Client{cfg: cfg, http: client, log: log}
}

// get issues a GET and decodes the body into out whatever the status.
// Non-2xx answers come back as *apperr.Error carrying the body's code.
func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) (*envelope, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamError, errors.Wrapf(err, "GET %s", path), "Lighter request failed")
	}

	var env envelope
	_ = json.Unmarshal(resp.Body(), &env)

	if c.log != nil {
		c.log.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode(),
			"code":   env.Code,
		}).Debug("lighter response")
	}

	if !resp.IsSuccess() {
		return &env, &statusError{status: resp.StatusCode(), env: env, body: string(resp.Body())}
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return &env, apperr.Wrap(apperr.UpstreamError, err, "Failed to decode Lighter response for "+path)
		}
	}
	return &env, nil
}

type statusError struct {
	status int
	env    envelope
	body   string
}

func (e *statusError) Error() string {
	msg := e.env.Message
	if msg == "" {
		msg = e.body
	}
	return msg
}

func (e *statusError) upstream(what string) *apperr.Error {
	return apperr.Upstream(e.status, "%s failed with status %d: %s", what, e.status, e.Error())
}

// asUpstream converts a statusError to UpstreamError and passes other errors through.
func asUpstream(err error, what string) error {
	var se *statusError
	if errors.As(err, &se) {
		return se.upstream(what)
	}
	return err
}

// dec parses Lighter's decimal strings. Empty and malformed values read as zero.
func dec(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isNotFound(status int, env envelope) bool {
	return status == http.StatusNotFound || strings.Contains(strings.ToLower(env.Message), "not found")
}
