package hyperliquid

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sonirico/go-hyperliquid"

	"lighter-mcp/internal/config"
	"lighter-mcp/internal/exchange"
)

// Venue is the exchange tag on rates returned by this client.
const Venue = "hyperliquid"

// assetCtx is one row of the perp universe joined with its live context.
type assetCtx struct {
	Name    string
	Funding string
}

// Client reads public perp data from Hyperliquid. It never signs.
type Client struct {
	info  *hyperliquid.Info
	log   *logrus.Entry
	fetch func(ctx context.Context) ([]assetCtx, error)
}

func NewClient(cfg config.HyperliquidConfig, log *logrus.Entry) *Client {
	// NewInfo(ctx, baseURL, skipWS, meta, spotMeta)
	info := hyperliquid.NewInfo(context.Background(), cfg.BaseURL, true, nil, nil)
	c := &Client{info: info, log: log}
	c.fetch = c.metaAndAssetCtxs
	return c
}

var _ exchange.FundingSource = (*Client)(nil)

func (c *Client) metaAndAssetCtxs(ctx context.Context) ([]assetCtx, error) {
	state, err := c.info.MetaAndAssetCtxs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "hyperliquid meta and asset contexts")
	}
	if len(state.Ctxs) < len(state.Universe) {
		return nil, errors.Errorf("hyperliquid returned %d contexts for %d assets", len(state.Ctxs), len(state.Universe))
	}
	out := make([]assetCtx, 0, len(state.Universe))
	for i, asset := range state.Universe {
		out = append(out, assetCtx{Name: asset.Name, Funding: state.Ctxs[i].Funding})
	}
	return out, nil
}

// FundingRates returns the current hourly funding rate for every perp.
// Rows with an unparseable rate are skipped.
func (c *Client) FundingRates(ctx context.Context) ([]exchange.FundingRate, error) {
	assets, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	rates := make([]exchange.FundingRate, 0, len(assets))
	for i, a := range assets {
		rate, err := strconv.ParseFloat(a.Funding, 64)
		if err != nil {
			if c.log != nil {
				c.log.WithField("symbol", a.Name).WithError(err).Debug("skipping unparseable funding rate")
			}
			continue
		}
		rates = append(rates, exchange.FundingRate{
			MarketID: i,
			Exchange: Venue,
			Symbol:   strings.ToUpper(a.Name),
			Rate:     rate,
		})
	}
	return rates, nil
}
