package market

import (
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lighter-mcp/internal/apperr"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := LoadEmbedded()
	require.NoError(t, err)
	assert.Equal(t, 92, c.Len())

	eth, err := c.Resolve("eth")
	require.NoError(t, err)
	assert.Equal(t, 0, eth.MarketID)
	assert.Equal(t, int64(100), eth.PriceScale)
	assert.Equal(t, int64(10000), eth.AmountScale)
	assert.False(t, eth.ScaleDefaulted)

	btc, err := c.ScalesFor("BTC")
	require.NoError(t, err)
	assert.Equal(t, Scales{Price: 10, Amount: 100000}, btc)
}

func TestResolveDefaultsMissingScales(t *testing.T) {
	c, err := LoadEmbedded()
	require.NoError(t, err)

	sui, err := c.Resolve("Sui")
	require.NoError(t, err)
	assert.Equal(t, DefaultScale, sui.PriceScale)
	assert.Equal(t, DefaultScale, sui.AmountScale)
	assert.True(t, sui.ScaleDefaulted)
}

func TestResolveUnknownListsEveryTicker(t *testing.T) {
	c, err := LoadEmbedded()
	require.NoError(t, err)

	for _, ticker := range []string{"NOPE", "", "eth2"} {
		_, err := c.Resolve(ticker)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.TickerNotFound))
		for _, known := range c.Tickers() {
			assert.Contains(t, err.Error(), known)
		}
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "markets: []", "empty"},
		{"missing id", "markets:\n  - ticker: ETH\n", "market_id"},
		{"duplicate ticker", "markets:\n  - {ticker: ETH, market_id: 0}\n  - {ticker: eth, market_id: 1}\n", "duplicate ticker"},
		{"duplicate id", "markets:\n  - {ticker: ETH, market_id: 0}\n  - {ticker: BTC, market_id: 0}\n", "market id 0"},
		{"zero scale", "markets:\n  - {ticker: ETH, market_id: 0, price_scale: 0}\n", "positive"},
		{"bad min size", "markets:\n  - {ticker: ETH, market_id: 0, min_size: abc}\n", "min_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTickersOrderedByMarketID(t *testing.T) {
	c, err := Load([]byte("markets:\n  - {ticker: btc, market_id: 1}\n  - {ticker: eth, market_id: 0}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH", "BTC"}, c.Tickers())

	d, ok := c.ByMarketID(1)
	require.True(t, ok)
	assert.Equal(t, "BTC", d.Ticker)
	assert.True(t, strings.HasPrefix(d.String(), "BTC"))
}

func TestScaleFloors(t *testing.T) {
	eth := Descriptor{Ticker: "ETH", PriceScale: 100, AmountScale: 10000}

	tests := []struct {
		name   string
		value  string
		scale  int64
		expect int64
	}{
		{"limit order amount", "0.5", eth.AmountScale, 5000},
		{"limit order price", "4000.25", eth.PriceScale, 400025},
		{"truncates extra precision", "4000.259", eth.PriceScale, 400025},
		{"binary-unfriendly value", "0.29", 100, 29},
		{"never rounds up", "0.99999", 1000, 999},
		{"zero", "0", 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Scale(decimal.RequireFromString(tt.value), tt.scale)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestScalePositiveAmount(t *testing.T) {
	doge := Descriptor{Ticker: "DOGE", PriceScale: 10000, AmountScale: 100}

	units, err := doge.ScalePositiveAmount("base_amount", decimal.RequireFromString("12.345"))
	require.NoError(t, err)
	assert.Equal(t, int64(1234), units)

	_, err = doge.ScalePositiveAmount("base_amount", decimal.RequireFromString("0.001"))
	assert.True(t, apperr.Is(err, apperr.InvalidParameter))

	_, err = doge.ScalePositiveAmount("base_amount", decimal.RequireFromString("-1"))
	assert.True(t, apperr.Is(err, apperr.InvalidParameter))

	_, err = doge.ScalePositivePrice("price", decimal.Zero)
	assert.True(t, apperr.Is(err, apperr.InvalidParameter))
}

func TestScaleRejectsInt64Overflow(t *testing.T) {
	eth := Descriptor{Ticker: "ETH", PriceScale: 100, AmountScale: 10000}

	tests := []struct {
		name  string
		value string
	}{
		{"wraps negative", "1000000000000000"},
		{"wraps to one unit", "1844674407370955.1617"},
		{"just past max", "922337203685477.5808"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, err := eth.ScalePositiveAmount("base_amount", decimal.RequireFromString(tt.value))
			assert.True(t, apperr.Is(err, apperr.InvalidParameter), "units=%d", units)
			assert.Zero(t, units)
		})
	}

	units, err := eth.ScalePositiveAmount("base_amount", decimal.RequireFromString("922337203685477.5807"))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), units)

	_, err = eth.ScalePositivePrice("price", decimal.RequireFromString("1e20"))
	assert.True(t, apperr.Is(err, apperr.InvalidParameter))

	_, err = Scale(decimal.RequireFromString("-1e30"), 1000)
	assert.True(t, apperr.Is(err, apperr.InvalidParameter))
}
