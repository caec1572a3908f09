package market

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"lighter-mcp/internal/apperr"
)

// DefaultScale is applied to markets whose metadata omits a price or amount
// scale. It is a fallback policy, not a value published by the exchange.
const DefaultScale int64 = 1000

//go:embed markets.yaml
var embeddedMarkets []byte

type Descriptor struct {
	Ticker      string
	MarketID    int
	PriceScale  int64
	AmountScale int64
	MinSize     decimal.Decimal
	Status      string
	// ScaleDefaulted is set when either scale came from DefaultScale.
	ScaleDefaulted bool
}

type Scales struct {
	Price  int64
	Amount int64
}

type rawMarket struct {
	Ticker      string `yaml:"ticker"`
	MarketID    *int   `yaml:"market_id"`
	AmountScale *int64 `yaml:"amount_scale"`
	PriceScale  *int64 `yaml:"price_scale"`
	MinSize     string `yaml:"min_size"`
	Status      string `yaml:"status"`
}

type rawFile struct {
	Markets []rawMarket `yaml:"markets"`
}

// Catalog is immutable after Load and safe for concurrent use.
type Catalog struct {
	byTicker map[string]Descriptor
	byID     map[int]Descriptor
	tickers  []string
}

// LoadEmbedded builds the catalog from the table compiled into the binary.
func LoadEmbedded() (*Catalog, error) {
	return Load(embeddedMarkets)
}

func Load(data []byte) (*Catalog, error) {
	var f rawFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse market table")
	}
	if len(f.Markets) == 0 {
		return nil, errors.New("market table is empty")
	}

	c := &Catalog{
		byTicker: make(map[string]Descriptor, len(f.Markets)),
		byID:     make(map[int]Descriptor, len(f.Markets)),
	}
	for i, m := range f.Markets {
		d, err := m.descriptor()
		if err != nil {
			return nil, errors.Wrapf(err, "market #%d", i)
		}
		key := strings.ToUpper(d.Ticker)
		if _, dup := c.byTicker[key]; dup {
			return nil, errors.Errorf("duplicate ticker %s", key)
		}
		if prev, dup := c.byID[d.MarketID]; dup {
			return nil, errors.Errorf("market id %d used by %s and %s", d.MarketID, prev.Ticker, d.Ticker)
		}
		c.byTicker[key] = d
		c.byID[d.MarketID] = d
	}

	ds := make([]Descriptor, 0, len(c.byID))
	for _, d := range c.byID {
		ds = append(ds, d)
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].MarketID < ds[j].MarketID })
	for _, d := range ds {
		c.tickers = append(c.tickers, d.Ticker)
	}
	return c, nil
}

func (m rawMarket) descriptor() (Descriptor, error) {
	ticker := strings.ToUpper(strings.TrimSpace(m.Ticker))
	if ticker == "" {
		return Descriptor{}, errors.New("ticker is required")
	}
	if m.MarketID == nil || *m.MarketID < 0 {
		return Descriptor{}, errors.Errorf("%s: market_id is required and must be non-negative", ticker)
	}

	d := Descriptor{
		Ticker:      ticker,
		MarketID:    *m.MarketID,
		PriceScale:  DefaultScale,
		AmountScale: DefaultScale,
		Status:      m.Status,
	}
	if m.PriceScale != nil {
		d.PriceScale = *m.PriceScale
	} else {
		d.ScaleDefaulted = true
	}
	if m.AmountScale != nil {
		d.AmountScale = *m.AmountScale
	} else {
		d.ScaleDefaulted = true
	}
	if d.PriceScale <= 0 || d.AmountScale <= 0 {
		return Descriptor{}, errors.Errorf("%s: scales must be positive", ticker)
	}

	if m.MinSize != "" {
		min, err := decimal.NewFromString(m.MinSize)
		if err != nil {
			return Descriptor{}, errors.Wrapf(err, "%s: min_size", ticker)
		}
		d.MinSize = min
	}
	if d.Status == "" {
		d.Status = "active"
	}
	return d, nil
}

// Resolve looks a ticker up case-insensitively.
func (c *Catalog) Resolve(ticker string) (Descriptor, error) {
	d, ok := c.byTicker[strings.ToUpper(strings.TrimSpace(ticker))]
	if !ok {
		return Descriptor{}, apperr.New(apperr.TickerNotFound,
			"Ticker %s not found. Available tickers: %s",
			strings.ToUpper(ticker), strings.Join(c.tickers, ", "))
	}
	return d, nil
}

// ScalesFor returns the market's scales. Missing metadata has already been
// replaced by DefaultScale at load time.
func (c *Catalog) ScalesFor(ticker string) (Scales, error) {
	d, err := c.Resolve(ticker)
	if err != nil {
		return Scales{}, err
	}
	return Scales{Price: d.PriceScale, Amount: d.AmountScale}, nil
}

func (c *Catalog) ByMarketID(id int) (Descriptor, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Tickers returns every known ticker ordered by market id.
func (c *Catalog) Tickers() []string {
	return append([]string(nil), c.tickers...)
}

func (c *Catalog) Len() int { return len(c.tickers) }

func (d Descriptor) String() string {
	return fmt.Sprintf("%s(market_id=%d)", d.Ticker, d.MarketID)
}
