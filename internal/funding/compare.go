// Package funding compares perpetual funding rates across venues.
package funding

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/exchange"
)

// Spread is the funding picture for one symbol across venues. Rates are
// compared as each venue reports them.
type Spread struct {
	Symbol     string             `json:"symbol"`
	Rates      map[string]float64 `json:"rates"`
	LongVenue  string             `json:"long_venue,omitempty"`
	ShortVenue string             `json:"short_venue,omitempty"`
	Diff       float64            `json:"diff"`
}

type Comparator struct {
	primary string
	venues  map[string]exchange.FundingSource
	log     *logrus.Entry
}

// NewComparator compares other venues against primary. A failing primary
// fails the comparison; a failing secondary venue is logged and skipped.
func NewComparator(primary string, venues map[string]exchange.FundingSource, log *logrus.Entry) *Comparator {
	return &Comparator{primary: primary, venues: venues, log: log}
}

// Rates fetches the primary venue's rates, optionally restricted to symbols.
func (c *Comparator) Rates(ctx context.Context, symbols []string) ([]exchange.FundingRate, error) {
	src, ok := c.venues[c.primary]
	if !ok {
		return nil, errors.Errorf("no funding source for %s", c.primary)
	}
	rates, err := src.FundingRates(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(rates, symbols), nil
}

// Compare returns one Spread per symbol the primary venue lists. The long
// venue is the one paying the lowest rate, the short venue the highest.
func (c *Comparator) Compare(ctx context.Context, symbols []string) ([]Spread, error) {
	type result struct {
		rates []exchange.FundingRate
		err   error
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]result, len(c.venues))
	)
	for name, src := range c.venues {
		wg.Add(1)
		go func(name string, src exchange.FundingSource) {
			defer wg.Done()
			rates, err := src.FundingRates(ctx)
			mu.Lock()
			results[name] = result{rates: rates, err: err}
			mu.Unlock()
		}(name, src)
	}
	wg.Wait()

	primary, ok := results[c.primary]
	if !ok {
		return nil, errors.Errorf("no funding source for %s", c.primary)
	}
	if primary.err != nil {
		return nil, primary.err
	}

	byVenue := make(map[string]map[string]float64, len(results))
	for name, r := range results {
		if r.err != nil {
			if c.log != nil {
				c.log.WithError(r.err).WithField("venue", name).Warn("funding rates unavailable, skipping venue")
			}
			continue
		}
		m := make(map[string]float64, len(r.rates))
		for _, rate := range r.rates {
			m[strings.ToUpper(rate.Symbol)] = rate.Rate
		}
		byVenue[name] = m
	}

	var out []Spread
	for _, rate := range Filter(primary.rates, symbols) {
		sym := strings.ToUpper(rate.Symbol)
		s := Spread{Symbol: sym, Rates: map[string]float64{}}
		for venue, m := range byVenue {
			if r, ok := m[sym]; ok {
				s.Rates[venue] = r
			}
		}
		s.LongVenue, s.ShortVenue, s.Diff = widest(s.Rates)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Diff > out[j].Diff })
	return out, nil
}

// widest finds the min and max rate. Ties resolve by venue name so the
// result does not depend on map order. Fewer than two venues is no spread.
func widest(rates map[string]float64) (minVenue, maxVenue string, diff float64) {
	if len(rates) < 2 {
		return "", "", 0
	}
	names := make([]string, 0, len(rates))
	for name := range rates {
		names = append(names, name)
	}
	sort.Strings(names)

	var maxRate, minRate float64
	for i, name := range names {
		rate := rates[name]
		if i == 0 {
			maxRate, minRate = rate, rate
			maxVenue, minVenue = name, name
			continue
		}
		if rate > maxRate {
			maxRate, maxVenue = rate, name
		}
		if rate < minRate {
			minRate, minVenue = rate, name
		}
	}
	return minVenue, maxVenue, maxRate - minRate
}

// Filter keeps rates whose symbol is in symbols (case-insensitive). An
// empty symbols list keeps everything.
func Filter(rates []exchange.FundingRate, symbols []string) []exchange.FundingRate {
	if len(symbols) == 0 {
		return rates
	}
	want := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		want[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	var out []exchange.FundingRate
	for _, r := range rates {
		if _, ok := want[strings.ToUpper(r.Symbol)]; ok {
			out = append(out, r)
		}
	}
	return out
}
