package lighter

import (
	"context"
	"strconv"
	"strings"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/exchange"
)

type orderBookResponse struct {
	envelope
	TotalBids int         `json:"total_bids"`
	TotalAsks int         `json:"total_asks"`
	Bids      []orderWire `json:"bids"`
	Asks      []orderWire `json:"asks"`
}

type orderWire struct {
	OrderIndex          int64  `json:"order_index"`
	OrderID             string `json:"order_id"`
	OwnerAccountIndex   int64  `json:"owner_account_index"`
	InitialBaseAmount   string `json:"initial_base_amount"`
	RemainingBaseAmount string `json:"remaining_base_amount"`
	Price               string `json:"price"`
	OrderExpiry         int64  `json:"order_expiry"`
}

func (w orderWire) toOrder() exchange.BookOrder {
	return exchange.BookOrder{
		OrderIndex:          w.OrderIndex,
		OrderID:             w.OrderID,
		OwnerAccountIndex:   w.OwnerAccountIndex,
		InitialBaseAmount:   dec(w.InitialBaseAmount),
		RemainingBaseAmount: dec(w.RemainingBaseAmount),
		Price:               dec(w.Price),
		OrderExpiry:         w.OrderExpiry,
	}
}

func (c *Client) OrderBookOrders(ctx context.Context, marketID, limit int) (*exchange.OrderBook, error) {
	var out orderBookResponse
	_, err := c.get(ctx, "/api/v1/orderBookOrders", map[string]string{
		"market_id": strconv.Itoa(marketID),
		"limit":     strconv.Itoa(limit),
	}, &out)
	if err != nil {
		return nil, asUpstream(err, "Order book lookup")
	}
	if out.Code != CodeOK {
		return nil, apperr.New(apperr.UpstreamError, "Order book lookup returned code %d: %s", out.Code, out.Message)
	}

	book := &exchange.OrderBook{MarketID: marketID}
	for _, b := range out.Bids {
		book.Bids = append(book.Bids, b.toOrder())
	}
	for _, a := range out.Asks {
		book.Asks = append(book.Asks, a.toOrder())
	}
	return book, nil
}

type fundingRatesResponse struct {
	envelope
	FundingRates []exchange.FundingRate `json:"funding_rates"`
}

// VenueLighter is the exchange tag Lighter uses for its own rates.
const VenueLighter = "lighter"

// FundingRates returns Lighter's own rates. The endpoint also mirrors other
// venues; those rows are dropped.
func (c *Client) FundingRates(ctx context.Context) ([]exchange.FundingRate, error) {
	var out fundingRatesResponse
	_, err := c.get(ctx, "/api/v1/funding-rates", nil, &out)
	if err != nil {
		return nil, asUpstream(err, "Funding rate lookup")
	}
	if out.Code != CodeOK {
		return nil, apperr.New(apperr.UpstreamError, "Funding rate lookup returned code %d: %s", out.Code, out.Message)
	}

	rates := make([]exchange.FundingRate, 0, len(out.FundingRates))
	for _, fr := range out.FundingRates {
		if !strings.EqualFold(fr.Exchange, VenueLighter) {
			continue
		}
		fr.Symbol = strings.ToUpper(fr.Symbol)
		rates = append(rates, fr)
	}
	return rates, nil
}
