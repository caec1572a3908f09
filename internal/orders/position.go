package orders

import (
	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/exchange"
)

// AutoSelect picks the first matching position.
const AutoSelect = -1

func openPositions(positions []exchange.Position, marketID int) []exchange.Position {
	var out []exchange.Position
	for _, p := range positions {
		if p.MarketID == marketID && !p.Size.IsZero() {
			out = append(out, p)
		}
	}
	return out
}

func activePositions(positions []exchange.Position, marketID int) []exchange.Position {
	var out []exchange.Position
	for _, p := range positions {
		if p.MarketID == marketID && p.Active() {
			out = append(out, p)
		}
	}
	return out
}

// selectPosition returns candidates[index], or the first one for AutoSelect.
func selectPosition(candidates []exchange.Position, index int) (exchange.Position, error) {
	if index == AutoSelect {
		return candidates[0], nil
	}
	if index < 0 || index >= len(candidates) {
		return exchange.Position{}, apperr.New(apperr.PositionIndexOutOfRange,
			"Position index %d out of range. Available positions: 0-%d", index, len(candidates)-1)
	}
	return candidates[index], nil
}

// closingSide is the side that reduces p: sell a long, buy back a short.
func closingSide(p exchange.Position) (isAsk bool) {
	return p.Sign == 1
}
