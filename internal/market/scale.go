package market

import (
	"math"

	"github.com/shopspring/decimal"

	"lighter-mcp/internal/apperr"
)

var (
	maxUnits = decimal.NewFromInt(math.MaxInt64)
	minUnits = decimal.NewFromInt(math.MinInt64)
)

// Scale converts a human value into exchange integer units. The product is
// floored so an order is never larger than requested. Products outside the
// int64 range are rejected rather than wrapped.
func Scale(value decimal.Decimal, scale int64) (int64, error) {
	units := value.Mul(decimal.NewFromInt(scale)).Floor()
	if units.GreaterThan(maxUnits) || units.LessThan(minUnits) {
		return 0, apperr.New(apperr.InvalidParameter,
			"%s is too large to express in exchange units (scale %d)", value, scale)
	}
	return units.IntPart(), nil
}

func (d Descriptor) ScaleAmount(amount decimal.Decimal) (int64, error) {
	return Scale(amount, d.AmountScale)
}

func (d Descriptor) ScalePrice(price decimal.Decimal) (int64, error) {
	return Scale(price, d.PriceScale)
}

// ScalePositiveAmount rejects non-positive amounts and amounts that floor
// to zero units.
func (d Descriptor) ScalePositiveAmount(name string, amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, apperr.New(apperr.InvalidParameter, "%s must be greater than 0", name)
	}
	units, err := d.ScaleAmount(amount)
	if err != nil {
		return 0, apperr.New(apperr.InvalidParameter, "%s %s is too large for %s", name, amount, d.Ticker)
	}
	if units == 0 {
		return 0, apperr.New(apperr.InvalidParameter,
			"%s %s is below the smallest unit for %s (1/%d)", name, amount, d.Ticker, d.AmountScale)
	}
	return units, nil
}

func (d Descriptor) ScalePositivePrice(name string, price decimal.Decimal) (int64, error) {
	if !price.IsPositive() {
		return 0, apperr.New(apperr.InvalidParameter, "%s must be greater than 0", name)
	}
	units, err := d.ScalePrice(price)
	if err != nil {
		return 0, apperr.New(apperr.InvalidParameter, "%s %s is too large for %s", name, price, d.Ticker)
	}
	if units == 0 {
		return 0, apperr.New(apperr.InvalidParameter,
			"%s %s is below the smallest price unit for %s (1/%d)", name, price, d.Ticker, d.PriceScale)
	}
	return units, nil
}
