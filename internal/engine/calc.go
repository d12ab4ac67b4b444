package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

const priceEpsilon = 1e-9

// RoundToTick rounds price to the nearest multiple of tick. Decimal maths
// keeps 489.95 from turning into 489.95000000000005.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	return p.Div(t).Round(0).Mul(t).InexactFloat64()
}

func samePrice(a, b float64) bool {
	return math.Abs(a-b) < priceEpsilon
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
