package mixing

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds value to the given number of decimals, half away from zero.
// NaN and infinities round to 0; negative decimals are treated as 0.
func Round(value float64, decimals int) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	if decimals < 0 {
		decimals = 0
	}
	rounded, _ := decimal.NewFromFloat(value).Round(int32(decimals)).Float64()
	return rounded
}
