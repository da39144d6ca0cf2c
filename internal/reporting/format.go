package reporting

import (
	"math"

	"github.com/shopspring/decimal"
)

// fixed renders v with places decimals. Undefined and infinite values, which
// decimal cannot represent, are rendered as NaN, +Inf and -Inf.
func fixed(v float64, places int32) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// exact renders v with the shortest decimal representation.
func exact(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fixed(v, 0)
	}
	return decimal.NewFromFloat(v).String()
}
