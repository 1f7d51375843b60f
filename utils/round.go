package utils

import "github.com/shopspring/decimal"

// Round2 rounds to two decimal places, half away from zero. Liters and
// currency are stored and reported at this precision.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// RoundInt rounds to the nearest whole number, half away from zero.
func RoundInt(v float64) int {
	return int(decimal.NewFromFloat(v).Round(0).IntPart())
}
