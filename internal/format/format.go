// Package format renders raw magnitudes as short human-readable strings.
//
// Values of a thousand or more are scaled by powers of 1000 and printed with
// two decimals and a K, M or B suffix; smaller values are rounded to an
// integer:
//
//	999           -> "999"
//	1500          -> "1.50 K"
//	2_500_000     -> "2.50 M"
//	3_000_000_000 -> "3.00 B"
package format

import (
	"math"
	"strconv"
)

const (
	thousand = 1e3
	million  = 1e6
	billion  = 1e9
)

// Magnitude formats v using base-1000 unit suffixes.
func Magnitude(v float64) string {
	switch {
	case v >= billion:
		return scaled(v/billion, "B")
	case v >= million:
		return scaled(v/million, "M")
	case v >= thousand:
		return scaled(v/thousand, "K")
	default:
		return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	}
}

// Billions formats a value expressed in billions, the unit the bundled
// simulator and most traffic producers report in.
func Billions(v float64) string {
	return Magnitude(v * billion)
}

// Unit selects how raw series values are interpreted before formatting.
type Unit string

const (
	// UnitOne formats values as-is.
	UnitOne Unit = "one"

	// UnitBillions treats values as billions.
	UnitBillions Unit = "billions"
)

// Func returns the formatter for the unit. Unknown units format as-is.
func (u Unit) Func() func(float64) string {
	if u == UnitBillions {
		return Billions
	}
	return Magnitude
}

func scaled(v float64, suffix string) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + " " + suffix
}
