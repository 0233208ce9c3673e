// Number parsing and formatting for the presentation boundary. The
// calculation functions never see strings; everything that turns user input
// into a float64, or a float64 into display text, lives here.

package core

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber converts user input to a finite float64.
//
// It trims surrounding spaces, accepts a comma as the decimal separator and
// allows a leading sign. Empty input, thousands separators, NaN and Inf are
// rejected with ErrInvalidNumber.
//
// Examples:
//
//	ParseNumber("12")    -> 12, nil
//	ParseNumber("12,5")  -> 12.5, nil
//	ParseNumber(" -3 ")  -> -3, nil
//	ParseNumber("1.2.3") -> 0, ErrInvalidNumber
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidNumber
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidNumber
	}
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
		case (r == '-' || r == '+') && i == 0:
		default:
			return 0, ErrInvalidNumber
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidNumber
	}
	return v, nil
}

// roundLimit is where float64 can no longer hold a cent, so rounding to two
// decimals is a no-op and v*100 might overflow.
const roundLimit = 1e15

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	if math.Abs(v) >= roundLimit || math.IsNaN(v) {
		return v
	}
	return math.Round(v*100) / 100
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FormatAmount renders v with two decimals, e.g. "729.00" or "-12.50".
func FormatAmount(v float64) string {
	r := Round2(v)
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', 2, 64)
}

// FormatInput renders an input value the way the user typed it: no trailing
// zeros, no exponent.
func FormatInput(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
