// Package core values employee stock options: the pure calculation
// functions and the Portfolio that keeps every grant's derived amounts in
// step with its inputs and the global rates.
package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultMarketPrice         = 1.0
	DefaultIncomeTaxRate       = 24.0
	DefaultCapitalGainsTaxRate = 15.0

	DefaultNumShares     = 1.0
	DefaultStrikePrice   = 1.0
	DefaultExercisePrice = 1.0
)

const (
	NumShares     GrantField = "num_shares"
	StrikePrice   GrantField = "strike_price"
	ExercisePrice GrantField = "exercise_price"

	MarketPrice         RateField = "market_price"
	IncomeTaxRate       RateField = "income_tax_rate"
	CapitalGainsTaxRate RateField = "capital_gains_tax_rate"
)

type (
	// GrantField names one of the three user inputs of a grant.
	GrantField string

	// RateField names one of the session-wide assumptions.
	RateField string

	// GlobalRates are the assumptions shared by every grant of a portfolio.
	// Tax rates are percentages (24 means 24%).
	GlobalRates struct {
		MarketPrice         float64 `json:"market_price"`
		IncomeTaxRate       float64 `json:"income_tax_rate"`
		CapitalGainsTaxRate float64 `json:"capital_gains_tax_rate"`
	}

	// OptionsGrant is one block of stock options. The last three fields are
	// derived and only ever written by the calculation functions.
	OptionsGrant struct {
		NumShares     float64 `json:"num_shares"`
		StrikePrice   float64 `json:"strike_price"`
		ExercisePrice float64 `json:"exercise_price"`

		CostToExercise float64 `json:"cost_to_exercise"`
		Taxes          float64 `json:"taxes"`
		AfterTaxReturn float64 `json:"after_tax_return"`
	}
)

var (
	ErrOutOfRange    = errors.New("grant index out of range")
	ErrUnknownField  = errors.New("unknown field")
	ErrInvalidNumber = errors.New("invalid number")

	errOverflow = fmt.Errorf("result out of range: %w", ErrInvalidNumber)
)

// GrantFields lists the grant inputs in display order.
var GrantFields = []GrantField{NumShares, StrikePrice, ExercisePrice}

// RateFields lists the global rates in display order.
var RateFields = []RateField{MarketPrice, IncomeTaxRate, CapitalGainsTaxRate}

// DefaultRates returns the rates a new session starts with.
func DefaultRates() GlobalRates {
	return GlobalRates{
		MarketPrice:         DefaultMarketPrice,
		IncomeTaxRate:       DefaultIncomeTaxRate,
		CapitalGainsTaxRate: DefaultCapitalGainsTaxRate,
	}
}

// ParseGrantField accepts the canonical snake_case name as well as the
// camelCase spelling used by older clients.
func ParseGrantField(s string) (GrantField, error) {
	switch normalizeFieldName(s) {
	case "numshares":
		return NumShares, nil
	case "strikeprice":
		return StrikePrice, nil
	case "exerciseprice":
		return ExercisePrice, nil
	}
	return "", fmt.Errorf("grant field %q: %w", s, ErrUnknownField)
}

// ParseRateField is the RateField counterpart of ParseGrantField.
func ParseRateField(s string) (RateField, error) {
	switch normalizeFieldName(s) {
	case "marketprice":
		return MarketPrice, nil
	case "incometaxrate", "incometax":
		return IncomeTaxRate, nil
	case "capitalgainstaxrate", "capitalgainstax":
		return CapitalGainsTaxRate, nil
	}
	return "", fmt.Errorf("rate field %q: %w", s, ErrUnknownField)
}

func normalizeFieldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// Label returns the human readable column title.
func (f GrantField) Label() string {
	switch f {
	case NumShares:
		return "No. of Shares"
	case StrikePrice:
		return "Strike Price"
	case ExercisePrice:
		return "Exercise Price"
	}
	return string(f)
}

// Description is the hint shown next to the input.
func (f GrantField) Description() string {
	switch f {
	case NumShares:
		return "The number of shares you plan to exercise"
	case StrikePrice:
		return "Price your option allows you to buy shares at"
	case ExercisePrice:
		return "Price you exercise your options at. You can assume this is equal to market price, unless you hold your shares"
	}
	return ""
}

func (g OptionsGrant) finite() bool {
	return isFinite(g.NumShares) && isFinite(g.StrikePrice) && isFinite(g.ExercisePrice) &&
		isFinite(g.CostToExercise) && isFinite(g.Taxes) && isFinite(g.AfterTaxReturn)
}

// Value returns the grant input named by f.
func (g OptionsGrant) Value(f GrantField) float64 {
	switch f {
	case NumShares:
		return g.NumShares
	case StrikePrice:
		return g.StrikePrice
	case ExercisePrice:
		return g.ExercisePrice
	}
	return 0
}

func (f RateField) Label() string {
	switch f {
	case MarketPrice:
		return "Market Price"
	case IncomeTaxRate:
		return "Income Tax"
	case CapitalGainsTaxRate:
		return "Capital Gains Tax"
	}
	return string(f)
}

func (f RateField) Description() string {
	switch f {
	case MarketPrice:
		return "Price you can sell the shares at the current time"
	case IncomeTaxRate:
		return "Based on your tax bracket"
	case CapitalGainsTaxRate:
		return "Based on your tax bracket and holding time. Currently this defaults to holding for a year"
	}
	return ""
}

// Value returns the rate named by f.
func (r GlobalRates) Value(f RateField) float64 {
	switch f {
	case MarketPrice:
		return r.MarketPrice
	case IncomeTaxRate:
		return r.IncomeTaxRate
	case CapitalGainsTaxRate:
		return r.CapitalGainsTaxRate
	}
	return 0
}
