package http

import (
	"strings"

	"optionsworth/internal/core"
	"optionsworth/internal/report"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

type pageView struct {
	Title      string
	Calculator calculatorView
}

type inputView struct {
	Field       string
	Label       string
	Description string
	Value       string
}

type grantView struct {
	Index          int
	Inputs         []inputView
	CostToExercise string
	Taxes          string
	AfterTaxReturn string
}

type calculatorView struct {
	Rates     []inputView
	Grants    []grantView
	Total     string
	TotalLine string
}

// newCalculatorView formats a snapshot for the templates. Inputs keep the
// precision the user typed; derived amounts are shown with two decimals.
func newCalculatorView(v core.Valuation) calculatorView {
	view := calculatorView{
		Rates:     make([]inputView, 0, len(core.RateFields)),
		Grants:    make([]grantView, 0, len(v.Grants)),
		Total:     core.FormatAmount(v.Total),
		TotalLine: report.TotalLine(v.Total),
	}

	for _, f := range core.RateFields {
		view.Rates = append(view.Rates, inputView{
			Field:       string(f),
			Label:       f.Label(),
			Description: f.Description(),
			Value:       core.FormatInput(v.Rates.Value(f)),
		})
	}

	for i, g := range v.Grants {
		row := grantView{
			Index:          i,
			Inputs:         make([]inputView, 0, len(core.GrantFields)),
			CostToExercise: core.FormatAmount(g.CostToExercise),
			Taxes:          core.FormatAmount(g.Taxes),
			AfterTaxReturn: core.FormatAmount(g.AfterTaxReturn),
		}
		for _, f := range core.GrantFields {
			row.Inputs = append(row.Inputs, inputView{
				Field:       string(f),
				Label:       f.Label(),
				Description: f.Description(),
				Value:       core.FormatInput(g.Value(f)),
			})
		}
		view.Grants = append(view.Grants, row)
	}
	return view
}
