package core

// Valuation is a point-in-time copy of a portfolio, safe to hand to renderers.
type Valuation struct {
	Rates  GlobalRates    `json:"rates"`
	Grants []OptionsGrant `json:"grants"`
	Total  float64        `json:"total_after_tax_return"`
}

// Finite reports whether every number in the snapshot is a finite float64.
// Portfolios built from finite inputs can still overflow, e.g. on import.
func (v Valuation) Finite() bool {
	if !isFinite(v.Total) {
		return false
	}
	for _, f := range RateFields {
		if !isFinite(v.Rates.Value(f)) {
			return false
		}
	}
	for _, g := range v.Grants {
		if !g.finite() {
			return false
		}
	}
	return true
}

// GrantTotals aggregates the derived columns over every grant.
type GrantTotals struct {
	NumShares      float64
	CostToExercise float64
	Taxes          float64
	AfterTaxReturn float64
}

// Totals sums every derived column. AfterTaxReturn is left unrounded; use
// Total for the display figure.
func (v Valuation) Totals() GrantTotals {
	var t GrantTotals
	for _, g := range v.Grants {
		t.NumShares += g.NumShares
		t.CostToExercise += g.CostToExercise
		t.Taxes += g.Taxes
		t.AfterTaxReturn += g.AfterTaxReturn
	}
	return t
}
