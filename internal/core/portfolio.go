package core

import "fmt"

// Portfolio owns an ordered list of grants and the rates they are valued
// against. Every mutation leaves each grant's derived fields consistent with
// its inputs and the current rates.
//
// A Portfolio is not safe for concurrent use; callers serialise access.
type Portfolio struct {
	rates  GlobalRates
	grants []OptionsGrant
}

// NewPortfolio returns a portfolio holding one default grant.
func NewPortfolio(rates GlobalRates) *Portfolio {
	p := &Portfolio{rates: rates}
	p.AddGrant()
	return p
}

// NewEmptyPortfolio returns a portfolio without grants.
func NewEmptyPortfolio(rates GlobalRates) *Portfolio {
	return &Portfolio{rates: rates}
}

// Rates returns the current global rates.
func (p *Portfolio) Rates() GlobalRates {
	return p.rates
}

// Len returns the number of grants.
func (p *Portfolio) Len() int {
	return len(p.grants)
}

// Grant returns a copy of the grant at index.
func (p *Portfolio) Grant(index int) (OptionsGrant, error) {
	if err := p.checkIndex(index); err != nil {
		return OptionsGrant{}, err
	}
	return p.grants[index], nil
}

// Grants returns a copy of the grant list.
func (p *Portfolio) Grants() []OptionsGrant {
	out := make([]OptionsGrant, len(p.grants))
	copy(out, p.grants)
	return out
}

// AddGrant appends a default grant valued against the current rates.
func (p *Portfolio) AddGrant() OptionsGrant {
	g := DefaultGrant(p.rates)
	p.grants = append(p.grants, g)
	return g
}

// AppendGrant appends a grant with the given inputs. Used when importing a
// portfolio; any derived values on the argument are ignored.
func (p *Portfolio) AppendGrant(numShares, strikePrice, exercisePrice float64) OptionsGrant {
	g := Evaluate(p.rates, numShares, strikePrice, exercisePrice)
	p.grants = append(p.grants, g)
	return g
}

// SetGrantField replaces one input of the grant at index and recomputes that
// grant. No other grant is touched. On error nothing is mutated, including
// when the new value would push a derived amount or the total past float64
// range (ErrInvalidNumber).
func (p *Portfolio) SetGrantField(index int, field GrantField, value float64) (OptionsGrant, error) {
	if err := p.checkIndex(index); err != nil {
		return OptionsGrant{}, err
	}

	cur := p.grants[index]
	numShares, strikePrice, exercisePrice := cur.NumShares, cur.StrikePrice, cur.ExercisePrice
	switch field {
	case NumShares:
		numShares = value
	case StrikePrice:
		strikePrice = value
	case ExercisePrice:
		exercisePrice = value
	default:
		return OptionsGrant{}, fmt.Errorf("grant field %q: %w", field, ErrUnknownField)
	}

	updated := Evaluate(p.rates, numShares, strikePrice, exercisePrice)
	if !updated.finite() {
		return OptionsGrant{}, fmt.Errorf("grant %d %s %v: %w", index, field, value, errOverflow)
	}
	if !isFinite(p.sumAfterTaxReturn() - cur.AfterTaxReturn + updated.AfterTaxReturn) {
		return OptionsGrant{}, fmt.Errorf("total after %s %v: %w", field, value, errOverflow)
	}
	p.grants[index] = updated
	return updated, nil
}

// SetGlobalRate updates one rate and rebuilds every grant against the new
// rates. A rate that would overflow any grant or the total is rejected with
// ErrInvalidNumber and nothing changes.
func (p *Portfolio) SetGlobalRate(field RateField, value float64) error {
	rates := p.rates
	switch field {
	case MarketPrice:
		rates.MarketPrice = value
	case IncomeTaxRate:
		rates.IncomeTaxRate = value
	case CapitalGainsTaxRate:
		rates.CapitalGainsTaxRate = value
	default:
		return fmt.Errorf("rate field %q: %w", field, ErrUnknownField)
	}

	grants := make([]OptionsGrant, len(p.grants))
	var total float64
	for i, g := range p.grants {
		grants[i] = g.Recompute(rates)
		if !grants[i].finite() {
			return fmt.Errorf("rate %s %v on grant %d: %w", field, value, i, errOverflow)
		}
		total += grants[i].AfterTaxReturn
	}
	if !isFinite(total) {
		return fmt.Errorf("total after rate %s %v: %w", field, value, errOverflow)
	}
	p.rates = rates
	p.grants = grants
	return nil
}

// TotalAfterTaxReturn sums after-tax return over all grants, rounded to two
// decimals.
func (p *Portfolio) TotalAfterTaxReturn() float64 {
	return Round2(p.sumAfterTaxReturn())
}

func (p *Portfolio) sumAfterTaxReturn() float64 {
	var total float64
	for _, g := range p.grants {
		total += g.AfterTaxReturn
	}
	return total
}

// Snapshot returns a copy of the whole portfolio state.
func (p *Portfolio) Snapshot() Valuation {
	return Valuation{
		Rates:  p.rates,
		Grants: p.Grants(),
		Total:  p.TotalAfterTaxReturn(),
	}
}

func (p *Portfolio) checkIndex(index int) error {
	if index < 0 || index >= len(p.grants) {
		return fmt.Errorf("index %d (have %d grants): %w", index, len(p.grants), ErrOutOfRange)
	}
	return nil
}
