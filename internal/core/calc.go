package core

// CostToExercise is the cash needed to buy the shares underlying a grant.
func CostToExercise(numShares, strikePrice float64) float64 {
	return numShares * strikePrice
}

// Taxes returns income tax on the spread between exercise and strike plus
// capital gains tax on the spread between market and exercise. Rates are
// percentages. Either component may be negative and is not clamped.
func Taxes(incomeTaxRate, capitalGainsTaxRate, numShares, strikePrice, exercisePrice, marketPrice float64) float64 {
	income := (incomeTaxRate / 100) * (exercisePrice - strikePrice) * numShares
	capitalGains := (capitalGainsTaxRate / 100) * (marketPrice - exercisePrice) * numShares
	return income + capitalGains
}

// AfterTaxReturn is sale proceeds at market price minus taxes and the cost
// to exercise.
func AfterTaxReturn(numShares, marketPrice, strikePrice, taxes float64) float64 {
	return numShares*marketPrice - taxes - CostToExercise(numShares, strikePrice)
}

// Evaluate returns a grant with the given inputs and every derived field
// computed against rates.
func Evaluate(rates GlobalRates, numShares, strikePrice, exercisePrice float64) OptionsGrant {
	taxes := Taxes(
		rates.IncomeTaxRate,
		rates.CapitalGainsTaxRate,
		numShares,
		strikePrice,
		exercisePrice,
		rates.MarketPrice,
	)
	return OptionsGrant{
		NumShares:      numShares,
		StrikePrice:    strikePrice,
		ExercisePrice:  exercisePrice,
		CostToExercise: CostToExercise(numShares, strikePrice),
		Taxes:          taxes,
		AfterTaxReturn: AfterTaxReturn(numShares, rates.MarketPrice, strikePrice, taxes),
	}
}

// Recompute re-derives g's outputs from its own inputs.
func (g OptionsGrant) Recompute(rates GlobalRates) OptionsGrant {
	return Evaluate(rates, g.NumShares, g.StrikePrice, g.ExercisePrice)
}

// DefaultGrant is the grant appended by Portfolio.AddGrant.
func DefaultGrant(rates GlobalRates) OptionsGrant {
	return Evaluate(rates, DefaultNumShares, DefaultStrikePrice, DefaultExercisePrice)
}
