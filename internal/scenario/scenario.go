// Package scenario reads and writes portfolio files.
//
// A portfolio file holds only user inputs: the three rates and, per grant,
// shares, strike and exercise price. Derived values are always recomputed on
// load, so a hand-edited file can never carry stale outputs.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"optionsworth/internal/core"
)

// File is the on-disk representation of a portfolio.
type File struct {
	Rates  Rates   `yaml:"rates" json:"rates"`
	Grants []Grant `yaml:"grants" json:"grants"`
}

// Rates mirrors core.GlobalRates with YAML tags.
type Rates struct {
	MarketPrice         float64 `yaml:"market_price" json:"market_price"`
	IncomeTaxRate       float64 `yaml:"income_tax_rate" json:"income_tax_rate"`                 // percent
	CapitalGainsTaxRate float64 `yaml:"capital_gains_tax_rate" json:"capital_gains_tax_rate"` // percent
}

// Grant holds the inputs of one grant. Keys left out of the file take the
// same defaults as a newly added grant.
type Grant struct {
	NumShares     float64 `yaml:"num_shares" json:"num_shares"`
	StrikePrice   float64 `yaml:"strike_price" json:"strike_price"`
	ExercisePrice float64 `yaml:"exercise_price" json:"exercise_price"`
}

const header = `# optionsworth portfolio
# Rates apply to every grant. Tax rates are percentages (24 means 24%).
# Only inputs are stored; costs, taxes and returns are recomputed on load.
`

// ErrInvalidFile is returned for files that parse but cannot be valued.
var ErrInvalidFile = errors.New("invalid portfolio file")

// UnmarshalYAML fills missing grant keys with the defaults.
func (g *Grant) UnmarshalYAML(node *yaml.Node) error {
	type plain Grant
	p := plain{
		NumShares:     core.DefaultNumShares,
		StrikePrice:   core.DefaultStrikePrice,
		ExercisePrice: core.DefaultExercisePrice,
	}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*g = Grant(p)
	return nil
}

// Decode reads a portfolio file. Rates missing from the file take the values
// in defaults. Unknown keys are rejected.
func Decode(r io.Reader, defaults core.GlobalRates) (*File, error) {
	f := File{Rates: Rates(defaults)}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidFile)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads the portfolio file at path.
func Load(path string, defaults core.GlobalRates) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read portfolio: %w", err)
	}
	f, err := Decode(bytes.NewReader(data), defaults)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Validate rejects values the calculator cannot value: NaN, infinities and
// inputs whose derived amounts or total overflow float64.
func (f *File) Validate() error {
	check := func(where string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidFile, where)
		}
		return nil
	}

	for _, field := range core.RateFields {
		if err := check(string(field), core.GlobalRates(f.Rates).Value(field)); err != nil {
			return err
		}
	}
	for i, g := range f.Grants {
		for _, field := range core.GrantFields {
			if err := check(fmt.Sprintf("grants[%d].%s", i, field), g.value(field)); err != nil {
				return err
			}
		}
	}
	if !f.Portfolio().Snapshot().Finite() {
		return fmt.Errorf("%w: derived amounts are out of range", ErrInvalidFile)
	}
	return nil
}

func (g Grant) value(f core.GrantField) float64 {
	switch f {
	case core.NumShares:
		return g.NumShares
	case core.StrikePrice:
		return g.StrikePrice
	case core.ExercisePrice:
		return g.ExercisePrice
	}
	return 0
}

// Portfolio builds a fully valued portfolio from the file's inputs.
func (f *File) Portfolio() *core.Portfolio {
	p := core.NewEmptyPortfolio(core.GlobalRates(f.Rates))
	for _, g := range f.Grants {
		p.AppendGrant(g.NumShares, g.StrikePrice, g.ExercisePrice)
	}
	return p
}

// FromValuation captures the inputs of a snapshot.
func FromValuation(v core.Valuation) *File {
	f := &File{
		Rates:  Rates(v.Rates),
		Grants: make([]Grant, 0, len(v.Grants)),
	}
	for _, g := range v.Grants {
		f.Grants = append(f.Grants, Grant{
			NumShares:     g.NumShares,
			StrikePrice:   g.StrikePrice,
			ExercisePrice: g.ExercisePrice,
		})
	}
	return f
}

// Encode writes f as YAML preceded by a short explanatory header.
func Encode(w io.Writer, f *File) error {
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode portfolio: %w", err)
	}
	return enc.Close()
}

type valuedGrant struct {
	Grant          `yaml:",inline"`
	CostToExercise float64 `yaml:"cost_to_exercise"`
	Taxes          float64 `yaml:"taxes"`
	AfterTaxReturn float64 `yaml:"after_tax_return"`
}

type valuedFile struct {
	Rates  Rates         `yaml:"rates"`
	Grants []valuedGrant `yaml:"grants"`
	Total  float64       `yaml:"total_after_tax_return"`
}

// EncodeValuation writes a snapshot including the derived amounts. The output
// is a report, not an importable portfolio: Decode rejects the extra keys.
func EncodeValuation(w io.Writer, v core.Valuation) error {
	out := valuedFile{
		Rates:  Rates(v.Rates),
		Grants: make([]valuedGrant, 0, len(v.Grants)),
		Total:  v.Total,
	}
	for _, g := range v.Grants {
		out.Grants = append(out.Grants, valuedGrant{
			Grant: Grant{
				NumShares:     g.NumShares,
				StrikePrice:   g.StrikePrice,
				ExercisePrice: g.ExercisePrice,
			},
			CostToExercise: core.Round2(g.CostToExercise),
			Taxes:          core.Round2(g.Taxes),
			AfterTaxReturn: core.Round2(g.AfterTaxReturn),
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode valuation: %w", err)
	}
	return enc.Close()
}

// Save writes f to path.
func Save(path string, f *File) error {
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write portfolio: %w", err)
	}
	return nil
}
