// Package report renders a portfolio valuation as a one-page PDF.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"optionsworth/internal/core"
)

const (
	pageWidth    = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 20.0
	contentWidth = pageWidth - marginLeft - marginRight

	rowHeight = 7.0
)

// Title heads every report.
const Title = "How much are my options worth?"

// Options tweak report rendering.
type Options struct {
	GeneratedAt time.Time
	Source      string // shown under the title, e.g. the file name
}

type valuationReport struct {
	pdf  *fpdf.Fpdf
	v    core.Valuation
	opts Options
}

// Generate returns the PDF bytes for v.
func Generate(v core.Valuation, opts Options) ([]byte, error) {
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	r := &valuationReport{
		pdf:  fpdf.New("P", "mm", "A4", ""),
		v:    v,
		opts: opts,
	}
	r.pdf.SetMargins(marginLeft, marginTop, marginRight)
	r.pdf.SetAutoPageBreak(true, marginBottom)
	r.pdf.SetTitle(Title, false)
	r.pdf.SetCreationDate(opts.GeneratedAt)

	r.pdf.AddPage()
	r.addHeader()
	r.addRates()
	r.addGrants()
	r.addTotal()

	var buf bytes.Buffer
	if err := r.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *valuationReport) addHeader() {
	r.pdf.SetFont("Arial", "B", 20)
	r.pdf.SetTextColor(0, 51, 102)
	r.pdf.CellFormat(contentWidth, 12, Title, "", 1, "C", false, 0, "")

	r.pdf.SetFont("Arial", "I", 10)
	r.pdf.SetTextColor(120, 120, 120)
	sub := "Generated: " + r.opts.GeneratedAt.Format("2 January 2006 15:04")
	if r.opts.Source != "" {
		sub = r.opts.Source + "  |  " + sub
	}
	r.pdf.CellFormat(contentWidth, 6, sub, "", 1, "C", false, 0, "")
	r.pdf.Ln(6)
}

func (r *valuationReport) sectionTitle(title string) {
	r.pdf.SetFont("Arial", "B", 12)
	r.pdf.SetTextColor(0, 51, 102)
	r.pdf.CellFormat(contentWidth, 8, title, "", 1, "L", false, 0, "")
}

func (r *valuationReport) addRates() {
	r.sectionTitle("Assumptions")

	r.pdf.SetFillColor(245, 247, 250)
	r.pdf.SetDrawColor(200, 200, 200)
	labelW := 55.0
	for _, f := range core.RateFields {
		value := core.FormatAmount(r.v.Rates.Value(f))
		if f != core.MarketPrice {
			value += " %"
		}
		r.pdf.SetFont("Arial", "B", 10)
		r.pdf.SetTextColor(50, 50, 50)
		r.pdf.CellFormat(labelW, rowHeight, f.Label(), "1", 0, "L", true, 0, "")
		r.pdf.SetFont("Arial", "", 10)
		r.pdf.CellFormat(30, rowHeight, value, "1", 0, "R", false, 0, "")
		r.pdf.SetFont("Arial", "I", 8)
		r.pdf.SetTextColor(120, 120, 120)
		r.pdf.CellFormat(contentWidth-labelW-30, rowHeight, " "+f.Description(), "", 1, "L", false, 0, "")
	}
	r.pdf.Ln(6)
}

var grantColumns = []struct {
	title string
	width float64
}{
	{"#", 10},
	{core.NumShares.Label(), 28},
	{core.StrikePrice.Label(), 26},
	{core.ExercisePrice.Label(), 28},
	{"Cost to Exercise", 32},
	{"Taxes", 26},
	{"After-tax Return", 30},
}

func (r *valuationReport) addGrants() {
	r.sectionTitle("Grants")

	r.pdf.SetFont("Arial", "B", 9)
	r.pdf.SetTextColor(255, 255, 255)
	r.pdf.SetFillColor(0, 51, 102)
	for _, c := range grantColumns {
		r.pdf.CellFormat(c.width, rowHeight, c.title, "1", 0, "C", true, 0, "")
	}
	r.pdf.Ln(-1)

	r.pdf.SetFont("Arial", "", 9)
	r.pdf.SetTextColor(50, 50, 50)
	for i, g := range r.v.Grants {
		// zebra rows
		fill := i%2 == 1
		r.pdf.SetFillColor(245, 247, 250)
		cells := []string{
			fmt.Sprintf("%d", i+1),
			core.FormatInput(g.NumShares),
			core.FormatAmount(g.StrikePrice),
			core.FormatAmount(g.ExercisePrice),
			core.FormatAmount(g.CostToExercise),
			core.FormatAmount(g.Taxes),
			core.FormatAmount(g.AfterTaxReturn),
		}
		for j, c := range grantColumns {
			align := "R"
			if j == 0 {
				align = "C"
			}
			r.pdf.CellFormat(c.width, rowHeight, cells[j], "1", 0, align, fill, 0, "")
		}
		r.pdf.Ln(-1)
	}
	if len(r.v.Grants) == 0 {
		r.pdf.SetFont("Arial", "I", 9)
		r.pdf.CellFormat(contentWidth, rowHeight, "No grants", "1", 1, "C", false, 0, "")
	} else {
		r.pdf.SetFont("Arial", "B", 9)
		r.pdf.SetFillColor(230, 235, 242)
		for j, cell := range totalsRow(r.v.Totals()) {
			align := "R"
			if j == 0 {
				align = "C"
			}
			r.pdf.CellFormat(grantColumns[j].width, rowHeight, cell, "1", 0, align, true, 0, "")
		}
		r.pdf.Ln(-1)
	}
	r.pdf.Ln(6)
}

// totalsRow lines up with grantColumns. Per-share prices do not add up, so
// those cells stay blank.
func totalsRow(t core.GrantTotals) []string {
	return []string{
		"Total",
		core.FormatInput(t.NumShares),
		"",
		"",
		core.FormatAmount(t.CostToExercise),
		core.FormatAmount(t.Taxes),
		core.FormatAmount(t.AfterTaxReturn),
	}
}

func (r *valuationReport) addTotal() {
	r.pdf.SetFont("Arial", "B", 14)
	r.pdf.SetTextColor(0, 102, 51)
	if r.v.Total < 0 {
		r.pdf.SetTextColor(170, 0, 0)
	}
	r.pdf.CellFormat(contentWidth, 10, TotalLine(r.v.Total), "T", 1, "R", false, 0, "")
}

// TotalLine is the sentence used for the portfolio total everywhere.
func TotalLine(total float64) string {
	return "Your Options are worth: " + core.FormatAmount(total)
}
