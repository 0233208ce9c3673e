package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionsworth/internal/core"
)

func TestGenerate(t *testing.T) {
	p := core.NewEmptyPortfolio(core.GlobalRates{MarketPrice: 10, IncomeTaxRate: 24, CapitalGainsTaxRate: 15})
	p.AppendGrant(100, 1, 5)
	p.AppendGrant(40, 2, 10)

	data, err := Generate(p.Snapshot(), Options{
		GeneratedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Source:      "portfolio.yaml",
	})

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "not a PDF")
	assert.True(t, bytes.Contains(data, []byte("%%EOF")), "truncated PDF")
}

func TestGenerate_EmptyPortfolio(t *testing.T) {
	data, err := Generate(core.NewEmptyPortfolio(core.DefaultRates()).Snapshot(), Options{})

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestTotalLine(t *testing.T) {
	assert.Equal(t, "Your Options are worth: 729.00", TotalLine(729))
	assert.Equal(t, "Your Options are worth: 0.00", TotalLine(0))
	assert.Equal(t, "Your Options are worth: -12.50", TotalLine(-12.5))
}

func TestTotalsRow(t *testing.T) {
	p := core.NewEmptyPortfolio(core.GlobalRates{MarketPrice: 10, IncomeTaxRate: 24, CapitalGainsTaxRate: 15})
	p.AppendGrant(100, 1, 5)
	p.AppendGrant(40, 2, 10)

	row := totalsRow(p.Snapshot().Totals())

	require.Len(t, row, len(grantColumns))
	assert.Equal(t, "Total", row[0])
	assert.Equal(t, "140", row[1])
	assert.Equal(t, "180.00", row[4])
	assert.Empty(t, row[2])
}
