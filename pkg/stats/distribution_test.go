package stats

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

func rowsWithPct(values ...string) []model.CountyAggregate {
	rows := make([]model.CountyAggregate, len(values))
	for i, v := range values {
		rows[i].County = "County " + v
		if v != "" {
			rows[i].PctPoverty5to17 = decimal.NewNullDecimal(decimal.RequireFromString(v))
		}
	}
	return rows
}

func TestSummarize(t *testing.T) {
	rows := rowsWithPct("3", "1", "", "5", "2", "4")
	rows[2].County = "Richmond"

	d := Summarize(rows, 4)

	assert.Equal(t, 5, d.Count)
	assert.Equal(t, 1, d.Nulls)
	assert.Equal(t, []string{"Richmond"}, d.NullCounties)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 5.0, d.Max)
	assert.Equal(t, 2.0, d.Q1)
	assert.Equal(t, 3.0, d.Median)
	assert.Equal(t, 4.0, d.Q3)
	assert.InDelta(t, 3.0, d.Mean, 1e-9)
	assert.InDelta(t, 1.5811, d.StdDev, 1e-4)

	require.Len(t, d.Bins, 4)
	total := 0
	for _, b := range d.Bins {
		total += b.Count
	}
	assert.Equal(t, 5, total)
	assert.Equal(t, 1.0, d.Bins[0].Lower)
	assert.Greater(t, d.Bins[3].Upper, 5.0)
}

func TestSummarizeSeparatedBins(t *testing.T) {
	d := Summarize(rowsWithPct("0", "1", "10"), 2)
	require.Len(t, d.Bins, 2)
	assert.Equal(t, 2, d.Bins[0].Count)
	assert.Equal(t, 1, d.Bins[1].Count)
}

func TestSummarizeDegenerate(t *testing.T) {
	d := Summarize(rowsWithPct("7.5", "7.5"), 3)
	assert.Equal(t, 2, d.Count)
	assert.Equal(t, 7.5, d.Mean)
	assert.Equal(t, 0.0, d.StdDev)
	require.Len(t, d.Bins, 3)
	assert.Equal(t, 2, d.Bins[0].Count)

	single := Summarize(rowsWithPct("12"), 0)
	assert.Equal(t, 12.0, single.Mean)
	assert.Equal(t, 0.0, single.StdDev)
	assert.Len(t, single.Bins, DefaultBins)
}

func TestSummarizeAllNull(t *testing.T) {
	d := Summarize(rowsWithPct("", ""), 5)
	assert.Equal(t, 0, d.Count)
	assert.Equal(t, 2, d.Nulls)
	assert.Empty(t, d.Bins)
}
