// Package stats summarises the distribution of county poverty rates.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

// DefaultBins is the histogram resolution used when none is given
const DefaultBins = 30

// Bin is one equal-width histogram bucket, [Lower, Upper)
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Distribution describes the defined pct_poverty_5_17 values of a result set.
// Counties with an undefined percentage are counted in Nulls, never as zero.
type Distribution struct {
	Count        int      `json:"count"`
	Nulls        int      `json:"nulls"`
	NullCounties []string `json:"null_counties"`
	Min          float64  `json:"min"`
	Q1           float64  `json:"q1"`
	Median       float64  `json:"median"`
	Mean         float64  `json:"mean"`
	Q3           float64  `json:"q3"`
	Max          float64  `json:"max"`
	StdDev       float64  `json:"std_dev"`
	Bins         []Bin    `json:"bins"`
}

// Summarize computes summary statistics and a histogram with the given number
// of bins over the defined percentages in rows
func Summarize(rows []model.CountyAggregate, bins int) Distribution {
	if bins <= 0 {
		bins = DefaultBins
	}

	var d Distribution
	x := make([]float64, 0, len(rows))
	for _, row := range rows {
		if !row.PctPoverty5to17.Valid {
			d.Nulls++
			d.NullCounties = append(d.NullCounties, row.County)
			continue
		}
		x = append(x, row.PctPoverty5to17.Decimal.InexactFloat64())
	}

	d.Count = len(x)
	if d.Count == 0 {
		return d
	}
	sort.Float64s(x)

	d.Min = floats.Min(x)
	d.Max = floats.Max(x)
	d.Q1 = stat.Quantile(0.25, stat.Empirical, x, nil)
	d.Median = stat.Quantile(0.5, stat.Empirical, x, nil)
	d.Q3 = stat.Quantile(0.75, stat.Empirical, x, nil)
	if d.Count > 1 {
		d.Mean, d.StdDev = stat.MeanStdDev(x, nil)
	} else {
		d.Mean = x[0]
	}

	d.Bins = histogram(x, d.Min, d.Max, bins)
	return d
}

// histogram buckets sorted x into n equal-width bins spanning [lo, hi]
func histogram(x []float64, lo, hi float64, n int) []Bin {
	if hi == lo {
		hi = lo + 1
	}
	dividers := make([]float64, n+1)
	floats.Span(dividers, lo, hi)
	// the top value must fall inside the last bin
	dividers[n] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, x, nil)

	out := make([]Bin, n)
	for i := range out {
		out[i] = Bin{Lower: dividers[i], Upper: dividers[i+1], Count: int(counts[i])}
	}
	return out
}
