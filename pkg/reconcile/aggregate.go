package reconcile

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

// Count fields of a demographic record, as named in the source table
const (
	FieldPopulation = "population"
	FieldPop5to17   = "pop_5_17"
	FieldPov5to17   = "pop_5_17_poverty"
)

// Diagnostics describe what the aggregation saw but did not report as rows
type Diagnostics struct {
	MissingCounts       map[string]int // missing values per count field, over joined rows
	UnjoinedRows        int            // demographic rows whose key is not in the mapping
	CountiesWithoutData int            // mapped counties no demographic row joined to
	MissingOps          []model.FilterOperation
}

type accumulator struct {
	key                 model.CountyKey
	pop, pop517, pov517 int64
	rows                int
}

// Aggregate joins validated demographic records to the county mapping and sums
// them per county. The result does not depend on the order of either input.
func Aggregate(mapping []model.CountyMapping, records []model.DistrictRecord, opts Options) ([]model.CountyAggregate, Diagnostics) {
	diag := Diagnostics{MissingCounts: make(map[string]int)}

	counties := make(map[model.CountyKey]*accumulator)
	byKey := make(map[string][]*accumulator)
	for _, e := range mapping {
		acc, ok := counties[e.County]
		if !ok {
			acc = &accumulator{key: e.County}
			counties[e.County] = acc
		}
		jk := opts.KeyScope.JoinKey(e.Key)
		if !slices.Contains(byKey[jk], acc) {
			byKey[jk] = append(byKey[jk], acc)
		}
	}

	now := time.Now()
	for _, rec := range records {
		targets := byKey[opts.KeyScope.JoinKey(rec.Key)]
		if len(targets) == 0 {
			diag.UnjoinedRows++
			continue
		}

		pop := contribution(rec.Population, FieldPopulation, rec, opts.SentinelPolicy, &diag, now)
		pop517 := contribution(rec.Pop5to17, FieldPop5to17, rec, opts.SentinelPolicy, &diag, now)
		pov517 := contribution(rec.Pop5to17Poverty, FieldPov5to17, rec, opts.SentinelPolicy, &diag, now)

		for _, acc := range targets {
			acc.pop += pop
			acc.pop517 += pop517
			acc.pov517 += pov517
			acc.rows++
		}
	}

	out := make([]model.CountyAggregate, 0, len(counties))
	for _, acc := range counties {
		if acc.rows == 0 {
			diag.CountiesWithoutData++
			if opts.JoinMode == JoinInner {
				continue
			}
		}
		out = append(out, model.CountyAggregate{
			County:          acc.key.County,
			CountyFIP:       acc.key.CountyFIP,
			TotalPopulation: acc.pop,
			TotalPop5to17:   acc.pop517,
			TotalPov5to17:   acc.pov517,
			PctPoverty5to17: PctPoverty(acc.pov517, acc.pop517),
			DistrictRows:    acc.rows,
		})
	}

	SortAggregates(out, opts.NullsOrder)
	return out, diag
}

// contribution returns what a count adds to a sum under policy and tallies missing values
func contribution(c model.Count, field string, rec model.DistrictRecord, policy SentinelPolicy, diag *Diagnostics, now time.Time) int64 {
	if v, ok := c.Value(); ok {
		return v
	}

	diag.MissingCounts[field]++
	op := model.FilterOperation{
		ColumnName:    field,
		OriginalValue: c.Raw(),
		RowIdentifier: rec.Identifier,
		Operation:     model.OperationZero,
		Reason:        model.ReasonMissingCount,
		RecordedAt:    now,
	}
	if policy == SentinelPassThrough {
		op.Operation = model.OperationKeepRaw
	}
	diag.MissingOps = append(diag.MissingOps, op)

	if policy == SentinelPassThrough {
		return c.Raw()
	}
	return 0
}

// PctPoverty returns round(100 * pov / pop, 2), rounding half away from zero.
// It is null unless pop is positive.
func PctPoverty(pov, pop int64) decimal.NullDecimal {
	if pop <= 0 {
		return decimal.NullDecimal{}
	}
	pct := decimal.NewFromInt(pov).Mul(decimal.NewFromInt(100)).DivRound(decimal.NewFromInt(pop), 2)
	return decimal.NewNullDecimal(pct)
}

// SortAggregates orders rows by percentage descending, nulls placed per order,
// then by county and county FIP
func SortAggregates(rows []model.CountyAggregate, nulls NullsOrder) {
	slices.SortFunc(rows, func(a, b model.CountyAggregate) int {
		if c := comparePct(a.PctPoverty5to17, b.PctPoverty5to17, nulls); c != 0 {
			return c
		}
		if c := cmp.Compare(a.County, b.County); c != 0 {
			return c
		}
		return cmp.Compare(a.CountyFIP, b.CountyFIP)
	})
}

func comparePct(a, b decimal.NullDecimal, nulls NullsOrder) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		if nulls == NullsFirst {
			return -1
		}
		return 1
	case !b.Valid:
		if nulls == NullsFirst {
			return 1
		}
		return -1
	default:
		return b.Decimal.Cmp(a.Decimal)
	}
}
