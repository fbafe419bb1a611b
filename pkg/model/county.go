package model

import "github.com/shopspring/decimal"

// CountyKey identifies a county group in the aggregate output
type CountyKey struct {
	County    string
	CountyFIP string
}

// CountyMapping pairs a district key with the county its LEA resolved to
type CountyMapping struct {
	Key    DistrictKey
	County CountyKey
}

// CountyAggregate is one row of the county poverty result set.
// Sums are never null; PctPoverty5to17 is invalid when undefined.
type CountyAggregate struct {
	County          string
	CountyFIP       string
	TotalPopulation int64
	TotalPop5to17   int64
	TotalPov5to17   int64
	PctPoverty5to17 decimal.NullDecimal
	DistrictRows    int // demographic rows that contributed
}

// Key returns the grouping key of the aggregate
func (a CountyAggregate) Key() CountyKey {
	return CountyKey{County: a.County, CountyFIP: a.CountyFIP}
}

// LEALookup is one row of lookup mode: an LEA with its geocode attributes when matched
type LEALookup struct {
	LEA          LEARecord
	Matched      bool
	StateFIP     *string
	County       *string
	CountyFIP    *string
	NormalizedID string
}
