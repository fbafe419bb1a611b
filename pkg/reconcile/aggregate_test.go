package reconcile

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/crdc-reconcile/pkg/cleaner"
	"github.com/David-Botos/crdc-reconcile/pkg/identifier"
	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

func fixtureInputs(t *testing.T) ([]model.CountyMapping, []model.DistrictRecord) {
	t.Helper()
	mapping := BuildCountyMapping(fixtureLEAs(), fixtureGeocodes())

	dc, err := cleaner.NewDataCleaner(zap.NewNop())
	require.NoError(t, err)
	records, _ := dc.CleanDistrictRows(fixtureDistricts(), "saipe_school_districts", "test")
	return mapping.Entries, records
}

func TestAggregateLeftJoinKeepsCountiesWithoutData(t *testing.T) {
	mapping, records := fixtureInputs(t)

	rows, diag := Aggregate(mapping, records, DefaultOptions())

	want := []model.CountyAggregate{
		{County: "Quiet County", CountyFIP: "999"},
		{County: "Marshall County", CountyFIP: "095", TotalPopulation: 32000, TotalPop5to17: 6000,
			TotalPov5to17: 1300, PctPoverty5to17: pct("21.67"), DistrictRows: 2},
		{County: "Etowah County", CountyFIP: "055", TotalPopulation: 5000, TotalPop5to17: 1000,
			TotalPov5to17: 0, PctPoverty5to17: pct("0.00"), DistrictRows: 1},
	}
	if diff := cmp.Diff(want, rows, decimalComparer); diff != "" {
		t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 1, diag.CountiesWithoutData)
	assert.Equal(t, 1, diag.UnjoinedRows)
	assert.Equal(t, 1, diag.MissingCounts[FieldPov5to17])
	require.Len(t, diag.MissingOps, 1)
	assert.Equal(t, model.OperationZero, diag.MissingOps[0].Operation)
}

func TestAggregateInnerJoinDropsCountiesWithoutData(t *testing.T) {
	mapping, records := fixtureInputs(t)
	opts := DefaultOptions()
	opts.JoinMode = JoinInner

	rows, _ := Aggregate(mapping, records, opts)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.NotEqual(t, "Quiet County", row.County)
	}

	left, _ := Aggregate(mapping, records, DefaultOptions())
	mapped := len(BuildCountyMapping(fixtureLEAs(), fixtureGeocodes()).Counties())
	assert.Equal(t, mapped, len(left))
	assert.LessOrEqual(t, len(rows), len(left))
}

func TestAggregateNullsLast(t *testing.T) {
	mapping, records := fixtureInputs(t)
	opts := DefaultOptions()
	opts.NullsOrder = NullsLast

	rows, _ := Aggregate(mapping, records, opts)
	require.Len(t, rows, 3)
	assert.Equal(t, "Marshall County", rows[0].County)
	assert.Equal(t, "Quiet County", rows[2].County)
	assert.False(t, rows[2].PctPoverty5to17.Valid)
}

func TestAggregatePassThroughSumsReserveCodes(t *testing.T) {
	mapping, records := fixtureInputs(t)
	opts := DefaultOptions()
	opts.SentinelPolicy = SentinelPassThrough

	rows, diag := Aggregate(mapping, records, opts)
	var etowah model.CountyAggregate
	for _, row := range rows {
		if row.County == "Etowah County" {
			etowah = row
		}
	}
	assert.Equal(t, int64(-9), etowah.TotalPov5to17)
	assert.True(t, etowah.PctPoverty5to17.Decimal.Equal(decimal.RequireFromString("-0.90")))
	require.Len(t, diag.MissingOps, 1)
	assert.Equal(t, model.OperationKeepRaw, diag.MissingOps[0].Operation)
}

func TestAggregateAllMissingRecord(t *testing.T) {
	key := model.DistrictKey{State: "01", Code: "00002"}
	mapping := []model.CountyMapping{{Key: key, County: model.CountyKey{County: "Marshall County", CountyFIP: "095"}}}
	records := []model.DistrictRecord{{
		Key:             key,
		Identifier:      "010000201705",
		Population:      model.Missing(-9),
		Pop5to17:        model.Missing(-9),
		Pop5to17Poverty: model.Missing(-9),
	}}

	rows, diag := Aggregate(mapping, records, DefaultOptions())
	require.Len(t, rows, 1)
	assert.Equal(t, int64(0), rows[0].TotalPopulation)
	assert.Equal(t, int64(0), rows[0].TotalPop5to17)
	assert.Equal(t, int64(0), rows[0].TotalPov5to17)
	assert.False(t, rows[0].PctPoverty5to17.Valid)
	assert.Equal(t, 1, rows[0].DistrictRows)
	assert.Len(t, diag.MissingOps, 3)

	opts := DefaultOptions()
	opts.SentinelPolicy = SentinelPassThrough
	rows, _ = Aggregate(mapping, records, opts)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(-9), rows[0].TotalPopulation)
	assert.Equal(t, int64(-9), rows[0].TotalPop5to17)
	assert.Equal(t, int64(-9), rows[0].TotalPov5to17)
	assert.False(t, rows[0].PctPoverty5to17.Valid)
}

func TestAggregateZeroDenominatorIsNull(t *testing.T) {
	key := model.DistrictKey{State: "01", Code: "00002"}
	mapping := []model.CountyMapping{{Key: key, County: model.CountyKey{County: "A", CountyFIP: "001"}}}
	records := []model.DistrictRecord{{
		Key: key, Population: model.Known(10), Pop5to17: model.Known(0), Pop5to17Poverty: model.Known(0),
	}}

	rows, _ := Aggregate(mapping, records, DefaultOptions())
	require.Len(t, rows, 1)
	assert.Equal(t, int64(10), rows[0].TotalPopulation)
	assert.False(t, rows[0].PctPoverty5to17.Valid)
}

func TestAggregateShuffleInvariant(t *testing.T) {
	mapping, records := fixtureInputs(t)
	want, _ := Aggregate(mapping, records, DefaultOptions())

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		m := append([]model.CountyMapping(nil), mapping...)
		r := append([]model.DistrictRecord(nil), records...)
		rng.Shuffle(len(m), func(a, b int) { m[a], m[b] = m[b], m[a] })
		rng.Shuffle(len(r), func(a, b int) { r[a], r[b] = r[b], r[a] })

		got, _ := Aggregate(m, r, DefaultOptions())
		if diff := cmp.Diff(want, got, decimalComparer); diff != "" {
			t.Fatalf("shuffle %d changed the result (-want +got):\n%s", i, diff)
		}
	}
}

func TestAggregateStateScope(t *testing.T) {
	code := "00002"
	mapping := []model.CountyMapping{
		{Key: model.DistrictKey{State: "01", Code: code}, County: model.CountyKey{County: "A", CountyFIP: "001"}},
	}
	records := []model.DistrictRecord{
		{Key: model.DistrictKey{State: "01", Code: code}, Population: model.Known(5), Pop5to17: model.Known(2), Pop5to17Poverty: model.Known(1)},
		{Key: model.DistrictKey{State: "02", Code: code}, Population: model.Known(7), Pop5to17: model.Known(3), Pop5to17Poverty: model.Known(1)},
	}

	rows, _ := Aggregate(mapping, records, DefaultOptions())
	require.Len(t, rows, 1)
	assert.Equal(t, int64(12), rows[0].TotalPopulation)

	opts := DefaultOptions()
	opts.KeyScope = identifier.ScopeStateDistrict
	rows, diag := Aggregate(mapping, records, opts)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), rows[0].TotalPopulation)
	assert.Equal(t, 1, diag.UnjoinedRows)
}

func TestPctPovertyRounding(t *testing.T) {
	tests := []struct {
		pov, pop int64
		want     string
	}{
		{1, 8, "12.50"},
		{1, 3, "33.33"},
		{2, 3, "66.67"},
		{1, 16, "6.25"},
		{1, 800, "0.13"}, // 0.125
		{-1, 800, "-0.13"},
		{1, 1600, "0.06"},
		{-9, 1000, "-0.90"},
		{0, 5, "0.00"},
	}
	for _, tt := range tests {
		got := PctPoverty(tt.pov, tt.pop)
		require.True(t, got.Valid)
		assert.Equal(t, tt.want, got.Decimal.StringFixed(2), "%d/%d", tt.pov, tt.pop)
	}

	assert.False(t, PctPoverty(5, 0).Valid)
	assert.False(t, PctPoverty(-9, -9).Valid)
}
