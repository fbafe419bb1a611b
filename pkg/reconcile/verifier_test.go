package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
	"github.com/David-Botos/crdc-reconcile/pkg/source"
)

// fakePushdown answers with rows computed in-process, optionally altered
type fakePushdown struct {
	counties []model.CountyAggregate
	lookups  []model.LEALookup
	gotOpts  source.PushdownOptions
}

func (f *fakePushdown) CountyPovertyStats(ctx context.Context, opts source.PushdownOptions) ([]model.CountyAggregate, error) {
	f.gotOpts = opts
	return f.counties, nil
}

func (f *fakePushdown) LookupLEAs(ctx context.Context) ([]model.LEALookup, error) {
	return f.lookups, nil
}

func expectedCounties(t *testing.T) []model.CountyAggregate {
	t.Helper()
	mapping, records := fixtureInputs(t)
	rows, _ := Aggregate(mapping, records, DefaultOptions())
	return rows
}

func TestVerifierCountyStatsMatch(t *testing.T) {
	opts := DefaultOptions()
	opts.NullsOrder = NullsLast
	engine, err := NewEngine(fixtureSource(), fixtureTables(), opts, zap.NewNop())
	require.NoError(t, err)

	mapping, records := fixtureInputs(t)
	rows, _ := Aggregate(mapping, records, opts)
	fake := &fakePushdown{counties: rows}

	report, err := NewVerifier(engine, fake, zap.NewNop()).VerifyCountyStats(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report)
	assert.True(t, fake.gotOpts.NullsLast)
	assert.False(t, fake.gotOpts.Inner)
}

func TestVerifierCountyStatsDiscrepancies(t *testing.T) {
	engine, err := NewEngine(fixtureSource(), fixtureTables(), DefaultOptions(), zap.NewNop())
	require.NoError(t, err)

	rows := expectedCounties(t)
	altered := append([]model.CountyAggregate(nil), rows[1:]...)
	altered[0].TotalPov5to17++
	altered[0].PctPoverty5to17 = pct("21.68")

	report, err := NewVerifier(engine, &fakePushdown{counties: altered}, zap.NewNop()).
		VerifyCountyStats(context.Background())
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.False(t, report.RowCountMatches)
	assert.Equal(t, []string{"Quiet County|999"}, report.MissingInPushdown)
	require.Len(t, report.Discrepancies, 2)
	assert.Equal(t, "total_pov_5_17", report.Discrepancies[0].ColumnName)
	assert.Equal(t, "pct_poverty_5_17", report.Discrepancies[1].ColumnName)
	assert.Equal(t, "21.67", report.Discrepancies[1].InProcessValue)
}

func TestCompareCountyStatsOrder(t *testing.T) {
	rows := expectedCounties(t)
	swapped := []model.CountyAggregate{rows[1], rows[0], rows[2]}

	report := CompareCountyStats(rows, swapped)
	assert.True(t, report.RowCountMatches)
	assert.False(t, report.OrderMatches)
	assert.Empty(t, report.Discrepancies)
}

func TestVerifierLookup(t *testing.T) {
	engine, err := NewEngine(fixtureSource(), fixtureTables(), DefaultOptions(), zap.NewNop())
	require.NoError(t, err)

	rows, _ := Lookup(fixtureLEAs(), fixtureGeocodes())
	report, err := NewVerifier(engine, &fakePushdown{lookups: rows}, zap.NewNop()).
		VerifyLookup(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())

	changed := append([]model.LEALookup(nil), rows...)
	other := "Other County"
	changed[0].County = &other
	report = CompareLookups(rows, changed)
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, "county", report.Discrepancies[0].ColumnName)
}

func TestCompareLookupsRepeatedIdentifiers(t *testing.T) {
	a := []model.LEALookup{{LEA: model.LEARecord{Identifier: "1"}}, {LEA: model.LEARecord{Identifier: "1"}}}
	report := CompareLookups(a, a)
	assert.True(t, report.OK())
}
