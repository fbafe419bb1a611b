package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
	"github.com/David-Botos/crdc-reconcile/pkg/reconcile"
	"github.com/David-Botos/crdc-reconcile/pkg/stats"
)

func countyRows() []model.CountyAggregate {
	return []model.CountyAggregate{
		{County: "Quiet County", CountyFIP: "999"},
		{County: "Marshall County", CountyFIP: "095", TotalPopulation: 32000, TotalPop5to17: 6000,
			TotalPov5to17: 1300, PctPoverty5to17: decimal.NewNullDecimal(decimal.RequireFromString("21.6667").Round(2))},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "TABLE": FormatTable, "csv": FormatCSV, " json ": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestCountyStatsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatCSV).CountyStats(countyRows()))

	want := "county,county_fip,total_population,total_pop_5_17,total_pov_5_17,pct_poverty_5_17\n" +
		"Quiet County,999,0,0,0,\n" +
		"Marshall County,095,32000,6000,1300,21.67\n"
	assert.Equal(t, want, buf.String())
}

func TestCountyStatsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatJSON).CountyStats(countyRows()))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Nil(t, got[0]["pct_poverty_5_17"])
	assert.Equal(t, 21.67, got[1]["pct_poverty_5_17"])
	assert.Equal(t, "095", got[1]["county_fip"])
	assert.Contains(t, buf.String(), `"pct_poverty_5_17": 21.67`)
}

func TestCountyStatsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatTable).CountyStats(countyRows()))

	out := buf.String()
	assert.Contains(t, out, "pct_poverty_5_17")
	assert.Contains(t, out, "Marshall County")
	assert.Contains(t, out, "21.67")
	assert.Contains(t, out, "n/a")
}

func TestLookupsNullCounty(t *testing.T) {
	county, fip, state := "Marshall County", "095", "01"
	rows := []model.LEALookup{
		{LEA: model.LEARecord{State: "AL", Name: "Albertville City", Identifier: "0100002"},
			Matched: true, County: &county, CountyFIP: &fip, StateFIP: &state},
		{LEA: model.LEARecord{State: "AL", Name: "No Geocode", Identifier: "0199999"}},
	}

	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatJSON).Lookups(rows))
	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Marshall County", got[0]["county"])
	assert.Nil(t, got[1]["county"])
	assert.Equal(t, "0100002", got[0]["identifier"])

	buf.Reset()
	require.NoError(t, New(&buf, FormatCSV).Lookups(rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "AL,No Geocode,0199999,,,,,", lines[2])
}

func TestCoverage(t *testing.T) {
	c := reconcile.Coverage{Total: 6, Matched: 4, Unmatched: 2,
		Percent: decimal.NewNullDecimal(decimal.RequireFromString("66.67"))}

	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatCSV).Coverage(c))
	assert.Contains(t, buf.String(), "matched,4\n")
	assert.Contains(t, buf.String(), "pct_matched,66.67\n")
}

func TestDistribution(t *testing.T) {
	d := stats.Summarize(countyRows(), 2)

	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatCSV).Distribution(d))
	out := buf.String()
	assert.Contains(t, out, "n,1\n")
	assert.Contains(t, out, "null,1\n")
	assert.Contains(t, out, "lower,upper,counties\n")

	buf.Reset()
	require.NoError(t, New(&buf, FormatJSON).Distribution(d))
	var got stats.Distribution
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []string{"Quiet County"}, got.NullCounties)
}

func TestVerification(t *testing.T) {
	rep := reconcile.CompareCountyStats(countyRows(), countyRows()[1:])

	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatTable).Verification(rep))
	assert.Contains(t, buf.String(), "DIFFERENCES FOUND")
	assert.Contains(t, buf.String(), "Quiet County|999")

	buf.Reset()
	ok := reconcile.CompareCountyStats(countyRows(), countyRows())
	require.NoError(t, New(&buf, FormatTable).Verification(ok))
	assert.Equal(t, "county_poverty_stats: OK (in-process 2 rows, pushdown 2 rows, order matches: true)\n", buf.String())
}
