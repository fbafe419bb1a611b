package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExports(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"lea_characteristics.csv": "state,name,identifier,city,zip\n" +
			"AL,Albertville City,0100002,Albertville,35950\n" +
			"AL,Marshall County,0100005,Guntersville,35976\n" +
			"AL,Attalla City,0100030,Attalla,35954\n" +
			"AL,Quiet District,0100060,Quiet,35000\n" +
			"AL,No Geocode,0199999,Nowhere,35001\n",
		"lea_geocode.csv": "identifier,state_fip,county_name,county_fip\n" +
			"100002,01,Marshall County,095\n" +
			"100005.0,01,Marshall County,095\n" +
			"100030,01,Etowah County,055\n" +
			"100060,01,Quiet County,999\n",
		"saipe_school_districts.csv": "identifier,population,pop_5_17,pop_5_17_poverty\n" +
			"010000201705,22000,4000,800\n" +
			"010000501705,10000,2000,500\n" +
			"010003001705,5000,1000,-9\n" +
			"Total,,,\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SOURCE_KIND", "csv")
	t.Setenv("CSV_DIR", writeExports(t))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "console")
	for _, key := range []string{"JOIN_MODE", "SENTINEL_POLICY", "NULLS_ORDER", "KEY_SCOPE", "CRDC_SCHEMA",
		"LEA_TABLE", "GEOCODE_TABLE", "DEMOGRAPHIC_TABLE"} {
		t.Setenv(key, "")
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.Execute()
	return out.String(), err
}

func TestCountyStatsCSV(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "county-stats", "--format", "csv")
	require.NoError(t, err)
	assert.Equal(t,
		"county,county_fip,total_population,total_pop_5_17,total_pov_5_17,pct_poverty_5_17\n"+
			"Quiet County,999,0,0,0,\n"+
			"Marshall County,095,32000,6000,1300,21.67\n"+
			"Etowah County,055,5000,1000,0,0.00\n",
		out)
}

func TestCountyStatsFlags(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "county-stats", "--format", "csv", "--join", "inner", "--sentinel", "pass_through")
	require.NoError(t, err)
	assert.Equal(t,
		"county,county_fip,total_population,total_pop_5_17,total_pov_5_17,pct_poverty_5_17\n"+
			"Marshall County,095,32000,6000,1300,21.67\n"+
			"Etowah County,055,5000,1000,-9,-0.90\n",
		out)

	out, err = run(t, "county-stats", "--format", "csv", "--where", "total_population > 10000")
	require.NoError(t, err)
	assert.Contains(t, out, "Marshall County")
	assert.NotContains(t, out, "Etowah County")
}

func TestLookupJSON(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "lookup", "--format", "json")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 5)
	assert.Equal(t, "Marshall County", rows[1]["county"])
	assert.Nil(t, rows[4]["county"])
}

func TestCoverageAndDistribution(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "coverage", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "matched,4\n")
	assert.Contains(t, out, "pct_matched,80.00\n")

	out, err = run(t, "distribution", "--format", "csv", "--bins", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "n,2\n")
	assert.Contains(t, out, "null,1\n")
}

func TestQueryRendersSQL(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "query", "county-stats", "--join", "inner")
	require.NoError(t, err)
	assert.Contains(t, out, `"lea_characteristics"`)
	assert.Contains(t, out, `"saipe_school_districts"`)
}

func TestInvalidOptions(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "county-stats", "--join", "outer")
	assert.Error(t, err)

	_, err = run(t, "county-stats", "--format", "xml")
	assert.Error(t, err)

	_, err = run(t, "verify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_KIND=postgres")
}
