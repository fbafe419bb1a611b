package source

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCountyPovertyStatsDefaults(t *testing.T) {
	query, err := RenderQuery("county_poverty_stats.sql.tmpl", testTables(), PushdownOptions{})
	require.NoError(t, err)

	assert.Contains(t, query, `FROM "crdc_import"."lea_characteristics" l`)
	assert.Contains(t, query, `FROM "crdc_import"."lea_geocode" g`)
	assert.Contains(t, query, `FROM "crdc_import"."saipe_school_districts" d`)
	assert.Contains(t, query, "LEFT JOIN district d")
	assert.Contains(t, query, "DESC NULLS FIRST")
	assert.Contains(t, query, "CASE WHEN NULLIF(TRIM(d.pop_5_17::text), '')::numeric::bigint >= 0")
	assert.Contains(t, query, "SUBSTRING(d.identifier::text FROM 3 FOR 5) AS district_key")
}

func TestRenderCountyPovertyStatsOptions(t *testing.T) {
	query, err := RenderQuery("county_poverty_stats.sql.tmpl", testTables(), PushdownOptions{
		Inner:       true,
		PassThrough: true,
		NullsLast:   true,
		StateScope:  true,
	})
	require.NoError(t, err)

	assert.NotContains(t, query, "LEFT JOIN district")
	assert.Contains(t, query, "JOIN district d ON")
	assert.Contains(t, query, "DESC NULLS LAST")
	assert.Contains(t, query, "COALESCE(NULLIF(TRIM(d.population::text), '')::numeric::bigint, -9)")
	assert.Contains(t, query, "SUBSTRING(d.identifier::text FROM 1 FOR 7)")
}

func TestRenderLookup(t *testing.T) {
	query, err := RenderQuery("lea_lookup.sql.tmpl", testTables(), PushdownOptions{})
	require.NoError(t, err)
	assert.Contains(t, query, "LEFT JOIN geo ON geo.geo_key = k.lea_key")
}

func TestNewPushdownRequiresPostgres(t *testing.T) {
	_, err := NewPushdown(&sql.DB{}, "sqlite", testTables(), 0, nil)
	assert.Error(t, err)
}
