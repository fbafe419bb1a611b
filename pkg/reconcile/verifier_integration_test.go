//go:build integration

package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/crdc-reconcile/pkg/config"
	"github.com/David-Botos/crdc-reconcile/pkg/identifier"
	"github.com/David-Botos/crdc-reconcile/pkg/source"
)

// openPostgresFixture loads the input tables as TEXT columns into a throwaway
// schema. Set CRDC_TEST_POSTGRES_DSN to run.
func openPostgresFixture(t *testing.T) (*sql.DB, source.Tables) {
	t.Helper()
	dsn := os.Getenv("CRDC_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CRDC_TEST_POSTGRES_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))

	schema := "crdc_it_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	quoted := pq.QuoteIdentifier(schema)
	t.Cleanup(func() {
		if _, err := db.Exec("DROP SCHEMA IF EXISTS " + quoted + " CASCADE"); err != nil {
			t.Logf("failed to drop schema %s: %v", schema, err)
		}
	})

	stmts := []string{
		"CREATE SCHEMA " + quoted,
		"CREATE TABLE " + quoted + ".lea_characteristics (state TEXT, name TEXT, identifier TEXT, city TEXT, zip TEXT)",
		"CREATE TABLE " + quoted + ".lea_geocode (identifier TEXT, state_fip TEXT, county_name TEXT, county_fip TEXT)",
		"CREATE TABLE " + quoted + ".saipe_school_districts (identifier TEXT, population TEXT, pop_5_17 TEXT, pop_5_17_poverty TEXT)",
	}
	for _, stmt := range stmts {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	insert := func(table string, rows [][]interface{}) {
		for _, row := range rows {
			_, err := db.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO %s.%s VALUES (%s)", quoted, table, placeholders(len(row))), row...)
			require.NoError(t, err, table)
		}
	}

	var leas [][]interface{}
	for _, l := range fixtureLEAs() {
		leas = append(leas, []interface{}{l.State, l.Name, l.Identifier, nil, nil})
	}
	leas = append(leas, []interface{}{"AL", "Short Id", "100030", "Gadsden", "35901"})
	insert("lea_characteristics", leas)

	var geocodes [][]interface{}
	for _, g := range fixtureGeocodes() {
		geocodes = append(geocodes, []interface{}{g.Identifier, g.StateFIP, g.CountyName, g.CountyFIP})
	}
	// duplicate key; the first row wins on both sides
	geocodes = append(geocodes, []interface{}{"0100030", "01", "Elsewhere County", "777"})
	insert("lea_geocode", geocodes)

	var districts [][]interface{}
	for _, d := range fixtureDistricts() {
		districts = append(districts, []interface{}{d.Identifier, d.Population, d.Pop5to17, d.Pop5to17Poverty})
	}
	districts = append(districts,
		[]interface{}{"010000601705", "300.0", "60", "12"},
		[]interface{}{"010000601705", "1e3", "10", "1"},
	)
	insert("saipe_school_districts", districts)

	tables := source.TablesFromConfig(config.TablesConfig{
		Schema:           schema,
		LEATable:         "lea_characteristics",
		GeocodeTable:     "lea_geocode",
		DemographicTable: "saipe_school_districts",
	})
	return db, tables
}

func placeholders(n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(p, ", ")
}

func TestVerifierAgainstPostgres(t *testing.T) {
	db, tables := openPostgresFixture(t)
	logger := zap.NewNop()

	src, err := source.NewSQLSource(db, "pgx", tables, 0, logger)
	require.NoError(t, err)
	pushdown, err := source.NewPushdown(db, "pgx", tables, 0, logger)
	require.NoError(t, err)

	for _, join := range []JoinMode{JoinLeft, JoinInner} {
		for _, sentinel := range []SentinelPolicy{SentinelExclude, SentinelPassThrough} {
			for _, nulls := range []NullsOrder{NullsFirst, NullsLast} {
				for _, scope := range []identifier.KeyScope{identifier.ScopeDistrict, identifier.ScopeStateDistrict} {
					opts := Options{JoinMode: join, SentinelPolicy: sentinel, NullsOrder: nulls, KeyScope: scope}
					name := fmt.Sprintf("%s/%s/%s/%s", join, sentinel, nulls, scope)

					t.Run(name, func(t *testing.T) {
						engine, err := NewEngine(src, tables, opts, logger)
						require.NoError(t, err)
						verifier := NewVerifier(engine, pushdown, logger)

						county, err := verifier.VerifyCountyStats(context.Background())
						require.NoError(t, err)
						assert.True(t, county.OK(), "county stats differ: %+v", county)
						assert.NotZero(t, county.InProcessRows)

						lookup, err := verifier.VerifyLookup(context.Background())
						require.NoError(t, err)
						assert.True(t, lookup.OK(), "lookup differs: %+v", lookup)
					})
				}
			}
		}
	}
}
