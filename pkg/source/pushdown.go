package source

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"text/template"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

//go:embed queries/*.sql.tmpl
var queryFS embed.FS

var queries = template.Must(template.New("queries").Funcs(template.FuncMap{
	"key":   districtKeyExpr,
	"count": countExpr,
	"valid": validCountExpr,
}).ParseFS(queryFS, "queries/*.sql.tmpl"))

// PushdownOptions mirror the in-process reconciliation options
type PushdownOptions struct {
	Inner       bool // drop counties without demographic rows
	PassThrough bool // sum reserve codes instead of treating them as zero
	NullsLast   bool
	StateScope  bool // join on state FIPS + district code
}

// Pushdown runs the reconciliation inside PostgreSQL as a single query
type Pushdown struct {
	db      *sqlx.DB
	tables  Tables
	timeout time.Duration
	logger  *zap.Logger
}

// countyRow scans one row of the county statistics query
type countyRow struct {
	County          string              `db:"county"`
	CountyFIP       string              `db:"county_fip"`
	TotalPopulation int64               `db:"total_population"`
	TotalPop5to17   int64               `db:"total_pop_5_17"`
	TotalPov5to17   int64               `db:"total_pov_5_17"`
	PctPoverty5to17 decimal.NullDecimal `db:"pct_poverty_5_17"`
	DistrictRows    int                 `db:"district_rows"`
}

type lookupRow struct {
	State        string         `db:"state"`
	Name         string         `db:"name"`
	Identifier   string         `db:"identifier"`
	City         string         `db:"city"`
	Zip          string         `db:"zip"`
	NormalizedID string         `db:"normalized_id"`
	StateFIP     sql.NullString `db:"state_fip"`
	County       sql.NullString `db:"county"`
	CountyFIP    sql.NullString `db:"county_fip"`
}

// NewPushdown creates a pushdown runner over a PostgreSQL connection
func NewPushdown(db *sql.DB, driverName string, tables Tables, timeout time.Duration, logger *zap.Logger) (*Pushdown, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	if driverName != "pgx" && driverName != "postgres" {
		return nil, fmt.Errorf("pushdown requires PostgreSQL, got driver %q", driverName)
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pushdown{
		db:      sqlx.NewDb(db, driverName),
		tables:  tables,
		timeout: timeout,
		logger:  logger.Named("pushdown"),
	}, nil
}

// CountyPovertyStats runs the county aggregation in the database
func (p *Pushdown) CountyPovertyStats(ctx context.Context, opts PushdownOptions) ([]model.CountyAggregate, error) {
	query, err := RenderQuery("county_poverty_stats.sql.tmpl", p.tables, opts)
	if err != nil {
		return nil, err
	}

	var rows []countyRow
	if err := p.selectAll(ctx, "county_poverty_stats", query, &rows); err != nil {
		return nil, err
	}

	out := make([]model.CountyAggregate, len(rows))
	for i, r := range rows {
		out[i] = model.CountyAggregate{
			County:          r.County,
			CountyFIP:       r.CountyFIP,
			TotalPopulation: r.TotalPopulation,
			TotalPop5to17:   r.TotalPop5to17,
			TotalPov5to17:   r.TotalPov5to17,
			PctPoverty5to17: r.PctPoverty5to17,
			DistrictRows:    r.DistrictRows,
		}
	}
	return out, nil
}

// LookupLEAs runs lookup mode in the database
func (p *Pushdown) LookupLEAs(ctx context.Context) ([]model.LEALookup, error) {
	query, err := RenderQuery("lea_lookup.sql.tmpl", p.tables, PushdownOptions{})
	if err != nil {
		return nil, err
	}

	var rows []lookupRow
	if err := p.selectAll(ctx, "lea_lookup", query, &rows); err != nil {
		return nil, err
	}

	out := make([]model.LEALookup, len(rows))
	for i, r := range rows {
		out[i] = model.LEALookup{
			LEA: model.LEARecord{
				State:      r.State,
				Name:       r.Name,
				Identifier: r.Identifier,
				City:       r.City,
				Zip:        r.Zip,
			},
			Matched:      r.County.Valid,
			StateFIP:     nullable(r.StateFIP),
			County:       nullable(r.County),
			CountyFIP:    nullable(r.CountyFIP),
			NormalizedID: r.NormalizedID,
		}
	}
	return out, nil
}

func (p *Pushdown) selectAll(ctx context.Context, name, query string, dest interface{}) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := p.db.SelectContext(ctx, dest, query); err != nil {
		return fmt.Errorf("pushdown %s failed: %w", name, err)
	}
	p.logger.Debug("Pushdown query finished",
		zap.String("query", name),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// RenderQuery renders one of the embedded pushdown queries
func RenderQuery(name string, tables Tables, opts PushdownOptions) (string, error) {
	data := struct {
		PushdownOptions
		LEA, Geocode, Demographic string
	}{
		PushdownOptions: opts,
		LEA:             quoteTable(tables.LEA),
		Geocode:         quoteTable(tables.Geocode),
		Demographic:     quoteTable(tables.Demographic),
	}

	var buf bytes.Buffer
	if err := queries.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

func quoteTable(meta model.TableMetadata) string {
	if meta.Schema == "" {
		return pq.QuoteIdentifier(meta.Table)
	}
	return pq.QuoteIdentifier(meta.Schema) + "." + pq.QuoteIdentifier(meta.Table)
}

// districtKeyExpr extracts the join key from a composite identifier expression
func districtKeyExpr(col string, stateScope bool) string {
	if !stateScope {
		return fmt.Sprintf("SUBSTRING(%s FROM 3 FOR 5)", col)
	}
	return fmt.Sprintf("CASE WHEN SUBSTRING(%[1]s FROM 1 FOR 2) ~ '^[0-9]{2}$' "+
		"THEN SUBSTRING(%[1]s FROM 1 FOR 7) ELSE SUBSTRING(%[1]s FROM 3 FOR 5) END", col)
}

// countExpr parses a count column; blanks and negative reserve codes become 0,
// or the raw code (-9 for blanks) under pass-through
func countExpr(col string, passThrough bool) string {
	parsed := fmt.Sprintf("NULLIF(TRIM(%s::text), '')::numeric::bigint", col)
	if passThrough {
		return fmt.Sprintf("COALESCE(%s, %d)", parsed, model.MissingSentinel)
	}
	return fmt.Sprintf("CASE WHEN %[1]s >= 0 THEN %[1]s ELSE 0 END", parsed)
}

// validCountExpr is true for blank or integral values
func validCountExpr(col string) string {
	return fmt.Sprintf(`(%[1]s IS NULL OR TRIM(%[1]s::text) ~ '^([+-]?[0-9]+(\.0*)?)?$')`, col)
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
