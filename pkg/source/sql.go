package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

// SQLSource reads the input tables through database/sql.
// It works with the pgx, lib/pq, snowflake and sqlite drivers.
type SQLSource struct {
	db      *sqlx.DB
	tables  Tables
	timeout time.Duration
	logger  *zap.Logger
}

// leaRow, geocodeRow and districtRow scan nullable text columns
type leaRow struct {
	State      sql.NullString `db:"state"`
	Name       sql.NullString `db:"name"`
	Identifier sql.NullString `db:"identifier"`
	City       sql.NullString `db:"city"`
	Zip        sql.NullString `db:"zip"`
}

type geocodeRow struct {
	Identifier sql.NullString `db:"identifier"`
	StateFIP   sql.NullString `db:"state_fip"`
	CountyName sql.NullString `db:"county_name"`
	CountyFIP  sql.NullString `db:"county_fip"`
}

type districtRow struct {
	Identifier      sql.NullString `db:"identifier"`
	Population      sql.NullString `db:"population"`
	Pop5to17        sql.NullString `db:"pop_5_17"`
	Pop5to17Poverty sql.NullString `db:"pop_5_17_poverty"`
}

// NewSQLSource wraps an open connection. driverName is the database/sql driver
// the connection was opened with.
func NewSQLSource(db *sql.DB, driverName string, tables Tables, timeout time.Duration, logger *zap.Logger) (*SQLSource, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if driverName == "sqlite" {
		tables = tables.withoutSchema()
	}

	return &SQLSource{
		db:      sqlx.NewDb(db, driverName),
		tables:  tables,
		timeout: timeout,
		logger:  logger.Named("sql-source"),
	}, nil
}

// LEAs reads the LEA characteristics table
func (s *SQLSource) LEAs(ctx context.Context) ([]model.LEARecord, error) {
	var rows []leaRow
	if err := s.selectAll(ctx, s.tables.LEA, &rows); err != nil {
		return nil, err
	}

	records := make([]model.LEARecord, len(rows))
	for i, r := range rows {
		records[i] = model.LEARecord{
			State:      r.State.String,
			Name:       r.Name.String,
			Identifier: r.Identifier.String,
			City:       r.City.String,
			Zip:        r.Zip.String,
		}
	}
	return records, nil
}

// Geocodes reads the geocode lookup table
func (s *SQLSource) Geocodes(ctx context.Context) ([]model.GeocodeRecord, error) {
	var rows []geocodeRow
	if err := s.selectAll(ctx, s.tables.Geocode, &rows); err != nil {
		return nil, err
	}

	records := make([]model.GeocodeRecord, len(rows))
	for i, r := range rows {
		records[i] = model.GeocodeRecord{
			Identifier: r.Identifier.String,
			StateFIP:   r.StateFIP.String,
			CountyName: r.CountyName.String,
			CountyFIP:  r.CountyFIP.String,
		}
	}
	return records, nil
}

// Districts reads the district demographic table
func (s *SQLSource) Districts(ctx context.Context) ([]model.DistrictRow, error) {
	var rows []districtRow
	if err := s.selectAll(ctx, s.tables.Demographic, &rows); err != nil {
		return nil, err
	}

	records := make([]model.DistrictRow, len(rows))
	for i, r := range rows {
		records[i] = model.DistrictRow{
			Identifier:      r.Identifier.String,
			Population:      r.Population.String,
			Pop5to17:        r.Pop5to17.String,
			Pop5to17Poverty: r.Pop5to17Poverty.String,
		}
	}
	return records, nil
}

func (s *SQLSource) selectAll(ctx context.Context, meta model.TableMetadata, dest interface{}) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	query := SelectText(meta)
	if err := s.db.SelectContext(ctx, dest, query); err != nil {
		return fmt.Errorf("failed to read %s: %w", meta.QualifiedName(), err)
	}

	s.logger.Debug("Read table",
		zap.String("table", meta.QualifiedName()),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// SelectText builds a query reading every column of meta as text.
// Aliases are quoted so Snowflake keeps them lower case.
func SelectText(meta model.TableMetadata) string {
	cols := make([]string, len(meta.Columns))
	for i, col := range meta.Columns {
		cols[i] = fmt.Sprintf(`CAST(%s AS TEXT) AS "%s"`, col.Name, col.Name)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), meta.QualifiedName())
}
