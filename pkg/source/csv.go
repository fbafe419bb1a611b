package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/David-Botos/crdc-reconcile/pkg/cleaner"
	"github.com/David-Botos/crdc-reconcile/pkg/config"
	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

// CSVSource reads the input tables from a directory of CSV exports named
// <table>.csv, or any file whose name sanitizes to the table name. Headers are matched after the same sanitizing the importer
// applies, cells are trimmed and blank rows are skipped.
type CSVSource struct {
	dir      string
	encoding string
	tables   Tables
	logger   *zap.Logger
}

// NewCSVSource creates a CSV source over cfg.Dir
func NewCSVSource(cfg *config.CSVConfig, tables Tables, logger *zap.Logger) (*CSVSource, error) {
	if cfg == nil {
		return nil, errors.New("csv configuration cannot be nil")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cfg.Dir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CSVSource{
		dir:      cfg.Dir,
		encoding: strings.ToLower(cfg.Encoding),
		tables:   tables,
		logger:   logger.Named("csv-source"),
	}, nil
}

// LEAs reads <lea table>.csv
func (s *CSVSource) LEAs(ctx context.Context) ([]model.LEARecord, error) {
	rows, err := s.readTable(ctx, s.tables.LEA)
	if err != nil {
		return nil, err
	}

	records := make([]model.LEARecord, len(rows))
	for i, r := range rows {
		records[i] = model.LEARecord{State: r[0], Name: r[1], Identifier: r[2], City: r[3], Zip: r[4]}
	}
	return records, nil
}

// Geocodes reads <geocode table>.csv
func (s *CSVSource) Geocodes(ctx context.Context) ([]model.GeocodeRecord, error) {
	rows, err := s.readTable(ctx, s.tables.Geocode)
	if err != nil {
		return nil, err
	}

	records := make([]model.GeocodeRecord, len(rows))
	for i, r := range rows {
		records[i] = model.GeocodeRecord{Identifier: r[0], StateFIP: r[1], CountyName: r[2], CountyFIP: r[3]}
	}
	return records, nil
}

// Districts reads <demographic table>.csv
func (s *CSVSource) Districts(ctx context.Context) ([]model.DistrictRow, error) {
	rows, err := s.readTable(ctx, s.tables.Demographic)
	if err != nil {
		return nil, err
	}

	records := make([]model.DistrictRow, len(rows))
	for i, r := range rows {
		records[i] = model.DistrictRow{Identifier: r[0], Population: r[1], Pop5to17: r[2], Pop5to17Poverty: r[3]}
	}
	return records, nil
}

// readTable returns the table's rows with cells ordered like meta.Columns.
// Optional columns absent from the header read as "".
func (s *CSVSource) readTable(ctx context.Context, meta model.TableMetadata) ([][]string, error) {
	path, err := s.resolveFile(meta.Table)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(s.decode(f))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	positions := make(map[string]int, len(header))
	for i, name := range header {
		col := cleaner.SanitizeColumnName(name)
		if _, dup := positions[col]; !dup {
			positions[col] = i
		}
	}

	index := make([]int, len(meta.Columns))
	for i, col := range meta.Columns {
		pos, ok := positions[col.Name]
		if !ok {
			if col.Required {
				return nil, fmt.Errorf("%s: required column %q not found", path, col.Name)
			}
			pos = -1
		}
		index[i] = pos
	}

	var rows [][]string
	skipped := 0
	for line := 2; ; line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}

		if blankRecord(rec) {
			skipped++
			continue
		}

		row := make([]string, len(index))
		for i, pos := range index {
			if pos >= 0 && pos < len(rec) {
				row[i] = strings.TrimSpace(rec[pos])
			}
		}
		rows = append(rows, row)
	}

	s.logger.Debug("Read CSV table",
		zap.String("file", path),
		zap.Int("rows", len(rows)),
		zap.Int("blank_rows_skipped", skipped))

	return rows, nil
}

// resolveFile finds the export for table. <table>.csv wins; otherwise the
// first file, in name order, whose base name sanitizes to table is used.
func (s *CSVSource) resolveFile(table string) (string, error) {
	exact := filepath.Join(s.dir, table+".csv")
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.[cC][sS][vV]"))
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", s.dir, err)
	}
	for _, path := range matches {
		base := filepath.Base(path)
		if cleaner.SanitizeTableName(strings.TrimSuffix(base, filepath.Ext(base))) == table {
			s.logger.Debug("Resolved CSV export", zap.String("table", table), zap.String("file", path))
			return path, nil
		}
	}
	return "", fmt.Errorf("failed to open %s: no export found for table %s", exact, table)
}

// decode converts the export to UTF-8. A UTF-8 byte order mark is dropped.
func (s *CSVSource) decode(r io.Reader) io.Reader {
	switch s.encoding {
	case "cp1252", "windows-1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder())
	default:
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	}
}

func blankRecord(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
