// Package reconcile resolves LEAs to counties and aggregates district
// demographics into county poverty statistics.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/David-Botos/crdc-reconcile/pkg/cleaner"
	"github.com/David-Botos/crdc-reconcile/pkg/model"
	"github.com/David-Botos/crdc-reconcile/pkg/source"
)

// Engine runs reconciliations against a table source. Each call loads the
// tables afresh; calls share nothing.
type Engine struct {
	src     source.TableSource
	tables  source.Tables
	opts    Options
	cleaner *cleaner.DataCleaner
	where   *Where
	logger  *zap.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithCleaner replaces the default log-only cleaner, e.g. with one that audits
func WithCleaner(dc *cleaner.DataCleaner) EngineOption {
	return func(e *Engine) {
		if dc != nil {
			e.cleaner = dc
		}
	}
}

// WithWhere filters county rows after ordering
func WithWhere(w *Where) EngineOption {
	return func(e *Engine) {
		e.where = w
	}
}

// Inputs are the three tables as read from the source
type Inputs struct {
	LEAs      []model.LEARecord
	Geocodes  []model.GeocodeRecord
	Districts []model.DistrictRow
}

// CountyReport is the result of a county statistics run
type CountyReport struct {
	RunID    string
	Options  Options
	Rows     []model.CountyAggregate
	Metrics  *RunMetrics
	Filtered []model.FilterOperation
}

// LookupReport is the result of a lookup run
type LookupReport struct {
	RunID    string
	Rows     []model.LEALookup
	Coverage Coverage
}

// NewEngine creates an engine over src
func NewEngine(src source.TableSource, tables source.Tables, opts Options, logger *zap.Logger, options ...EngineOption) (*Engine, error) {
	if src == nil {
		return nil, errors.New("table source cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	dc, err := cleaner.NewDataCleaner(logger.Named("cleaner"))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		src:     src,
		tables:  tables,
		opts:    opts,
		cleaner: dc,
		logger:  logger.Named("engine"),
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// Options returns the engine's aggregation options
func (e *Engine) Options() Options {
	return e.opts
}

// Load reads all three input tables concurrently
func (e *Engine) Load(ctx context.Context) (*Inputs, error) {
	return e.load(ctx, nil, true)
}

func (e *Engine) load(ctx context.Context, metrics *RunMetrics, withDistricts bool) (*Inputs, error) {
	in := &Inputs{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		rows, err := e.src.LEAs(gctx)
		if err != nil {
			return fmt.Errorf("failed to load LEA table: %w", err)
		}
		in.LEAs = rows
		metrics.RecordTableLoad(e.tables.LEA.QualifiedName(), len(rows), time.Since(start))
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		rows, err := e.src.Geocodes(gctx)
		if err != nil {
			return fmt.Errorf("failed to load geocode table: %w", err)
		}
		in.Geocodes = rows
		metrics.RecordTableLoad(e.tables.Geocode.QualifiedName(), len(rows), time.Since(start))
		return nil
	})

	if withDistricts {
		g.Go(func() error {
			start := time.Now()
			rows, err := e.src.Districts(gctx)
			if err != nil {
				return fmt.Errorf("failed to load demographic table: %w", err)
			}
			in.Districts = rows
			metrics.RecordTableLoad(e.tables.Demographic.QualifiedName(), len(rows), time.Since(start))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

// CountyPovertyStats loads the tables and produces the county poverty result set
func (e *Engine) CountyPovertyStats(ctx context.Context) (*CountyReport, error) {
	runID := uuid.NewString()
	metrics := NewRunMetrics(runID, e.logger)

	in, err := e.load(ctx, metrics, true)
	if err != nil {
		return nil, err
	}

	report, err := e.reconcile(in, runID, metrics)
	if err != nil {
		return nil, err
	}

	if e.cleaner.AuditEnabled() {
		if err := e.cleaner.RecordFilterOperations(ctx, report.Filtered); err != nil {
			e.logger.Warn("Failed to record filter operations",
				zap.String("run_id", runID),
				zap.Error(err))
		}
	}

	metrics.Complete()
	return report, nil
}

// Reconcile runs the county aggregation over inputs that were already loaded
func (e *Engine) Reconcile(in *Inputs) (*CountyReport, error) {
	runID := uuid.NewString()
	metrics := NewRunMetrics(runID, e.logger)
	report, err := e.reconcile(in, runID, metrics)
	if err != nil {
		return nil, err
	}
	metrics.Complete()
	return report, nil
}

func (e *Engine) reconcile(in *Inputs, runID string, metrics *RunMetrics) (*CountyReport, error) {
	leaTable := e.tables.LEA.QualifiedName()
	geoTable := e.tables.Geocode.QualifiedName()
	demoTable := e.tables.Demographic.QualifiedName()

	mapping := BuildCountyMapping(in.LEAs, in.Geocodes)
	records, filtered := e.cleaner.CleanDistrictRows(in.Districts, demoTable, runID)
	filtered = append(filtered, mapping.FilterOperations(runID, leaTable, geoTable)...)

	rows, diag := Aggregate(mapping.Entries, records, e.opts)
	for _, op := range diag.MissingOps {
		op.RunID = runID
		op.TableName = demoTable
		filtered = append(filtered, op)
	}

	rows, err := e.where.Filter(rows)
	if err != nil {
		return nil, err
	}

	metrics.RecordFiltered(filtered)
	metrics.RecordAggregation(diag, len(mapping.Counties()), len(rows))

	e.logger.Debug("Aggregated county statistics",
		zap.String("run_id", runID),
		zap.Int("mapping_entries", len(mapping.Entries)),
		zap.Int("district_records", len(records)),
		zap.String("join", e.opts.JoinMode.String()),
		zap.String("sentinel", e.opts.SentinelPolicy.String()))

	return &CountyReport{
		RunID:    runID,
		Options:  e.opts,
		Rows:     rows,
		Metrics:  metrics,
		Filtered: filtered,
	}, nil
}

// LookupLEAs loads the LEA and geocode tables and pairs every LEA with its county
func (e *Engine) LookupLEAs(ctx context.Context) (*LookupReport, error) {
	runID := uuid.NewString()
	metrics := NewRunMetrics(runID, e.logger)

	in, err := e.load(ctx, metrics, false)
	if err != nil {
		return nil, err
	}

	rows, coverage := Lookup(in.LEAs, in.Geocodes)
	if coverage.DuplicateGeocodeKeys > 0 {
		e.logger.Warn("Geocode table has duplicate identifiers; first row wins",
			zap.Int("duplicates", coverage.DuplicateGeocodeKeys))
	}

	e.logger.Info("LEA lookup completed",
		zap.String("run_id", runID),
		zap.Int("leas", coverage.Total),
		zap.Int("matched", coverage.Matched),
		zap.Int("unmatched", coverage.Unmatched),
		zap.Int("empty_identifiers", coverage.EmptyIdentifiers))

	return &LookupReport{RunID: runID, Rows: rows, Coverage: coverage}, nil
}
