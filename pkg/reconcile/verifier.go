package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
	"github.com/David-Botos/crdc-reconcile/pkg/source"
)

// PushdownRunner runs the reconciliation inside the database
type PushdownRunner interface {
	CountyPovertyStats(ctx context.Context, opts source.PushdownOptions) ([]model.CountyAggregate, error)
	LookupLEAs(ctx context.Context) ([]model.LEALookup, error)
}

// RowDiscrepancy represents a value that differs between the two result sets
type RowDiscrepancy struct {
	RowKey         string
	ColumnName     string
	InProcessValue interface{}
	PushdownValue  interface{}
}

// VerificationReport contains the results of comparing in-process and pushdown results
type VerificationReport struct {
	Name              string
	VerificationTime  time.Time
	Duration          time.Duration
	InProcessRows     int
	PushdownRows      int
	RowCountMatches   bool
	OrderMatches      bool
	MissingInPushdown []string
	MissingInProcess  []string
	Discrepancies     []RowDiscrepancy
}

// OK reports whether the two result sets are identical
func (r *VerificationReport) OK() bool {
	return r.RowCountMatches && r.OrderMatches &&
		len(r.MissingInPushdown) == 0 && len(r.MissingInProcess) == 0 && len(r.Discrepancies) == 0
}

// Verifier checks the in-process engine against the database-side queries
type Verifier struct {
	engine   *Engine
	pushdown PushdownRunner
	logger   *zap.Logger
	timeout  time.Duration
}

// NewVerifier creates a new verifier
func NewVerifier(engine *Engine, pushdown PushdownRunner, logger *zap.Logger) *Verifier {
	return &Verifier{
		engine:   engine,
		pushdown: pushdown,
		logger:   logger.Named("verifier"),
		timeout:  5 * time.Minute,
	}
}

// WithTimeout sets a custom timeout for verification operations
func (v *Verifier) WithTimeout(timeout time.Duration) *Verifier {
	v.timeout = timeout
	return v
}

// VerifyCountyStats runs both county aggregations and compares them row by row
func (v *Verifier) VerifyCountyStats(ctx context.Context) (*VerificationReport, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	start := time.Now()

	local, err := v.engine.CountyPovertyStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("in-process county stats failed: %w", err)
	}
	remote, err := v.pushdown.CountyPovertyStats(ctx, v.engine.Options().Pushdown())
	if err != nil {
		return nil, fmt.Errorf("pushdown county stats failed: %w", err)
	}

	report := CompareCountyStats(local.Rows, remote)
	report.VerificationTime = start
	report.Duration = time.Since(start)
	v.log(report)
	return report, nil
}

// VerifyLookup runs both lookups and compares them row by row
func (v *Verifier) VerifyLookup(ctx context.Context) (*VerificationReport, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	start := time.Now()

	local, err := v.engine.LookupLEAs(ctx)
	if err != nil {
		return nil, fmt.Errorf("in-process lookup failed: %w", err)
	}
	remote, err := v.pushdown.LookupLEAs(ctx)
	if err != nil {
		return nil, fmt.Errorf("pushdown lookup failed: %w", err)
	}

	report := CompareLookups(local.Rows, remote)
	report.VerificationTime = start
	report.Duration = time.Since(start)
	v.log(report)
	return report, nil
}

func (v *Verifier) log(r *VerificationReport) {
	if r.OK() {
		v.logger.Info("Verification successful",
			zap.String("check", r.Name),
			zap.Int("rows", r.InProcessRows),
			zap.Duration("duration", r.Duration))
		return
	}
	v.logger.Warn("Verification found differences",
		zap.String("check", r.Name),
		zap.Int("in_process_rows", r.InProcessRows),
		zap.Int("pushdown_rows", r.PushdownRows),
		zap.Bool("order_matches", r.OrderMatches),
		zap.Int("missing_in_pushdown", len(r.MissingInPushdown)),
		zap.Int("missing_in_process", len(r.MissingInProcess)),
		zap.Int("discrepancies", len(r.Discrepancies)))
}

// CompareCountyStats compares two county result sets keyed by county and FIP
func CompareCountyStats(inProcess, pushdown []model.CountyAggregate) *VerificationReport {
	key := func(a model.CountyAggregate) string { return a.County + "|" + a.CountyFIP }
	columns := func(a model.CountyAggregate) []column {
		return []column{
			{"total_population", a.TotalPopulation},
			{"total_pop_5_17", a.TotalPop5to17},
			{"total_pov_5_17", a.TotalPov5to17},
			{"pct_poverty_5_17", pctValue(a.PctPoverty5to17)},
			{"district_rows", a.DistrictRows},
		}
	}
	return compareRows("county_poverty_stats", inProcess, pushdown, key, columns)
}

// CompareLookups compares two lookup result sets keyed by LEA identifier
func CompareLookups(inProcess, pushdown []model.LEALookup) *VerificationReport {
	columns := func(l model.LEALookup) []column {
		return []column{
			{"matched", l.Matched},
			{"state_fip", deref(l.StateFIP)},
			{"county", deref(l.County)},
			{"county_fip", deref(l.CountyFIP)},
		}
	}
	key := func(l model.LEALookup) string { return l.LEA.Identifier }
	return compareRows("lea_lookup", inProcess, pushdown, key, columns)
}

type column struct {
	name  string
	value interface{}
}

func compareRows[T any](name string, inProcess, pushdown []T, key func(T) string, columns func(T) []column) *VerificationReport {
	report := &VerificationReport{
		Name:            name,
		InProcessRows:   len(inProcess),
		PushdownRows:    len(pushdown),
		RowCountMatches: len(inProcess) == len(pushdown),
		OrderMatches:    len(inProcess) == len(pushdown),
	}

	remoteKeys := rowKeys(pushdown, key)
	remote := make(map[string]T, len(pushdown))
	for i, row := range pushdown {
		remote[remoteKeys[i]] = row
	}

	localKeys := rowKeys(inProcess, key)
	seen := make(map[string]bool, len(inProcess))
	for i, row := range inProcess {
		k := localKeys[i]
		seen[k] = true
		if report.OrderMatches && remoteKeys[i] != k {
			report.OrderMatches = false
		}

		other, ok := remote[k]
		if !ok {
			report.MissingInPushdown = append(report.MissingInPushdown, k)
			continue
		}

		a, b := columns(row), columns(other)
		for j := range a {
			if a[j].value != b[j].value {
				report.Discrepancies = append(report.Discrepancies, RowDiscrepancy{
					RowKey:         k,
					ColumnName:     a[j].name,
					InProcessValue: a[j].value,
					PushdownValue:  b[j].value,
				})
			}
		}
	}

	for _, k := range remoteKeys {
		if !seen[k] {
			report.MissingInProcess = append(report.MissingInProcess, k)
		}
	}
	return report
}

// rowKeys returns the key of every row; repeated keys get a "#n" suffix
func rowKeys[T any](rows []T, key func(T) string) []string {
	counts := make(map[string]int, len(rows))
	keys := make([]string, len(rows))
	for i, row := range rows {
		k := key(row)
		counts[k]++
		if counts[k] > 1 {
			k = fmt.Sprintf("%s#%d", k, counts[k])
		}
		keys[i] = k
	}
	return keys
}

// pctValue renders a nullable percentage in a comparable form
func pctValue(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.StringFixed(2)
}

func deref(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
