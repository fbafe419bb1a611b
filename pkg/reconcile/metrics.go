package reconcile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

// TableMetrics tracks the load of one input table
type TableMetrics struct {
	Table    string
	RowsRead int
	Duration time.Duration
}

// RunMetrics tracks one reconciliation run. Table loads record concurrently.
type RunMetrics struct {
	mu                  sync.Mutex
	logger              *zap.Logger
	RunID               string
	StartTime           time.Time
	EndTime             time.Time
	Tables              map[string]*TableMetrics
	Filtered            model.FilterSummary
	MissingCounts       map[string]int
	UnjoinedRows        int
	CountiesMapped      int
	CountiesWithoutData int
	RowsOutput          int
}

// NewRunMetrics creates a metrics tracker for runID
func NewRunMetrics(runID string, logger *zap.Logger) *RunMetrics {
	return &RunMetrics{
		logger:        logger,
		RunID:         runID,
		StartTime:     time.Now(),
		Tables:        make(map[string]*TableMetrics),
		Filtered:      make(model.FilterSummary),
		MissingCounts: make(map[string]int),
	}
}

// RecordTableLoad records a completed table read. A nil receiver ignores it.
func (m *RunMetrics) RecordTableLoad(table string, rows int, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Tables[table] = &TableMetrics{Table: table, RowsRead: rows, Duration: duration}

	if m.logger != nil {
		m.logger.Info("Loaded table",
			zap.String("run_id", m.RunID),
			zap.String("table", table),
			zap.Int("rows", rows),
			zap.Duration("duration", duration))
	}
}

// RecordFiltered adds filter operations to the per-reason tally
func (m *RunMetrics) RecordFiltered(ops []model.FilterOperation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for reason, n := range model.Summarize(ops) {
		m.Filtered[reason] += n
	}
}

// RecordAggregation records the outcome of Aggregate
func (m *RunMetrics) RecordAggregation(diag Diagnostics, countiesMapped, rowsOutput int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for field, n := range diag.MissingCounts {
		m.MissingCounts[field] += n
	}
	m.UnjoinedRows += diag.UnjoinedRows
	m.CountiesWithoutData = diag.CountiesWithoutData
	m.CountiesMapped = countiesMapped
	m.RowsOutput = rowsOutput
}

// Complete marks the run as finished and logs a summary
func (m *RunMetrics) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EndTime = time.Now()

	if m.logger != nil {
		m.logger.Info("Reconciliation run completed",
			zap.String("run_id", m.RunID),
			zap.Duration("duration", m.duration()),
			zap.Int("rows_read", m.rowsRead()),
			zap.Int("counties_mapped", m.CountiesMapped),
			zap.Int("counties_without_data", m.CountiesWithoutData),
			zap.Int("unjoined_rows", m.UnjoinedRows),
			zap.Int("rows_output", m.RowsOutput),
			zap.Any("filtered", m.Filtered),
			zap.Any("missing_counts", m.MissingCounts))
	}
}

// Duration returns the run duration so far
func (m *RunMetrics) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration()
}

func (m *RunMetrics) duration() time.Duration {
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// RowsRead returns the total rows read across tables
func (m *RunMetrics) RowsRead() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rowsRead()
}

func (m *RunMetrics) rowsRead() int {
	total := 0
	for _, t := range m.Tables {
		total += t.RowsRead
	}
	return total
}

// formatDuration formats a duration to a human-readable string
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// Report renders a plain-text summary of the run
func (m *RunMetrics) Report() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s (%s)\n", m.RunID, formatDuration(m.duration()))

	tables := make([]string, 0, len(m.Tables))
	for name := range m.Tables {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	for _, name := range tables {
		fmt.Fprintf(&sb, "  read %-40s %8d rows\n", name, m.Tables[name].RowsRead)
	}

	fmt.Fprintf(&sb, "  counties mapped: %d, without data: %d, output rows: %d\n",
		m.CountiesMapped, m.CountiesWithoutData, m.RowsOutput)
	fmt.Fprintf(&sb, "  demographic rows without a mapped district: %d\n", m.UnjoinedRows)

	for _, reason := range sortedKeys(m.Filtered) {
		fmt.Fprintf(&sb, "  filtered %-24s %d\n", reason, m.Filtered[reason])
	}
	for _, field := range sortedKeys(m.MissingCounts) {
		fmt.Fprintf(&sb, "  missing %-25s %d\n", field, m.MissingCounts[field])
	}
	return sb.String()
}

// MarshalJSON serializes the metrics without the logger and lock
func (m *RunMetrics) MarshalJSON() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tables := make(map[string]int, len(m.Tables))
	for name, t := range m.Tables {
		tables[name] = t.RowsRead
	}

	return json.Marshal(struct {
		RunID               string         `json:"run_id"`
		Duration            string         `json:"duration"`
		RowsRead            map[string]int `json:"rows_read"`
		Filtered            map[string]int `json:"filtered"`
		MissingCounts       map[string]int `json:"missing_counts"`
		UnjoinedRows        int            `json:"unjoined_rows"`
		CountiesMapped      int            `json:"counties_mapped"`
		CountiesWithoutData int            `json:"counties_without_data"`
		RowsOutput          int            `json:"rows_output"`
	}{
		RunID:               m.RunID,
		Duration:            formatDuration(m.duration()),
		RowsRead:            tables,
		Filtered:            m.Filtered,
		MissingCounts:       m.MissingCounts,
		UnjoinedRows:        m.UnjoinedRows,
		CountiesMapped:      m.CountiesMapped,
		CountiesWithoutData: m.CountiesWithoutData,
		RowsOutput:          m.RowsOutput,
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
