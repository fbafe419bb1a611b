// pkg/model/cleaning.go
package model

import (
	"time"
)

// Filter reasons recorded when a row is left out of, or altered for, aggregation
const (
	ReasonMalformedDistrictKey = "malformed_district_key"
	ReasonMalformedCount       = "malformed_count"
	ReasonMissingCount         = "missing_count"
	ReasonUnmatchedGeocode     = "unmatched_geocode"
	ReasonEmptyIdentifier      = "empty_identifier"
	ReasonDuplicateGeocode     = "duplicate_geocode"
)

// Filter operations
const (
	OperationExclude   = "exclude_row"
	OperationZero      = "treat_as_zero"
	OperationKeepRaw   = "pass_through"
	OperationFirstWins = "keep_first"
)

// FilterOperation records one decision taken about a source row
type FilterOperation struct {
	RunID         string      // Reconciliation run that produced the operation
	TableName     string      // Source table
	ColumnName    string      // Column involved, empty for whole-row decisions
	OriginalValue interface{} // Original value (may be nil)
	RowIdentifier string      // Identifier of the row in its source table
	Operation     string      // What was done (e.g., "exclude_row")
	Reason        string      // Why (e.g., "malformed_district_key")
	RecordedAt    time.Time   // When the operation was recorded
}

// FilterSummary counts operations by reason
type FilterSummary map[string]int

// Summarize tallies operations by reason
func Summarize(ops []FilterOperation) FilterSummary {
	summary := make(FilterSummary)
	for _, op := range ops {
		summary[op.Reason]++
	}
	return summary
}
