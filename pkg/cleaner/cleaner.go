// pkg/cleaner/cleaner.go
package cleaner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/crdc-reconcile/pkg/identifier"
	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

const defaultAuditTable = "public.reconcile_filtered"

// AuditStore is the connection filter operations are written to
type AuditStore interface {
	DB() *sql.DB
	ExecWithTimeout(ctx context.Context, query string, timeout time.Duration, args ...interface{}) (sql.Result, error)
}

// DataCleaner validates demographic rows before aggregation and keeps an audit of
// every row it leaves out
type DataCleaner struct {
	store  AuditStore
	logger *zap.Logger
	table  string
}

// NewDataCleaner creates a new DataCleaner that only logs its decisions
func NewDataCleaner(logger *zap.Logger) (*DataCleaner, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &DataCleaner{
		logger: logger,
		table:  defaultAuditTable,
	}, nil
}

// WithAudit makes the cleaner persist filter operations to PostgreSQL and ensures
// the tracking table exists
func (c *DataCleaner) WithAudit(ctx context.Context, store AuditStore, table string) error {
	if table == "" {
		table = defaultAuditTable
	}
	quoted, err := QuoteTableName(table)
	if err != nil {
		return fmt.Errorf("invalid audit table: %w", err)
	}
	if store == nil {
		return errors.New("database connection cannot be nil")
	}
	c.table = quoted
	c.store = store

	if err := c.setupFilterTable(ctx); err != nil {
		c.store = nil
		return fmt.Errorf("failed to setup filter table: %w", err)
	}
	return nil
}

// AuditEnabled reports whether filter operations are persisted
func (c *DataCleaner) AuditEnabled() bool {
	return c.store != nil
}

// QuoteTableName validates a table name of the form [schema.]table and returns
// it with every part quoted
func QuoteTableName(name string) (string, error) {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("%q has more than two parts", name)
	}
	for i, part := range parts {
		if !ValidIdentifier(part) {
			return "", fmt.Errorf("%q is not a valid identifier", part)
		}
		parts[i] = pq.QuoteIdentifier(part)
	}
	return strings.Join(parts, "."), nil
}

// setupFilterTable ensures the filter tracking table exists
func (c *DataCleaner) setupFilterTable(ctx context.Context) error {
	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			original_value TEXT,
			row_identifier TEXT NOT NULL,
			operation TEXT NOT NULL,
			reason TEXT NOT NULL,
			recorded_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)
	`, c.table)
	_, err := c.store.ExecWithTimeout(ctx, createTableSQL, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to create tracking table: %w", err)
	}

	c.logger.Info("Ensured filter tracking table exists", zap.String("table", c.table))
	return nil
}

// CleanDistrictRows validates raw demographic rows. Rows whose composite
// identifier does not carry a 5-digit district code, or whose counts are not
// integers, are excluded and reported as filter operations.
func (c *DataCleaner) CleanDistrictRows(
	rows []model.DistrictRow,
	table string,
	runID string,
) ([]model.DistrictRecord, []model.FilterOperation) {
	cleaned := make([]model.DistrictRecord, 0, len(rows))
	var operations []model.FilterOperation

	for _, row := range rows {
		record, op := cleanDistrictRow(row, table, runID)
		if op != nil {
			operations = append(operations, *op)
			continue
		}
		cleaned = append(cleaned, record)
	}

	if len(operations) > 0 {
		c.logger.Info("Excluded demographic rows",
			zap.String("table", table),
			zap.Int("kept", len(cleaned)),
			zap.Int("excluded", len(operations)))
	}

	return cleaned, operations
}

// cleanDistrictRow validates a single demographic row
func cleanDistrictRow(row model.DistrictRow, table, runID string) (model.DistrictRecord, *model.FilterOperation) {
	key, ok := identifier.ExtractDistrictKey(row.Identifier)
	if !ok {
		return model.DistrictRecord{}, &model.FilterOperation{
			RunID:         runID,
			TableName:     table,
			ColumnName:    "identifier",
			OriginalValue: row.Identifier,
			RowIdentifier: row.Identifier,
			Operation:     model.OperationExclude,
			Reason:        model.ReasonMalformedDistrictKey,
			RecordedAt:    time.Now(),
		}
	}

	record := model.DistrictRecord{Key: key, Identifier: row.Identifier}
	fields := []struct {
		column string
		raw    string
		dst    *model.Count
	}{
		{"population", row.Population, &record.Population},
		{"pop_5_17", row.Pop5to17, &record.Pop5to17},
		{"pop_5_17_poverty", row.Pop5to17Poverty, &record.Pop5to17Poverty},
	}

	for _, f := range fields {
		count, err := model.ParseCount(f.raw)
		if err != nil {
			return model.DistrictRecord{}, &model.FilterOperation{
				RunID:         runID,
				TableName:     table,
				ColumnName:    f.column,
				OriginalValue: f.raw,
				RowIdentifier: row.Identifier,
				Operation:     model.OperationExclude,
				Reason:        model.ReasonMalformedCount,
				RecordedAt:    time.Now(),
			}
		}
		*f.dst = count
	}

	return record, nil
}

// RecordFilterOperations batch inserts filter operations into the tracking table.
// It is a no-op when auditing is disabled.
func (c *DataCleaner) RecordFilterOperations(ctx context.Context, operations []model.FilterOperation) (err error) {
	if len(operations) == 0 || c.store == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := c.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				c.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.NamedError("cause", err))
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s
		(run_id, table_name, column_name, original_value,
		 row_identifier, operation, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.table))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, op := range operations {
		_, err = stmt.ExecContext(ctx,
			op.RunID,
			op.TableName,
			op.ColumnName,
			toNullableString(op.OriginalValue),
			op.RowIdentifier,
			op.Operation,
			op.Reason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert filter operation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	c.logger.Info("Recorded filter operations", zap.Int("count", len(operations)))
	return nil
}

// toNullableString renders an original value for the audit table
func toNullableString(v interface{}) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmt.Sprint(v), Valid: true}
}
