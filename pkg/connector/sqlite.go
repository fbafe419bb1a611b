package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/David-Botos/crdc-reconcile/pkg/config"
)

// SQLiteConnector opens a local SQLite snapshot of the CRDC tables read-only
type SQLiteConnector struct {
	db     *sql.DB
	logger *zap.Logger
	cfg    *config.SQLiteConfig
}

// NewSQLiteConnector opens the snapshot at cfg.Path
func NewSQLiteConnector(ctx context.Context, cfg *config.SQLiteConfig) (*SQLiteConnector, error) {
	logger := zap.L().Named("sqlite-connector")
	logger.Info("Opening SQLite snapshot", zap.String("path", cfg.Path))

	db, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite snapshot: %w", err)
	}

	// three concurrent table scans at most
	ApplyConnectionSettings(db, 4, 4, 0, 0)

	if err := PingWithTimeout(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open SQLite snapshot %s: %w", cfg.Path, err)
	}

	return &SQLiteConnector{db: db, logger: logger, cfg: cfg}, nil
}

// DB returns the underlying database connection
func (c *SQLiteConnector) DB() *sql.DB {
	return c.db
}

// DriverName returns "sqlite"
func (c *SQLiteConnector) DriverName() string {
	return "sqlite"
}

// Validate checks that every input table exists. Schemas are ignored.
func (c *SQLiteConnector) Validate(ctx context.Context, tables []TableRef) error {
	missing, err := missingTables(ctx, tables, func(ctx context.Context, ref TableRef) (bool, error) {
		var n int
		err := c.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?",
			ref.Table).Scan(&n)
		return n > 0, err
	})
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("input tables not found: %s", strings.Join(missing, ", "))
	}

	c.logger.Info("SQLite snapshot validated",
		zap.String("path", c.cfg.Path),
		zap.Int("tables", len(tables)))
	return nil
}

// Close closes the database connection
func (c *SQLiteConnector) Close() error {
	c.logger.Info("Closing SQLite snapshot")
	return c.db.Close()
}

// ExecWithTimeout executes a statement with a timeout
func (c *SQLiteConnector) ExecWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	return execWithTimeout(ctx, c.db, query, timeout, args...)
}
