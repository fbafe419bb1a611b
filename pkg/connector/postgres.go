// pkg/connector/postgres.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/crdc-reconcile/pkg/config"
)

// PostgresConnector implements the DatabaseConnector interface for PostgreSQL.
// The pgx stdlib driver is the default; lib/pq is selected with Driver "postgres".
type PostgresConnector struct {
	db     *sql.DB
	logger *zap.Logger
	cfg    *config.PostgresConfig
}

// NewPostgresConnector creates and initializes a new PostgreSQL connector
func NewPostgresConnector(ctx context.Context, cfg *config.PostgresConfig) (*PostgresConnector, error) {
	logger := zap.L().Named("postgres-connector")

	driver := cfg.Driver
	if driver == "" {
		driver = "pgx"
	}

	logger.Info("Connecting to PostgreSQL",
		zap.String("driver", driver),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User))

	connStr := cfg.ConnectionString()
	if cfg.StatementTimeout > 0 {
		// applied per connection instead of once on an arbitrary pooled connection
		connStr += fmt.Sprintf(" options='-c statement_timeout=%d'", cfg.StatementTimeout.Milliseconds())
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL connection: %w", err)
	}

	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	if err := PingWithTimeout(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	connector := &PostgresConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}

	LogConnectionStats(logger, cfg.Database, db)
	return connector, nil
}

// DB returns the underlying database connection
func (c *PostgresConnector) DB() *sql.DB {
	return c.db
}

// DriverName returns "pgx" or "postgres"
func (c *PostgresConnector) DriverName() string {
	if c.cfg.Driver == "" {
		return "pgx"
	}
	return c.cfg.Driver
}

// Validate checks the server version and that every input table is visible
func (c *PostgresConnector) Validate(ctx context.Context, tables []TableRef) error {
	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return fmt.Errorf("failed to query PostgreSQL version: %w", err)
	}
	c.logger.Info("Connected to PostgreSQL", zap.String("version", version))

	missing, err := missingTables(ctx, tables, c.tableExists)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("input tables not found: %s", strings.Join(missing, ", "))
	}

	c.logger.Info("PostgreSQL connection validated",
		zap.String("database", c.cfg.Database),
		zap.String("host", c.cfg.Host),
		zap.Int("tables", len(tables)))

	return nil
}

func (c *PostgresConnector) tableExists(ctx context.Context, ref TableRef) (bool, error) {
	schema := ref.Schema
	if schema == "" {
		schema = "public"
	}

	var exists bool
	query := `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
	`
	if err := c.db.QueryRowContext(ctx, query, schema, ref.Table).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Close closes the database connection
func (c *PostgresConnector) Close() error {
	c.logger.Info("Closing PostgreSQL connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db)
	return c.db.Close()
}

// ExecWithTimeout executes a statement with a timeout
func (c *PostgresConnector) ExecWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	return execWithTimeout(ctx, c.db, query, timeout, args...)
}
