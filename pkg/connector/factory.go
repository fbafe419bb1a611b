// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/crdc-reconcile/pkg/config"
)

// ConnectorFactory creates database connectors
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) *ConnectorFactory {
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// Create opens the connector for the configured SQL source kind
func (f *ConnectorFactory) Create(ctx context.Context) (DatabaseConnector, error) {
	var (
		conn DatabaseConnector
		err  error
	)
	switch f.cfg.SourceKind {
	case config.SourcePostgres:
		conn, err = f.CreatePostgresConnector(ctx)
	case config.SourceSnowflake:
		conn, err = f.CreateSnowflakeConnector(ctx)
	case config.SourceSQLite:
		conn, err = f.CreateSQLiteConnector(ctx)
	default:
		return nil, fmt.Errorf("source kind %q has no database connector", f.cfg.SourceKind)
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// CreateSnowflakeConnector creates a new Snowflake connector
func (f *ConnectorFactory) CreateSnowflakeConnector(ctx context.Context) (*SnowflakeConnector, error) {
	f.logger.Info("Creating Snowflake connector")

	connector, err := NewSnowflakeConnector(ctx, f.cfg.Snowflake)
	if err != nil {
		return nil, fmt.Errorf("failed to create Snowflake connector: %w", err)
	}

	return connector, nil
}

// CreatePostgresConnector creates a new PostgreSQL connector
func (f *ConnectorFactory) CreatePostgresConnector(ctx context.Context) (*PostgresConnector, error) {
	f.logger.Info("Creating PostgreSQL connector", zap.String("driver", f.cfg.Postgres.Driver))

	connector, err := NewPostgresConnector(ctx, f.cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connector: %w", err)
	}

	return connector, nil
}

// CreateSQLiteConnector creates a new SQLite snapshot connector
func (f *ConnectorFactory) CreateSQLiteConnector(ctx context.Context) (*SQLiteConnector, error) {
	f.logger.Info("Creating SQLite connector")

	connector, err := NewSQLiteConnector(ctx, f.cfg.SQLite)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite connector: %w", err)
	}

	return connector, nil
}
