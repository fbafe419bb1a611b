// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Source kinds
const (
	SourcePostgres  = "postgres"
	SourceSnowflake = "snowflake"
	SourceSQLite    = "sqlite"
	SourceCSV       = "csv"
)

// Config represents the application configuration
type Config struct {
	// Where the CRDC tables are read from
	SourceKind string
	Postgres   *PostgresConfig
	Snowflake  *SnowflakeConfig
	SQLite     *SQLiteConfig
	CSV        *CSVConfig

	// Input tables
	Tables TablesConfig

	// Reconciliation defaults, overridable per invocation
	Reconcile ReconcileConfig

	// Load settings
	RetryAttempts int
	RetryDelay    time.Duration
	QueryTimeout  time.Duration

	// Audit of filtered rows (PostgreSQL only)
	AuditTable string

	// Logging
	LogLevel  string
	LogFormat string
}

// TablesConfig names the three input tables
type TablesConfig struct {
	Schema           string
	LEATable         string
	GeocodeTable     string
	DemographicTable string
}

// ReconcileConfig holds the textual reconciliation options; parsing into typed
// options happens in the reconcile package
type ReconcileConfig struct {
	JoinMode       string
	SentinelPolicy string
	NullsOrder     string
	KeyScope       string
}

// LoadEnvFile loads variables from a .env file when one exists.
// Variables already set in the environment take precedence.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		SourceKind: strings.ToLower(getEnv("SOURCE_KIND", SourcePostgres)),
		Tables: TablesConfig{
			Schema:           getEnv("CRDC_SCHEMA", "crdc_import"),
			LEATable:         getEnv("LEA_TABLE", "lea_characteristics"),
			GeocodeTable:     getEnv("GEOCODE_TABLE", "lea_geocode"),
			DemographicTable: getEnv("DEMOGRAPHIC_TABLE", "saipe_school_districts"),
		},
		Reconcile: ReconcileConfig{
			JoinMode:       getEnv("JOIN_MODE", "left"),
			SentinelPolicy: getEnv("SENTINEL_POLICY", "exclude"),
			NullsOrder:     getEnv("NULLS_ORDER", "first"),
			KeyScope:       getEnv("KEY_SCOPE", "district"),
		},
		RetryAttempts: getEnvAsInt("RETRY_ATTEMPTS", 3),
		RetryDelay:    time.Duration(getEnvAsInt("RETRY_DELAY_MS", 1000)) * time.Millisecond,
		QueryTimeout:  time.Duration(getEnvAsInt("QUERY_TIMEOUT_SECONDS", 300)) * time.Second,
		AuditTable:    getEnv("AUDIT_TABLE", "public.reconcile_filtered"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
	}

	// Load only the backend the source needs
	var err error
	switch cfg.SourceKind {
	case SourcePostgres:
		cfg.Postgres, err = LoadPostgresConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load PostgreSQL configuration: %w", err)
		}
	case SourceSnowflake:
		cfg.Snowflake, err = LoadSnowflakeConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load Snowflake configuration: %w", err)
		}
	case SourceSQLite:
		cfg.SQLite, err = LoadSQLiteConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load SQLite configuration: %w", err)
		}
	case SourceCSV:
		cfg.CSV, err = LoadCSVConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load CSV configuration: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	switch c.SourceKind {
	case SourcePostgres:
		if c.Postgres == nil {
			return errors.New("postgreSQL configuration is required")
		}
	case SourceSnowflake:
		if c.Snowflake == nil {
			return errors.New("snowflake configuration is required")
		}
	case SourceSQLite:
		if c.SQLite == nil {
			return errors.New("sqlite configuration is required")
		}
	case SourceCSV:
		if c.CSV == nil {
			return errors.New("csv configuration is required")
		}
	default:
		return fmt.Errorf("unknown source kind %q", c.SourceKind)
	}

	if c.Tables.LEATable == "" || c.Tables.GeocodeTable == "" || c.Tables.DemographicTable == "" {
		return errors.New("all three input table names are required")
	}

	if c.RetryAttempts < 0 {
		return errors.New("retry attempts cannot be negative")
	}

	if c.QueryTimeout <= 0 {
		return errors.New("query timeout must be positive")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
