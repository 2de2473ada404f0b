package domain

import (
	"context"
	"time"
)

// Repository defines the interface for configuration persistence.
// Only field rules are stored; analyses and reports are never persisted.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Field rule operations
	SaveFieldRule(ctx context.Context, tenantID string, rule *FieldRule) error
	GetFieldRule(ctx context.Context, tenantID string, ruleID string) (*FieldRule, error)
	ListFieldRules(ctx context.Context, tenantID string) ([]*FieldRule, error)
	DeleteFieldRule(ctx context.Context, tenantID string, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
