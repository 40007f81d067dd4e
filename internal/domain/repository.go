package domain

import (
	"context"
	"time"
)

// Repository is the decision audit log. Journeys themselves are never
// persisted; only the outcome of each decision or settlement is.
type Repository interface {
	// SaveDecision stores a decision record.
	SaveDecision(ctx context.Context, d *Decision) error

	// GetDecision retrieves a decision by ID.
	GetDecision(ctx context.Context, id string) (*Decision, error)

	// ListDecisions returns the most recent decisions, newest first.
	ListDecisions(ctx context.Context, limit int) ([]*Decision, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is "sqlite" or "postgres"
	Driver string

	// SQLite settings (community edition)
	SQLitePath string

	// PostgreSQL settings (pro edition)
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Connection pool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
