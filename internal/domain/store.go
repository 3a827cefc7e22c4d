// Package domain defines the core interfaces and types for FinShield.
package domain

import (
	"context"
	"time"
)

// Store defines the interface for transaction and prediction persistence.
// The scoring core consumes it as an external collaborator; implementations
// must tolerate empty result sets.
type Store interface {
	// Transaction history (the training corpus)
	SaveTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	FetchRecent(ctx context.Context, limit int) ([]*Transaction, error)
	CountByUser(ctx context.Context, userID string, since time.Time) (int64, error)

	// Recorded verdicts
	SavePrediction(ctx context.Context, p *Prediction) error
	GetPrediction(ctx context.Context, txID string) (*Prediction, error)
	RecentPredictions(ctx context.Context, limit int) ([]*Prediction, error)

	// Training metadata
	SaveTrainingRun(ctx context.Context, run *TrainingRun) error
	LatestTrainingRun(ctx context.Context) (*TrainingRun, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// StoreConfig holds configuration for store initialization.
type StoreConfig struct {
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
