// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/finshield/finshield/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLStore implements domain.Store using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// New creates a new store based on configuration.
func New(cfg domain.StoreConfig) (domain.Store, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &SQLStore{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction record.
func (s *SQLStore) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transactions (
			id, amount, merchant, location, user_id,
			device_info, ip_address, timestamp, risk_profile, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			risk_profile = excluded.risk_profile
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		tx.ID, tx.Amount, tx.Merchant, tx.Location, tx.UserID,
		tx.DeviceInfo, tx.IPAddress, tx.Timestamp,
		string(tx.RiskProfile), createdAt,
	)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (s *SQLStore) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `
		SELECT id, amount, merchant, location, user_id,
			   device_info, ip_address, timestamp, risk_profile, created_at
		FROM transactions
		WHERE id = ?
	`

	var tx domain.Transaction
	var profile string

	err := s.db.QueryRowContext(ctx, s.rebind(query), txID).Scan(
		&tx.ID, &tx.Amount, &tx.Merchant, &tx.Location, &tx.UserID,
		&tx.DeviceInfo, &tx.IPAddress, &tx.Timestamp,
		&profile, &tx.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	tx.RiskProfile = domain.RiskProfile(profile)
	return &tx, nil
}

// FetchRecent returns the most recently recorded transactions,
// newest first. An empty table yields an empty slice, not an error.
func (s *SQLStore) FetchRecent(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT id, amount, merchant, location, user_id,
			   device_info, ip_address, timestamp, risk_profile, created_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var profile string

		if err := rows.Scan(
			&tx.ID, &tx.Amount, &tx.Merchant, &tx.Location, &tx.UserID,
			&tx.DeviceInfo, &tx.IPAddress, &tx.Timestamp,
			&profile, &tx.CreatedAt,
		); err != nil {
			return nil, err
		}

		tx.RiskProfile = domain.RiskProfile(profile)
		transactions = append(transactions, &tx)
	}

	return transactions, rows.Err()
}

// CountByUser counts a user's transactions since the given time.
// Backs the velocity signal.
func (s *SQLStore) CountByUser(ctx context.Context, userID string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM transactions
		WHERE user_id = ? AND created_at >= ?
	`

	var count int64
	err := s.db.QueryRowContext(ctx, s.rebind(query), userID, since).Scan(&count)
	return count, err
}

// SavePrediction stores a risk verdict. A rescored transaction
// replaces its previous verdict.
func (s *SQLStore) SavePrediction(ctx context.Context, p *domain.Prediction) error {
	if p.TransactionID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	scores, _ := json.Marshal(p.RiskScores)
	components, _ := json.Marshal(p.Components)

	shouldBlock := 0
	if p.ShouldBlock {
		shouldBlock = 1
	}

	query := `
		INSERT INTO predictions (
			transaction_id, prediction, confidence, risk_level,
			should_block, risk_scores, components, model_version, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			prediction = excluded.prediction,
			confidence = excluded.confidence,
			risk_level = excluded.risk_level,
			should_block = excluded.should_block,
			risk_scores = excluded.risk_scores,
			components = excluded.components,
			model_version = excluded.model_version,
			timestamp = excluded.timestamp
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		p.TransactionID, string(p.Prediction), p.Confidence, string(p.RiskLevel),
		shouldBlock, string(scores), string(components), p.ModelVersion, p.Timestamp,
	)
	return err
}

// GetPrediction retrieves a recorded verdict by transaction ID.
func (s *SQLStore) GetPrediction(ctx context.Context, txID string) (*domain.Prediction, error) {
	query := `
		SELECT transaction_id, prediction, confidence, risk_level,
			   should_block, risk_scores, components, model_version, timestamp
		FROM predictions
		WHERE transaction_id = ?
	`

	p, err := scanPrediction(s.db.QueryRowContext(ctx, s.rebind(query), txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// RecentPredictions returns the latest verdicts, newest first.
func (s *SQLStore) RecentPredictions(ctx context.Context, limit int) ([]*domain.Prediction, error) {
	query := `
		SELECT transaction_id, prediction, confidence, risk_level,
			   should_block, risk_scores, components, model_version, timestamp
		FROM predictions
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var predictions []*domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}

	return predictions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row rowScanner) (*domain.Prediction, error) {
	var p domain.Prediction
	var prediction, level, scores, components string
	var shouldBlock int

	if err := row.Scan(
		&p.TransactionID, &prediction, &p.Confidence, &level,
		&shouldBlock, &scores, &components, &p.ModelVersion, &p.Timestamp,
	); err != nil {
		return nil, err
	}

	p.Prediction = domain.RiskProfile(prediction)
	p.RiskLevel = domain.RiskLevel(level)
	p.ShouldBlock = shouldBlock == 1
	json.Unmarshal([]byte(scores), &p.RiskScores)
	json.Unmarshal([]byte(components), &p.Components)

	return &p, nil
}

// SaveTrainingRun records one successful training cycle.
func (s *SQLStore) SaveTrainingRun(ctx context.Context, run *domain.TrainingRun) error {
	if run.Version == "" {
		return fmt.Errorf("%w: model version is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO training_runs (model_version, training_samples, trained_at)
		VALUES (?, ?, ?)
		ON CONFLICT(model_version) DO UPDATE SET
			training_samples = excluded.training_samples,
			trained_at = excluded.trained_at
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		run.Version, run.Samples, run.TrainedAt,
	)
	return err
}

// LatestTrainingRun returns the most recent training cycle, or
// ErrNotFound when the model has never trained.
func (s *SQLStore) LatestTrainingRun(ctx context.Context) (*domain.TrainingRun, error) {
	query := `
		SELECT model_version, training_samples, trained_at
		FROM training_runs
		ORDER BY trained_at DESC
		LIMIT 1
	`

	var run domain.TrainingRun
	err := s.db.QueryRowContext(ctx, query).Scan(
		&run.Version, &run.Samples, &run.TrainedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &run, nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
