package store

// Schema definitions for the FinShield database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    amount REAL NOT NULL,
    merchant TEXT NOT NULL,
    location TEXT NOT NULL,
    user_id TEXT NOT NULL,
    device_info TEXT,
    ip_address TEXT,
    timestamp TEXT NOT NULL,
    risk_profile TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at);
`

const schemaPredictions = `
CREATE TABLE IF NOT EXISTS predictions (
    transaction_id TEXT PRIMARY KEY,
    prediction TEXT NOT NULL,
    confidence REAL NOT NULL,
    risk_level TEXT NOT NULL,
    should_block INTEGER NOT NULL DEFAULT 0,
    risk_scores TEXT NOT NULL,
    components TEXT NOT NULL,
    model_version TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp);
CREATE INDEX IF NOT EXISTS idx_predictions_level ON predictions(risk_level);
`

const schemaTrainingRuns = `
CREATE TABLE IF NOT EXISTS training_runs (
    model_version TEXT PRIMARY KEY,
    training_samples INTEGER NOT NULL,
    trained_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_training_runs_trained ON training_runs(trained_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaPredictions,
		schemaTrainingRuns,
	}
}
