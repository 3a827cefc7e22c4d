package domain

import (
	"errors"
	"time"
)

// ErrNotTrained is returned when a prediction is requested before any
// model snapshot has been published.
var ErrNotTrained = errors.New("model not trained")

// RiskLevel buckets a prediction for downstream consumers.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// RiskScores is a 3-way probability distribution over risk classes.
// A valid distribution sums to 1 with each component in [0, 1].
type RiskScores struct {
	Normal     float64 `json:"normal"`
	Suspicious float64 `json:"suspicious"`
	Fraudulent float64 `json:"fraudulent"`
}

// Vector returns the scores in class-index order.
func (s RiskScores) Vector() [3]float64 {
	return [3]float64{s.Normal, s.Suspicious, s.Fraudulent}
}

// ScoresFromVector builds RiskScores from a class-index-ordered vector.
func ScoresFromVector(v [3]float64) RiskScores {
	return RiskScores{Normal: v[0], Suspicious: v[1], Fraudulent: v[2]}
}

// UniformScores is the default vector substituted when a model member or
// the text classifier is unavailable.
func UniformScores() RiskScores {
	return RiskScores{Normal: 0.33, Suspicious: 0.33, Fraudulent: 0.34}
}

// ComponentScores holds the raw per-model outputs for explainability.
type ComponentScores struct {
	Forest          RiskScores `json:"forest"`
	MLP             RiskScores `json:"mlp"`
	LSTM            RiskScores `json:"lstm"`
	AnomalyDetected bool       `json:"anomaly_detected"`
	GraphRisk       float64    `json:"graph_risk"`
	TextClassifier  RiskScores `json:"text_classifier"`
	RuleScore       float64    `json:"rule_score"`
}

// Prediction is the immutable risk verdict for one scored transaction.
type Prediction struct {
	TransactionID string          `json:"transaction_id"`
	RiskScores    RiskScores      `json:"risk_scores"`
	Prediction    RiskProfile     `json:"prediction"`
	Confidence    float64         `json:"confidence"`
	RiskLevel     RiskLevel       `json:"risk_level"`
	ShouldBlock   bool            `json:"should_block"`
	Components    ComponentScores `json:"components"`
	ModelVersion  string          `json:"model_version"`
	Timestamp     time.Time       `json:"timestamp"`
}

// TrainingRun records the metadata of one successful training cycle.
type TrainingRun struct {
	Version   string    `json:"model_version"`
	Samples   int       `json:"training_samples"`
	TrainedAt time.Time `json:"last_trained"`
}

// ModelInfo is the observability summary for the live model.
type ModelInfo struct {
	LastTrained     string `json:"last_trained"`
	TrainingSamples int    `json:"training_samples"`
	ModelVersion    string `json:"model_version"`
}
