package domain

import (
	"context"
)

// TextClassifier is the external natural-language classifier used as one
// ensemble input. The core treats it as a black box returning a 3-way
// probability vector; unavailability must degrade to UniformScores.
type TextClassifier interface {
	Classify(ctx context.Context, text string) (RiskScores, error)
}

// RuleScorer is the external rule/partner fraud service. Score returns a
// fraud probability in [0, 1].
type RuleScorer interface {
	Score(ctx context.Context, tx *Transaction) (float64, error)
}

// AlertSink receives blocked transactions. Delivery is fire-and-forget:
// a sink failure must never affect the prediction already returned.
type AlertSink interface {
	Alert(ctx context.Context, tx *Transaction, p *Prediction) error
}

// Alert is the payload handed to the alert collaborator.
type Alert struct {
	Transaction *Transaction `json:"transaction"`
	Prediction  *Prediction  `json:"prediction"`
}
