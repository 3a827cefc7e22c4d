// Package predictor is the request-facing scoring service: one
// transaction in, one risk verdict out, with the verdict recorded for
// downstream consumers.
package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/finshield/finshield/internal/blend"
	"github.com/finshield/finshield/internal/collab"
	"github.com/finshield/finshield/internal/domain"
	"github.com/finshield/finshield/internal/feature"
	"github.com/finshield/finshield/internal/model"
)

// Service scores transactions against the live model snapshot.
type Service struct {
	snapshots *model.SnapshotStore
	blender   *blend.Blender
	store     domain.Store
	cache     domain.Cache
	bus       domain.EventBus

	text  domain.TextClassifier
	rules domain.RuleScorer
	alert domain.AlertSink

	timeout       time.Duration
	predictionTTL time.Duration
	logger        *slog.Logger
}

// Options carries the collaborator wiring for NewService.
type Options struct {
	Store          domain.Store
	Cache          domain.Cache
	Bus            domain.EventBus
	TextClassifier domain.TextClassifier
	RuleScorer     domain.RuleScorer
	AlertSink      domain.AlertSink
	Timeout        time.Duration
	PredictionTTL  time.Duration
	Logger         *slog.Logger
}

// NewService creates a scoring service. Missing collaborators fall back
// to their no-op or default implementations.
func NewService(snapshots *model.SnapshotStore, blender *blend.Blender, opts Options) *Service {
	if blender == nil {
		blender = blend.NewBlender()
	}
	if opts.TextClassifier == nil {
		opts.TextClassifier = collab.UniformTextClassifier{}
	}
	if opts.AlertSink == nil {
		opts.AlertSink = collab.NopAlertSink{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.PredictionTTL <= 0 {
		opts.PredictionTTL = domain.DefaultPredictionTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		snapshots:     snapshots,
		blender:       blender,
		store:         opts.Store,
		cache:         opts.Cache,
		bus:           opts.Bus,
		text:          opts.TextClassifier,
		rules:         opts.RuleScorer,
		alert:         opts.AlertSink,
		timeout:       opts.Timeout,
		predictionTTL: opts.PredictionTTL,
		logger:        opts.Logger.With("component", "predictor"),
	}
}

// Predict scores one transaction against the live snapshot. Returns
// domain.ErrNotTrained when no snapshot has ever been published.
func (s *Service) Predict(ctx context.Context, tx *domain.Transaction) (*domain.Prediction, error) {
	snap := s.snapshots.Live()
	if snap == nil {
		return nil, domain.ErrNotTrained
	}

	vec := feature.Extract(tx)
	members := snap.Predict(vec[:])

	var graphRisk float64
	if snap.Graph != nil {
		graphRisk = snap.Graph.RiskFor(tx)
	}

	text, rule := s.externalSignals(ctx, tx)

	res := s.blender.Blend(&blend.Input{
		Members:   members,
		GraphRisk: graphRisk,
		Text:      text,
		RuleScore: rule,
	})

	p := &domain.Prediction{
		TransactionID: tx.ID,
		RiskScores:    res.Scores,
		Prediction:    res.Prediction,
		Confidence:    res.Confidence,
		RiskLevel:     res.RiskLevel,
		ShouldBlock:   res.ShouldBlock,
		Components: domain.ComponentScores{
			Forest:          members.Forest,
			MLP:             members.MLP,
			LSTM:            members.LSTM,
			AnomalyDetected: members.Anomaly,
			GraphRisk:       graphRisk,
			TextClassifier:  text,
			RuleScore:       rule,
		},
		ModelVersion: snap.Version,
		Timestamp:    time.Now().UTC(),
	}

	s.record(ctx, tx, p)
	return p, nil
}

// externalSignals queries the text classifier and rule service under a
// bounded timeout. Failures degrade to the stated defaults.
func (s *Service) externalSignals(ctx context.Context, tx *domain.Transaction) (domain.RiskScores, float64) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.text.Classify(callCtx, tx.Text())
	if err != nil {
		s.logger.Warn("text classifier fallback", "tx_id", tx.ID, "error", err)
		text = domain.UniformScores()
	}

	var rule float64
	if s.rules != nil {
		rule, err = s.rules.Score(callCtx, tx)
		if err != nil {
			s.logger.Warn("rule service fallback", "tx_id", tx.ID, "error", err)
			rule = collab.RuleFallbackScore(tx)
		}
	} else {
		rule = collab.RuleFallbackScore(tx)
	}
	return text, rule
}

// record persists and publishes the verdict. Failures are logged, not
// returned: the caller already has the prediction.
func (s *Service) record(ctx context.Context, tx *domain.Transaction, p *domain.Prediction) {
	if s.cache != nil {
		if err := s.cache.SetPrediction(ctx, p, s.predictionTTL); err != nil {
			s.logger.Warn("failed to cache prediction", "tx_id", p.TransactionID, "error", err)
		}
	}

	if s.store != nil {
		if err := s.store.SavePrediction(ctx, p); err != nil {
			s.logger.Error("failed to persist prediction", "tx_id", p.TransactionID, "error", err)
		}
	}

	if s.bus != nil {
		payload, _ := json.Marshal(p)
		if err := s.bus.Publish(ctx, domain.TopicPrediction, payload); err != nil {
			s.logger.Warn("failed to publish prediction", "tx_id", p.TransactionID, "error", err)
		}
	}

	if p.ShouldBlock {
		go s.fireAlert(tx, p)
	}
}

// fireAlert runs detached from the request with its own deadline.
func (s *Service) fireAlert(tx *domain.Transaction, p *domain.Prediction) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.alert.Alert(ctx, tx, p); err != nil {
		s.logger.Warn("alert delivery failed", "tx_id", p.TransactionID, "error", err)
	}
}

// GetPrediction looks up a recorded verdict, cache first, then store.
func (s *Service) GetPrediction(ctx context.Context, txID string) (*domain.Prediction, error) {
	if s.cache != nil {
		if p, err := s.cache.GetPrediction(ctx, txID); err == nil && p != nil {
			return p, nil
		}
	}
	if s.store == nil {
		return nil, fmt.Errorf("prediction %s not found", txID)
	}
	return s.store.GetPrediction(ctx, txID)
}

// RecentPredictions returns the latest recorded verdicts.
func (s *Service) RecentPredictions(ctx context.Context, limit int) ([]*domain.Prediction, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.RecentPredictions(ctx, limit)
}

// ModelInfo summarizes the live snapshot for observability. Returns
// ErrNotTrained when nothing has been published yet.
func (s *Service) ModelInfo(ctx context.Context) (*domain.ModelInfo, error) {
	snap := s.snapshots.Live()
	if snap == nil {
		return nil, domain.ErrNotTrained
	}
	return &domain.ModelInfo{
		LastTrained:     snap.TrainedAt.UTC().Format(time.RFC3339),
		TrainingSamples: snap.Samples,
		ModelVersion:    snap.Version,
	}, nil
}

// Ready reports whether a model snapshot is live.
func (s *Service) Ready() bool {
	return s.snapshots.Live() != nil
}
