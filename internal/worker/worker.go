// Package worker provides async transaction ingestion for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/finshield/finshield/internal/domain"
	"github.com/finshield/finshield/internal/predictor"
)

// Worker consumes ingested transactions from the EventBus, persists
// them as training history, and scores them through the prediction
// service. The predictor handles recording and alerting.
type Worker struct {
	bus    domain.EventBus
	store  domain.Store
	scorer *predictor.Service
	logger *slog.Logger

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, store domain.Store, scorer *predictor.Service, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		store:  store,
		scorer: scorer,
		logger: logger.With("component", "worker"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the ingestion topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("worker started", "topic", domain.TopicTransactionIngested)
	return nil
}

// handleMessage ingests one transaction from the bus.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var tx domain.Transaction
	if err := json.Unmarshal(msg.Payload, &tx); err != nil {
		w.logger.Error("failed to parse transaction message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	// 1. Persist as training history
	if w.store != nil {
		if err := w.store.SaveTransaction(ctx, &tx); err != nil {
			w.logger.Error("failed to save transaction",
				"tx_id", tx.ID,
				"error", err,
			)
		}
	}

	// 2. Score; the predictor records the verdict, publishes the
	// decision event, and alerts on blocking predictions.
	p, err := w.scorer.Predict(ctx, &tx)
	if err != nil {
		if err == domain.ErrNotTrained {
			w.logger.Warn("skipping prediction, model not trained",
				"tx_id", tx.ID,
			)
			return nil
		}
		w.logger.Error("prediction failed",
			"tx_id", tx.ID,
			"error", err,
		)
		return err
	}

	w.logger.Info("transaction processed",
		"tx_id", tx.ID,
		"prediction", p.Prediction,
		"risk_level", p.RiskLevel,
		"should_block", p.ShouldBlock,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.logger.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
