package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finshield/finshield/internal/domain"
	"github.com/finshield/finshield/internal/predictor"
	"github.com/finshield/finshield/internal/rules"
	"github.com/finshield/finshield/internal/trainer"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	predictor *predictor.Service
	scheduler *trainer.Scheduler
	engine    *rules.Engine
	store     domain.Store
	cache     domain.Cache
	bus       domain.EventBus
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(svc *predictor.Service, sched *trainer.Scheduler, engine *rules.Engine, store domain.Store, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		predictor: svc,
		scheduler: sched,
		engine:    engine,
		store:     store,
		cache:     cache,
		bus:       bus,
		version:   version,
	}
}

// PredictResponse is the response for POST /predict.
type PredictResponse struct {
	*domain.Prediction
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Predict handles POST /predict: synchronous scoring of one transaction.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	req, ok := decodeTransactionRequest(w, r)
	if !ok {
		return
	}

	tx := req.ToTransaction()

	// Persist as training history before scoring. A save failure is
	// logged but does not fail the request.
	if h.store != nil {
		if err := h.store.SaveTransaction(ctx, tx); err != nil {
			slog.Error("failed to save transaction", "tx_id", tx.ID, "error", err)
		}
	}

	p, err := h.predictor.Predict(ctx, tx)
	if err != nil {
		if errors.Is(err, domain.ErrNotTrained) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "model not trained yet",
			})
			return
		}
		slog.Error("prediction failed", "tx_id", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "prediction failed",
		})
		return
	}

	resp := PredictResponse{Prediction: p}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// IngestTransaction handles POST /transactions: asynchronous ingestion
// through the event bus. The worker scores it off the request path.
func (h *Handler) IngestTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := decodeTransactionRequest(w, r)
	if !ok {
		return
	}

	tx := req.ToTransaction()
	payload, err := json.Marshal(tx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode transaction",
		})
		return
	}

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	if err := h.bus.Publish(ctx, domain.TopicTransactionIngested, payload); err != nil {
		slog.Error("failed to publish transaction", "tx_id", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to enqueue transaction",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"transaction_id": tx.ID,
		"status":         "accepted",
	})
}

// decodeTransactionRequest parses and validates the scoring payload,
// assigning an ID when the producer did not supply one.
func decodeTransactionRequest(w http.ResponseWriter, r *http.Request) (*domain.TransactionRequest, bool) {
	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return nil, false
	}

	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return nil, false
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "user_id is required",
		})
		return nil, false
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	return &req, true
}

// GetPrediction retrieves a recorded verdict by transaction ID.
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	p, err := h.predictor.GetPrediction(ctx, txID)
	if err != nil || p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "prediction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// RecentPredictions returns the latest recorded verdicts.
func (h *Handler) RecentPredictions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be between 1 and 500",
			})
			return
		}
		limit = n
	}

	preds, err := h.predictor.RecentPredictions(ctx, limit)
	if err != nil {
		slog.Error("failed to list predictions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list predictions",
		})
		return
	}
	if preds == nil {
		preds = []*domain.Prediction{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": preds,
		"count":       len(preds),
	})
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "store not available",
		})
		return
	}

	tx, err := h.store.GetTransaction(ctx, txID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ModelInfo returns the live model summary.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.predictor.ModelInfo(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "model not trained yet",
		})
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// TrainModel requests an immediate training cycle.
func (h *Handler) TrainModel(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "training scheduler not available",
		})
		return
	}

	h.scheduler.TrainNow()
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": string(h.scheduler.State()),
	})
}

// ListRules returns all rules loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loaded,
		"count": len(loaded),
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.LoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRule compiles and hot-loads a new rule into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if rule.ID == "" || rule.Name == "" || rule.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	if err := h.engine.LoadRule(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	slog.Info("rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule": &rule,
	})
}

// ReloadRules resets the engine to the built-in rule set.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	builtin := rules.BuiltinRules()
	if err := h.engine.ReloadRules(builtin); err != nil {
		slog.Error("failed to reload rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded", "count", len(builtin))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(builtin),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready reports whether a trained model is live and accepting traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.predictor.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
