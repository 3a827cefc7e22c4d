package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/finshield/finshield/internal/blend"
	"github.com/finshield/finshield/internal/domain"
	"github.com/finshield/finshield/internal/model"
)

// trainedSnapshots builds a snapshot store trained predominantly on
// fraudulent high-amount foreign-location traffic, with a smaller
// normal low-amount cluster.
func trainedSnapshots(t *testing.T) *model.SnapshotStore {
	t.Helper()

	var txs []*domain.Transaction
	for i := 0; i < 70; i++ {
		txs = append(txs, &domain.Transaction{
			ID:          fmt.Sprintf("fraud-%d", i),
			Amount:      4500 + float64(i*50),
			Merchant:    "Suspicious Merchant",
			Location:    "Nigeria",
			UserID:      fmt.Sprintf("user_%d", i%4),
			DeviceInfo:  "Chrome Browser",
			IPAddress:   "10.0.0.1",
			Timestamp:   "2024-03-15T03:00:00Z",
			RiskProfile: domain.RiskProfileFraudulent,
		})
	}
	for i := 0; i < 30; i++ {
		txs = append(txs, &domain.Transaction{
			ID:          fmt.Sprintf("normal-%d", i),
			Amount:      8 + float64(i%20),
			Merchant:    "Starbucks",
			Location:    "Chicago",
			UserID:      fmt.Sprintf("user_%d", 50+i%4),
			DeviceInfo:  "iPhone",
			IPAddress:   "192.168.1.5",
			Timestamp:   "2024-03-15T09:00:00Z",
			RiskProfile: domain.RiskProfileNormal,
		})
	}

	snap, err := model.Train(txs)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	snap.Version = "v1"

	store := model.NewSnapshotStore()
	store.Publish(snap)
	return store
}

type stubText struct {
	scores domain.RiskScores
	err    error
}

func (s stubText) Classify(ctx context.Context, text string) (domain.RiskScores, error) {
	if s.err != nil {
		return domain.UniformScores(), s.err
	}
	return s.scores, nil
}

type stubRules struct {
	score float64
	err   error
}

func (s stubRules) Score(ctx context.Context, tx *domain.Transaction) (float64, error) {
	return s.score, s.err
}

type stubAlert struct {
	mu    sync.Mutex
	calls []string
	fired chan struct{}
}

func newStubAlert() *stubAlert {
	return &stubAlert{fired: make(chan struct{}, 8)}
}

func (s *stubAlert) Alert(ctx context.Context, tx *domain.Transaction, p *domain.Prediction) error {
	s.mu.Lock()
	s.calls = append(s.calls, p.TransactionID)
	s.mu.Unlock()
	s.fired <- struct{}{}
	return nil
}

type recordingStore struct {
	domain.Store

	mu          sync.Mutex
	predictions map[string]*domain.Prediction
}

func newRecordingStore() *recordingStore {
	return &recordingStore{predictions: map[string]*domain.Prediction{}}
}

func (r *recordingStore) SavePrediction(ctx context.Context, p *domain.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predictions[p.TransactionID] = p
	return nil
}

func (r *recordingStore) GetPrediction(ctx context.Context, txID string) (*domain.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.predictions[txID]; ok {
		return p, nil
	}
	return nil, errors.New("not found")
}

func (r *recordingStore) RecentPredictions(ctx context.Context, limit int) ([]*domain.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Prediction
	for _, p := range r.predictions {
		out = append(out, p)
	}
	return out, nil
}

type recordingCache struct {
	domain.Cache

	mu          sync.Mutex
	predictions map[string]*domain.Prediction
	ttl         time.Duration
}

func newRecordingCache() *recordingCache {
	return &recordingCache{predictions: map[string]*domain.Prediction{}}
}

func (r *recordingCache) SetPrediction(ctx context.Context, p *domain.Prediction, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predictions[p.TransactionID] = p
	r.ttl = ttl
	return nil
}

func (r *recordingCache) GetPrediction(ctx context.Context, txID string) (*domain.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.predictions[txID], nil
}

func highRiskTx() *domain.Transaction {
	return &domain.Transaction{
		ID:         "tx-high",
		Amount:     5000,
		Merchant:   "Suspicious Merchant",
		Location:   "Nigeria",
		UserID:     "user_1",
		DeviceInfo: "Chrome Browser",
		IPAddress:  "10.0.0.1",
		Timestamp:  "2024-03-15T03:30:00Z",
	}
}

func lowRiskTx() *domain.Transaction {
	return &domain.Transaction{
		ID:         "tx-low",
		Amount:     12,
		Merchant:   "Starbucks",
		Location:   "Chicago",
		UserID:     "user_51",
		DeviceInfo: "iPhone",
		IPAddress:  "192.168.1.5",
		Timestamp:  "2024-03-15T09:15:00Z",
	}
}

func assertDistribution(t *testing.T, s domain.RiskScores) {
	t.Helper()
	sum := s.Normal + s.Suspicious + s.Fraudulent
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("scores sum to %v, want 1", sum)
	}
	for name, v := range map[string]float64{
		"normal": s.Normal, "suspicious": s.Suspicious, "fraudulent": s.Fraudulent,
	} {
		if v < 0 || v > 1 {
			t.Errorf("%s = %v, out of [0,1]", name, v)
		}
	}
}

func TestPredictNotTrained(t *testing.T) {
	svc := NewService(model.NewSnapshotStore(), nil, Options{})
	_, err := svc.Predict(context.Background(), highRiskTx())
	if !errors.Is(err, domain.ErrNotTrained) {
		t.Errorf("err = %v, want ErrNotTrained", err)
	}
}

func TestPredictHighRiskScenario(t *testing.T) {
	snapshots := trainedSnapshots(t)
	store := newRecordingStore()
	cache := newRecordingCache()
	alerts := newStubAlert()

	svc := NewService(snapshots, blend.NewBlender(), Options{
		Store:          store,
		Cache:          cache,
		TextClassifier: stubText{scores: domain.RiskScores{Normal: 0.03, Suspicious: 0.07, Fraudulent: 0.9}},
		RuleScorer:     stubRules{score: 0.95},
		AlertSink:      alerts,
	})

	p, err := svc.Predict(context.Background(), highRiskTx())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	assertDistribution(t, p.RiskScores)
	if p.RiskLevel != domain.RiskLevelHigh {
		t.Errorf("risk level = %s (fraud=%.3f), want HIGH", p.RiskLevel, p.RiskScores.Fraudulent)
	}
	if !p.ShouldBlock {
		t.Error("high-risk transaction should block")
	}
	if p.ModelVersion != "v1" {
		t.Errorf("model version = %s, want v1", p.ModelVersion)
	}

	// Verdict recorded in both cache and store.
	if cache.predictions["tx-high"] == nil {
		t.Error("prediction not cached")
	}
	if cache.ttl != domain.DefaultPredictionTTL {
		t.Errorf("cache ttl = %v, want %v", cache.ttl, domain.DefaultPredictionTTL)
	}
	if store.predictions["tx-high"] == nil {
		t.Error("prediction not persisted")
	}

	// Blocking fires the alert collaborator.
	select {
	case <-alerts.fired:
	case <-time.After(5 * time.Second):
		t.Error("alert not delivered")
	}
}

func TestPredictLowRiskScenario(t *testing.T) {
	snapshots := trainedSnapshots(t)
	alerts := newStubAlert()

	svc := NewService(snapshots, blend.NewBlender(), Options{
		TextClassifier: stubText{scores: domain.RiskScores{Normal: 0.9, Suspicious: 0.07, Fraudulent: 0.03}},
		RuleScorer:     stubRules{score: 0.05},
		AlertSink:      alerts,
	})

	p, err := svc.Predict(context.Background(), lowRiskTx())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	assertDistribution(t, p.RiskScores)
	if p.RiskLevel != domain.RiskLevelLow {
		t.Errorf("risk level = %s (scores=%+v), want LOW", p.RiskLevel, p.RiskScores)
	}
	if p.ShouldBlock {
		t.Error("low-risk transaction should not block")
	}

	select {
	case <-alerts.fired:
		t.Error("alert fired for non-blocking prediction")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPredictCollaboratorsDown(t *testing.T) {
	snapshots := trainedSnapshots(t)

	svc := NewService(snapshots, blend.NewBlender(), Options{
		TextClassifier: stubText{err: errors.New("timeout")},
		RuleScorer:     stubRules{err: errors.New("timeout")},
	})

	tx := highRiskTx()
	p, err := svc.Predict(context.Background(), tx)
	if err != nil {
		t.Fatalf("Predict must not fail when collaborators are down: %v", err)
	}

	assertDistribution(t, p.RiskScores)
	if p.Components.TextClassifier != domain.UniformScores() {
		t.Errorf("text component = %+v, want uniform default", p.Components.TextClassifier)
	}
	if p.Components.RuleScore < 0 || p.Components.RuleScore >= 1 {
		t.Errorf("rule fallback = %v, want [0, 1)", p.Components.RuleScore)
	}
}

func TestPredictComponentsRecorded(t *testing.T) {
	snapshots := trainedSnapshots(t)
	svc := NewService(snapshots, blend.NewBlender(), Options{
		TextClassifier: stubText{scores: domain.UniformScores()},
		RuleScorer:     stubRules{score: 0.5},
	})

	p, err := svc.Predict(context.Background(), lowRiskTx())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	assertDistribution(t, p.Components.Forest)
	assertDistribution(t, p.Components.MLP)
	assertDistribution(t, p.Components.LSTM)
	if p.Components.RuleScore != 0.5 {
		t.Errorf("rule component = %v, want 0.5", p.Components.RuleScore)
	}
	if p.Components.GraphRisk < 0 || p.Components.GraphRisk > 1 {
		t.Errorf("graph risk = %v, out of [0,1]", p.Components.GraphRisk)
	}
}

func TestGetPredictionPrefersCache(t *testing.T) {
	cache := newRecordingCache()
	store := newRecordingStore()
	cached := &domain.Prediction{TransactionID: "tx-9", ModelVersion: "cached"}
	cache.predictions["tx-9"] = cached
	store.predictions["tx-9"] = &domain.Prediction{TransactionID: "tx-9", ModelVersion: "stored"}

	svc := NewService(model.NewSnapshotStore(), nil, Options{Store: store, Cache: cache})
	p, err := svc.GetPrediction(context.Background(), "tx-9")
	if err != nil {
		t.Fatalf("GetPrediction failed: %v", err)
	}
	if p.ModelVersion != "cached" {
		t.Errorf("got %s copy, want cached", p.ModelVersion)
	}
}

func TestModelInfo(t *testing.T) {
	svc := NewService(model.NewSnapshotStore(), nil, Options{})
	if _, err := svc.ModelInfo(context.Background()); !errors.Is(err, domain.ErrNotTrained) {
		t.Errorf("err = %v, want ErrNotTrained", err)
	}
	if svc.Ready() {
		t.Error("service should not be ready without a snapshot")
	}

	snapshots := trainedSnapshots(t)
	svc = NewService(snapshots, nil, Options{})
	info, err := svc.ModelInfo(context.Background())
	if err != nil {
		t.Fatalf("ModelInfo failed: %v", err)
	}
	if info.ModelVersion != "v1" || info.TrainingSamples != 100 {
		t.Errorf("info = %+v", info)
	}
	if !svc.Ready() {
		t.Error("service should be ready with a live snapshot")
	}
}
