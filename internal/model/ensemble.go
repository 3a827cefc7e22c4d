package model

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/finshield/finshield/internal/domain"
	"github.com/finshield/finshield/internal/feature"
	"github.com/finshield/finshield/internal/graph"
)

// NumClasses is the size of the risk distribution: normal, suspicious,
// fraudulent.
const NumClasses = 3

// trainSeed fixes member initialization and sampling so a training run
// over the same window is reproducible.
const trainSeed = 42

// Snapshot is one immutable, fully fitted bundle: the normalizer, the
// four ensemble members, and the relationship graph, tagged with a
// version and trained-at timestamp. Snapshots are never mutated after
// publication; concurrent readers share them freely.
type Snapshot struct {
	Scaler    *feature.Scaler  `json:"scaler"`
	Forest    *Forest          `json:"forest"`
	Isolation *IsolationForest `json:"isolation"`
	MLP       *MLP             `json:"mlp"`
	LSTM      *LSTM            `json:"lstm,omitempty"`
	Graph     *graph.Graph     `json:"graph"`

	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Samples   int       `json:"samples"`
}

// Train fits a new snapshot from labeled-by-proxy transactions. Every
// transaction must carry a risk_profile; the normalizer is fit first and
// all classifiers train on the same normalized features. The sequence
// classifier is skipped when the window holds MinLSTMSamples or fewer.
// A member failure fails the whole attempt; the caller keeps the prior
// snapshot live.
func Train(txs []*domain.Transaction) (*Snapshot, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("train: no transactions")
	}

	x := feature.ExtractAll(txs)
	y := make([]int, len(txs))
	for i, tx := range txs {
		y[i] = tx.RiskProfile.Label()
	}

	scaler, err := feature.FitScaler(x)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	xs := scaler.TransformAll(x)

	rng := rand.New(rand.NewSource(trainSeed))

	forest, err := FitForest(xs, y, NumClasses, rng)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	iso, err := FitIsolationForest(xs, rng)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	mlp, err := FitMLP(xs, y, NumClasses, rng)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	var lstm *LSTM
	if len(xs) > MinLSTMSamples {
		lstm, err = FitLSTM(xs, y, NumClasses, rng)
		if err != nil {
			return nil, fmt.Errorf("train: %w", err)
		}
	}

	return &Snapshot{
		Scaler:    scaler,
		Forest:    forest,
		Isolation: iso,
		MLP:       mlp,
		LSTM:      lstm,
		Graph:     graph.Build(txs),
		TrainedAt: time.Now().UTC(),
		Samples:   len(txs),
	}, nil
}

// MemberOutputs holds the raw per-member predictions for one transaction.
type MemberOutputs struct {
	Forest  domain.RiskScores
	MLP     domain.RiskScores
	LSTM    domain.RiskScores
	Anomaly bool
}

// Predict runs all members over one raw feature vector. Member errors
// degrade to the uniform default vector rather than propagating.
func (s *Snapshot) Predict(raw []float64) MemberOutputs {
	normalized := s.Scaler.Transform(raw)

	out := MemberOutputs{
		Forest: toScores(s.Forest.PredictProba(normalized)),
		MLP:    toScores(s.MLP.PredictProba(normalized)),
		LSTM:   domain.UniformScores(),
	}
	if s.LSTM != nil {
		out.LSTM = toScores(s.LSTM.PredictProba(normalized))
	}
	out.Anomaly = s.Isolation.IsAnomaly(normalized)
	return out
}

// toScores converts a probability slice to RiskScores, falling back to
// the uniform default on malformed output.
func toScores(probs []float64) domain.RiskScores {
	if len(probs) != NumClasses {
		return domain.UniformScores()
	}
	for _, p := range probs {
		if p != p { // NaN guard
			return domain.UniformScores()
		}
	}
	return domain.ScoresFromVector([3]float64{probs[0], probs[1], probs[2]})
}

// SnapshotStore publishes the live snapshot with a single atomic pointer
// swap. Readers pin one snapshot for the duration of a request; no
// locking is needed on the prediction hot path.
type SnapshotStore struct {
	ptr atomic.Pointer[Snapshot]
}

// NewSnapshotStore returns an empty store (no snapshot published).
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Live returns the current snapshot, or nil if none has been published.
func (s *SnapshotStore) Live() *Snapshot {
	return s.ptr.Load()
}

// Publish atomically replaces the live snapshot. In-flight readers keep
// the snapshot they already hold; retired snapshots are reclaimed by the
// garbage collector once the last reference drops.
func (s *SnapshotStore) Publish(snap *Snapshot) {
	s.ptr.Store(snap)
}
