// Package trainer runs the background retraining scheduler. It rebuilds
// the model ensemble from the recent transaction window and publishes
// each new snapshot atomically, so in-flight predictions keep the
// version they started with.
package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/finshield/finshield/internal/artifact"
	"github.com/finshield/finshield/internal/domain"
	"github.com/finshield/finshield/internal/model"
)

// State is the scheduler's observable lifecycle state.
type State string

const (
	StateIdle     State = "IDLE"
	StateTraining State = "TRAINING"
)

// ModelInfoKey is the cache key carrying the live model summary.
const ModelInfoKey = "ml_model_info"

// Scheduler retrains the ensemble on a fixed cadence.
type Scheduler struct {
	store     domain.Store
	cache     domain.Cache
	snapshots *model.SnapshotStore
	cfg       domain.TrainingConfig
	logger    *slog.Logger

	mu          sync.Mutex
	state       State
	version     int64
	lastTrained time.Time

	wake chan struct{}
	done chan struct{}
}

// NewScheduler creates an idle scheduler. Run starts the loop.
func NewScheduler(store domain.Store, cache domain.Cache, snapshots *model.SnapshotStore, cfg domain.TrainingConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:     store,
		cache:     cache,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger.With("component", "trainer"),
		state:     StateIdle,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Bootstrap restores a previously saved model before the loop starts:
// the artifact bundle becomes the live snapshot and the version counter
// resumes from the last recorded training run. A missing artifact is a
// cold start, not an error.
func (s *Scheduler) Bootstrap(ctx context.Context) error {
	if run, err := s.store.LatestTrainingRun(ctx); err == nil && run != nil {
		if n, ok := parseVersion(run.Version); ok {
			s.mu.Lock()
			s.version = n
			s.lastTrained = run.TrainedAt
			s.mu.Unlock()
		}
	}

	if s.cfg.ArtifactPath == "" {
		return nil
	}
	snap, err := artifact.Load(s.cfg.ArtifactPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("no model artifact found, starting cold",
				"path", s.cfg.ArtifactPath)
			return nil
		}
		return fmt.Errorf("load artifact: %w", err)
	}

	s.snapshots.Publish(snap)
	s.logger.Info("model restored from artifact",
		"version", snap.Version,
		"samples", snap.Samples,
		"trained_at", snap.TrainedAt)
	return nil
}

// Run drives the retraining loop until ctx is cancelled. It wakes on
// the check cadence and retrains only when the interval has elapsed
// since the last successful cycle.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.CheckEvery)
	defer ticker.Stop()

	s.logger.Info("training scheduler started",
		"interval", s.cfg.Interval,
		"check_every", s.cfg.CheckEvery,
		"window_limit", s.cfg.WindowLimit,
		"min_samples", s.cfg.MinSamples)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("training scheduler stopped")
			return
		case <-s.wake:
			s.runCycle(ctx, true)
		case <-ticker.C:
			s.runCycle(ctx, false)
		}
	}
}

// TrainNow requests an immediate cycle regardless of the interval.
// Non-blocking; a request while one is already pending coalesces.
func (s *Scheduler) TrainNow() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) runCycle(ctx context.Context, forced bool) {
	s.mu.Lock()
	if s.state == StateTraining {
		s.mu.Unlock()
		return
	}
	if !forced && !s.lastTrained.IsZero() && time.Since(s.lastTrained) < s.cfg.Interval {
		s.mu.Unlock()
		return
	}
	s.state = StateTraining
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
	}()

	if err := s.train(ctx); err != nil {
		s.logger.Error("training cycle failed", "error", err)
	}
}

func (s *Scheduler) train(ctx context.Context) error {
	start := time.Now()

	window, err := s.store.FetchRecent(ctx, s.cfg.WindowLimit)
	if err != nil {
		return fmt.Errorf("fetch training window: %w", err)
	}
	if len(window) < s.cfg.MinSamples {
		s.logger.Info("skipping training cycle, window too small",
			"samples", len(window),
			"min_samples", s.cfg.MinSamples)
		return nil
	}

	snap, err := model.Train(window)
	if err != nil {
		return fmt.Errorf("train ensemble: %w", err)
	}

	s.mu.Lock()
	s.version++
	snap.Version = fmt.Sprintf("v%d", s.version)
	s.lastTrained = time.Now()
	s.mu.Unlock()

	// The swap is the commit point: everything after is best-effort
	// bookkeeping and never rolls the model back.
	s.snapshots.Publish(snap)

	run := &domain.TrainingRun{
		Version:   snap.Version,
		Samples:   snap.Samples,
		TrainedAt: snap.TrainedAt,
	}
	if err := s.store.SaveTrainingRun(ctx, run); err != nil {
		s.logger.Error("failed to record training run",
			"version", snap.Version, "error", err)
	}

	if s.cfg.ArtifactPath != "" {
		if err := artifact.Save(s.cfg.ArtifactPath, snap); err != nil {
			s.logger.Error("failed to save model artifact",
				"path", s.cfg.ArtifactPath, "error", err)
		}
	}

	s.publishModelInfo(ctx, snap)

	s.logger.Info("training cycle completed",
		"version", snap.Version,
		"samples", snap.Samples,
		"lstm_trained", snap.LSTM != nil,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *Scheduler) publishModelInfo(ctx context.Context, snap *model.Snapshot) {
	if s.cache == nil {
		return
	}
	info := domain.ModelInfo{
		LastTrained:     snap.TrainedAt.UTC().Format(time.RFC3339),
		TrainingSamples: snap.Samples,
		ModelVersion:    snap.Version,
	}
	payload, _ := json.Marshal(info)
	if err := s.cache.Set(ctx, ModelInfoKey, payload, time.Hour); err != nil {
		s.logger.Warn("failed to cache model info", "error", err)
	}
}

func parseVersion(v string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimPrefix(v, "v"), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
