// Package artifact serializes trained model snapshots to disk so a
// restarted service can score before its first retraining cycle.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/finshield/finshield/internal/model"
)

// Save writes the snapshot bundle as JSON. The write goes through a
// temp file in the same directory and a rename, so a crash mid-write
// never leaves a truncated bundle behind.
func Save(path string, snap *model.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

// Load reads a snapshot bundle written by Save. os.ErrNotExist passes
// through so callers can treat a missing artifact as a cold start.
func Load(path string) (*model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return &snap, nil
}
