// Package state persists the latest readings across restarts so the
// agent can come back up with stale-but-present data instead of gaps.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
)

// Snapshot is the on-disk format: the readings map flattened to a
// sorted slice plus the save time.
type Snapshot struct {
	SavedAt  time.Time         `json:"saved_at"`
	Readings []metrics.Reading `json:"readings"`
}

// Save writes the readings atomically to path via temp-file-then-rename.
// The parent directory is created if missing.
func Save(path string, readings map[string]metrics.Reading) error {
	snap := Snapshot{
		SavedAt:  time.Now().UTC(),
		Readings: make([]metrics.Reading, 0, len(readings)),
	}
	for _, r := range readings {
		snap.Readings = append(snap.Readings, r)
	}
	sort.Slice(snap.Readings, func(i, j int) bool {
		return snap.Readings[i].SourceID < snap.Readings[j].SourceID
	})

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("state: create directory %s: %w", dir, err)
	}
	if err := atomicWrite(path, data, dir); err != nil {
		return fmt.Errorf("state: write snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot from path. A missing file is not an error; it
// returns an empty snapshot. A corrupt file is an error so the caller
// can decide whether to start cold.
func Load(path string) (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return snap, nil
		}
		return snap, fmt.Errorf("state: read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("state: decode snapshot: %w", err)
	}
	return snap, nil
}

// atomicWrite writes data to path via a temporary file and rename.
func atomicWrite(path string, data []byte, tmpDir string) error {
	tmp, err := os.CreateTemp(tmpDir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	success = true
	return nil
}
