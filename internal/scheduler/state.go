package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

// checkpoint is the on-disk form of the watermark
type checkpoint struct {
	LastCommitSHA       string     `json:"last_commit_sha"`
	LastSuccessfulRunAt *time.Time `json:"last_successful_run_at,omitempty"`
}

// loadState reads a checkpoint. A missing file is an empty state.
func loadState(path string) (types.SchedulerState, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return types.SchedulerState{}, nil
	}
	if err != nil {
		return types.SchedulerState{}, fmt.Errorf("failed to read state file: %w", err)
	}

	var cp checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return types.SchedulerState{}, fmt.Errorf("failed to parse state file: %w", err)
	}

	return types.SchedulerState{
		LastCommitSHA:       cp.LastCommitSHA,
		LastSuccessfulRunAt: cp.LastSuccessfulRunAt,
	}, nil
}

// saveState replaces the checkpoint atomically
func saveState(path string, state types.SchedulerState) error {
	raw, err := json.MarshalIndent(checkpoint{
		LastCommitSHA:       state.LastCommitSHA,
		LastSuccessfulRunAt: state.LastSuccessfulRunAt,
	}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
