package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

// Log appends finalized pipeline runs to a file, one JSON object per line
type Log struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex
}

// NewLog creates a new audit log writing to path
func NewLog(path string, logger *zap.Logger) (*Log, error) {
	if path == "" {
		return nil, fmt.Errorf("audit log path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}
	return &Log{path: path, logger: logger}, nil
}

// Record appends run to the log
func (l *Log) Record(run *types.PipelineRun) error {
	line, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode pipeline run: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}

	l.logger.Debug("recorded pipeline run", zap.String("run_id", run.ID), zap.String("path", l.path))
	return nil
}
