package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

func readRuns(t *testing.T, path string) []types.PipelineRun {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var runs []types.PipelineRun
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var run types.PipelineRun
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &run))
		runs = append(runs, run)
	}
	require.NoError(t, scanner.Err())
	return runs
}

// TestLog_AppendsOneLinePerRun verifies runs are appended in order across reopen
func TestLog_AppendsOneLinePerRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "runs.jsonl")

	l, err := NewLog(path, zap.NewNop())
	require.NoError(t, err)

	first := &types.PipelineRun{
		ID:      "run-1",
		Trigger: types.ChangeTrigger(types.ChangeEvent{CommitSHA: "aaa111", Source: types.SourcePoll}),
		Steps: []types.StepResult{
			{Name: "sync", Status: types.StepSucceeded, Duration: time.Second},
		},
		Outcome: types.OutcomeSuccess,
	}
	require.NoError(t, l.Record(first))

	l, err = NewLog(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, l.Record(&types.PipelineRun{
		ID:      "run-2",
		Trigger: types.Trigger{Kind: types.TriggerTimer},
		Outcome: types.OutcomeFailure,
	}))

	runs := readRuns(t, path)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "aaa111", runs[0].Trigger.CommitSHA())
	assert.Equal(t, types.StepSucceeded, runs[0].Steps[0].Status)
	assert.Equal(t, "run-2", runs[1].ID)
	assert.Equal(t, types.OutcomeFailure, runs[1].Outcome)
}

// TestLog_ConcurrentRecords verifies concurrent writers never interleave lines
func TestLog_ConcurrentRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	l, err := NewLog(path, zap.NewNop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Record(&types.PipelineRun{ID: "run", Outcome: types.OutcomeSuccess}))
		}()
	}
	wg.Wait()

	assert.Len(t, readRuns(t, path), 20)
}

// TestNewLog_EmptyPath verifies an empty path is refused
func TestNewLog_EmptyPath(t *testing.T) {
	_, err := NewLog("", zap.NewNop())
	assert.Error(t, err)
}
