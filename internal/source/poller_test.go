package source

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

type fakeHead struct {
	mu    sync.Mutex
	sha   string
	err   error
	calls int
}

func (f *fakeHead) BranchHead(_ context.Context, owner, repo, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.sha, f.err
}

func (f *fakeHead) set(sha string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sha, f.err = sha, err
}

var pollTarget = types.RepoTarget{Owner: "octo", Name: "demo", Branch: "main"}

func staticWatermark(sha string) func() string {
	return func() string { return sha }
}

// TestPollingSource_FirstObservationIsChange verifies an empty watermark yields an event
func TestPollingSource_FirstObservationIsChange(t *testing.T) {
	head := &fakeHead{sha: "aaa111"}
	p := NewPollingSource(head, pollTarget, time.Minute, staticWatermark(""), zap.NewNop())

	event, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "aaa111", event.CommitSHA)
	assert.Equal(t, types.SourcePoll, event.Source)
}

// TestPollingSource_UnchangedHead verifies no event when the head equals the watermark
func TestPollingSource_UnchangedHead(t *testing.T) {
	head := &fakeHead{sha: "aaa111"}
	p := NewPollingSource(head, pollTarget, time.Minute, staticWatermark("aaa111"), zap.NewNop())

	event, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, event)
}

// TestPollingSource_TransportError verifies read failures are typed and not events
func TestPollingSource_TransportError(t *testing.T) {
	head := &fakeHead{err: errors.New("connection refused")}
	p := NewPollingSource(head, pollTarget, time.Minute, staticWatermark(""), zap.NewNop())

	event, err := p.Poll(context.Background())
	assert.Nil(t, event)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.ErrorContains(t, err, "connection refused")
}

// TestPollingSource_BackoffGrowsAndResets verifies failure delays grow, cap and reset
func TestPollingSource_BackoffGrowsAndResets(t *testing.T) {
	p := NewPollingSource(&fakeHead{}, pollTarget, time.Second, staticWatermark(""), zap.NewNop())
	failure := &TransportError{Err: errors.New("timeout")}

	assert.Equal(t, time.Second, p.nextDelay(failure))
	assert.Equal(t, 2*time.Second, p.nextDelay(failure))
	assert.Equal(t, 4*time.Second, p.nextDelay(failure))
	assert.Equal(t, 8*time.Second, p.nextDelay(failure))
	assert.Equal(t, 8*time.Second, p.nextDelay(failure))

	assert.Equal(t, time.Second, p.nextDelay(nil))
	assert.Equal(t, time.Second, p.nextDelay(failure))
}

// TestPollingSource_StartSurvivesFailures verifies the loop keeps polling after errors
func TestPollingSource_StartSurvivesFailures(t *testing.T) {
	head := &fakeHead{err: errors.New("unavailable")}
	p := NewPollingSource(head, pollTarget, 10*time.Millisecond, staticWatermark(""), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan types.ChangeEvent, 1)
	done := make(chan struct{})
	go func() {
		p.Start(ctx, out)
		close(done)
	}()

	require.Eventually(t, func() bool {
		head.mu.Lock()
		defer head.mu.Unlock()
		return head.calls >= 2
	}, time.Second, 5*time.Millisecond)

	head.set("bbb222", nil)

	select {
	case event := <-out:
		assert.Equal(t, "bbb222", event.CommitSHA)
	case <-time.After(2 * time.Second):
		t.Fatal("no change event after recovery")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
