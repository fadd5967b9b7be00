package source

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

// maxBackoffFactor caps the poll delay after repeated failures at this many intervals
const maxBackoffFactor = 8

// TransportError reports a failed read of the remote branch head. It is
// never fatal; the next tick tries again.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to read remote branch head: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HeadReader reads the SHA at the tip of a remote branch
type HeadReader interface {
	BranchHead(ctx context.Context, owner, repo, branch string) (string, error)
}

// PollingSource polls the remote branch head and emits a change event
// whenever it differs from the scheduler's watermark.
type PollingSource struct {
	client    HeadReader
	target    types.RepoTarget
	interval  time.Duration
	watermark func() string
	logger    *zap.Logger
	now       func() time.Time
	backoff   *backoff.ExponentialBackOff
}

// NewPollingSource creates a new poller. watermark returns the last fully
// processed SHA, or "" when none is known.
func NewPollingSource(client HeadReader, target types.RepoTarget, interval time.Duration, watermark func() string, logger *zap.Logger) *PollingSource {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = interval * maxBackoffFactor
	b.MaxElapsedTime = 0
	b.Reset()

	return &PollingSource{
		client:    client,
		target:    target,
		interval:  interval,
		watermark: watermark,
		logger:    logger,
		now:       time.Now,
		backoff:   b,
	}
}

// Poll reads the remote head once. It returns a nil event when the head
// equals the watermark, and a *TransportError when the read fails.
func (p *PollingSource) Poll(ctx context.Context) (*types.ChangeEvent, error) {
	sha, err := p.client.BranchHead(ctx, p.target.Owner, p.target.Name, p.target.Branch)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if sha == p.watermark() {
		return nil, nil
	}

	return &types.ChangeEvent{
		CommitSHA:  sha,
		DetectedAt: p.now(),
		Source:     types.SourcePoll,
	}, nil
}

// Start polls immediately and then once per interval until ctx is done.
// Consecutive failures stretch the delay up to a cap; a success restores it.
func (p *PollingSource) Start(ctx context.Context, out chan<- types.ChangeEvent) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stopping poller")
			return
		case <-timer.C:
		}

		event, err := p.Poll(ctx)
		timer.Reset(p.nextDelay(err))

		if err != nil {
			p.logger.Error("poll failed",
				zap.String("repo", p.target.String()),
				zap.Error(err),
			)
			continue
		}
		if event == nil {
			continue
		}

		select {
		case out <- *event:
			p.logger.Info("detected remote change",
				zap.String("repo", p.target.String()),
				zap.String("sha", event.CommitSHA),
			)
		case <-ctx.Done():
			return
		}
	}
}

func (p *PollingSource) nextDelay(err error) time.Duration {
	if err == nil {
		p.backoff.Reset()
		return p.interval
	}
	return p.backoff.NextBackOff()
}
