package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krackn88/hybrid-dev-beta/internal/github"
	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

// DefaultStepTimeout bounds each step when Options leaves it unset
const DefaultStepTimeout = 10 * time.Minute

// Options tune a pipeline run
type Options struct {
	StepTimeout   time.Duration
	SkipBuild     bool
	CommitMessage string
}

// Pipeline runs the ordered update steps against one repository
type Pipeline struct {
	target types.RepoTarget
	steps  Steps
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// New creates a new Pipeline
func New(target types.RepoTarget, steps Steps, opts Options, logger *zap.Logger) *Pipeline {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	return &Pipeline{
		target: target,
		steps:  steps,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// stepFunc does the work of one step and returns its status and a short detail
type stepFunc func(ctx context.Context) (types.StepStatus, string, error)

// Run executes sync, extension, dependencies, docs and commit in order. A failed sync ends
// the run with OutcomeFailure; failures in later steps are recorded and the
// remaining steps still run. Run never returns an error: every failure is
// captured in the returned PipelineRun.
func (p *Pipeline) Run(ctx context.Context, trigger types.Trigger) *types.PipelineRun {
	run := &types.PipelineRun{
		ID:         uuid.NewString(),
		Repository: p.target.FullName(),
		StartedAt:  p.now(),
		Trigger:    trigger,
	}

	logger := p.logger.With(
		zap.String("run_id", run.ID),
		zap.String("trigger", string(trigger.Kind)),
	)
	logger.Info("starting pipeline run",
		zap.String("repo", p.target.String()),
		zap.String("sha", trigger.CommitSHA()),
	)

	sync := p.runStep(ctx, logger, run, StepSync, func(ctx context.Context) (types.StepStatus, string, error) {
		sha, err := p.steps.Syncer.Sync(ctx, p.target)
		if err != nil {
			return types.StepFailed, "", err
		}
		run.SyncedSHA = sha
		return types.StepSucceeded, "at " + github.ShortSHA(sha), nil
	})

	if sync.Succeeded() {
		p.runStep(ctx, logger, run, StepExtension, p.extension)
		if p.steps.Installer != nil {
			p.runStep(ctx, logger, run, StepDependencies, p.dependencies)
		}
		p.runStep(ctx, logger, run, StepDocs, p.docs)
		p.runStep(ctx, logger, run, StepCommit, func(ctx context.Context) (types.StepStatus, string, error) {
			return p.commit(ctx, run)
		})
	}

	run.Outcome = outcome(run.Steps)
	run.FinishedAt = p.now()

	logger.Info("finished pipeline run",
		zap.String("outcome", string(run.Outcome)),
		zap.Duration("duration", run.FinishedAt.Sub(run.StartedAt)),
	)

	return run
}

func (p *Pipeline) runStep(ctx context.Context, logger *zap.Logger, run *types.PipelineRun, name string, fn stepFunc) types.StepResult {
	stepCtx, cancel := context.WithTimeout(ctx, p.opts.StepTimeout)
	defer cancel()

	start := p.now()
	status, detail, err := fn(stepCtx)
	result := types.StepResult{
		Name:     name,
		Status:   status,
		Detail:   detail,
		Duration: p.now().Sub(start),
	}

	fields := []zap.Field{
		zap.String("step", name),
		zap.String("status", string(status)),
		zap.Duration("duration", result.Duration),
	}
	if detail != "" {
		fields = append(fields, zap.String("detail", detail))
	}

	if err != nil {
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("step timed out after %s: %w", p.opts.StepTimeout, err)
		}
		result.Status = types.StepFailed
		result.Error = err.Error()
		logger.Error("pipeline step finished", append(fields, zap.Error(err))...)
	} else {
		logger.Info("pipeline step finished", fields...)
	}

	run.Steps = append(run.Steps, result)
	return result
}

func (p *Pipeline) extension(ctx context.Context) (types.StepStatus, string, error) {
	if p.opts.SkipBuild {
		return types.StepSkipped, "build disabled", nil
	}

	written, err := p.steps.Renderer.Render()
	if err != nil {
		return types.StepFailed, "", err
	}
	detail := fmt.Sprintf("wrote %d files", len(written))

	ran, err := p.steps.Builder.Build(ctx)
	if err != nil {
		return types.StepFailed, detail, err
	}
	if !ran {
		detail += ", no package.json"
	}
	return types.StepSucceeded, detail, nil
}

func (p *Pipeline) dependencies(ctx context.Context) (types.StepStatus, string, error) {
	ran, err := p.steps.Installer.Build(ctx)
	if err != nil {
		return types.StepFailed, "", err
	}
	if !ran {
		return types.StepSkipped, "no requirements.txt", nil
	}
	return types.StepSucceeded, "installed", nil
}

func (p *Pipeline) docs(_ context.Context) (types.StepStatus, string, error) {
	changed, err := p.steps.Docs.Update()
	if err != nil {
		return types.StepFailed, "", err
	}
	if len(changed) == 0 {
		return types.StepSucceeded, "up to date", nil
	}
	return types.StepSucceeded, "updated " + strings.Join(changed, ", "), nil
}

func (p *Pipeline) commit(ctx context.Context, run *types.PipelineRun) (types.StepStatus, string, error) {
	message := github.CommitMessage(run.Trigger.Kind, p.opts.CommitMessage, p.now())

	result, err := p.steps.Committer.CommitAndPush(ctx, p.target, message)
	if err != nil && result.Committed {
		return types.StepFailed, "committed " + github.ShortSHA(result.CommitSHA) + " locally", err
	}
	if err != nil {
		return types.StepFailed, "", err
	}
	if !result.Committed {
		return types.StepNoChanges, "nothing to commit", nil
	}
	run.PushedSHA = result.CommitSHA
	return types.StepSucceeded, "pushed " + github.ShortSHA(result.CommitSHA), nil
}

// outcome is Failure when sync failed, PartialFailure when any later step
// failed and Success otherwise.
func outcome(steps []types.StepResult) types.Outcome {
	if len(steps) == 0 || steps[0].Status == types.StepFailed {
		return types.OutcomeFailure
	}
	for _, step := range steps[1:] {
		if !step.Succeeded() {
			return types.OutcomePartialFailure
		}
	}
	return types.OutcomeSuccess
}
