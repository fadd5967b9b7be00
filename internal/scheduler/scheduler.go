package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/krackn88/hybrid-dev-beta/internal/github"
	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

// ErrBusy is returned by RunOnce when the scheduler is not idle
var ErrBusy = errors.New("a pipeline run is already in progress")

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context, trigger types.Trigger) *types.PipelineRun
}

// Recorder persists finished runs
type Recorder interface {
	Record(run *types.PipelineRun) error
}

// Options configure the scheduler
type Options struct {
	// Cooldown is how long the scheduler waits after a run before starting the next
	Cooldown time.Duration
	// AutoCommit enables the timer trigger
	AutoCommit         bool
	AutoCommitInterval time.Duration
	// TimerCheck is how often the timer trigger is evaluated. Defaults to a minute.
	TimerCheck time.Duration
	// StateFile checkpoints the watermark when set
	StateFile string
	Recorder  Recorder
}

// Status is a snapshot of the scheduler for reporting
type Status struct {
	types.SchedulerState
	Phase   types.Phase        `json:"phase"`
	Pending bool               `json:"pending"`
	LastRun *types.PipelineRun `json:"last_run,omitempty"`
}

// Scheduler serializes pipeline runs for one repository. Triggers that arrive
// while a run is in progress collapse into a single pending trigger.
type Scheduler struct {
	runner Runner
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	// runMu is held for the full duration of every pipeline run
	runMu sync.Mutex

	mu          sync.Mutex
	state       types.SchedulerState
	phase       types.Phase
	pending     *types.Trigger
	lastRun     *types.PipelineRun
	startedAt   time.Time
	lastTimerAt time.Time

	wake chan struct{}
}

// New creates a new Scheduler, restoring the watermark from the state file
// when one is configured.
func New(runner Runner, opts Options, logger *zap.Logger) (*Scheduler, error) {
	if opts.TimerCheck <= 0 {
		opts.TimerCheck = time.Minute
	}

	s := &Scheduler{
		runner: runner,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		phase:  types.PhaseIdle,
		wake:   make(chan struct{}, 1),
	}
	s.startedAt = s.now()

	if opts.StateFile != "" {
		state, err := loadState(opts.StateFile)
		if err != nil {
			return nil, err
		}
		s.state = state
		if state.LastCommitSHA != "" {
			logger.Info("restored watermark",
				zap.String("sha", state.LastCommitSHA),
				zap.String("state_file", opts.StateFile),
			)
		}
	}

	return s, nil
}

// Watermark returns the last fully processed commit SHA
func (s *Scheduler) Watermark() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LastCommitSHA
}

// State returns a copy of the scheduler state
func (s *Scheduler) State() types.SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Scheduler) stateLocked() types.SchedulerState {
	state := s.state
	if state.LastSuccessfulRunAt != nil {
		at := *state.LastSuccessfulRunAt
		state.LastSuccessfulRunAt = &at
	}
	return state
}

// Status returns the state, phase and last run
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		SchedulerState: s.stateLocked(),
		Phase:          s.phase,
		Pending:        s.pending != nil,
	}
	if s.lastRun != nil {
		run := *s.lastRun
		status.LastRun = &run
	}
	return status
}

// Submit queues a change event. It returns false when the event's SHA is
// already the watermark. Any earlier pending trigger is replaced.
func (s *Scheduler) Submit(event types.ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.CommitSHA == s.state.LastCommitSHA {
		s.logger.Debug("ignoring change already processed", zap.String("sha", event.CommitSHA))
		return false
	}

	if s.pending != nil {
		s.logger.Info("coalescing pending trigger",
			zap.String("replaced", string(s.pending.Kind)),
			zap.String("sha", event.CommitSHA),
		)
	}
	trigger := types.ChangeTrigger(event)
	s.pending = &trigger
	s.signal()
	return true
}

// TriggerManual queues a manual run unless a change run is already pending
func (s *Scheduler) TriggerManual() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueueLocked(types.TriggerManual)
}

func (s *Scheduler) enqueueLocked(kind types.TriggerKind) {
	if s.pending != nil && s.pending.Kind == types.TriggerChange {
		return
	}
	s.pending = &types.Trigger{Kind: kind}
	s.signal()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Consume submits every event received on events until ctx is done or the
// channel is closed.
func (s *Scheduler) Consume(ctx context.Context, events <-chan types.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.Submit(event)
		}
	}
}

// Run is the single worker loop. It returns when ctx is done; a run already
// in progress is allowed to finish first.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.TimerCheck)
	defer ticker.Stop()

	s.logger.Info("scheduler started",
		zap.Bool("auto_commit", s.opts.AutoCommit),
		zap.Duration("auto_commit_interval", s.opts.AutoCommitInterval),
		zap.Duration("cooldown", s.opts.Cooldown),
	)

	for {
		if trigger, ok := s.next(); ok {
			s.execute(ctx, trigger)
			if !s.cooldown(ctx) {
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("stopping scheduler")
			return nil
		case <-s.wake:
		case <-ticker.C:
			s.checkTimer()
		}
	}
}

// RunOnce runs the pipeline immediately in the caller's goroutine. It fails
// with ErrBusy rather than wait for a run in progress.
func (s *Scheduler) RunOnce(ctx context.Context, trigger types.Trigger) (*types.PipelineRun, error) {
	s.mu.Lock()
	if s.phase != types.PhaseIdle {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.phase = types.PhaseRunning
	s.state.RunInProgress = true
	s.mu.Unlock()

	run := s.execute(ctx, trigger)

	s.mu.Lock()
	s.phase = types.PhaseIdle
	if s.pending != nil {
		s.signal()
	}
	s.mu.Unlock()

	return run, nil
}

// next takes the pending trigger, dropping change triggers the watermark has
// already caught up with.
func (s *Scheduler) next() (types.Trigger, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.phase != types.PhaseIdle {
		return types.Trigger{}, false
	}
	trigger := *s.pending
	s.pending = nil

	if trigger.Kind == types.TriggerChange && trigger.CommitSHA() == s.state.LastCommitSHA {
		s.logger.Debug("dropping pending change already processed", zap.String("sha", trigger.CommitSHA()))
		return types.Trigger{}, false
	}

	s.phase = types.PhaseRunning
	s.state.RunInProgress = true
	return trigger, true
}

func (s *Scheduler) execute(ctx context.Context, trigger types.Trigger) *types.PipelineRun {
	s.runMu.Lock()
	run := s.runner.Run(context.WithoutCancel(ctx), trigger)
	s.runMu.Unlock()

	s.finish(run)

	if s.opts.Recorder != nil {
		if err := s.opts.Recorder.Record(run); err != nil {
			s.logger.Error("failed to record pipeline run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	return run
}

// finish applies a run's result. Only Success and PartialFailure advance the
// watermark, so a failed sync is retried on the next observation of the SHA.
func (s *Scheduler) finish(run *types.PipelineRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastRun = run
	s.state.RunInProgress = false

	if !run.Outcome.AdvancesWatermark() {
		s.logger.Warn("pipeline run failed, watermark unchanged",
			zap.String("run_id", run.ID),
			zap.String("watermark", s.state.LastCommitSHA),
		)
		return
	}

	sha := run.Trigger.CommitSHA()
	if sha == "" {
		sha = run.SyncedSHA
	}
	if sha != "" {
		s.state.LastCommitSHA = sha
	}
	finished := run.FinishedAt
	s.state.LastSuccessfulRunAt = &finished

	s.logger.Info("advanced watermark",
		zap.String("run_id", run.ID),
		zap.String("sha", github.ShortSHA(s.state.LastCommitSHA)),
		zap.String("outcome", string(run.Outcome)),
	)

	if s.opts.StateFile != "" {
		if err := saveState(s.opts.StateFile, s.state); err != nil {
			s.logger.Error("failed to write state file", zap.String("state_file", s.opts.StateFile), zap.Error(err))
		}
	}
}

// cooldown holds the Cooldown phase and reports false if ctx ended meanwhile
func (s *Scheduler) cooldown(ctx context.Context) bool {
	s.mu.Lock()
	s.phase = types.PhaseCooldown
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.phase = types.PhaseIdle
		s.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return false
	}
	if s.opts.Cooldown <= 0 {
		return true
	}

	timer := time.NewTimer(s.opts.Cooldown)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// checkTimer queues a timer run when idle with nothing pending and the
// auto-commit interval has elapsed since the last successful run, or since
// start or the previous timer trigger when that is later.
func (s *Scheduler) checkTimer() {
	if !s.opts.AutoCommit || s.opts.AutoCommitInterval <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != types.PhaseIdle || s.pending != nil {
		return
	}

	ref := s.startedAt
	if s.state.LastSuccessfulRunAt != nil && s.state.LastSuccessfulRunAt.After(ref) {
		ref = *s.state.LastSuccessfulRunAt
	}
	if s.lastTimerAt.After(ref) {
		ref = s.lastTimerAt
	}

	now := s.now()
	if now.Sub(ref) < s.opts.AutoCommitInterval {
		return
	}

	s.lastTimerAt = now
	s.logger.Info("auto-commit interval elapsed, queueing timer run")
	s.enqueueLocked(types.TriggerTimer)
}
