package types

import (
	"time"
)

// EventSource is where a change was observed
type EventSource string

const (
	SourcePoll    EventSource = "poll"
	SourceWebhook EventSource = "webhook"
)

// ChangeEvent signals a new commit on the managed branch
type ChangeEvent struct {
	CommitSHA  string      `json:"commit_sha"`
	DetectedAt time.Time   `json:"detected_at"`
	Source     EventSource `json:"source"`
	DeliveryID string      `json:"delivery_id,omitempty"`
}

// TriggerKind says why a pipeline run started
type TriggerKind string

const (
	TriggerChange TriggerKind = "change"
	TriggerManual TriggerKind = "manual"
	TriggerTimer  TriggerKind = "timer"
)

// Trigger is the cause of a pipeline run. Event is set only for TriggerChange.
type Trigger struct {
	Kind  TriggerKind  `json:"kind"`
	Event *ChangeEvent `json:"event,omitempty"`
}

// CommitSHA returns the SHA carried by the triggering event, if any
func (t Trigger) CommitSHA() string {
	if t.Event == nil {
		return ""
	}
	return t.Event.CommitSHA
}

// ChangeTrigger wraps a change event
func ChangeTrigger(event ChangeEvent) Trigger {
	return Trigger{Kind: TriggerChange, Event: &event}
}

// StepStatus is the result of a single pipeline step
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
	// StepNoChanges is a successful commit step that found nothing to commit.
	StepNoChanges StepStatus = "nothing_to_commit"
)

// StepResult contains the result of one pipeline step
type StepResult struct {
	Name     string        `json:"name"`
	Status   StepStatus    `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the step counts as a success for the run outcome
func (r StepResult) Succeeded() bool {
	return r.Status == StepSucceeded || r.Status == StepNoChanges || r.Status == StepSkipped
}

// Outcome is the overall result of a pipeline run
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomePartialFailure Outcome = "partial_failure"
	OutcomeFailure        Outcome = "failure"
)

// AdvancesWatermark reports whether a run with this outcome may move the watermark
func (o Outcome) AdvancesWatermark() bool {
	return o == OutcomeSuccess || o == OutcomePartialFailure
}

// PipelineRun records one execution of the update pipeline
type PipelineRun struct {
	ID         string       `json:"id"`
	Repository string       `json:"repository"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Trigger    Trigger      `json:"trigger"`
	Steps      []StepResult `json:"steps_completed"`
	Outcome    Outcome      `json:"outcome"`
	// SyncedSHA is the working copy HEAD after the sync step
	SyncedSHA string `json:"synced_sha,omitempty"`
	// PushedSHA is set when the commit step pushed a new commit
	PushedSHA string `json:"pushed_sha,omitempty"`
}

// Step returns the result recorded for the named step
func (r *PipelineRun) Step(name string) (StepResult, bool) {
	for _, step := range r.Steps {
		if step.Name == name {
			return step, true
		}
	}
	return StepResult{}, false
}

// Phase is the scheduler state machine position
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseRunning  Phase = "running"
	PhaseCooldown Phase = "cooldown"
)

// SchedulerState is the process-wide state for one managed repository
type SchedulerState struct {
	LastCommitSHA       string     `json:"last_commit_sha,omitempty"`
	LastSuccessfulRunAt *time.Time `json:"last_successful_run_at,omitempty"`
	RunInProgress       bool       `json:"run_in_progress"`
}
