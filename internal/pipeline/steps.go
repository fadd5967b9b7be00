package pipeline

import (
	"context"

	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

// Step names, in execution order
const (
	StepSync      = "sync"
	StepExtension = "extension"
	// StepDependencies runs only when Steps.Installer is set
	StepDependencies = "dependencies"
	StepDocs         = "docs"
	StepCommit       = "commit"
)

// Syncer brings the working copy to the remote branch tip
type Syncer interface {
	Sync(ctx context.Context, target types.RepoTarget) (string, error)
}

// Renderer writes the extension skeleton
type Renderer interface {
	Render() ([]string, error)
}

// Builder runs the extension build tool
type Builder interface {
	Build(ctx context.Context) (bool, error)
}

// DocUpdater patches project documentation
type DocUpdater interface {
	Update() ([]string, error)
}

// Committer commits and pushes pending changes
type Committer interface {
	CommitAndPush(ctx context.Context, target types.RepoTarget, message string) (types.CommitResult, error)
}

// Steps holds the collaborators for each pipeline step
type Steps struct {
	Syncer    Syncer
	Renderer  Renderer
	Builder   Builder
	Installer Builder
	Docs      DocUpdater
	Committer Committer
}
