package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

// PushError reports a failed push. The commit stays on the local branch.
type PushError struct {
	CommitSHA string
	Err       error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("failed to push commit %s: %v", ShortSHA(e.CommitSHA), e.Err)
}

func (e *PushError) Unwrap() error {
	return e.Err
}

// Committer commits pending working copy changes and pushes them
type Committer struct {
	authorName  string
	authorEmail string
	logger      *zap.Logger
	now         func() time.Time
}

// NewCommitter creates a Committer that falls back to the given identity
// when the working copy has none configured.
func NewCommitter(authorName, authorEmail string, logger *zap.Logger) *Committer {
	return &Committer{
		authorName:  authorName,
		authorEmail: authorEmail,
		logger:      logger,
		now:         time.Now,
	}
}

// CommitAndPush stages everything, commits and pushes the managed branch. A
// clean working copy is a no-op: nothing is committed and push is not invoked.
func (c *Committer) CommitAndPush(ctx context.Context, target types.RepoTarget, message string) (types.CommitResult, error) {
	result := types.CommitResult{Message: message}

	r, err := git.PlainOpen(target.LocalPath)
	if err != nil {
		return result, fmt.Errorf("failed to open repository: %w", err)
	}

	w, err := r.Worktree()
	if err != nil {
		return result, fmt.Errorf("failed to get worktree: %w", err)
	}

	status, err := w.Status()
	if err != nil {
		return result, fmt.Errorf("failed to get status: %w", err)
	}
	if status.IsClean() {
		c.logger.Info("nothing to commit", zap.String("repo", target.String()))
		return result, nil
	}

	if err := w.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return result, fmt.Errorf("failed to add changes: %w", err)
	}

	sig := c.signature(r)
	hash, err := w.Commit(message, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
	})
	if err != nil {
		return result, fmt.Errorf("failed to commit: %w", err)
	}
	result.Committed = true
	result.CommitSHA = hash.String()

	c.logger.Info("committed changes",
		zap.String("repo", target.String()),
		zap.String("sha", result.CommitSHA),
		zap.String("message", message),
	)

	ref := target.BranchRef()
	err = r.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{config.RefSpec(ref + ":" + ref)},
		Auth:       authFor(target),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return result, &PushError{CommitSHA: result.CommitSHA, Err: err}
	}
	result.Pushed = true

	c.logger.Info("pushed branch",
		zap.String("repo", target.String()),
		zap.String("sha", result.CommitSHA),
	)

	return result, nil
}

// signature prefers the identity configured in the working copy
func (c *Committer) signature(r *git.Repository) *object.Signature {
	sig := &object.Signature{
		Name:  c.authorName,
		Email: c.authorEmail,
		When:  c.now(),
	}
	cfg, err := r.Config()
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" && cfg.User.Email != "" {
		sig.Name = cfg.User.Name
		sig.Email = cfg.User.Email
	}
	return sig
}
