package github

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"

	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

// SyncError reports a git operation that failed while syncing the working copy
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Syncer makes the local working copy match the remote branch tip. It never
// merges: uncommitted local changes are discarded.
type Syncer struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSyncer creates a new Syncer
func NewSyncer(logger *zap.Logger) *Syncer {
	return &Syncer{
		logger: logger,
		now:    time.Now,
	}
}

// authFor carries the token as basic auth so it never lands in the remote URL
// stored in .git/config.
func authFor(target types.RepoTarget) transport.AuthMethod {
	if target.RemoteToken == "" || !strings.HasPrefix(target.CloneURL(), "http") {
		return nil
	}
	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: target.RemoteToken,
	}
}

// Sync clones the branch into an empty local path, or fetches and hard-resets
// an existing working copy to the remote tip. It returns the checked out SHA.
func (s *Syncer) Sync(ctx context.Context, target types.RepoTarget) (string, error) {
	repo, err := git.PlainOpen(target.LocalPath)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return s.clone(ctx, target)
	}
	if err != nil {
		return "", &SyncError{Op: "open repository", Err: err}
	}
	return s.update(ctx, repo, target)
}

func (s *Syncer) clone(ctx context.Context, target types.RepoTarget) (string, error) {
	repo, err := git.PlainCloneContext(ctx, target.LocalPath, false, &git.CloneOptions{
		URL:           target.CloneURL(),
		Auth:          authFor(target),
		ReferenceName: plumbing.NewBranchReferenceName(target.Branch),
		SingleBranch:  true,
	})
	if err != nil {
		return "", &SyncError{Op: "clone repository", Err: err}
	}

	head, err := repo.Head()
	if err != nil {
		return "", &SyncError{Op: "resolve head", Err: err}
	}

	s.logger.Info("cloned repository",
		zap.String("repo", target.String()),
		zap.String("path", target.LocalPath),
		zap.String("sha", head.Hash().String()),
	)

	return head.Hash().String(), nil
}

func (s *Syncer) update(ctx context.Context, repo *git.Repository, target types.RepoTarget) (string, error) {
	branchRef := plumbing.NewBranchReferenceName(target.Branch)
	remoteRef := plumbing.NewRemoteReferenceName("origin", target.Branch)

	// Non-forced refspec: a rewritten remote branch is refused instead of
	// silently followed.
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{config.RefSpec(fmt.Sprintf("%s:%s", branchRef, remoteRef))},
		Auth:       authFor(target),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		if errors.Is(err, git.ErrForceNeeded) {
			err = fmt.Errorf("non-fast-forward update of %s: %w", target.Branch, err)
		}
		return "", &SyncError{Op: "fetch", Err: err}
	}

	remote, err := repo.Reference(remoteRef, true)
	if err != nil {
		return "", &SyncError{Op: "resolve remote branch", Err: err}
	}

	if err := s.preserveUnpushed(repo, branchRef, remote.Hash()); err != nil {
		return "", &SyncError{Op: "preserve local commits", Err: err}
	}

	w, err := repo.Worktree()
	if err != nil {
		return "", &SyncError{Op: "get worktree", Err: err}
	}

	_, err = repo.Reference(branchRef, true)
	create := errors.Is(err, plumbing.ErrReferenceNotFound)
	if err != nil && !create {
		return "", &SyncError{Op: "resolve local branch", Err: err}
	}

	checkout := &git.CheckoutOptions{
		Branch: branchRef,
		Create: create,
		Force:  true,
	}
	if create {
		checkout.Hash = remote.Hash()
	}
	if err := w.Checkout(checkout); err != nil {
		return "", &SyncError{Op: "checkout " + target.Branch, Err: err}
	}

	if err := w.Reset(&git.ResetOptions{Commit: remote.Hash(), Mode: git.HardReset}); err != nil {
		return "", &SyncError{Op: "hard reset", Err: err}
	}

	s.logger.Info("reset working copy to remote",
		zap.String("repo", target.String()),
		zap.String("sha", remote.Hash().String()),
	)

	return remote.Hash().String(), nil
}

// preserveUnpushed records local commits that the remote tip does not contain
// on a backup branch before the hard reset moves the local branch away.
func (s *Syncer) preserveUnpushed(repo *git.Repository, branchRef plumbing.ReferenceName, remoteHash plumbing.Hash) error {
	local, err := repo.Reference(branchRef, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if local.Hash() == remoteHash {
		return nil
	}

	localCommit, err := repo.CommitObject(local.Hash())
	if err != nil {
		return err
	}
	remoteCommit, err := repo.CommitObject(remoteHash)
	if err != nil {
		return err
	}

	contained, err := localCommit.IsAncestor(remoteCommit)
	if err != nil {
		return err
	}
	if contained {
		return nil
	}

	backup := plumbing.NewBranchReferenceName(BackupBranchName(s.now()))
	if err := repo.Storer.SetReference(plumbing.NewHashReference(backup, local.Hash())); err != nil {
		return err
	}

	s.logger.Warn("preserved unpushed local commits before reset",
		zap.String("backup_branch", backup.Short()),
		zap.String("sha", local.Hash().String()),
	)

	return nil
}
