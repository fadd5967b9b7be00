package github

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

// remoteFixture is a bare repository plus a seed working copy that pushes to it
type remoteFixture struct {
	bareDir string
	seedDir string
	seed    *git.Repository
}

func newRemote(t *testing.T) *remoteFixture {
	t.Helper()

	root := t.TempDir()
	bareDir := filepath.Join(root, "remote.git")
	seedDir := filepath.Join(root, "seed")

	bare, err := git.PlainInit(bareDir, true)
	require.NoError(t, err)
	require.NoError(t, bare.Storer.SetReference(
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))))

	seed, err := git.PlainInit(seedDir, false)
	require.NoError(t, err)
	require.NoError(t, seed.Storer.SetReference(
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))))
	_, err = seed.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{bareDir}})
	require.NoError(t, err)

	f := &remoteFixture{bareDir: bareDir, seedDir: seedDir, seed: seed}
	f.commit(t, "README.md", "# demo\n", "initial commit")
	return f
}

// commit writes a file in the seed, commits it and pushes to the bare remote
func (f *remoteFixture) commit(t *testing.T, name, content, message string) string {
	t.Helper()
	hash := commitFile(t, f.seed, f.seedDir, name, content, message)
	require.NoError(t, f.seed.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{"refs/heads/main:refs/heads/main"},
	}))
	return hash
}

func (f *remoteFixture) head(t *testing.T) string {
	t.Helper()
	bare, err := git.PlainOpen(f.bareDir)
	require.NoError(t, err)
	ref, err := bare.Reference(plumbing.NewBranchReferenceName("main"), true)
	require.NoError(t, err)
	return ref.Hash().String()
}

func (f *remoteFixture) target(localPath string) types.RepoTarget {
	return types.RepoTarget{
		Owner:     "octo",
		Name:      "demo",
		Branch:    "main",
		LocalPath: localPath,
		RemoteURL: f.bareDir,
	}
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content, message string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))

	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add(name)
	require.NoError(t, err)

	hash, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "Seed", Email: "seed@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func headOf(t *testing.T, dir string) string {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	return head.Hash().String()
}
