package types

import "fmt"

// RepoTarget identifies the one repository instance under management
type RepoTarget struct {
	Owner     string
	Name      string
	Branch    string
	LocalPath string
	// RemoteURL overrides the default https://github.com/{owner}/{name}.git remote
	RemoteURL   string
	RemoteToken string
}

// FullName returns "owner/name"
func (t RepoTarget) FullName() string {
	return t.Owner + "/" + t.Name
}

// CloneURL returns the remote URL without credentials
func (t RepoTarget) CloneURL() string {
	if t.RemoteURL != "" {
		return t.RemoteURL
	}
	return fmt.Sprintf("https://github.com/%s/%s.git", t.Owner, t.Name)
}

// BranchRef returns the fully qualified ref for the managed branch
func (t RepoTarget) BranchRef() string {
	return "refs/heads/" + t.Branch
}

// String never includes the token.
func (t RepoTarget) String() string {
	return fmt.Sprintf("%s@%s", t.FullName(), t.Branch)
}

// CommitResult contains the result of a commit-and-push attempt
type CommitResult struct {
	Committed bool
	Pushed    bool
	CommitSHA string
	Message   string
}
