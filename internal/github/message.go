package github

import (
	"fmt"
	"time"

	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

// TimerCommitMessage is used for runs started by the auto-commit timer
const TimerCommitMessage = "Auto-commit: Regular update"

// backupPrefix namespaces branches that preserve unpushed local commits
const backupPrefix = "automator-backup/"

// CommitMessage returns the commit message for a run. A non-empty override
// always wins.
func CommitMessage(kind types.TriggerKind, override string, now time.Time) string {
	if override != "" {
		return override
	}
	if kind == types.TriggerTimer {
		return TimerCommitMessage
	}
	return "Auto-update [" + now.Format("2006-01-02 15:04:05") + "]"
}

// BackupBranchName returns the branch that preserves unpushed commits found at now
func BackupBranchName(now time.Time) string {
	return fmt.Sprintf("%s%d", backupPrefix, now.Unix())
}

// ShortSHA abbreviates a commit SHA for logs and messages
func ShortSHA(sha string) string {
	return truncateString(sha, 7)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
