package github

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

func TestCommitMessage(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	assert.Equal(t, "Auto-update [2026-03-04 05:06:07]", CommitMessage(types.TriggerChange, "", now))
	assert.Equal(t, "Auto-update [2026-03-04 05:06:07]", CommitMessage(types.TriggerManual, "", now))
	assert.Equal(t, TimerCommitMessage, CommitMessage(types.TriggerTimer, "", now))
	assert.Equal(t, "custom", CommitMessage(types.TriggerTimer, "custom", now))
}

func TestShortSHA(t *testing.T) {
	assert.Equal(t, "abcdef1", ShortSHA("abcdef1234567890"))
	assert.Equal(t, "abc", ShortSHA("abc"))
}
