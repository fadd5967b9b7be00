package scaffold

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func dirWithManifest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{}"), 0o644))
	return dir
}

// TestBuilder_SkipsWithoutManifest verifies nothing runs without package.json
func TestBuilder_SkipsWithoutManifest(t *testing.T) {
	b := NewBuilder(t.TempDir(), [][]string{{"false"}}, zap.NewNop())

	ran, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
}

// TestBuilder_RunsCommandsInDir verifies commands run in order inside the dir
func TestBuilder_RunsCommandsInDir(t *testing.T) {
	requireBinary(t, "touch")
	dir := dirWithManifest(t)
	b := NewBuilder(dir, [][]string{{"touch", "first"}, {"touch", "second"}}, zap.NewNop())

	ran, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.FileExists(t, filepath.Join(dir, "first"))
	assert.FileExists(t, filepath.Join(dir, "second"))
}

// TestBuilder_FailureStopsAndReports verifies a failing command yields a BuildError
func TestBuilder_FailureStopsAndReports(t *testing.T) {
	requireBinary(t, "false")
	requireBinary(t, "touch")
	dir := dirWithManifest(t)
	b := NewBuilder(dir, [][]string{{"false"}, {"touch", "never"}}, zap.NewNop())

	ran, err := b.Build(context.Background())
	assert.True(t, ran)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, []string{"false"}, buildErr.Command)
	assert.NoFileExists(t, filepath.Join(dir, "never"))
}

// TestBuilder_ArgumentsAreNotShellExpanded verifies metacharacters reach the program verbatim
func TestBuilder_ArgumentsAreNotShellExpanded(t *testing.T) {
	requireBinary(t, "touch")
	dir := dirWithManifest(t)
	b := NewBuilder(dir, [][]string{{"touch", "a;touch b"}}, zap.NewNop())

	_, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "a;touch b"))
	assert.NoFileExists(t, filepath.Join(dir, "b"))
}

// TestTail verifies only the end of long output is kept
func TestTail(t *testing.T) {
	long := strings.Repeat("x", 10) + strings.Repeat("y", outputTail)
	assert.Equal(t, strings.Repeat("y", outputTail), tail([]byte(long), outputTail))
	assert.Equal(t, "short", tail([]byte("short"), outputTail))
}

// TestDependencyInstaller_GatedOnRequirements verifies the installer runs only when requirements.txt exists
func TestDependencyInstaller_GatedOnRequirements(t *testing.T) {
	requireBinary(t, "touch")
	dir := t.TempDir()
	b := NewDependencyInstaller(dir, [][]string{{"touch", "installed"}}, zap.NewNop())

	ran, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.NoFileExists(t, filepath.Join(dir, "installed"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("requests\n"), 0o644))
	ran, err = b.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.FileExists(t, filepath.Join(dir, "installed"))
}
