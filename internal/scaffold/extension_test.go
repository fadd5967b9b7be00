package scaffold

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRenderer(t *testing.T) (*Renderer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "vscode-extension")
	r, err := NewRenderer(dir, Manifest{Name: "vscode-hybrid-extension", Publisher: "krackn88"}, zap.NewNop())
	require.NoError(t, err)
	return r, dir
}

// TestRenderer_WritesSkeleton verifies the first render writes every file
func TestRenderer_WritesSkeleton(t *testing.T) {
	r, dir := newTestRenderer(t)

	written, err := r.Render()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"package.json",
		"tsconfig.json",
		filepath.Join("src", "extension.ts"),
		".vscodeignore",
		".gitignore",
		filepath.Join("resources", "icon.png"),
	}, written)

	raw, err := os.ReadFile(filepath.Join(dir, "package.json"))
	require.NoError(t, err)
	var manifest map[string]any
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Equal(t, "vscode-hybrid-extension", manifest["name"])
	assert.Equal(t, "krackn88", manifest["publisher"])

	raw, err = os.ReadFile(filepath.Join(dir, "tsconfig.json"))
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))

	gitignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(gitignore), "node_modules/")
	assert.Contains(t, string(gitignore), "*.vsix")
}

// TestRenderer_Idempotent verifies a second render writes nothing
func TestRenderer_Idempotent(t *testing.T) {
	r, _ := newTestRenderer(t)

	_, err := r.Render()
	require.NoError(t, err)

	written, err := r.Render()
	require.NoError(t, err)
	assert.Empty(t, written)
}

// TestRenderer_RestoresEditedFile verifies only differing files are rewritten
func TestRenderer_RestoresEditedFile(t *testing.T) {
	r, dir := newTestRenderer(t)

	_, err := r.Render()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tsconfig.json"), []byte("{}"), 0o644))

	written, err := r.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{"tsconfig.json"}, written)
}

// TestRenderer_QuotesManifestValues verifies names are JSON-escaped
func TestRenderer_QuotesManifestValues(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRenderer(dir, Manifest{Name: `odd"name`, Publisher: "p"}, zap.NewNop())
	require.NoError(t, err)

	_, err = r.Render()
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "package.json"))
	require.NoError(t, err)
	var manifest map[string]any
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Equal(t, `odd"name`, manifest["name"])
}
