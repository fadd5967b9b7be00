package scaffold

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"go.uber.org/zap"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// iconPNG is a 1x1 transparent placeholder for the activity bar icon
var iconPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89\x00\x00\x00\x0bIDATx\x9cc\xf8\xff\xff?\x00\x05\xfe\x02\xfe\rZ\\\xef\x00\x00\x00\x00IEND\xaeB`\x82")

// files maps each scaffold path, relative to the extension dir, to its template
var files = []struct {
	path     string
	template string
}{
	{"package.json", "package.json.tmpl"},
	{"tsconfig.json", "tsconfig.json.tmpl"},
	{filepath.Join("src", "extension.ts"), "extension.ts.tmpl"},
	{".vscodeignore", "vscodeignore.tmpl"},
	{".gitignore", "gitignore.tmpl"},
}

// Manifest holds the values substituted into the extension skeleton
type Manifest struct {
	Name      string
	Publisher string
}

// Renderer writes the fixed VSCode extension skeleton
type Renderer struct {
	dir       string
	manifest  Manifest
	templates *template.Template
	logger    *zap.Logger
}

// NewRenderer creates a Renderer that writes into dir
func NewRenderer(dir string, manifest Manifest, logger *zap.Logger) (*Renderer, error) {
	tmpl, err := template.New("scaffold").
		Funcs(template.FuncMap{"quote": quote}).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Renderer{
		dir:       dir,
		manifest:  manifest,
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Render writes every skeleton file that is absent or differs from the
// expected content and returns the paths it wrote, relative to the
// extension dir. A second call with no external edits writes nothing.
func (r *Renderer) Render() ([]string, error) {
	var written []string

	for _, f := range files {
		var buf bytes.Buffer
		if err := r.templates.ExecuteTemplate(&buf, f.template, r.manifest); err != nil {
			return written, fmt.Errorf("failed to render %s: %w", f.path, err)
		}
		changed, err := writeIfChanged(filepath.Join(r.dir, f.path), buf.Bytes())
		if err != nil {
			return written, err
		}
		if changed {
			written = append(written, f.path)
		}
	}

	icon := filepath.Join("resources", "icon.png")
	changed, err := writeIfChanged(filepath.Join(r.dir, icon), iconPNG)
	if err != nil {
		return written, err
	}
	if changed {
		written = append(written, icon)
	}

	if len(written) > 0 {
		r.logger.Info("wrote extension scaffold",
			zap.String("dir", r.dir),
			zap.Strings("files", written),
		)
	}

	return written, nil
}

func writeIfChanged(path string, content []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, content) {
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func quote(s string) (string, error) {
	b, err := json.Marshal(s)
	return string(b), err
}
