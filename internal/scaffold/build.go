package scaffold

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// outputTail is how much combined build output a BuildError keeps
const outputTail = 4 << 10

// BuildError reports a failed build command along with the end of its output
type BuildError struct {
	Command []string
	Output  string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build command %q failed: %v", strings.Join(e.Command, " "), e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Builder runs external commands in a dir when a manifest file is present.
// Commands are argument vectors executed directly, never through a shell.
type Builder struct {
	dir      string
	manifest string
	commands [][]string
	logger   *zap.Logger
}

// NewBuilder creates a Builder for the extension dir, gated on package.json
func NewBuilder(dir string, commands [][]string, logger *zap.Logger) *Builder {
	return &Builder{
		dir:      dir,
		manifest: "package.json",
		commands: commands,
		logger:   logger,
	}
}

// NewDependencyInstaller creates a Builder that installs the Python
// dependencies of the repository root, gated on requirements.txt.
func NewDependencyInstaller(dir string, commands [][]string, logger *zap.Logger) *Builder {
	return &Builder{
		dir:      dir,
		manifest: "requirements.txt",
		commands: commands,
		logger:   logger,
	}
}

// Build runs each command in order and stops at the first failure. It
// reports false without running anything when the manifest is absent.
func (b *Builder) Build(ctx context.Context) (bool, error) {
	if _, err := os.Stat(filepath.Join(b.dir, b.manifest)); errors.Is(err, os.ErrNotExist) {
		b.logger.Info("manifest not found, skipping commands",
			zap.String("dir", b.dir),
			zap.String("manifest", b.manifest),
		)
		return false, nil
	}

	for _, argv := range b.commands {
		if len(argv) == 0 {
			continue
		}

		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = b.dir
		output, err := cmd.CombinedOutput()
		if err != nil {
			b.logger.Warn("command failed",
				zap.Strings("command", argv),
				zap.Error(err),
			)
			return true, &BuildError{Command: argv, Output: tail(output, outputTail), Err: err}
		}

		b.logger.Info("command succeeded", zap.Strings("command", argv))
	}

	return true, nil
}

func tail(output []byte, n int) string {
	if len(output) <= n {
		return string(output)
	}
	return string(output[len(output)-n:])
}
