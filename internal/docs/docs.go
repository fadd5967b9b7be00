package docs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// UpdateError reports a documentation file that could not be patched
type UpdateError struct {
	File string
	Err  error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("failed to update %s: %v", e.File, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

// Updater patches the todo list and changelog in a working copy
type Updater struct {
	root          string
	todoFile      string
	changelogFile string
	logger        *zap.Logger
	now           func() time.Time
}

// NewUpdater creates an Updater for files relative to root
func NewUpdater(root, todoFile, changelogFile string, logger *zap.Logger) *Updater {
	return &Updater{
		root:          root,
		todoFile:      todoFile,
		changelogFile: changelogFile,
		logger:        logger,
		now:           time.Now,
	}
}

// Update patches both files and reports the ones it changed. Both files are
// attempted even when the first fails.
func (u *Updater) Update() ([]string, error) {
	var changed []string
	var errs []error

	if ok, err := u.UpdateTodo(); err != nil {
		errs = append(errs, err)
	} else if ok {
		changed = append(changed, u.todoFile)
	}

	if ok, err := u.UpdateChangelog(); err != nil {
		errs = append(errs, err)
	} else if ok {
		changed = append(changed, u.changelogFile)
	}

	return changed, errors.Join(errs...)
}

// patch rewrites a file with the result of fn and reports whether it changed.
// A missing file reaches fn as "" with exists false.
func (u *Updater) patch(name string, fn func(content string, exists bool) string) (bool, error) {
	path := filepath.Join(u.root, name)

	raw, err := os.ReadFile(path)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return false, &UpdateError{File: name, Err: err}
	}

	updated := fn(string(raw), exists)
	if exists && updated == string(raw) {
		return false, nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return false, &UpdateError{File: name, Err: err}
	}
	return true, nil
}
