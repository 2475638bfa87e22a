package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrPersist marks errors from writing the transcript file. The in-memory
// store is unaffected and the next change retries the write.
var ErrPersist = errors.New("capture: persist transcript")

// Default output location.
const (
	DefaultDirName = "ZoomTranscript"
	DefaultPrefix  = "zoom"
)

// DefaultOutputDir returns <user home>/ZoomTranscript.
func DefaultOutputDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("capture: resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// fileWriter rewrites the whole transcript file on every write.
type fileWriter struct {
	dir    string
	prefix string
	now    func() time.Time
	path   string
}

// pathFor returns the output path, fixing it on first use. If no entry has
// been observed yet, state.Earliest is initialised to the current time.
func (w *fileWriter) pathFor(state *State) string {
	if w.path != "" {
		return w.path
	}
	if state.Earliest.IsZero() {
		state.Earliest = w.now()
	}
	name := fmt.Sprintf("%s_%s.txt", w.prefix, state.Earliest.Format("20060102150405"))
	w.path = filepath.Join(w.dir, name)
	return w.path
}

// write replaces the file contents with entries, one line each. The data is
// written to a temporary file in the same directory and renamed into place
// so readers never observe a truncated transcript.
func (w *fileWriter) write(state *State, entries []Entry) error {
	path := w.pathFor(state)
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrPersist, w.dir, err)
	}

	tmp, err := os.CreateTemp(w.dir, ".transcript-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if _, err := tmp.WriteString(FormatTranscript(entries)); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrPersist, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrPersist, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: rename to %s: %w", ErrPersist, path, err)
	}
	return nil
}
