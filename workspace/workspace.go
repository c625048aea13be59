package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Workspace is a per-request scratch directory. Every artifact of one
// storyboard run lives under it, and Cleanup removes the whole tree once the
// response has been streamed.
type Workspace struct {
	ID  string
	Dir string
	log *logrus.Logger
}

// New creates root/<uuid> and returns the handle.
func New(root string, logger *logrus.Logger) (*Workspace, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	id := uuid.NewString()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", dir, err)
	}
	return &Workspace{ID: id, Dir: dir, log: logger}, nil
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Cleanup deletes the workspace tree. Failures are logged, never returned: a
// leftover scratch directory must not mask the pipeline's real outcome.
func (w *Workspace) Cleanup() {
	if err := os.RemoveAll(w.Dir); err != nil {
		w.log.WithField("workspace", w.ID).Warnf("cleanup failed: %v", err)
	}
}
