package classifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Warmer is the part of Classifier the watcher drives.
type Warmer interface {
	Loaded() bool
	Warm() error
}

// Watcher loads the models as soon as their artifacts land in the model
// directory, so the first scan after training does not pay for the load.
// Once the models are loaded, further file changes are ignored.
type Watcher struct {
	dir     string
	warmer  Warmer
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

func NewWatcher(dir string, warmer Warmer, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{dir: dir, warmer: warmer, logger: logger.Named("watcher"), watcher: fw}, nil
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	artifacts := make(map[string]bool)
	for _, name := range ArtifactNames() {
		artifacts[name] = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !artifacts[filepath.Base(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if w.warmer.Loaded() {
				continue
			}
			if err := w.warmer.Warm(); err != nil {
				w.logger.Debug("artifacts incomplete", zap.String("event", event.String()), zap.Error(err))
				continue
			}
			w.logger.Info("models warmed from artifact change", zap.String("file", event.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("model dir watch error", zap.String("dir", w.dir), zap.Error(err))
		}
	}
}
