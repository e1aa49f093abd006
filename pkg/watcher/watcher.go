package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/wfc/pkg/logging"
)

// ChangeType classifies a changed file in the template directory.
type ChangeType int

const (
	// ChangeTypeWorkflow is a <name>.json workflow graph.
	ChangeTypeWorkflow ChangeType = iota
	// ChangeTypeRegistry is a <name>.toml parameter registry.
	ChangeTypeRegistry
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeWorkflow:
		return "workflow"
	case ChangeTypeRegistry:
		return "registry"
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// ChangeEvent is a batch of changed files of one type.
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// batchWindow groups the burst of events a single save produces.
const batchWindow = 100 * time.Millisecond

// FileWatcher watches a template directory.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	dir     string
	events  chan ChangeEvent
}

// NewFileWatcher creates a watcher for dir. Nothing is watched until
// Start.
func NewFileWatcher(dir string) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &FileWatcher{
		watcher: w,
		dir:     dir,
		events:  make(chan ChangeEvent, 16),
	}, nil
}

// Start watches the directory until ctx is done, then closes Events.
func (fw *FileWatcher) Start(ctx context.Context) error {
	if err := fw.watcher.Add(fw.dir); err != nil {
		fw.watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", fw.dir, err)
	}
	logging.Info("watching templates", "path", fw.dir)

	go fw.processEvents(ctx)
	return nil
}

// Classify returns the change type of a file name, or false if the file is
// not part of a template.
func Classify(name string) (ChangeType, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return 0, false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".json":
		return ChangeTypeWorkflow, true
	case ".toml":
		return ChangeTypeRegistry, true
	}
	return 0, false
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	pending := make(map[ChangeType][]string)
	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		for _, t := range []ChangeType{ChangeTypeWorkflow, ChangeTypeRegistry} {
			if len(pending[t]) == 0 {
				continue
			}
			select {
			case fw.events <- ChangeEvent{Type: t, Paths: pending[t], Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
		pending = make(map[ChangeType][]string)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			t, ok := Classify(event.Name)
			if !ok {
				continue
			}
			logging.Trace("template file changed", "path", event.Name, "op", event.Op.String())
			pending[t] = append(pending[t], event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the batched changes. It is closed when the watcher stops.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
