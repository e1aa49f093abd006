package templates

import (
	"context"
	"fmt"
	"time"

	"github.com/ritzau/wfc/pkg/logging"
	"github.com/ritzau/wfc/pkg/pubsub"
	"github.com/ritzau/wfc/pkg/watcher"
)

const (
	quietPeriod = 250 * time.Millisecond
	maxWait     = 2 * time.Second
)

// Watch reloads templates as their files change and announces the new
// state on pubsub.TopicTemplates. It returns once the watcher is running;
// reloading stops when ctx is done.
func (s *Store) Watch(ctx context.Context, pub pubsub.Publisher) error {
	fw, err := watcher.NewFileWatcher(s.dir)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("failed to watch templates: %w", err)
	}

	debouncer := watcher.NewDebouncer(fw.Events(), quietPeriod, maxWait)
	debouncer.Start(ctx)

	go func() {
		for event := range debouncer.Output() {
			s.apply(watcher.AnalyzeChanges(event), pub)
		}
	}()
	return nil
}

func (s *Store) apply(change *watcher.ChangeAnalysis, pub pubsub.Publisher) {
	logging.Debug("template files changed",
		"templates", change.Templates,
		"workflows", change.ReloadWorkflows,
		"registries", change.ReloadRegistries)

	changed, err := s.Reload(change.Templates...)

	status := pubsub.TemplateStatus{Templates: s.Names(), Changed: changed}
	eventType := "reloaded"
	if err != nil {
		status.Error = err.Error()
		eventType = "reload_failed"
	} else if len(changed) == 0 {
		return
	}

	if pub != nil {
		if err := pub.Publish(pubsub.TopicTemplates, eventType, status); err != nil {
			logging.Warn("failed to publish template status", "error", err)
		}
	}
}
