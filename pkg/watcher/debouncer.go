package watcher

import (
	"context"
	"time"

	"github.com/ritzau/wfc/pkg/logging"
)

// Debouncer merges bursts of change events. It emits once the input has
// been quiet for quietPeriod, or after maxWait at the latest.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a debouncer reading from input.
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 4),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start runs the debouncer until ctx is done or input closes.
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		quiet, deadline <-chan time.Time
		accumulated     = make(map[ChangeType][]string)
		eventCount      int
	)

	flush := func() {
		quiet, deadline = nil, nil
		if eventCount == 0 {
			return
		}
		logging.Debug("flushing template changes", "events", eventCount)

		// Workflows first: a new template needs its graph before its
		// registry is of any use.
		for _, t := range []ChangeType{ChangeTypeWorkflow, ChangeTypeRegistry} {
			if paths := dedupe(accumulated[t]); len(paths) > 0 {
				d.output <- ChangeEvent{Type: t, Paths: paths, Timestamp: time.Now()}
			}
		}
		accumulated = make(map[ChangeType][]string)
		eventCount = 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}
			accumulated[event.Type] = append(accumulated[event.Type], event.Paths...)
			eventCount++

			quiet = time.After(d.quietPeriod)
			if deadline == nil {
				deadline = time.After(d.maxWait)
			}

		case <-quiet:
			flush()

		case <-deadline:
			flush()
		}
	}
}

// Output returns the debounced events.
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0:0]
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
