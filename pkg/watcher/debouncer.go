package watcher

import (
	"context"
	"os"
	"time"

	"github.com/ritzau/flowc/pkg/logging"
)

// Debouncer batches rapid change events so a burst of saves triggers a
// single recompile. Events are released after quietPeriod without input,
// or after maxWait since the first held event, whichever comes first.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		quiet       <-chan time.Time
		deadline    <-chan time.Time
		accumulated = make(map[ChangeType][]string)
		seen        = make(map[ChangeType]map[string]bool)
		eventCount  int
	)

	flush := func() {
		quiet, deadline = nil, nil
		if eventCount == 0 {
			return
		}

		logging.Debug("flushing accumulated events", "count", eventCount)

		// Batches arrive grouped by type, so the order of a remove and a
		// write to the same file is lost. Whether the file is on disk now
		// decides: editors that save by rename leave it in place.
		var edited, removed []string
		gone := make(map[string]bool)
		for _, p := range accumulated[ChangeTypeRemoved] {
			if exists(p) {
				edited = append(edited, p)
				continue
			}
			gone[p] = true
			removed = append(removed, p)
		}
		for _, p := range accumulated[ChangeTypeFlow] {
			if !gone[p] && !seen[ChangeTypeRemoved][p] {
				edited = append(edited, p)
			}
		}

		if len(edited) > 0 {
			d.output <- ChangeEvent{Type: ChangeTypeFlow, Paths: edited, Timestamp: time.Now()}
		}
		if len(removed) > 0 {
			d.output <- ChangeEvent{Type: ChangeTypeRemoved, Paths: removed, Timestamp: time.Now()}
		}

		accumulated = make(map[ChangeType][]string)
		seen = make(map[ChangeType]map[string]bool)
		eventCount = 0
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}

			if seen[event.Type] == nil {
				seen[event.Type] = make(map[string]bool)
			}
			for _, p := range event.Paths {
				if !seen[event.Type][p] {
					seen[event.Type][p] = true
					accumulated[event.Type] = append(accumulated[event.Type], p)
				}
			}
			// a file written again after a removal is back
			if event.Type == ChangeTypeFlow {
				for _, p := range event.Paths {
					delete(seen[ChangeTypeRemoved], p)
				}
				accumulated[ChangeTypeRemoved] = without(accumulated[ChangeTypeRemoved], event.Paths)
			}
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

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func without(paths, drop []string) []string {
	if len(paths) == 0 {
		return paths
	}
	skip := make(map[string]bool, len(drop))
	for _, p := range drop {
		skip[p] = true
	}
	var kept []string
	for _, p := range paths {
		if !skip[p] {
			kept = append(kept, p)
		}
	}
	return kept
}
