// Package watcher reports edits to flow files.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/flowc/pkg/flowfile"
	"github.com/ritzau/flowc/pkg/logging"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeFlow    ChangeType = iota // a flow file was written or created
	ChangeTypeRemoved                   // a flow file was removed or renamed away
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeFlow:
		return "flow"
	case ChangeTypeRemoved:
		return "removed"
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// batchWindow groups raw notifications before they reach the debouncer
const batchWindow = 100 * time.Millisecond

// FileWatcher watches flow files, or every flow file in a directory.
// Parent directories are watched so that editors that save by replacing
// the file are still seen.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]bool // watched flow files, absolute
	dirs    map[string]bool // directories whose flow files are all watched
	events  chan ChangeEvent
	stop    sync.Once
}

// NewFileWatcher creates a watcher for the given flow files and directories
func NewFileWatcher(paths ...string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher: watcher,
		files:   make(map[string]bool),
		dirs:    make(map[string]bool),
		events:  make(chan ChangeEvent, 100),
	}

	for _, p := range paths {
		if err := fw.add(p); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	return fw, nil
}

func (fw *FileWatcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	dir := abs
	if info.IsDir() {
		fw.dirs[abs] = true
	} else {
		fw.files[abs] = true
		dir = filepath.Dir(abs)
	}

	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logging.Debug("watching", "path", abs, "dir", dir)
	return nil
}

// relevant reports whether a notification concerns a watched flow file
func (fw *FileWatcher) relevant(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	if fw.files[abs] {
		return true
	}
	if !fw.dirs[filepath.Dir(abs)] {
		return false
	}
	_, err = flowfile.FormatOf(abs)
	return err == nil
}

// Start begins watching for file changes. Events stop and the channel is
// closed when ctx is done or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) {
	logging.Info("started watching flows", "files", len(fw.files), "dirs", len(fw.dirs))
	go fw.processEvents(ctx)
}

// processEvents batches notifications by change type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)

	pending := make(map[ChangeType][]string)
	seen := make(map[string]bool)

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		for _, t := range []ChangeType{ChangeTypeFlow, ChangeTypeRemoved} {
			if len(pending[t]) == 0 {
				continue
			}
			select {
			case fw.events <- ChangeEvent{Type: t, Paths: pending[t], Timestamp: time.Now()}:
			case <-ctx.Done():
			}
		}
		pending = make(map[ChangeType][]string)
		seen = make(map[string]bool)
	}

	for {
		select {
		case <-ctx.Done():
			fw.Stop()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.relevant(event.Name) {
				continue
			}

			changeType := ChangeTypeFlow
			switch {
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				changeType = ChangeTypeRemoved
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
			default:
				// chmod only
				continue
			}

			key := fmt.Sprintf("%d:%s", changeType, event.Name)
			if !seen[key] {
				seen[key] = true
				pending[changeType] = append(pending[changeType], event.Name)
			}
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

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop releases the underlying watcher
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stop.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}
