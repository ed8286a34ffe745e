package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// PollingWatcher detects inbox changes by rescanning the directory.
// Used when fsnotify is unavailable.
type PollingWatcher struct {
	interval  time.Duration
	dir       string
	fileState map[string]fileSnapshot
	events    chan FileEvent
	stopCh    chan struct{}
	mu        sync.Mutex
	stopped   bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher for dir.
func NewPollingWatcher(dir string, interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval:  interval,
		dir:       dir,
		fileState: make(map[string]fileSnapshot),
		events:    make(chan FileEvent, 256),
		stopCh:    make(chan struct{}),
	}
}

// Start records the current files as a baseline and then polls until ctx
// is cancelled or Stop is called. Files present at start produce no events.
func (p *PollingWatcher) Start(ctx context.Context) error {
	if _, err := p.scan(); err != nil {
		return fmt.Errorf("initial inbox scan: %w", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.Poll(); err != nil {
				slog.Warn("inbox_poll_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Poll rescans the directory once and emits the differences.
func (p *PollingWatcher) Poll() error {
	prev := p.state()
	current, err := p.scan()
	if err != nil {
		return err
	}

	now := time.Now()
	for name, snap := range current {
		old, existed := prev[name]
		switch {
		case !existed:
			p.emit(FileEvent{Name: name, Operation: OpCreate, Timestamp: now})
		case old != snap:
			p.emit(FileEvent{Name: name, Operation: OpModify, Timestamp: now})
		}
	}
	for name := range prev {
		if _, ok := current[name]; !ok {
			p.emit(FileEvent{Name: name, Operation: OpDelete, Timestamp: now})
		}
	}
	return nil
}

func (p *PollingWatcher) state() map[string]fileSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fileState
}

// scan lists regular, non-ignored files and replaces the stored state.
// A missing directory counts as empty.
func (p *PollingWatcher) scan() (map[string]fileSnapshot, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	current := make(map[string]fileSnapshot, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || ignored(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		current[e.Name()] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}

	p.mu.Lock()
	p.fileState = current
	p.mu.Unlock()
	return current, nil
}

func (p *PollingWatcher) emit(event FileEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	select {
	case p.events <- event:
	default:
		slog.Warn("polling watcher buffer full, dropping event",
			slog.String("file", event.Name),
			slog.String("op", event.Operation.String()))
	}
}

// Events returns the channel of raw, undebounced events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Stop stops polling and closes the event channel.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	return nil
}
