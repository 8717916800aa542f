package client

import (
	"context"
	"time"
)

// DefaultWatchInterval is the poll interval when none is configured.
const DefaultWatchInterval = 3 * time.Second

// Watcher keeps the cache fresh while analysis is still running: on each
// tick it invalidates the cache if any listed resume is non-terminal, and
// stays quiet once everything has completed or failed. The server is the
// only writer of analysis status, so polling the list is sufficient to
// converge.
type Watcher struct {
	cache    *Cache
	interval time.Duration
}

// NewWatcher creates a watcher over cache ticking every interval.
func NewWatcher(cache *Cache, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Watcher{cache: cache, interval: interval}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.hasNonTerminal() {
				w.cache.Invalidate()
			}
		}
	}
}

func (w *Watcher) hasNonTerminal() bool {
	for _, r := range w.cache.CurrentList() {
		if !r.AnalysisStatus.IsTerminal() {
			return true
		}
	}
	return false
}
