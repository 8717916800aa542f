package client

import (
	"context"
	"sync"
	"time"

	"github.com/cvlens/cvlens/internal/models"
)

// fetchTimeout bounds a single list fetch.
const fetchTimeout = 30 * time.Second

// CacheState tags what the cache currently holds. The states are explicit
// rather than nil-sentinels so "last good data survives a failed refetch"
// is a visible transition, not a side effect.
type CacheState string

const (
	// CacheLoading: no snapshot yet; the first fetch has not completed.
	CacheLoading CacheState = "loading"
	// CacheReady: the snapshot reflects the latest completed fetch.
	CacheReady CacheState = "ready"
	// CacheStale: a snapshot is present but invalidated; a refetch is
	// pending or running.
	CacheStale CacheState = "stale"
	// CacheError: the last fetch failed; the previous snapshot is
	// retained and Err carries the failure.
	CacheError CacheState = "error"
)

// Snapshot is an atomic view of the cache: the list in server order, the
// tagged state, and the error surfaced by the last failed fetch, if any.
type Snapshot struct {
	Resumes []models.Resume
	State   CacheState
	Err     error
}

// Cache holds the authoritative local view of the resume collection.
//
// Guarantees: after Invalidate returns, a later CurrentList eventually
// reflects a fetch started strictly after that call. Invalidations that
// arrive while a refetch is running collapse into one follow-up fetch.
// Snapshot replacement is atomic and the last completed fetch wins. A
// failed fetch keeps the last known-good list and surfaces the error.
// The server-defined order is preserved exactly; the cache never sorts.
type Cache struct {
	query QueryService

	mu       sync.Mutex
	resumes  []models.Resume
	state    CacheState
	fetchErr error
	hasData  bool
	fetching bool
	dirty    bool

	subs   map[int]chan Snapshot
	nextID int
}

// NewCache creates an empty cache in the loading state. Nothing is
// fetched until the first Invalidate.
func NewCache(query QueryService) *Cache {
	return &Cache{
		query: query,
		state: CacheLoading,
		subs:  make(map[int]chan Snapshot),
	}
}

// CurrentList returns the resumes in server order, exactly as received.
// The slice is a copy; callers may keep or mutate it freely.
func (c *Cache) CurrentList() []models.Resume {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Resume, len(c.resumes))
	copy(out, c.resumes)
	return out
}

// IsLoading reports whether a fetch is pending or running.
func (c *Cache) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetching
}

// Snapshot returns the current atomic view.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Invalidate marks the list stale and schedules a refetch. Calling it
// again while a refetch is running marks the cache dirty; exactly one
// more fetch runs after the current one and supersedes everything, which
// is how concurrent invalidations collapse.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	if c.fetching {
		c.dirty = true
		if c.hasData {
			c.state = CacheStale
		}
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return
	}

	c.fetching = true
	if c.hasData {
		c.state = CacheStale
	} else {
		c.state = CacheLoading
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	go c.refetch()
}

// Subscribe registers for snapshot updates and returns the channel plus a
// cancel func releasing the subscription. Sends never block; a subscriber
// that falls behind drops intermediate snapshots and should re-read
// Snapshot when it catches up.
func (c *Cache) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	ch := make(chan Snapshot, 16)
	c.subs[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// refetch runs fetches until the cache is clean. Only one refetch loop
// exists at a time, so completions apply in order and the last one wins.
func (c *Cache) refetch() {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		resumes, err := c.query.List(ctx)
		cancel()

		c.mu.Lock()
		if err != nil {
			c.fetchErr = err
			c.state = CacheError
		} else {
			c.resumes = resumes
			c.hasData = true
			c.fetchErr = nil
			c.state = CacheReady
		}

		again := c.dirty
		c.dirty = false
		if again {
			if c.hasData {
				c.state = CacheStale
			} else {
				c.state = CacheLoading
			}
		} else {
			c.fetching = false
		}
		snap := c.snapshotLocked()
		c.mu.Unlock()

		c.notify(snap)

		if !again {
			return
		}
	}
}

func (c *Cache) snapshotLocked() Snapshot {
	out := make([]models.Resume, len(c.resumes))
	copy(out, c.resumes)
	return Snapshot{Resumes: out, State: c.state, Err: c.fetchErr}
}

// notify fans the snapshot out to subscribers. Sending under the lock is
// safe because sends never block, and it keeps cancel's close from racing
// a send.
func (c *Cache) notify(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- s:
		default:
		}
	}
}
