package ipc

import (
	"net"
	"sync"
	"time"
)

// Client reads snapshots from a running publisher. Fetches are cached for a
// short interval so UI-side callers can poll freely; the absence of the
// service is an ordinary condition reported as a missing value, never an
// error.
type Client struct {
	mu        sync.Mutex
	cached    Snapshot
	fetchedAt time.Time
	valid     bool

	dial        func() (net.Conn, error)
	cacheTTL    time.Duration
	readTimeout time.Duration
}

// NewClient reads from the named local pipe.
func NewClient(pipeName string) *Client {
	return newClient(func() (net.Conn, error) {
		return dialPipe(pipeName)
	})
}

// newClient is the transport-agnostic constructor used directly by tests.
func newClient(dial func() (net.Conn, error)) *Client {
	return &Client{
		dial:        dial,
		cacheTTL:    100 * time.Millisecond,
		readTimeout: time.Second,
	}
}

// Snapshot returns the current measurement, fetching from the publisher only
// when the cached value has gone stale. Any failure — publisher not running,
// connect refused, parse error — yields (zero, false) silently.
func (c *Client) Snapshot() (Snapshot, bool) {
	c.mu.Lock()
	if c.valid && time.Since(c.fetchedAt) < c.cacheTTL {
		snap := c.cached
		c.mu.Unlock()
		return snap, true
	}
	c.mu.Unlock()

	// The pipe connect and read happen outside the lock; concurrent callers
	// may fetch redundantly, which is harmless.
	snap, err := c.fetch()
	if err != nil {
		return Snapshot{}, false
	}

	c.mu.Lock()
	c.cached = snap
	c.fetchedAt = time.Now()
	c.valid = true
	c.mu.Unlock()
	return snap, true
}

// Available reports whether a fetch right now would succeed.
func (c *Client) Available() bool {
	_, ok := c.Snapshot()
	return ok
}

func (c *Client) fetch() (Snapshot, error) {
	conn, err := c.dial()
	if err != nil {
		return Snapshot{}, err
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	return decodeSnapshot(conn)
}
