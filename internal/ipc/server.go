package ipc

import (
	"net"
	"sync"
	"time"

	"github.com/phuslu/log"

	"fpsmon/internal/logging"
)

// Publisher holds the latest measurement and serves it to one client at a
// time: create endpoint, accept one connection, write one message, tear the
// endpoint down, repeat. Endpoint contention (a stale instance left by a
// crashed run) is retried with backoff rather than surfaced.
type Publisher struct {
	mu        sync.Mutex
	fps       float64
	activePID uint32
	active    bool

	// gameInfo supplies per-process metadata for the active PID, queried
	// synchronously just before each response is serialized. It must return
	// quickly and may be nil.
	gameInfo func(pid uint32) (*GameState, bool)

	listen       func() (net.Listener, error)
	backoff      time.Duration
	writeTimeout time.Duration
	log          log.Logger
}

// NewPublisher serves on the named local pipe.
func NewPublisher(pipeName string) *Publisher {
	return newPublisher(func() (net.Listener, error) {
		return listenPipe(pipeName)
	})
}

// newPublisher is the transport-agnostic constructor used directly by tests.
func newPublisher(listen func() (net.Listener, error)) *Publisher {
	return &Publisher{
		listen:       listen,
		backoff:      3 * time.Second,
		writeTimeout: 2 * time.Second,
		log:          logging.New("publisher"),
	}
}

// SetGameInfoSource installs the metadata collaborator. Set once before
// Serve starts.
func (p *Publisher) SetGameInfoSource(fn func(pid uint32) (*GameState, bool)) {
	p.mu.Lock()
	p.gameInfo = fn
	p.mu.Unlock()
}

// Update replaces the measurement served to the next connecting client.
// active reports whether pid names a qualifying process.
func (p *Publisher) Update(fps float64, pid uint32, active bool) {
	p.mu.Lock()
	p.fps = fps
	p.activePID = pid
	p.active = active
	p.mu.Unlock()
}

// Serve runs the accept-serve loop until stop is closed. It owns its thread;
// the caller runs it on a dedicated goroutine and closes stop to end it.
func (p *Publisher) Serve(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		ln, err := p.listen()
		if err != nil {
			// Most commonly the endpoint name is still held by a previous
			// instance. Back off and retry; never terminate the service.
			p.log.Warn().Err(err).Msg("endpoint creation failed, backing off")
			select {
			case <-stop:
				return
			case <-time.After(p.backoff):
			}
			continue
		}

		p.serveOne(ln, stop)
	}
}

// serveOne accepts a single connection on ln, writes the current snapshot,
// and destroys the endpoint. Transient client I/O failures are swallowed;
// the loop simply serves the next connection.
func (p *Publisher) serveOne(ln net.Listener, stop <-chan struct{}) {
	defer ln.Close()

	// Closing the listener is the only way to unblock Accept when the
	// service is told to stop.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-stop:
			ln.Close()
		case <-done:
		}
	}()

	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	data, err := encodeSnapshot(p.buildSnapshot())
	if err != nil {
		p.log.Error().Err(err).Msg("snapshot encode failed")
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	if _, err := conn.Write(data); err != nil {
		p.log.Debug().Err(err).Msg("client write failed")
	}
}

// buildSnapshot assembles the wire snapshot from the latest measurement,
// consulting the metadata collaborator outside the lock — it may perform
// its own (briefly) blocking work.
func (p *Publisher) buildSnapshot() Snapshot {
	p.mu.Lock()
	snap := Snapshot{FPS: p.fps}
	pid, active, gameInfo := p.activePID, p.active, p.gameInfo
	p.mu.Unlock()

	if active && gameInfo != nil {
		if gs, ok := gameInfo(pid); ok {
			snap.GameState = gs
		}
	}
	return snap
}
