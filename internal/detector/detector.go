// Package detector defines the boundary to the game-detection pipeline. The
// full detector (DirectX version probing, fullscreen-optimization checks,
// overlay compatibility) lives outside this service; what lives here is the
// interface the publisher consumes plus a small registry that accumulates
// the hints the trace layer observes for free.
package detector

import (
	"sync"
)

// GameInfo is the per-process metadata attached to a published snapshot.
type GameInfo struct {
	PID               uint32
	Name              string
	DXVersion         uint32
	HasFSO            bool
	CompatibleTopmost bool
}

// Provider supplies metadata for an active process. Implementations must
// return quickly and degrade to (zero, false) on any internal failure; the
// publisher calls this synchronously while a client is waiting.
type Provider interface {
	GameInfo(pid uint32) (GameInfo, bool)
}

// HintRegistry is a Provider built purely from trace-side observations: the
// graphics API a present event arrived through, and the executable name the
// tracker resolved. Fields the real detector would probe (FSO state, overlay
// compatibility) stay false here.
type HintRegistry struct {
	mu    sync.RWMutex
	hints map[uint32]uint32

	// names resolves a PID to a cached executable name; typically the
	// tracker's Name method.
	names func(pid uint32) (string, bool)
}

func NewHintRegistry(names func(pid uint32) (string, bool)) *HintRegistry {
	return &HintRegistry{
		hints: make(map[uint32]uint32),
		names: names,
	}
}

// RegisterObservedDXHint records which graphics API version a present event
// for pid came from. Later observations overwrite earlier ones: a game that
// switches swap-chain paths reports its newest API. Never required for
// correctness — a missing hint only means a snapshot without metadata.
func (r *HintRegistry) RegisterObservedDXHint(pid, version uint32) {
	if version == 0 {
		return
	}
	r.mu.Lock()
	r.hints[pid] = version
	r.mu.Unlock()
}

// GameInfo implements Provider from the accumulated hints.
func (r *HintRegistry) GameInfo(pid uint32) (GameInfo, bool) {
	r.mu.RLock()
	version, ok := r.hints[pid]
	r.mu.RUnlock()
	if !ok {
		return GameInfo{}, false
	}
	info := GameInfo{PID: pid, DXVersion: version}
	if r.names != nil {
		if name, ok := r.names(pid); ok {
			info.Name = name
		}
	}
	return info, true
}
