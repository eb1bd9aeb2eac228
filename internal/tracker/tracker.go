package tracker

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/shirou/gopsutil/v3/process"

	"fpsmon/internal/logging"
)

// defaultExclusions lists executables that present frames but are never the
// game being played: the compositor, the shell, service hosts and input
// helpers. Compared against lowercase base names.
var defaultExclusions = []string{
	"dwm.exe",
	"explorer.exe",
	"svchost.exe",
	"csrss.exe",
	"taskhostw.exe",
	"searchhost.exe",
	"searchui.exe",
	"sihost.exe",
	"ctfmon.exe",
	"runtimebroker.exe",
	"textinputhost.exe",
	"shellexperiencehost.exe",
	"applicationframehost.exe",
	"audiodg.exe",
	"widgets.exe",
	"systemsettings.exe",
	"lockapp.exe",
}

// Config carries the tracker's tunables. Zero values fall back to the
// service defaults.
type Config struct {
	// Retention is how long a process's timestamps are kept.
	Retention time.Duration
	// Window is the span counted when converting timestamps to FPS.
	Window time.Duration
	// MaxEntries caps stored timestamps per process regardless of age.
	MaxEntries int
	// Lookup resolves a PID to an executable name. Defaults to an OS query;
	// tests inject their own.
	Lookup func(pid uint32) (string, error)
	// Exclude replaces the default exclusion list when non-nil.
	Exclude []string
}

// Tracker is the callback-facing store of recent present timestamps per
// process. The trace callback is the only appender; the aggregator is the
// only trimmer. Both sides share one mutex held only for map access — never
// across the OS name lookup.
type Tracker struct {
	mu       sync.Mutex
	logs     map[uint32][]time.Time
	names    map[uint32]string
	excluded map[string]struct{}

	retention  time.Duration
	window     time.Duration
	maxEntries int
	lookup     func(pid uint32) (string, error)
	log        log.Logger
}

// ProcessRate is one process's instantaneous FPS as observed by the tracker:
// the count of presents inside the window, which is numerically the FPS when
// the window is one second.
type ProcessRate struct {
	PID  uint32
	Name string
	FPS  float64
}

// New builds a tracker. The service's own executable is always excluded so
// it can never be selected as the game.
func New(cfg Config) *Tracker {
	if cfg.Retention <= 0 {
		cfg.Retention = 5 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 500
	}
	if cfg.Lookup == nil {
		cfg.Lookup = lookupProcessName
	}
	names := cfg.Exclude
	if names == nil {
		names = defaultExclusions
	}
	excluded := make(map[string]struct{}, len(names)+1)
	for _, n := range names {
		excluded[strings.ToLower(n)] = struct{}{}
	}
	if exe, err := os.Executable(); err == nil {
		excluded[strings.ToLower(filepath.Base(exe))] = struct{}{}
	}
	return &Tracker{
		logs:       make(map[uint32][]time.Time),
		names:      make(map[uint32]string),
		excluded:   excluded,
		retention:  cfg.Retention,
		window:     cfg.Window,
		maxEntries: cfg.MaxEntries,
		lookup:     cfg.Lookup,
		log:        logging.New("tracker"),
	}
}

// Record appends one present timestamp for pid. Called from the trace
// callback thread. Events from excluded processes are dropped; a failed name
// lookup (process already gone, access denied) drops the event silently —
// the tracing API has no use for an error from us.
func (t *Tracker) Record(pid uint32, ts time.Time) {
	t.mu.Lock()
	name, known := t.names[pid]
	t.mu.Unlock()

	if !known {
		resolved, err := t.lookup(pid)
		if err != nil {
			return
		}
		name = strings.ToLower(resolved)
		t.mu.Lock()
		// A concurrent Record for the same PID may have won the race; the
		// names agree either way, first write stays.
		if cached, ok := t.names[pid]; ok {
			name = cached
		} else {
			t.names[pid] = name
		}
		t.mu.Unlock()
		t.log.Debug().Uint32("pid", pid).Str("name", name).Msg("observed new process")
	}

	if _, skip := t.excluded[name]; skip {
		return
	}

	t.mu.Lock()
	entries := append(t.logs[pid], ts)
	if len(entries) > t.maxEntries {
		entries = entries[len(entries)-t.maxEntries:]
	}
	t.logs[pid] = entries
	t.mu.Unlock()
}

// Name returns the cached executable name for pid, if one was ever resolved.
// Names are never invalidated within a session; a recycled PID can briefly
// carry its predecessor's name, an accepted staleness bounded by retention.
func (t *Tracker) Name(pid uint32) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	name, ok := t.names[pid]
	return name, ok
}

// RatesAndTrim evicts timestamps older than the retention horizon, removes
// processes whose log becomes empty, and returns every surviving process's
// present count inside the window ending at now. Called by the aggregator.
func (t *Tracker) RatesAndTrim(now time.Time) []ProcessRate {
	horizon := now.Add(-t.retention)
	windowStart := now.Add(-t.window)

	t.mu.Lock()
	defer t.mu.Unlock()

	rates := make([]ProcessRate, 0, len(t.logs))
	for pid, entries := range t.logs {
		kept := trimBefore(entries, horizon)
		if len(kept) == 0 {
			delete(t.logs, pid)
			continue
		}
		t.logs[pid] = kept

		recent := 0
		for i := len(kept) - 1; i >= 0; i-- {
			if !kept[i].After(windowStart) {
				break
			}
			recent++
		}
		if recent == 0 {
			continue
		}
		rates = append(rates, ProcessRate{
			PID:  pid,
			Name: t.names[pid],
			FPS:  float64(recent),
		})
	}
	return rates
}

// TrackedProcesses reports how many processes currently hold a log entry.
func (t *Tracker) TrackedProcesses() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.logs)
}

// trimBefore drops leading entries at or before cutoff. Timestamps arrive in
// callback-delivery order per process, so a single scan from the front is
// enough.
func trimBefore(entries []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(entries) && !entries[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return entries
	}
	return entries[i:]
}

// lookupProcessName asks the OS for pid's executable base name.
func lookupProcessName(pid uint32) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	name, err := p.Name()
	if err != nil {
		return "", err
	}
	return name, nil
}
