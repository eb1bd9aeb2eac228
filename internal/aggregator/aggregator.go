package aggregator

import (
	"sort"
	"sync"
	"time"

	"github.com/phuslu/log"

	"fpsmon/internal/logging"
	"fpsmon/internal/tracker"
)

// Result is the externally visible outcome of one aggregation pass. When no
// process qualifies, FPS is 0 and Active is false.
type Result struct {
	FPS    float64
	PID    uint32
	Name   string
	Active bool
}

// Config carries the aggregator's tunables. Zero values fall back to the
// service defaults.
type Config struct {
	// Interval is the minimum spacing between recomputations; callers inside
	// the interval receive the previous result.
	Interval time.Duration
	// MinFPS and MaxFPS bound the plausible game range. Rates outside the
	// band are idle/background noise or compositor artifacts and are ignored
	// even when they are the only candidates.
	MinFPS float64
	MaxFPS float64
}

// Aggregator turns the tracker's raw timestamps into a reported FPS and
// picks the process the system is "about". Reads are serialized internally,
// so any thread may call Current.
type Aggregator struct {
	tracker  *tracker.Tracker
	interval time.Duration
	minFPS   float64
	maxFPS   float64

	mu           sync.Mutex
	last         Result
	lastComputed time.Time
	log          log.Logger
}

func New(t *tracker.Tracker, cfg Config) *Aggregator {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.MinFPS <= 0 {
		cfg.MinFPS = 10
	}
	if cfg.MaxFPS <= cfg.MinFPS {
		cfg.MaxFPS = 240
	}
	return &Aggregator{
		tracker:  t,
		interval: cfg.Interval,
		minFPS:   cfg.MinFPS,
		maxFPS:   cfg.MaxFPS,
		log:      logging.New("aggregator"),
	}
}

// Current returns the latest aggregation result, recomputing only when the
// previous one is older than the configured interval.
func (a *Aggregator) Current(now time.Time) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.lastComputed.IsZero() && now.Sub(a.lastComputed) < a.interval {
		return a.last
	}

	rates := a.tracker.RatesAndTrim(now)
	result := a.selectActive(rates)

	if result.Active != a.last.Active || result.PID != a.last.PID {
		a.log.Debug().
			Uint32("pid", result.PID).
			Str("name", result.Name).
			Float64("fps", result.FPS).
			Msg("active process changed")
	}

	a.last = result
	a.lastComputed = now
	return result
}

// selectActive picks the in-band process with the highest FPS. Ties break
// toward the lowest PID so repeated passes over identical rates stay stable.
func (a *Aggregator) selectActive(rates []tracker.ProcessRate) Result {
	candidates := rates[:0]
	for _, r := range rates {
		if r.FPS < a.minFPS || r.FPS > a.maxFPS {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return Result{}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FPS == candidates[j].FPS {
			return candidates[i].PID < candidates[j].PID
		}
		return candidates[i].FPS > candidates[j].FPS
	})

	best := candidates[0]
	return Result{
		FPS:    best.FPS,
		PID:    best.PID,
		Name:   best.Name,
		Active: true,
	}
}
