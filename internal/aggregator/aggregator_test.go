package aggregator

import (
	"fmt"
	"testing"
	"time"

	"fpsmon/internal/tracker"
)

// newTestTracker resolves every PID to a distinct game-like name so nothing
// hits the exclusion list.
func newTestTracker() *tracker.Tracker {
	return tracker.New(tracker.Config{
		Lookup: func(pid uint32) (string, error) {
			return fmt.Sprintf("game%d.exe", pid), nil
		},
	})
}

// recordPresents spreads n presents for pid across the second ending at now.
func recordPresents(tr *tracker.Tracker, pid uint32, n int, now time.Time) {
	step := time.Second / time.Duration(n+1)
	for i := n - 1; i >= 0; i-- {
		tr.Record(pid, now.Add(-time.Duration(i)*step))
	}
}

func TestWindowingReportsPresentCount(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	agg := New(tr, Config{})
	now := time.Now()

	recordPresents(tr, 100, 60, now)

	res := agg.Current(now)
	if !res.Active {
		t.Fatal("expected an active process")
	}
	if res.FPS != 60 {
		t.Errorf("FPS = %v, want 60", res.FPS)
	}
	if res.PID != 100 {
		t.Errorf("PID = %d, want 100", res.PID)
	}
}

func TestBandFiltering(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		fps    int
		active bool
	}{
		{"below band", 5, false},
		{"lower edge", 10, true},
		{"typical", 60, true},
		{"upper edge", 240, true},
		{"above band", 300, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tr := newTestTracker()
			agg := New(tr, Config{})
			now := time.Now()

			recordPresents(tr, 100, tc.fps, now)

			res := agg.Current(now)
			if res.Active != tc.active {
				t.Fatalf("Active = %v, want %v at %d FPS", res.Active, tc.active, tc.fps)
			}
			if !tc.active && res.FPS != 0 {
				t.Errorf("FPS = %v, want 0 with no qualifying process", res.FPS)
			}
			if tc.active && res.FPS != float64(tc.fps) {
				t.Errorf("FPS = %v, want %d", res.FPS, tc.fps)
			}
		})
	}
}

func TestSelectionPrefersHighestFPS(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	agg := New(tr, Config{})
	now := time.Now()

	recordPresents(tr, 100, 60, now)
	recordPresents(tr, 200, 144, now)

	res := agg.Current(now)
	if res.PID != 200 || res.FPS != 144 {
		t.Errorf("selected pid=%d fps=%v, want pid=200 fps=144", res.PID, res.FPS)
	}
}

func TestTieBreaksToLowestPID(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	agg := New(tr, Config{})
	now := time.Now()

	recordPresents(tr, 300, 120, now)
	recordPresents(tr, 100, 120, now)
	recordPresents(tr, 200, 120, now)

	res := agg.Current(now)
	if res.PID != 100 {
		t.Errorf("tie selected pid=%d, want lowest pid 100", res.PID)
	}
}

func TestNoCandidatesReportsZero(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	agg := New(tr, Config{})

	res := agg.Current(time.Now())
	if res.Active || res.FPS != 0 || res.PID != 0 {
		t.Errorf("empty tracker produced %+v, want zero result", res)
	}
}

func TestRecomputationIsRateLimited(t *testing.T) {
	t.Parallel()
	tr := newTestTracker()
	agg := New(tr, Config{Interval: 500 * time.Millisecond})
	now := time.Now()

	recordPresents(tr, 100, 60, now)
	first := agg.Current(now)

	// New events land, but inside the interval the cached result holds.
	recordPresents(tr, 200, 144, now.Add(100*time.Millisecond))
	cached := agg.Current(now.Add(100 * time.Millisecond))
	if cached != first {
		t.Errorf("within interval got %+v, want cached %+v", cached, first)
	}

	// Past the interval the faster process wins.
	recomputed := agg.Current(now.Add(600 * time.Millisecond))
	if recomputed.PID != 200 {
		t.Errorf("after interval selected pid=%d, want 200", recomputed.PID)
	}
}
