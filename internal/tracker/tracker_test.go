package tracker

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestTracker(lookup func(pid uint32) (string, error)) *Tracker {
	return New(Config{Lookup: lookup})
}

func staticLookup(name string) func(pid uint32) (string, error) {
	return func(pid uint32) (string, error) { return name, nil }
}

func rateFor(rates []ProcessRate, pid uint32) (ProcessRate, bool) {
	for _, r := range rates {
		if r.PID == pid {
			return r, true
		}
	}
	return ProcessRate{}, false
}

func TestRecordCountsPresentsInWindow(t *testing.T) {
	t.Parallel()
	tr := newTestTracker(staticLookup("game.exe"))
	now := time.Now()

	// 60 presents spread across the last second, oldest first as the
	// callback would deliver them.
	for i := 59; i >= 0; i-- {
		tr.Record(100, now.Add(-time.Duration(i)*(time.Second/61)))
	}

	rate, ok := rateFor(tr.RatesAndTrim(now), 100)
	if !ok {
		t.Fatal("process 100 missing from rates")
	}
	if rate.FPS != 60 {
		t.Errorf("FPS = %v, want 60", rate.FPS)
	}
	if rate.Name != "game.exe" {
		t.Errorf("Name = %q, want %q", rate.Name, "game.exe")
	}
}

func TestEvictionBeyondRetention(t *testing.T) {
	t.Parallel()
	tr := newTestTracker(staticLookup("game.exe"))
	now := time.Now()

	// Old presents only: the trim pass must evict them and drop the process.
	for i := 0; i < 20; i++ {
		tr.Record(100, now.Add(-6*time.Second))
	}
	if rates := tr.RatesAndTrim(now); len(rates) != 0 {
		t.Errorf("rates = %v, want empty", rates)
	}
	if n := tr.TrackedProcesses(); n != 0 {
		t.Errorf("TrackedProcesses = %d, want 0 after emptied log", n)
	}
}

func TestOldPresentsSurviveRetentionButNotWindow(t *testing.T) {
	t.Parallel()
	tr := newTestTracker(staticLookup("game.exe"))
	now := time.Now()

	// Presents 3 s ago: inside retention, outside the 1 s window.
	tr.Record(100, now.Add(-3*time.Second))
	tr.Record(100, now.Add(-3*time.Second))

	if _, ok := rateFor(tr.RatesAndTrim(now), 100); ok {
		t.Error("process with no presents in window must not report a rate")
	}
	if n := tr.TrackedProcesses(); n != 1 {
		t.Errorf("TrackedProcesses = %d, want 1 (log still retained)", n)
	}
}

func TestHardCapBoundsStoredEntries(t *testing.T) {
	t.Parallel()
	tr := newTestTracker(staticLookup("game.exe"))
	now := time.Now()

	// Pathological rate: far more presents inside the window than the cap.
	for i := 1199; i >= 0; i-- {
		tr.Record(100, now.Add(-time.Duration(i)*time.Millisecond/2))
	}

	rate, ok := rateFor(tr.RatesAndTrim(now), 100)
	if !ok {
		t.Fatal("process 100 missing from rates")
	}
	if rate.FPS != 500 {
		t.Errorf("FPS = %v, want exactly the 500-entry cap", rate.FPS)
	}
}

func TestExcludedProcessesAreDropped(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		exeName string
		tracked bool
	}{
		{"compositor", "dwm.exe", false},
		{"shell", "explorer.exe", false},
		{"service host", "svchost.exe", false},
		{"uppercase compositor", "DWM.exe", false},
		{"ordinary game", "elden_ring.exe", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tr := newTestTracker(staticLookup(tc.exeName))
			tr.Record(100, time.Now())
			got := tr.TrackedProcesses() == 1
			if got != tc.tracked {
				t.Errorf("tracked = %v, want %v for %q", got, tc.tracked, tc.exeName)
			}
		})
	}
}

func TestFailedLookupDropsEvent(t *testing.T) {
	t.Parallel()
	tr := newTestTracker(func(pid uint32) (string, error) {
		return "", errors.New("access denied")
	})
	tr.Record(100, time.Now())
	if n := tr.TrackedProcesses(); n != 0 {
		t.Errorf("TrackedProcesses = %d, want 0 when lookup fails", n)
	}
	if _, ok := tr.Name(100); ok {
		t.Error("failed lookup must not populate the name cache")
	}
}

func TestNameLookupHappensOnce(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	tr := newTestTracker(func(pid uint32) (string, error) {
		calls.Add(1)
		return "game.exe", nil
	})

	now := time.Now()
	for i := 0; i < 50; i++ {
		tr.Record(100, now)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("lookup called %d times, want 1", n)
	}
	if name, ok := tr.Name(100); !ok || name != "game.exe" {
		t.Errorf("Name(100) = %q, %v; want %q, true", name, ok, "game.exe")
	}
}
