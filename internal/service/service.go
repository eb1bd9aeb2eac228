//go:build windows

// Package service binds the trace session, tracker, aggregator and publisher
// to the Windows service control protocol.
package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/debug"

	"fpsmon/internal/aggregator"
	"fpsmon/internal/config"
	"fpsmon/internal/detector"
	"fpsmon/internal/etwtrace"
	"fpsmon/internal/ipc"
	"fpsmon/internal/logging"
	"fpsmon/internal/tracker"
)

// Name is the registered service name.
const Name = "FpsMon"

// joinTimeout bounds how long Stop waits for the trace and publisher
// threads before reporting Stopped anyway.
const joinTimeout = 5 * time.Second

type handler struct {
	cfg config.Config
	log log.Logger
}

// Run executes the service under the SCM, or under the debug harness when
// interactive is true. The returned error means registration with the
// service manager itself failed — the only fatal condition in this service.
func Run(cfg config.Config, interactive bool) error {
	h := &handler{cfg: cfg, log: logging.New("service")}
	if interactive {
		return debug.Run(Name, h)
	}
	return svc.Run(Name, h)
}

// Execute implements svc.Handler. Errors during startup still funnel into a
// Stopped report with a non-zero service-specific exit code; the SCM must
// never be left believing the service runs when it does not.
func (h *handler) Execute(args []string, requests <-chan svc.ChangeRequest, status chan<- svc.Status) (svcSpecific bool, exitCode uint32) {
	const accepted = svc.AcceptStop | svc.AcceptShutdown | svc.AcceptPauseAndContinue

	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Str("panic", fmt.Sprint(r)).Msg("service loop panicked")
			svcSpecific = true
			exitCode = 1
		}
	}()

	status <- svc.Status{State: svc.StartPending, WaitHint: 10_000}

	track := tracker.New(tracker.Config{
		Retention:  time.Duration(h.cfg.RetentionSeconds) * time.Second,
		MaxEntries: h.cfg.MaxLogEntries,
	})
	agg := aggregator.New(track, aggregator.Config{
		Interval: time.Duration(h.cfg.AggregateIntervalMS) * time.Millisecond,
		MinFPS:   h.cfg.MinFPS,
		MaxFPS:   h.cfg.MaxFPS,
	})
	hints := detector.NewHintRegistry(track.Name)
	session := etwtrace.New(h.cfg.SessionName, h.cfg.EnableDWMProvider)
	publisher := ipc.NewPublisher(h.cfg.PipeName)
	publisher.SetGameInfoSource(gameInfoSource(hints, track))

	stop := make(chan struct{})
	var workers sync.WaitGroup

	// Trace failure is non-fatal: without admin rights the session cannot be
	// established and the service publishes FPS 0 until restarted.
	if err := session.Start(); err != nil {
		h.log.Warn().Err(err).Msg("trace unavailable, running in no-data mode")
	} else {
		workers.Add(1)
		go func() {
			defer workers.Done()
			err := session.Run(func(ev etwtrace.PresentEvent) {
				track.Record(ev.PID, ev.Timestamp)
				if ev.DXHint != 0 {
					hints.RegisterObservedDXHint(ev.PID, ev.DXHint)
				}
			})
			if err != nil {
				h.log.Warn().Err(err).Msg("trace event loop ended")
			}
		}()
	}

	workers.Add(1)
	go func() {
		defer workers.Done()
		publisher.Serve(stop)
	}()

	status <- svc.Status{State: svc.Running, Accepts: accepted}
	h.log.Info().Msg("service running")

	ticker := time.NewTicker(time.Duration(h.cfg.PollIntervalMS) * time.Millisecond)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			res := agg.Current(time.Now())
			publisher.Update(res.FPS, res.PID, res.Active)
		case req := <-requests:
			switch req.Cmd {
			case svc.Interrogate:
				status <- req.CurrentStatus
			case svc.Stop, svc.Shutdown:
				break loop
			case svc.Pause:
				// Protocol completeness only; measurement keeps running.
				status <- svc.Status{State: svc.Paused, Accepts: accepted}
			case svc.Continue:
				status <- svc.Status{State: svc.Running, Accepts: accepted}
			}
		}
	}

	status <- svc.Status{State: svc.StopPending, WaitHint: uint32(joinTimeout/time.Millisecond) + 1000}
	close(stop)
	if err := session.Stop(); err != nil {
		h.log.Warn().Err(err).Msg("trace session stop failed")
	}

	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(joinTimeout):
		h.log.Warn().Msg("worker threads did not exit in time")
	}

	h.log.Info().Msg("service stopped")
	return false, 0
}

// gameInfoSource adapts the detector to the publisher's per-connection
// metadata query. A detector miss degrades to the process identity the
// tracker already knows; only a process with no resolved name at all yields
// a bare-FPS snapshot.
func gameInfoSource(provider detector.Provider, track *tracker.Tracker) func(pid uint32) (*ipc.GameState, bool) {
	return func(pid uint32) (*ipc.GameState, bool) {
		info, ok := provider.GameInfo(pid)
		if !ok {
			name, known := track.Name(pid)
			if !known {
				return nil, false
			}
			info = detector.GameInfo{PID: pid, Name: name}
		}
		if info.Name == "" {
			if name, known := track.Name(pid); known {
				info.Name = name
			}
		}
		return &ipc.GameState{
			PID:               info.PID,
			Name:              info.Name,
			DXVersion:         info.DXVersion,
			HasFSO:            info.HasFSO,
			CompatibleTopmost: info.CompatibleTopmost,
		}, true
	}
}
