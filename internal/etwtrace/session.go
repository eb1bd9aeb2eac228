//go:build windows

// Package etwtrace owns the real-time ETW session that delivers frame
// presentation events. It enables the user-mode graphics providers that
// emit present events and reduces each matching event record to a minimal
// PresentEvent before handing it to the tracker; all heavier work happens
// on the aggregator side.
package etwtrace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/tekert/goetw/etw"

	"fpsmon/internal/logging"
)

// Providers that emit present events. DXGI covers every D3D10+ swap chain,
// D3D9 covers legacy titles, and DWM-Core reports the compositor's own
// scheduling (optional; compositor presents are noise for game FPS).
const (
	dxgiProviderName = "Microsoft-Windows-DXGI"
	d3d9ProviderName = "Microsoft-Windows-D3D9"
	dwmProviderName  = "Microsoft-Windows-Dwm-Core"
)

var (
	dxgiProviderGUID = etw.MustParseGUID("{CA11C036-0102-4A2D-A6AD-F03CFED5D3C9}")
	d3d9ProviderGUID = etw.MustParseGUID("{783ACA0A-790E-4D7F-8451-AA850511C6B9}")
	dwmProviderGUID  = etw.MustParseGUID("{9E9BBA3C-2E38-40CB-99F4-9E8281425164}")
)

// Event IDs of the "present" records within each provider.
const (
	dxgiPresentStart    = 42 // IDXGISwapChain::Present entry
	dxgiPresentMPOStart = 55 // multiplane-overlay present entry
	d3d9PresentStart    = 1  // IDirect3DDevice9::Present entry
	dwmSchedulePresent  = 15 // compositor frame scheduling
)

// PresentEvent is the cheaply-copyable record forwarded from the trace
// callback. DXHint is the graphics API version inferred from the emitting
// provider (0 when nothing useful can be inferred).
type PresentEvent struct {
	PID       uint32
	Timestamp time.Time
	DXHint    uint32
}

// Session wraps a named real-time ETW session and its consumer. Start,
// Run and Stop may be called from different threads; Run owns the thread
// it blocks on for the session's lifetime.
type Session struct {
	name       string
	includeDWM bool
	log        log.Logger

	mu       sync.Mutex
	session  *etw.RealTimeSession
	consumer *etw.Consumer
}

func New(name string, includeDWM bool) *Session {
	return &Session{
		name:       name,
		includeDWM: includeDWM,
		log:        logging.New("etwtrace"),
	}
}

// Start stops any stale session with the same name, creates the real-time
// session and enables the present providers. Callers treat failure as
// non-fatal: without administrative rights the trace cannot be established
// and the service runs in no-data mode instead.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return nil
	}

	// A previous run that crashed while holding the session name leaves a
	// stale session behind; stop it by name first. "Not found" is success.
	stale := etw.NewRealTimeSession(s.name)
	if err := stale.Stop(); err == nil {
		s.log.Info().Str("session", s.name).Msg("stopped stale trace session")
	}

	session := etw.NewRealTimeSession(s.name)

	providers := []string{dxgiProviderName, d3d9ProviderName}
	if s.includeDWM {
		providers = append(providers, dwmProviderName)
	}
	for _, name := range providers {
		prov, err := etw.ParseProvider(name)
		if err != nil {
			session.Stop()
			return fmt.Errorf("parse provider %s: %w", name, err)
		}
		if err := session.EnableProvider(prov); err != nil {
			session.Stop()
			return fmt.Errorf("enable provider %s: %w", name, err)
		}
	}

	s.session = session
	s.log.Info().
		Str("session", s.name).
		Bool("dwm", s.includeDWM).
		Msg("trace session started")
	return nil
}

// Run consumes the session until Stop is called or the trace fails,
// invoking onPresent once per matching present event. It blocks the calling
// goroutine, which must be dedicated to it. Returns immediately when Start
// did not succeed.
func (s *Session) Run(onPresent func(PresentEvent)) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return fmt.Errorf("trace session not started")
	}
	consumer := etw.NewConsumer(context.Background())
	consumer.FromSessions(s.session)

	// The raw callback runs on the trace's own thread. It must stay cheap
	// and must never fail upward: reduce the record to {pid, hint, now} and
	// skip goetw's property parsing entirely by returning false.
	consumer.EventRecordCallback = func(er *etw.EventRecord) bool {
		hint, ok := classifyPresent(er)
		if ok {
			onPresent(PresentEvent{
				PID:       er.EventHeader.ProcessId,
				Timestamp: time.Now(),
				DXHint:    hint,
			})
		}
		return false
	}

	s.consumer = consumer
	s.mu.Unlock()

	if err := consumer.Start(); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	consumer.Wait()
	return nil
}

// Stop ends the consumer and releases the session. Safe to call before
// Start, after a failed Start, and any number of times.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.consumer = nil
	}
	if s.session != nil {
		if err := s.session.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.session = nil
		s.log.Info().Str("session", s.name).Msg("trace session stopped")
	}
	return firstErr
}

// classifyPresent reports whether the record is a present event and which
// graphics API it implies. DXGI cannot distinguish D3D11 from D3D12 on its
// own, so its hint stays at 11; the downstream detector refines it.
func classifyPresent(er *etw.EventRecord) (uint32, bool) {
	id := er.EventHeader.EventDescriptor.Id
	switch {
	case er.EventHeader.ProviderId.Equals(dxgiProviderGUID):
		if id == dxgiPresentStart || id == dxgiPresentMPOStart {
			return 11, true
		}
	case er.EventHeader.ProviderId.Equals(d3d9ProviderGUID):
		if id == d3d9PresentStart {
			return 9, true
		}
	case er.EventHeader.ProviderId.Equals(dwmProviderGUID):
		if id == dwmSchedulePresent {
			return 0, true
		}
	}
	return 0, false
}
