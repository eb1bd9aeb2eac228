//go:build windows

package etwtrace

import (
	"strings"
	"testing"
)

func TestStopBeforeStartIsSafe(t *testing.T) {
	t.Parallel()
	s := New("FpsMonTraceTest", false)
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() before Start() = %v, want nil", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() = %v, want nil", err)
	}
}

func TestRunWithoutStartFails(t *testing.T) {
	t.Parallel()
	s := New("FpsMonTraceTest", false)
	if err := s.Run(func(PresentEvent) {}); err == nil {
		t.Error("Run() without Start() = nil, want error")
	}
}

func TestClassifyPresentConstants(t *testing.T) {
	t.Parallel()
	// Guard against accidental edits to the provider GUIDs.
	if got := dxgiProviderGUID.String(); !strings.EqualFold(got, "{CA11C036-0102-4A2D-A6AD-F03CFED5D3C9}") {
		t.Errorf("DXGI GUID = %s", got)
	}
	if got := d3d9ProviderGUID.String(); !strings.EqualFold(got, "{783ACA0A-790E-4D7F-8451-AA850511C6B9}") {
		t.Errorf("D3D9 GUID = %s", got)
	}
}
