package detector

import "testing"

func TestHintRegistryMiss(t *testing.T) {
	t.Parallel()
	reg := NewHintRegistry(nil)
	if _, ok := reg.GameInfo(100); ok {
		t.Error("GameInfo() = ok for a PID with no observations")
	}
}

func TestHintRegistryCombinesHintAndName(t *testing.T) {
	t.Parallel()
	reg := NewHintRegistry(func(pid uint32) (string, bool) {
		if pid == 100 {
			return "game.exe", true
		}
		return "", false
	})

	reg.RegisterObservedDXHint(100, 11)
	info, ok := reg.GameInfo(100)
	if !ok {
		t.Fatal("GameInfo() missed after a hint was registered")
	}
	if info.PID != 100 || info.Name != "game.exe" || info.DXVersion != 11 {
		t.Errorf("GameInfo() = %+v, want pid=100 name=game.exe dx=11", info)
	}
	if info.HasFSO || info.CompatibleTopmost {
		t.Errorf("trace-only registry must leave detector-probed fields false, got %+v", info)
	}
}

func TestHintRegistryLatestHintWins(t *testing.T) {
	t.Parallel()
	reg := NewHintRegistry(nil)
	reg.RegisterObservedDXHint(100, 9)
	reg.RegisterObservedDXHint(100, 12)

	info, ok := reg.GameInfo(100)
	if !ok || info.DXVersion != 12 {
		t.Errorf("DXVersion = %d (ok=%v), want latest hint 12", info.DXVersion, ok)
	}
}

func TestHintRegistryIgnoresZeroHint(t *testing.T) {
	t.Parallel()
	reg := NewHintRegistry(nil)
	reg.RegisterObservedDXHint(100, 0)
	if _, ok := reg.GameInfo(100); ok {
		t.Error("a zero hint must not create an entry")
	}

	reg.RegisterObservedDXHint(100, 11)
	reg.RegisterObservedDXHint(100, 0)
	if info, _ := reg.GameInfo(100); info.DXVersion != 11 {
		t.Errorf("DXVersion = %d, want 11 preserved after zero hint", info.DXVersion)
	}
}
