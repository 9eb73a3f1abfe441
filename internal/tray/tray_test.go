package tray

import "testing"

func TestTray_Defaults(t *testing.T) {
	tr := New()

	if !tr.State(ToggleEnabled) {
		t.Error("tracking should start enabled")
	}
	if !tr.State(ToggleDebug) {
		t.Error("debug overlay should start enabled")
	}
	if tr.State(ToggleFlip) || tr.State(ToggleRootMotion) {
		t.Error("flip and root motion should start disabled")
	}
}

func TestTray_HandleToggle(t *testing.T) {
	tr := New()

	var got Toggle
	var gotOn bool
	calls := 0
	tr.OnToggle(func(tg Toggle, on bool) {
		got, gotOn = tg, on
		calls++
	})

	tr.handleToggle(ToggleFlip)
	if calls != 1 || got != ToggleFlip || !gotOn {
		t.Errorf("callback = (%v, %v) after %d calls, want (ToggleFlip, true)", got, gotOn, calls)
	}
	if !tr.State(ToggleFlip) {
		t.Error("flip should be on")
	}

	tr.handleToggle(ToggleFlip)
	if gotOn || tr.State(ToggleFlip) {
		t.Error("flip should be off after second toggle")
	}
}

func TestTray_SetState(t *testing.T) {
	tr := New()
	tr.SetState(ToggleRootMotion, true)
	if !tr.State(ToggleRootMotion) {
		t.Error("root motion should be on")
	}
	// No menu yet; must not panic.
	tr.SetFrames(10)
}

func TestToggleTitle(t *testing.T) {
	if got := toggleTitle(ToggleFlip, true); got != "● Mirror" {
		t.Errorf("toggleTitle(on) = %q", got)
	}
	if got := toggleTitle(ToggleDebug, false); got != "○ Debug overlay" {
		t.Errorf("toggleTitle(off) = %q", got)
	}
}

func TestTray_SettingsCallback(t *testing.T) {
	tr := New()
	called := false
	tr.OnSettings(func() { called = true })
	tr.handleSettings()
	if !called {
		t.Error("settings callback not called")
	}
}
