// Package tray provides a system tray menu for the retargeting pipeline.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Toggle identifies a switch in the tray menu.
type Toggle int

const (
	ToggleEnabled Toggle = iota
	ToggleFlip
	ToggleRootMotion
	ToggleDebug
)

var toggleLabels = map[Toggle]string{
	ToggleEnabled:    "Tracking",
	ToggleFlip:       "Mirror",
	ToggleRootMotion: "Root motion",
	ToggleDebug:      "Debug overlay",
}

// toggleOrder fixes the menu layout.
var toggleOrder = []Toggle{ToggleEnabled, ToggleFlip, ToggleRootMotion, ToggleDebug}

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(t Toggle, on bool)
	onSettings func()
	onQuit     func()
	state      map[Toggle]bool
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggles map[Toggle]*systray.MenuItem
	menuStatus  *systray.MenuItem
}

// New creates a new Tray with tracking and the debug overlay on.
func New() *Tray {
	return &Tray{
		state: map[Toggle]bool{
			ToggleEnabled: true,
			ToggleDebug:   true,
		},
		menuToggles: make(map[Toggle]*systray.MenuItem),
	}
}

// SetState sets a toggle before the menu is shown or after an external change.
func (t *Tray) SetState(tg Toggle, on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state[tg] = on
	if item := t.menuToggles[tg]; item != nil {
		item.SetTitle(toggleTitle(tg, on))
	}
}

// State returns the current state of a toggle.
func (t *Tray) State(tg Toggle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state[tg]
}

// OnToggle sets the callback called when a toggle changes.
func (t *Tray) OnToggle(fn func(t Toggle, on bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func toggleTitle(tg Toggle, on bool) string {
	if on {
		return "● " + toggleLabels[tg]
	}
	return "○ " + toggleLabels[tg]
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Retarget")
	systray.SetTooltip("Avatar pose retargeting")

	t.mu.Lock()
	for _, tg := range toggleOrder {
		item := systray.AddMenuItem(toggleTitle(tg, t.state[tg]), "Toggle "+toggleLabels[tg])
		t.menuToggles[tg] = item
		go t.watch(tg, item)
	}
	t.mu.Unlock()
	systray.AddSeparator()

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem("Frames: 0", "Solved frames")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Retarget")

	go func() {
		for {
			select {
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) watch(tg Toggle, item *systray.MenuItem) {
	for range item.ClickedCh {
		t.handleToggle(tg)
	}
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handleToggle flips a toggle and reports it.
func (t *Tray) handleToggle(tg Toggle) {
	t.mu.Lock()
	on := !t.state[tg]
	t.state[tg] = on
	if item := t.menuToggles[tg]; item != nil {
		item.SetTitle(toggleTitle(tg, on))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(tg, on)
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetFrames updates the solved frame counter in the menu.
func (t *Tray) SetFrames(n int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus != nil {
		t.menuStatus.SetTitle(fmt.Sprintf("Frames: %d", n))
	}
}
