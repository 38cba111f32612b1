// Package tray provides a system tray menu for the photo tree.
package tray

import (
	"context"
	"sync"
	"time"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/tinsel/internal/control"
)

// Tray represents the system tray application.
type Tray struct {
	onMode func(mode control.Mode) error
	onOpen func()
	onQuit func()
	title  func(id string) string
	mode   control.Mode
	mu     sync.RWMutex

	// Menu items stored for later updates
	menuMode         *systray.MenuItem
	menuFocus        *systray.MenuItem
	menuAvailability *systray.MenuItem
}

// New creates a new Tray in pointer mode.
func New() *Tray {
	return &Tray{mode: control.ModePointer}
}

// OnModeChange sets the callback invoked when the user toggles gesture
// control. If it fails, the menu keeps showing the previous mode.
func (t *Tray) OnModeChange(fn func(mode control.Mode) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMode = fn
}

// OnOpen sets the callback function to be called when the open menu item is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// TitleFunc sets how focused photo ids are shown. By default the id is
// shown as is.
func (t *Tray) TitleFunc(fn func(id string) string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.title = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Tinsel")
	systray.SetTooltip("Tinsel photo tree")

	t.mu.Lock()
	t.menuMode = systray.AddMenuItem(modeLabel(t.mode), "Toggle hand gesture control")
	systray.AddSeparator()

	t.menuFocus = systray.AddMenuItem(focusLabel(""), "Focused photo")
	t.menuFocus.Disable()
	t.menuAvailability = systray.AddMenuItem(availabilityLabel(control.AvailabilityOff), "Gesture input status")
	t.menuAvailability.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Tree...", "Open the tree in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Tinsel")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuMode.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips between pointer and gesture mode.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	next := control.ModeGesture
	if t.mode == control.ModeGesture {
		next = control.ModePointer
	}
	callback := t.onMode
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		if err := callback(next); err != nil {
			log.Warn().Err(err).Str("mode", next.String()).Msg("mode change failed")
			return
		}
	}
	t.SetMode(next)
}

// handleOpen handles the open menu item click.
func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
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

// Mode returns the mode the menu shows.
func (t *Tray) Mode() control.Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// SetMode updates the mode display.
func (t *Tray) SetMode(mode control.Mode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = mode
	if t.menuMode != nil {
		t.menuMode.SetTitle(modeLabel(mode))
	}
}

// SetFocus updates the focused photo display.
func (t *Tray) SetFocus(id string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuFocus == nil {
		return
	}
	name := id
	if id != "" && t.title != nil {
		name = t.title(id)
	}
	t.menuFocus.SetTitle(focusLabel(name))
}

// SetAvailability updates the gesture status display.
func (t *Tray) SetAvailability(a control.Availability) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuAvailability != nil {
		t.menuAvailability.SetTitle(availabilityLabel(a))
	}
}

// Watch mirrors state into the menu every interval until ctx is done.
func (t *Tray) Watch(ctx context.Context, state *control.State, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last control.Snapshot
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap := state.Snapshot()
		if first || snap.Mode != last.Mode {
			t.SetMode(snap.Mode)
		}
		if first || snap.FocusedID != last.FocusedID {
			t.SetFocus(snap.FocusedID)
		}
		if first || snap.Availability != last.Availability {
			t.SetAvailability(snap.Availability)
		}
		last, first = snap, false
	}
}

func modeLabel(mode control.Mode) string {
	if mode == control.ModeGesture {
		return "● Gesture control"
	}
	return "○ Gesture control"
}

func focusLabel(name string) string {
	if name == "" {
		return "Focus: none"
	}
	return "Focus: " + name
}

func availabilityLabel(a control.Availability) string {
	switch a {
	case control.AvailabilityReady:
		return "Camera: tracking"
	case control.AvailabilityInitializing:
		return "Camera: starting..."
	case control.AvailabilityUnavailable:
		return "Camera: hand tracking unavailable"
	case control.AvailabilityCameraDenied:
		return "Camera: access denied"
	default:
		return "Camera: off"
	}
}
