// Package hotkey registers global hotkeys such as the panic key that removes
// every hook from the game.
package hotkey

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"nguctl/internal/logging"
)

// Modifier flags, matching the MOD_* values of RegisterHotKey.
const (
	ModAlt   uint32 = 0x0001
	ModCtrl  uint32 = 0x0002
	ModShift uint32 = 0x0004
	ModWin   uint32 = 0x0008
)

// Combo is a parsed hotkey: a set of modifiers and one virtual key.
type Combo struct {
	Mods uint32
	VK   uint32
	Key  string
}

func (c Combo) String() string {
	var parts []string
	if c.Mods&ModCtrl != 0 {
		parts = append(parts, "CTRL")
	}
	if c.Mods&ModAlt != 0 {
		parts = append(parts, "ALT")
	}
	if c.Mods&ModShift != 0 {
		parts = append(parts, "SHIFT")
	}
	if c.Mods&ModWin != 0 {
		parts = append(parts, "WIN")
	}
	return strings.Join(append(parts, c.Key), "+")
}

// Parse reads a hotkey string (e.g. "Ctrl+Alt+Shift+Esc"). Exactly one
// non-modifier key is required.
func Parse(s string) (Combo, error) {
	var c Combo
	for _, p := range strings.Split(strings.ToUpper(s), "+") {
		p = strings.TrimSpace(p)
		switch p {
		case "CTRL", "CONTROL":
			c.Mods |= ModCtrl
		case "ALT":
			c.Mods |= ModAlt
		case "SHIFT":
			c.Mods |= ModShift
		case "WIN", "CMD":
			c.Mods |= ModWin
		case "":
			return Combo{}, fmt.Errorf("hotkey %q: empty key", s)
		default:
			if c.Key != "" {
				return Combo{}, fmt.Errorf("hotkey %q: more than one key (%s, %s)", s, c.Key, p)
			}
			vk, ok := nameToVK(p)
			if !ok {
				return Combo{}, fmt.Errorf("hotkey %q: unknown key %s", s, p)
			}
			c.Key, c.VK = p, vk
		}
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("hotkey %q: no key", s)
	}
	return c, nil
}

// Manager handles global hotkey registration and dispatch
type Manager struct {
	mu      sync.RWMutex
	hotkeys []*registeredHotkey
	log     logrus.FieldLogger
}

type registeredHotkey struct {
	combo    Combo
	original string
	callback func()
}

// NewManager creates a new hotkey manager
func NewManager(log logrus.FieldLogger) *Manager {
	return &Manager{log: logging.Component(log, "hotkey")}
}

// Register registers a hotkey string and a callback. An empty string is
// ignored and returns -1.
func (m *Manager) Register(hotkeyStr string, callback func()) (int, error) {
	if strings.TrimSpace(hotkeyStr) == "" {
		return -1, nil
	}
	combo, err := Parse(hotkeyStr)
	if err != nil {
		return -1, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		combo:    combo,
		original: hotkeyStr,
		callback: callback,
	})
	return len(m.hotkeys) - 1, nil
}

// Clear removes all registered hotkeys. Takes effect on the next Start.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

func (m *Manager) combos() []Combo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Combo, len(m.hotkeys))
	for i, hk := range m.hotkeys {
		out[i] = hk.combo
	}
	return out
}

// trigger runs the callback of hotkey id in its own goroutine.
func (m *Manager) trigger(id int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < 0 || id >= len(m.hotkeys) {
		return
	}
	hk := m.hotkeys[id]
	m.log.Infof("Hotkey triggered: %s", hk.original)
	go hk.callback()
}

// Start registers the hotkeys with the OS and dispatches them until ctx is
// cancelled.
func (m *Manager) Start(ctx context.Context) error {
	return m.startPlatform(ctx)
}
