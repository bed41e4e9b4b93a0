// Package tray provides the system tray menu of the serve command, using
// getlantern/systray.
package tray

import "sync"

// nativeItem is the platform menu entry; *systray.MenuItem implements it.
type nativeItem interface {
	SetTitle(title string)
	Check()
	Uncheck()
	Disable()
}

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Disabled bool
	Callback func()
	item     nativeItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	mu      sync.Mutex
	items   []*MenuItem
	tooltip string
	onExit  func()
	quitCh  chan struct{}
	stop    sync.Once
}

// New creates a new system tray. onExit runs once the tray loop has ended.
func New(tooltip string, onExit func()) *Tray {
	return &Tray{
		tooltip: tooltip,
		onExit:  onExit,
		quitCh:  make(chan struct{}),
	}
}

// AddMenuItem adds a menu item to the tray. A nil callback makes a
// read-only line.
func (t *Tray) AddMenuItem(title string, callback func()) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := len(t.items)
	t.items = append(t.items, &MenuItem{
		ID:       id,
		Title:    title,
		Disabled: callback == nil,
		Callback: callback,
	})
	return id
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

// SetItemTitle changes the label of a menu item
func (t *Tray) SetItemTitle(id int, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.items) || t.items[id] == nil {
		return
	}
	t.items[id].Title = title
	if t.items[id].item != nil {
		t.items[id].item.SetTitle(title)
	}
}

// SetItemChecked sets the checked state of a menu item
func (t *Tray) SetItemChecked(id int, checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.items) || t.items[id] == nil || t.items[id].item == nil {
		return
	}
	if checked {
		t.items[id].item.Check()
	} else {
		t.items[id].item.Uncheck()
	}
}

// getIcon returns a 16x16 32-bit ICO filled with a solid color.
func getIcon() []byte {
	const pixels = 16 * 16
	icon := make([]byte, 22+40+pixels*4+64)
	// ICO Header
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// Icon Directory
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x68, 0x04, 0x00, 0x00, // Size: 40 (header) + 1024 (pixels) + 64 (mask)
		0x16, 0x00, 0x00, 0x00, // Offset
	})
	// DIB Header
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00, // Size
		0x10, 0x00, 0x00, 0x00, // Width
		0x20, 0x00, 0x00, 0x00, // Height (16 * 2 for icon)
		0x01, 0x00, // Planes
		0x20, 0x00, // BPP
		0x00, 0x00, 0x00, 0x00, // Compression
		0x00, 0x04, 0x00, 0x00, // Image Size
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	})
	// BGRA pixels; the AND mask after them stays zero
	for i := 0; i < pixels; i++ {
		copy(icon[62+i*4:], []byte{0x3c, 0xb4, 0x2e, 0xff})
	}
	return icon
}
