//go:build windows

package window

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

var (
	user32            = windows.NewLazySystemDLL("user32.dll")
	procFindWindow    = user32.NewProc("FindWindowW")
	procIsWindow      = user32.NewProc("IsWindow")
	procGetWindowRect = user32.NewProc("GetWindowRect")
	procGetClientRect = user32.NewProc("GetClientRect")
	procSendMessage   = user32.NewProc("SendMessageW")
	procPostMessage   = user32.NewProc("PostMessageW")
	procVkKeyScan     = user32.NewProc("VkKeyScanW")
	procSetForeground = user32.NewProc("SetForegroundWindow")
	procGetForeground = user32.NewProc("GetForegroundWindow")
)

// System talks to the real window through user32.
type System struct {
	loc *Locator
}

// NewSystem returns a provider for the top-level window captioned title.
func NewSystem(title string, handleTTL time.Duration, log logrus.FieldLogger) *System {
	return &System{
		loc: NewLocator(title, handleTTL, findWindow, isWindow, log),
	}
}

// Locator exposes the handle cache.
func (s *System) Locator() *Locator {
	return s.loc
}

// Geometry implements Provider.
func (s *System) Geometry() (Geometry, error) {
	h, err := s.loc.Handle()
	if err != nil {
		return Geometry{}, err
	}

	var outer, client Rect
	if err := rectCall(procGetWindowRect, h, &outer); err != nil {
		s.loc.Invalidate()
		return Geometry{}, fmt.Errorf("%w: GetWindowRect: %w", ErrGeometryUnavailable, err)
	}
	if err := rectCall(procGetClientRect, h, &client); err != nil {
		s.loc.Invalidate()
		return Geometry{}, fmt.Errorf("%w: GetClientRect: %w", ErrGeometryUnavailable, err)
	}

	return Geometry{Handle: h, Outer: outer, Client: client}, nil
}

// Send implements Target.
func (s *System) Send(handle uintptr, msg uint32, wparam, lparam uintptr) error {
	// SendMessage returns the window procedure's result, not a status
	procSendMessage.Call(handle, uintptr(msg), wparam, lparam)
	return nil
}

// Post implements Target.
func (s *System) Post(handle uintptr, msg uint32, wparam, lparam uintptr) error {
	ret, _, err := procPostMessage.Call(handle, uintptr(msg), wparam, lparam)
	if ret == 0 {
		return fmt.Errorf("PostMessage 0x%x: %w", msg, err)
	}
	return nil
}

// KeyScan implements Target.
func (s *System) KeyScan(r rune) (uintptr, error) {
	ret, _, _ := procVkKeyScan.Call(uintptr(uint16(r)))
	if int16(ret) == -1 {
		return 0, fmt.Errorf("no virtual key for %q", r)
	}
	return ret & 0xffff, nil
}

// CycleFocus brings the window to the foreground and hands focus back to the
// previous foreground window, which arms a freshly installed focus hook.
func (s *System) CycleFocus() error {
	h, err := s.loc.Handle()
	if err != nil {
		return err
	}
	prev, _, _ := procGetForeground.Call()
	if ret, _, err := procSetForeground.Call(h); ret == 0 {
		return fmt.Errorf("SetForegroundWindow: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	if prev != 0 && prev != h {
		procSetForeground.Call(prev)
	}
	return nil
}

func findWindow(title string) (uintptr, error) {
	ptr, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return 0, err
	}
	h, _, _ := procFindWindow.Call(0, uintptr(unsafe.Pointer(ptr)))
	return h, nil
}

func isWindow(h uintptr) bool {
	ret, _, _ := procIsWindow.Call(h)
	return ret != 0
}

func rectCall(proc *windows.LazyProc, h uintptr, r *Rect) error {
	ret, _, err := proc.Call(h, uintptr(unsafe.Pointer(r)))
	if ret == 0 {
		return err
	}
	return nil
}
