//go:build windows

package hotkey

import (
	"context"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                = windows.NewLazySystemDLL("user32.dll")
	procRegisterHotKey    = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey  = user32.NewProc("UnregisterHotKey")
	procGetMessage        = user32.NewProc("GetMessageW")
	procPostThreadMessage = user32.NewProc("PostThreadMessageW")
)

const (
	wmQuit      = 0x0012
	wmHotkey    = 0x0312
	modNoRepeat = 0x4000
)

type msg struct {
	Hwnd    windows.Handle
	Message uint32
	Wparam  uintptr
	Lparam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

func (m *Manager) startPlatform(ctx context.Context) error {
	combos := m.combos()
	if len(combos) == 0 {
		return nil
	}

	ready := make(chan error, 1)

	// Hotkeys are posted to the registering thread, which must also run the
	// message loop
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		tid := windows.GetCurrentThreadId()
		for id, c := range combos {
			ret, _, err := procRegisterHotKey.Call(0, uintptr(id), uintptr(c.Mods|modNoRepeat), uintptr(c.VK))
			if ret == 0 {
				for j := 0; j < id; j++ {
					procUnregisterHotKey.Call(0, uintptr(j))
				}
				ready <- fmt.Errorf("register hotkey %s: %w", c, err)
				return
			}
		}
		ready <- nil
		m.log.Infof("Registered %d global hotkey(s)", len(combos))

		go func() {
			<-ctx.Done()
			procPostThreadMessage.Call(uintptr(tid), wmQuit, 0, 0)
		}()

		var ms msg
		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&ms)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
			if ms.Message == wmHotkey {
				m.trigger(int(ms.Wparam))
			}
		}

		for id := range combos {
			procUnregisterHotKey.Call(0, uintptr(id))
		}
		m.log.Debug("Hotkey loop stopped")
	}()

	return <-ready
}
