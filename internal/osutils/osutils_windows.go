//go:build windows

// Package osutils holds process-level platform setup: DPI awareness and the
// elevation checks that decide whether window messages can reach the game.
package osutils

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                             = windows.NewLazySystemDLL("user32.dll")
	procSetProcessDpiAwarenessContext  = user32.NewProc("SetProcessDpiAwarenessContext")
	procSetProcessDPIAware             = user32.NewProc("SetProcessDPIAware")
	procGetWindowThreadProcessId       = user32.NewProc("GetWindowThreadProcessId")
	dpiAwarenessContextPerMonitorAware = ^uintptr(3) // DPI_AWARENESS_CONTEXT_PER_MONITOR_AWARE_V2 (-4)
)

// IsAdmin checks if the current process has administrative privileges
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token)
	if err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err = windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}

	return member
}

// EnableDPIAwareness makes window rectangles report physical pixels, so the
// border and scale arithmetic sees the same sizes the game renders at.
func EnableDPIAwareness() error {
	if procSetProcessDpiAwarenessContext.Find() == nil {
		ret, _, err := procSetProcessDpiAwarenessContext.Call(dpiAwarenessContextPerMonitorAware)
		if ret != 0 {
			return nil
		}
		// ERROR_ACCESS_DENIED: awareness was already set by the manifest
		if err == windows.ERROR_ACCESS_DENIED {
			return nil
		}
	}
	ret, _, err := procSetProcessDPIAware.Call()
	if ret == 0 {
		return fmt.Errorf("SetProcessDPIAware: %w", err)
	}
	return nil
}

// WindowElevated reports whether the process owning hwnd runs elevated.
// Messages from a non-elevated process to an elevated window are dropped.
func WindowElevated(hwnd uintptr) (bool, error) {
	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return false, fmt.Errorf("no process for window 0x%x", hwnd)
	}

	proc, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return false, fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(proc)

	var token windows.Token
	if err := windows.OpenProcessToken(proc, windows.TOKEN_QUERY, &token); err != nil {
		return false, fmt.Errorf("open token of %d: %w", pid, err)
	}
	defer token.Close()
	return token.IsElevated(), nil
}
