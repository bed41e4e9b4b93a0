//go:build !windows

// Package osutils holds process-level platform setup: DPI awareness and the
// elevation checks that decide whether window messages can reach the game.
package osutils

import (
	"fmt"
	"runtime"
)

// IsAdmin is a stub for non-Windows platforms
func IsAdmin() bool {
	return false
}

// EnableDPIAwareness is a no-op outside Windows.
func EnableDPIAwareness() error {
	return nil
}

// WindowElevated is unsupported outside Windows.
func WindowElevated(hwnd uintptr) (bool, error) {
	return false, fmt.Errorf("WindowElevated not supported on %s", runtime.GOOS)
}
