//go:build !windows

package hotkey

import "context"

func (m *Manager) startPlatform(ctx context.Context) error {
	m.log.Warn("Global hotkeys not supported on this platform")
	return nil
}
