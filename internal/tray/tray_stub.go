//go:build !windows && !darwin

package tray

// Run blocks until Stop; there is no tray on this platform.
func (t *Tray) Run() {
	<-t.quitCh
	if t.onExit != nil {
		t.onExit()
	}
}

// Stop ends Run.
func (t *Tray) Stop() {
	t.stop.Do(func() { close(t.quitCh) })
}
