package tray

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"nguctl/internal/hooks"
	"nguctl/internal/logging"
	"nguctl/internal/session"
)

// Controls is what the tray menu drives; session.Session implements it.
type Controls interface {
	EnableHooks(hs ...hooks.Hook) error
	DisableHooks() error
	Rearm() error
	Restore() error
	Status() session.Status
}

// Menu is the controller menu installed on a Tray.
type Menu struct {
	tray     *Tray
	ctl      Controls
	log      logrus.FieldLogger
	statusID int
}

// Install adds the controller items to t. openPanel, when set, backs an
// "Open control panel" item; quit is called by the Quit item.
func Install(t *Tray, ctl Controls, openPanel, quit func(), log logrus.FieldLogger) *Menu {
	m := &Menu{tray: t, ctl: ctl, log: logging.Component(log, "tray")}

	m.statusID = t.AddMenuItem(statusLine(ctl.Status()), nil)
	t.AddSeparator()
	t.AddMenuItem("Enable hooks", m.action("enable hooks", func() error { return ctl.EnableHooks() }))
	t.AddMenuItem("Disable hooks", m.action("disable hooks", ctl.DisableHooks))
	t.AddMenuItem("Reconnect and re-arm", m.action("rearm", ctl.Rearm))
	t.AddMenuItem("Retry restore", m.action("restore", ctl.Restore))
	t.AddSeparator()
	if openPanel != nil {
		t.AddMenuItem("Open control panel", openPanel)
	}
	t.AddMenuItem("Quit", quit)
	return m
}

// Refresh updates the status line.
func (m *Menu) Refresh() {
	m.tray.SetItemTitle(m.statusID, statusLine(m.ctl.Status()))
}

func (m *Menu) action(name string, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			m.log.WithError(err).Errorf("Tray: %s failed", name)
		}
		m.Refresh()
	}
}

func statusLine(st session.Status) string {
	conn := "disconnected"
	if st.Connected {
		conn = "connected"
	}
	hs := "no hooks"
	if len(st.Hooks) > 0 {
		hs = "hooks: " + strings.Join(st.Hooks, ", ")
	}
	line := fmt.Sprintf("%s, %s", conn, hs)
	if st.Unrestored != "" && st.Unrestored != "none" {
		line += " (unrestored " + st.Unrestored + ")"
	}
	return line
}
