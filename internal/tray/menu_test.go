package tray

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"nguctl/internal/hooks"
	"nguctl/internal/session"
)

type fakeControls struct {
	calls []string
	st    session.Status
	err   error
}

func (f *fakeControls) EnableHooks(hs ...hooks.Hook) error {
	f.calls = append(f.calls, "enable")
	f.st.Hooks = []string{"focus", "cursor-pos", "key-down", "key-string"}
	return f.err
}

func (f *fakeControls) DisableHooks() error {
	f.calls = append(f.calls, "disable")
	f.st.Hooks = nil
	return f.err
}

func (f *fakeControls) Rearm() error {
	f.calls = append(f.calls, "rearm")
	return f.err
}

func (f *fakeControls) Restore() error {
	f.calls = append(f.calls, "restore")
	return f.err
}

func (f *fakeControls) Status() session.Status { return f.st }

func click(t *testing.T, tr *Tray, title string) {
	t.Helper()
	for _, it := range tr.items {
		if it != nil && it.Title == title {
			require.NotNil(t, it.Callback, title)
			it.Callback()
			return
		}
	}
	t.Fatalf("no menu item %q", title)
}

func TestMenuDrivesControls(t *testing.T) {
	ctl := &fakeControls{st: session.Status{Connected: true, Unrestored: "none"}}
	tr := New("test", nil)
	quit := 0
	panel := 0
	Install(tr, ctl, func() { panel++ }, func() { quit++ }, nil)

	require.Equal(t, "connected, no hooks", tr.items[0].Title)
	require.True(t, tr.items[0].Disabled)

	click(t, tr, "Enable hooks")
	require.Equal(t, "connected, hooks: focus, cursor-pos, key-down, key-string", tr.items[0].Title)

	click(t, tr, "Disable hooks")
	click(t, tr, "Reconnect and re-arm")
	click(t, tr, "Retry restore")
	click(t, tr, "Open control panel")
	click(t, tr, "Quit")
	require.Equal(t, 1, panel)
	require.Equal(t, []string{"enable", "disable", "rearm", "restore"}, ctl.calls)
	require.Equal(t, 1, quit)
}

func TestMenuRefreshesAfterFailure(t *testing.T) {
	ctl := &fakeControls{err: errors.New("pipe gone")}
	tr := New("test", nil)
	Install(tr, ctl, nil, func() {}, nil)

	ctl.st.Unrestored = "cursor"
	click(t, tr, "Retry restore")
	require.Equal(t, "disconnected, no hooks (unrestored cursor)", tr.items[0].Title)

	for _, it := range tr.items {
		if it != nil {
			require.NotEqual(t, "Open control panel", it.Title)
		}
	}
}

func TestIconLayout(t *testing.T) {
	icon := getIcon()
	require.Len(t, icon, 22+1128)
	require.Equal(t, []byte{0x3c, 0xb4, 0x2e, 0xff}, icon[62:66])
}
