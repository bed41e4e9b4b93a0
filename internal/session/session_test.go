package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nguctl/internal/channel"
	"nguctl/internal/channel/channeltest"
	"nguctl/internal/hooks"
	"nguctl/internal/input"
	"nguctl/internal/protocol"
	"nguctl/internal/window"
)

type fakeWindow struct {
	mu     sync.Mutex
	g      window.Geometry
	geoErr error
	sent   int
	cycles int
}

func (f *fakeWindow) CycleFocus() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycles++
	return nil
}

func (f *fakeWindow) Geometry() (window.Geometry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.g, f.geoErr
}

func (f *fakeWindow) Send(uintptr, uint32, uintptr, uintptr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent++
	return nil
}

func (f *fakeWindow) Post(uintptr, uint32, uintptr, uintptr) error { return nil }

func (f *fakeWindow) KeyScan(r rune) (uintptr, error) { return uintptr(r), nil }

func newSession(t *testing.T, enable bool) (*Session, *channeltest.Listener, *fakeWindow) {
	t.Helper()
	l := channeltest.New()
	win := &fakeWindow{g: window.Geometry{
		Handle: 1,
		Outer:  window.Rect{Right: 976, Bottom: 639},
		Client: window.Rect{Right: 960, Bottom: 600},
	}}
	s := New(channel.New(l.Dialer(), channel.Options{}), win, Options{
		Delay:       time.Millisecond,
		Sleep:       func(time.Duration) {},
		EnableHooks: enable,
	})
	return s, l, win
}

func TestOpenEnablesHooks(t *testing.T) {
	s, l, win := newSession(t, true)

	require.NoError(t, s.Open())
	require.Equal(t, hooks.Full, s.Hooks())
	require.Equal(t, 1, win.cycles)
	require.Equal(t, []protocol.Opcode{
		protocol.OpHookFocus, protocol.OpSync,
		protocol.OpHookCursorPos, protocol.OpSync,
		protocol.OpHookKeyDown, protocol.OpSync,
		protocol.OpHookKeyString, protocol.OpSync,
	}, l.Ops())

	st := s.Status()
	require.True(t, st.Connected)
	require.Equal(t, []string{"focus", "cursor-pos", "key-down", "key-string"}, st.Hooks)
	require.Equal(t, "none", st.Unrestored)
}

func TestOpenFailsFastWithoutWindow(t *testing.T) {
	s, l, win := newSession(t, true)
	win.geoErr = window.ErrGeometryUnavailable

	require.ErrorIs(t, s.Open(), window.ErrGeometryUnavailable)
	require.Zero(t, l.Dials())
	require.False(t, s.Status().Connected)
}

func TestOpenWithoutHooks(t *testing.T) {
	s, l, _ := newSession(t, false)

	require.NoError(t, s.Open())
	require.True(t, s.Hooks().Empty())
	require.Empty(t, l.Bytes())
}

func TestCloseDisablesBeforeEject(t *testing.T) {
	s, l, _ := newSession(t, true)
	require.NoError(t, s.Open())
	l.Reset()

	require.NoError(t, s.Close())
	require.Equal(t, []protocol.Opcode{protocol.OpUnhookAll, protocol.OpSync, protocol.OpEject}, l.Ops())
	require.False(t, s.Status().Connected)
	require.True(t, l.State().Ejected)
}

func TestCloseDoesNotEjectWhenUnhookFails(t *testing.T) {
	s, l, _ := newSession(t, true)
	require.NoError(t, s.Open())
	l.FailOn(protocol.OpUnhookAll)

	err := s.Close()
	require.Error(t, err)
	require.NotContains(t, l.Ops(), protocol.OpEject)
	require.Equal(t, hooks.Full, s.Hooks())
}

func TestRearmAfterChannelLoss(t *testing.T) {
	s, l, _ := newSession(t, true)
	require.NoError(t, s.Open())

	l.FailOn(protocol.OpRestoreCursorPos)
	err := s.Click(window.Point{X: 10, Y: 10}, input.Left, nil)
	require.ErrorIs(t, err, input.ErrUnrestored)
	require.False(t, s.Status().Connected)
	require.Equal(t, "cursor", s.Status().Unrestored)

	l.Reset()
	require.NoError(t, s.Rearm())
	require.Equal(t, 2, l.Dials())
	require.Equal(t, hooks.Full, s.Hooks())
	require.Equal(t, "none", s.Status().Unrestored)
	require.Equal(t, []protocol.Opcode{
		protocol.OpHookFocus, protocol.OpSync,
		protocol.OpHookCursorPos, protocol.OpSync,
		protocol.OpHookKeyDown, protocol.OpSync,
		protocol.OpHookKeyString, protocol.OpSync,
		protocol.OpRestoreCursorPos, protocol.OpSync,
	}, l.Ops())
}

func TestEnableSelectedHooks(t *testing.T) {
	s, l, win := newSession(t, false)
	require.NoError(t, s.Connect())

	require.NoError(t, s.EnableHooks(hooks.KeyDown))
	require.Zero(t, win.cycles)
	l.Reset()

	require.NoError(t, s.EnableHooks(hooks.KeyString, hooks.Focus))
	require.Equal(t, 1, win.cycles)
	require.True(t, s.Hooks().Has(hooks.KeyString))
	require.True(t, s.Hooks().Has(hooks.Focus))
	require.False(t, s.Hooks().Has(hooks.CursorPos))
	require.Equal(t, []protocol.Opcode{protocol.OpHookKeyString, protocol.OpSync, protocol.OpHookFocus, protocol.OpSync}, l.Ops())

	require.NoError(t, s.DisableHooks())
	require.True(t, s.Hooks().Empty())
}

func TestClickWithSpecialKey(t *testing.T) {
	s, l, win := newSession(t, false)
	require.NoError(t, s.Open())

	key := input.RightControl
	require.NoError(t, s.Click(window.Point{X: 100, Y: 50}, input.Left, &key))

	cmds := l.Commands()
	require.Equal(t, protocol.Command{Op: protocol.OpSetSpecialKey, Special: 3}, cmds[0])
	require.Equal(t, protocol.Command{Op: protocol.OpSetCursorPos, X: 108, Y: 81}, cmds[2])
	require.Equal(t, 2, win.sent)
	st := l.State()
	require.False(t, st.CursorSpoofed)
	require.False(t, st.SpecialSpoofed)
}

func TestPanicForgetsHooksOnLostChannel(t *testing.T) {
	s, _, _ := newSession(t, true)
	require.NoError(t, s.Open())
	require.NoError(t, s.Detach())

	require.ErrorIs(t, s.Panic(), channel.ErrChannelUnavailable)
	require.True(t, s.Hooks().Empty())
}

func TestConcurrentOperationsKeepFramesWhole(t *testing.T) {
	s, l, _ := newSession(t, true)
	require.NoError(t, s.Open())
	l.Reset()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = s.Arrow(input.Up)
			} else {
				_ = s.Click(window.Point{X: i, Y: i}, input.Left, nil)
			}
		}(i)
	}
	wg.Wait()

	// every spoof is immediately followed by its barrier and eventually restored
	st := l.State()
	require.False(t, st.CursorSpoofed)
	require.False(t, st.KeyDownSpoofed)
	require.Len(t, l.Commands(), 8*4)
}

func TestHoldSpecial(t *testing.T) {
	l := channeltest.New()
	var slept []time.Duration
	s := New(channel.New(l.Dialer(), channel.Options{}), &fakeWindow{}, Options{
		Sleep: func(d time.Duration) { slept = append(slept, d) },
	})
	require.NoError(t, s.Connect())

	require.NoError(t, s.HoldSpecial(input.LeftShift, 500*time.Millisecond))
	require.Equal(t, []protocol.Command{
		{Op: protocol.OpSetSpecialKey, Special: 0},
		{Op: protocol.OpSync},
		{Op: protocol.OpRestoreSpecialKey},
		{Op: protocol.OpSync},
	}, l.Commands())
	require.Equal(t, []time.Duration{500 * time.Millisecond}, slept)

	require.Error(t, s.HoldSpecial(input.LeftShift, time.Minute))
	require.Error(t, s.HoldSpecial(input.LeftShift, 0))
	require.Len(t, l.Commands(), 4)
}
