package input

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nguctl/internal/channel"
	"nguctl/internal/channel/channeltest"
	"nguctl/internal/protocol"
	"nguctl/internal/window"
)

type message struct {
	post   bool
	msg    uint32
	wparam uintptr
}

type fakeWindow struct {
	g        window.Geometry
	geoErr   error
	sendErr  error
	messages []message
}

func (f *fakeWindow) Geometry() (window.Geometry, error) {
	return f.g, f.geoErr
}

func (f *fakeWindow) Send(handle uintptr, msg uint32, wparam, lparam uintptr) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, message{msg: msg, wparam: wparam})
	return nil
}

func (f *fakeWindow) Post(handle uintptr, msg uint32, wparam, lparam uintptr) error {
	f.messages = append(f.messages, message{post: true, msg: msg, wparam: wparam})
	return nil
}

func (f *fakeWindow) KeyScan(r rune) (uintptr, error) {
	if r > 0x7f {
		return 0, errors.New("no key")
	}
	return uintptr(r) - 0x20, nil
}

type harness struct {
	l      *channeltest.Listener
	ch     *channel.Channel
	win    *fakeWindow
	d      *Dispatcher
	sleeps []time.Duration
}

func newHarness(t *testing.T, connect bool) *harness {
	t.Helper()
	h := &harness{l: channeltest.New()}
	h.ch = channel.New(h.l.Dialer(), channel.Options{})
	if connect {
		require.NoError(t, h.ch.Connect())
	}
	h.win = &fakeWindow{g: window.Geometry{
		Handle: 0xbeef,
		Outer:  window.Rect{Right: 1926, Bottom: 1239},
		Client: window.Rect{Right: 1920, Bottom: 1200},
	}}
	h.d = NewDispatcher(h.ch, h.win, h.win, Options{
		Delay: 10 * time.Millisecond,
		Sleep: func(d time.Duration) { h.sleeps = append(h.sleeps, d) },
	})
	return h
}

func TestClickSequence(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.d.Click(window.Point{X: 480, Y: 300}, Left))

	require.Equal(t, []protocol.Command{
		{Op: protocol.OpSetCursorPos, X: 963, Y: 636},
		{Op: protocol.OpSync},
		{Op: protocol.OpRestoreCursorPos},
		{Op: protocol.OpSync},
	}, h.l.Commands())
	require.Equal(t, []message{
		{msg: wmLButtonDown, wparam: mkLButton},
		{msg: wmLButtonUp, wparam: mkLButton},
	}, h.win.messages)
	require.Equal(t, []time.Duration{10 * time.Millisecond}, h.sleeps)
	require.Equal(t, Spoof(0), h.d.Unrestored())
}

func TestOperationsBeforeConnect(t *testing.T) {
	h := newHarness(t, false)

	ops := map[string]func() error{
		"click":   func() error { return h.d.Click(window.Point{X: 1, Y: 1}, Right) },
		"drag":    func() error { return h.d.Drag(window.Point{}, window.Point{X: 5, Y: 5}, Left) },
		"special": func() error { return h.d.CtrlClick(window.Point{X: 1, Y: 1}, Left) },
		"type":    func() error { return h.d.TypeString("abc") },
		"arrow":   func() error { return h.d.SendArrow(Up) },
		"hold":    func() error { return h.d.HoldSpecial(LeftShift, func() error { return nil }) },
	}
	for name, op := range ops {
		err := op()
		require.ErrorIs(t, err, channel.ErrChannelUnavailable, name)
	}
	require.Empty(t, h.l.Bytes())
	require.Empty(t, h.win.messages)
}

func TestGeometryFailureSendsNothing(t *testing.T) {
	h := newHarness(t, true)
	h.win.g.Client = window.Rect{}

	err := h.d.Click(window.Point{X: 10, Y: 10}, Left)
	require.ErrorIs(t, err, window.ErrGeometryUnavailable)

	h.win.geoErr = window.ErrGeometryUnavailable
	err = h.d.Drag(window.Point{}, window.Point{}, Left)
	require.ErrorIs(t, err, window.ErrGeometryUnavailable)

	require.Empty(t, h.l.Bytes())
	require.Empty(t, h.win.messages)
}

func TestDragSequence(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.d.Drag(window.Point{X: 10, Y: 20}, window.Point{X: 30, Y: 40}, Middle))

	require.Equal(t, []protocol.Command{
		{Op: protocol.OpSetCursorPos, X: 23, Y: 76},
		{Op: protocol.OpSync},
		{Op: protocol.OpSetCursorPos, X: 63, Y: 116},
		{Op: protocol.OpSync},
		{Op: protocol.OpRestoreCursorPos},
		{Op: protocol.OpSync},
	}, h.l.Commands())
	require.Equal(t, []message{
		{msg: wmMButtonDown, wparam: mkMButton},
		{msg: wmMouseMove},
		{msg: wmMButtonUp, wparam: mkMButton},
	}, h.win.messages)
	require.Len(t, h.sleeps, 2)
}

func TestSpecialClickNestsRestores(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.d.CtrlClick(window.Point{}, Right))

	require.Equal(t, []protocol.Command{
		{Op: protocol.OpSetSpecialKey, Special: 2},
		{Op: protocol.OpSync},
		{Op: protocol.OpSetCursorPos, X: 3, Y: 36},
		{Op: protocol.OpSync},
		{Op: protocol.OpRestoreCursorPos},
		{Op: protocol.OpSync},
		{Op: protocol.OpRestoreSpecialKey},
		{Op: protocol.OpSync},
	}, h.l.Commands())
	st := h.l.State()
	require.False(t, st.CursorSpoofed)
	require.False(t, st.SpecialSpoofed)
}

func TestTypeString(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.d.TypeString("hi"))

	require.Equal(t, []protocol.Command{
		{Op: protocol.OpSetKeyDown, KeyCode: 'h'},
		{Op: protocol.OpSync},
		{Op: protocol.OpRestoreKeyDown},
		{Op: protocol.OpSync},
		{Op: protocol.OpSetKeyDown, KeyCode: 'i'},
		{Op: protocol.OpSync},
		{Op: protocol.OpRestoreKeyDown},
		{Op: protocol.OpSync},
	}, h.l.Commands())
	require.Equal(t, []message{
		{post: true, msg: wmKeyDown, wparam: 'h' - 0x20},
		{post: true, msg: wmKeyDown, wparam: 'i' - 0x20},
	}, h.win.messages)
}

func TestTypeStringUnmappableRuneSendsNothing(t *testing.T) {
	h := newHarness(t, true)

	require.Error(t, h.d.TypeString("aé"))
	require.Empty(t, h.l.Bytes())
	require.Empty(t, h.win.messages)
}

func TestSendArrowRestores(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.d.SendArrow(LeftArrow))

	require.Equal(t, []protocol.Command{
		{Op: protocol.OpSetKeyDown, KeyCode: 276},
		{Op: protocol.OpSync},
		{Op: protocol.OpRestoreKeyDown},
		{Op: protocol.OpSync},
	}, h.l.Commands())
}

func TestRestoreFailureIsFlagged(t *testing.T) {
	h := newHarness(t, true)
	h.l.FailOn(protocol.OpRestoreCursorPos)

	err := h.d.Click(window.Point{X: 1, Y: 1}, Left)

	var werr *channel.WriteError
	require.ErrorAs(t, err, &werr)
	require.Equal(t, protocol.OpRestoreCursorPos, werr.Cmd.Op)
	require.ErrorIs(t, err, ErrUnrestored)
	require.Equal(t, SpoofCursor, h.d.Unrestored())
	require.True(t, h.l.State().CursorSpoofed)

	// recovery: reconnect, then retry the restore
	require.NoError(t, h.ch.Reconnect())
	require.NoError(t, h.d.RestoreAll())
	require.Equal(t, Spoof(0), h.d.Unrestored())
	require.False(t, h.l.State().CursorSpoofed)
}

func TestForceRestoreSendsEveryRestore(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.d.ForceRestore())
	require.Equal(t, []protocol.Opcode{
		protocol.OpRestoreCursorPos, protocol.OpSync,
		protocol.OpRestoreKeyDown, protocol.OpSync,
		protocol.OpRestoreSpecialKey, protocol.OpSync,
	}, h.l.Ops())
	require.Equal(t, Spoof(0), h.d.Unrestored())
}

func TestBodyFailureStillRestores(t *testing.T) {
	h := newHarness(t, true)
	boom := errors.New("window gone")
	h.win.sendErr = boom

	err := h.d.Click(window.Point{X: 1, Y: 1}, Left)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrUnrestored)

	ops := h.l.Ops()
	require.Equal(t, []protocol.Opcode{protocol.OpSetCursorPos, protocol.OpSync, protocol.OpRestoreCursorPos, protocol.OpSync}, ops)
	require.Equal(t, Spoof(0), h.d.Unrestored())
}

func TestChannelLossMidSequenceJoinsErrors(t *testing.T) {
	h := newHarness(t, true)
	h.l.FailAt(2) // the barrier after SetSpecialKey

	err := h.d.HoldSpecial(RightShift, func() error {
		t.Fatal("body must not run after a failed barrier")
		return nil
	})

	require.ErrorIs(t, err, channeltest.ErrBrokenPipe)
	require.ErrorIs(t, err, ErrUnrestored)
	require.ErrorIs(t, err, channel.ErrChannelUnavailable)
	require.Equal(t, SpoofSpecial, h.d.Unrestored())
}

func TestSettleDelay(t *testing.T) {
	h := newHarness(t, true)
	h.d.settle = 5 * time.Millisecond

	require.NoError(t, h.d.SendArrow(Down))
	require.Equal(t, []time.Duration{5 * time.Millisecond, 10 * time.Millisecond}, h.sleeps)
}

func TestParseEnums(t *testing.T) {
	b, err := ParseButton("RIGHT")
	require.NoError(t, err)
	require.Equal(t, Right, b)
	_, err = ParseButton("x1")
	require.Error(t, err)

	k, err := ParseSpecialKey("leftcontrol")
	require.NoError(t, err)
	require.Equal(t, uint8(2), k.Code())
	k, err = ParseSpecialKey("")
	require.NoError(t, err)
	require.Equal(t, LeftShift, k)

	a, err := ParseArrow("up")
	require.NoError(t, err)
	require.Equal(t, int32(273), a.KeyCode())
	_, err = ParseArrow("sideways")
	require.Error(t, err)

	require.Equal(t, "cursor+special", (SpoofCursor | SpoofSpecial).String())
}
