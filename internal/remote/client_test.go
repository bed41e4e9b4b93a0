package remote

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nguctl/internal/api"
	"nguctl/internal/channel"
	"nguctl/internal/channel/channeltest"
	"nguctl/internal/input"
	"nguctl/internal/session"
	"nguctl/internal/window"
)

type fakeWindow struct{}

func (fakeWindow) Geometry() (window.Geometry, error) {
	return window.Geometry{
		Handle: 1,
		Outer:  window.Rect{Right: 976, Bottom: 639},
		Client: window.Rect{Right: 960, Bottom: 600},
	}, nil
}

func (fakeWindow) Send(uintptr, uint32, uintptr, uintptr) error { return nil }
func (fakeWindow) Post(uintptr, uint32, uintptr, uintptr) error { return nil }
func (fakeWindow) KeyScan(r rune) (uintptr, error)              { return uintptr(r), nil }

func newController(t *testing.T, token string) (*session.Session, string) {
	t.Helper()
	l := channeltest.New()
	sess := session.New(channel.New(l.Dialer(), channel.Options{}), fakeWindow{}, session.Options{
		Sleep: func(time.Duration) {},
	})
	require.NoError(t, sess.Connect())
	srv := httptest.NewServer(api.NewServer(sess, api.Options{Token: token}).Handler())
	t.Cleanup(srv.Close)
	return sess, strings.TrimPrefix(srv.URL, "http://")
}

func TestCall(t *testing.T) {
	_, addr := newController(t, "secret")
	c := New(addr, "secret", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := c.Call(ctx, "click", map[string]int{"x": 10, "y": 10})
	require.NoError(t, err)
	require.True(t, r.OK, r.Error)

	r, err = c.Call(ctx, "status", nil)
	require.NoError(t, err)
	var st session.Status
	require.NoError(t, json.Unmarshal(r.Result, &st))
	require.True(t, st.Connected)

	r, err = c.Call(ctx, "arrow", map[string]string{"direction": "sideways"})
	require.NoError(t, err)
	require.False(t, r.OK)
}

func TestCallRejectsBadToken(t *testing.T) {
	_, addr := newController(t, "secret")

	_, err := New(addr, "wrong", nil).Call(context.Background(), "status", nil)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestCallWithoutController(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = New(addr, "", nil).Call(context.Background(), "status", nil)
	require.ErrorIs(t, err, ErrUnreachable)
}

func TestWatchStreamsCommands(t *testing.T) {
	sess, addr := newController(t, "")
	c := New(addr, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan Event, 16)
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, func(ev Event) { events <- ev }) }()

	// the watch connects in the background; click until its first event arrives
	var ev Event
	require.Eventually(t, func() bool {
		require.NoError(t, sess.Click(window.Point{X: 1, Y: 1}, input.Left, nil))
		select {
		case ev = <-events:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, "command", ev.Type)
	require.Equal(t, "SetCursorPos", ev.Op)

	cancel()
	require.NoError(t, <-done)
}
