//go:build windows

package channel

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"

	"nguctl/internal/protocol"
)

// newStalledPipe creates a pipe server with a tiny buffer that never reads.
func newStalledPipe(t *testing.T) string {
	t.Helper()
	name := fmt.Sprintf(`\\.\pipe\nguctl-test-%d-%d`, os.Getpid(), time.Now().UnixNano())
	path, err := windows.UTF16PtrFromString(name)
	require.NoError(t, err)

	h, err := windows.CreateNamedPipe(path,
		windows.PIPE_ACCESS_INBOUND,
		windows.PIPE_TYPE_BYTE|windows.PIPE_WAIT,
		1, 0, 16, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { windows.CloseHandle(h) })
	return name
}

func TestPipeDialerMissingPipe(t *testing.T) {
	_, err := PipeDialer().Dial(`\\.\pipe\nguctl-test-missing`)
	require.ErrorIs(t, err, ErrChannelUnavailable)
}

func TestPipeWriteTimeoutReleasesHandle(t *testing.T) {
	name := newStalledPipe(t)
	c := New(PipeDialer(), Options{Name: name, WriteTimeout: 200 * time.Millisecond})
	require.NoError(t, c.Connect())

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 1<<16; i++ {
			if err := c.Send(protocol.SetKeyDown(int32(i))); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrWriteTimeout)
	case <-time.After(5 * time.Second):
		t.Fatal("send to a stalled pipe did not return")
	}
	require.False(t, c.Connected())
}
