//go:build !windows

package channel

import (
	"fmt"
	"io"
	"runtime"
)

// PipeDialer returns a dialer that always fails: the listener only exists on
// Windows.
func PipeDialer() Dialer {
	return DialerFunc(func(name string) (io.WriteCloser, error) {
		return nil, fmt.Errorf("%w: named pipes not supported on %s", ErrChannelUnavailable, runtime.GOOS)
	})
}
