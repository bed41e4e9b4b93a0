//go:build windows

package channel

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sys/windows"
)

// pipeConn is the write end of the listener's named pipe. The handle is opened
// with FILE_FLAG_OVERLAPPED so a write stuck on a listener that stopped
// reading can be cancelled from Close; Write itself still waits for completion.
type pipeConn struct {
	h windows.Handle

	mu     sync.Mutex
	closed bool
}

func (p *pipeConn) Write(b []byte) (int, error) {
	ev, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return 0, fmt.Errorf("CreateEvent: %w", err)
	}
	defer windows.CloseHandle(ev)

	ov := &windows.Overlapped{HEvent: ev}
	var n uint32
	err = windows.WriteFile(p.h, b, &n, ov)
	if err == nil {
		return int(n), nil
	}
	if !errors.Is(err, windows.ERROR_IO_PENDING) {
		return int(n), err
	}

	// Completes on success, failure or cancellation by Close
	if _, err := windows.WaitForSingleObject(ev, windows.INFINITE); err != nil {
		return 0, fmt.Errorf("WaitForSingleObject: %w", err)
	}
	if err := windows.GetOverlappedResult(p.h, ov, &n, false); err != nil {
		if errors.Is(err, windows.ERROR_OPERATION_ABORTED) {
			return int(n), io.ErrClosedPipe
		}
		return int(n), err
	}
	return int(n), nil
}

// Close cancels any pending write and releases the handle. It does not wait
// for the listener.
func (p *pipeConn) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := windows.CancelIoEx(p.h, nil); err != nil && !errors.Is(err, windows.ERROR_NOT_FOUND) {
		_ = windows.CloseHandle(p.h)
		return fmt.Errorf("CancelIoEx: %w", err)
	}
	return windows.CloseHandle(p.h)
}

// PipeDialer opens Windows named pipes created by the listener.
func PipeDialer() Dialer {
	return DialerFunc(dialPipe)
}

func dialPipe(name string) (io.WriteCloser, error) {
	path, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}

	h, err := windows.CreateFile(
		path,
		windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL|windows.FILE_FLAG_OVERLAPPED,
		0,
	)
	if err != nil {
		if errors.Is(err, windows.ERROR_FILE_NOT_FOUND) || errors.Is(err, windows.ERROR_PIPE_BUSY) {
			return nil, fmt.Errorf("%w: %s: %v", ErrChannelUnavailable, name, err)
		}
		return nil, err
	}

	return &pipeConn{h: h}, nil
}
