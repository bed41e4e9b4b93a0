// Package channel owns the single outbound pipe to the listener and is the only
// writer allowed on it.
package channel

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nguctl/internal/logging"
	"nguctl/internal/protocol"
)

// DefaultPipeName is the endpoint created by the listener.
const DefaultPipeName = `\\.\pipe\ngu_cmd`

// DefaultWriteTimeout bounds a single write to a hung listener.
const DefaultWriteTimeout = 2 * time.Second

var (
	// ErrChannelUnavailable is returned when the listener endpoint does not exist
	// or no handle is currently open
	ErrChannelUnavailable = errors.New("channel: listener pipe unavailable")

	// ErrWriteTimeout is returned when the listener stops draining the pipe
	ErrWriteTimeout = errors.New("channel: write timed out")
)

// WriteError reports a command that could not be handed to the transport.
type WriteError struct {
	Cmd protocol.Command
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("channel: write %s: %v", e.Cmd.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Dialer opens the write side of the listener endpoint.
type Dialer interface {
	Dial(name string) (io.WriteCloser, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(name string) (io.WriteCloser, error)

// Dial calls f(name).
func (f DialerFunc) Dial(name string) (io.WriteCloser, error) {
	return f(name)
}

// Options configures a Channel.
type Options struct {
	// Name is the endpoint name passed to the dialer (default DefaultPipeName)
	Name string

	// WriteTimeout bounds every write; zero means DefaultWriteTimeout, negative
	// disables the bound
	WriteTimeout time.Duration

	Logger logrus.FieldLogger
}

// Channel holds at most one open handle to the listener.
type Channel struct {
	mu       sync.Mutex
	name     string
	dialer   Dialer
	timeout  time.Duration
	conn     io.WriteCloser
	observer func(protocol.Command)
	log      logrus.FieldLogger
}

// New creates a disconnected channel.
func New(dialer Dialer, opts Options) *Channel {
	if opts.Name == "" {
		opts.Name = DefaultPipeName
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Channel{
		name:    opts.Name,
		dialer:  dialer,
		timeout: opts.WriteTimeout,
		log:     logging.Component(opts.Logger, "channel"),
	}
}

// Name returns the endpoint name.
func (c *Channel) Name() string {
	return c.name
}

// SetObserver registers fn to be called with every command written.
func (c *Channel) SetObserver(fn func(protocol.Command)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = fn
}

// Connected reports whether a handle is open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect opens the channel. It is the same as Reconnect.
func (c *Channel) Connect() error {
	return c.Reconnect()
}

// Reconnect closes the current handle, if any, and opens a new one.
func (c *Channel) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked()

	conn, err := c.dialer.Dial(c.name)
	if err != nil {
		c.log.WithError(err).Warnf("Unable to open %s, is the listener injected?", c.name)
		if errors.Is(err, ErrChannelUnavailable) {
			return err
		}
		return fmt.Errorf("%w: dial %s: %w", ErrChannelUnavailable, c.name, err)
	}

	c.conn = conn
	c.log.Infof("Connected to %s", c.name)
	return nil
}

// Send encodes cmd and writes it in a single write call. Any transport failure
// drops the handle; the caller must Reconnect explicitly.
func (c *Channel) Send(cmd protocol.Command) error {
	data, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return &WriteError{Cmd: cmd, Err: ErrChannelUnavailable}
	}

	if err := c.writeLocked(data); err != nil {
		c.log.WithError(err).Errorf("Write of %s failed, dropping handle", cmd)
		c.dropLocked()
		return &WriteError{Cmd: cmd, Err: err}
	}

	c.log.Debugf("-> %s", cmd)
	if c.observer != nil {
		c.observer(cmd)
	}
	return nil
}

// Barrier sends Sync. It marks a sequence boundary for the listener and does
// not wait for the listener to act on anything.
func (c *Channel) Barrier() error {
	return c.Send(protocol.Simple(protocol.OpSync))
}

// Close releases the handle.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.log.Infof("Closed %s", c.name)
	return err
}

func (c *Channel) writeLocked(data []byte) error {
	if c.timeout < 0 {
		return writeOnce(c.conn, data)
	}

	conn := c.conn
	done := make(chan error, 1)
	go func() {
		done <- writeOnce(conn, data)
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		// closing the handle in dropLocked unblocks the pending write
		return fmt.Errorf("%w after %s", ErrWriteTimeout, c.timeout)
	}
}

func (c *Channel) dropLocked() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		c.log.WithError(err).Warn("Closing previous handle failed")
	}
	c.conn = nil
}

func writeOnce(w io.Writer, data []byte) error {
	n, err := w.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}
	return nil
}
