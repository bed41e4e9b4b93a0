// Package channeltest provides an in-memory listener for exercising code that
// writes to a channel.Channel.
package channeltest

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"nguctl/internal/channel"
	"nguctl/internal/protocol"
)

// ErrBrokenPipe is the write error injected by FailAt.
var ErrBrokenPipe = errors.New("channeltest: broken pipe")

// Listener records every frame written through handles it hands out. It plays
// the listener side and tracks the hook and spoof state the commands imply.
type Listener struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	absent bool
	dials  int
	closes int
	writes int
	failAt int
	failOp protocol.Opcode
	failOn bool
	block  chan struct{}
}

// New returns a listener whose endpoint exists.
func New() *Listener {
	return &Listener{}
}

// Dialer returns a dialer connected to l.
func (l *Listener) Dialer() channel.Dialer {
	return channel.DialerFunc(l.dial)
}

// SetAbsent makes subsequent dials fail as if the endpoint were missing.
func (l *Listener) SetAbsent(absent bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.absent = absent
}

// FailAt makes the n-th write (1-based, counted across handles) fail.
func (l *Listener) FailAt(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failAt = n
}

// FailOn makes the first write of op fail.
func (l *Listener) FailOn(op protocol.Opcode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failOp = op
	l.failOn = true
}

// Block makes writes hang until the handle is closed.
func (l *Listener) Block() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.block = make(chan struct{})
}

// Dials returns the number of successful dials.
func (l *Listener) Dials() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dials
}

// Closes returns the number of handles closed.
func (l *Listener) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

// Bytes returns a copy of everything received so far.
func (l *Listener) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.buf.Bytes()...)
}

// Commands decodes everything received so far.
func (l *Listener) Commands() []protocol.Command {
	cmds, err := protocol.DecodeStream(l.Bytes())
	if err != nil {
		panic(err)
	}
	return cmds
}

// Ops returns the opcodes received so far, in order.
func (l *Listener) Ops() []protocol.Opcode {
	cmds := l.Commands()
	ops := make([]protocol.Opcode, len(cmds))
	for i, c := range cmds {
		ops[i] = c.Op
	}
	return ops
}

// State is the listener-side view implied by the commands received so far.
type State struct {
	Hooks          []protocol.Opcode
	CursorSpoofed  bool
	KeyDownSpoofed bool
	SpecialSpoofed bool
	Ejected        bool
}

// State replays the received commands the way the injected listener applies
// them.
func (l *Listener) State() State {
	var st State
	installed := map[protocol.Opcode]bool{}
	for _, c := range l.Commands() {
		switch c.Op {
		case protocol.OpHookFocus, protocol.OpHookCursorPos, protocol.OpHookKeyDown, protocol.OpHookKeyString:
			installed[c.Op] = true
		case protocol.OpUnhookAll:
			installed = map[protocol.Opcode]bool{}
		case protocol.OpSetCursorPos:
			st.CursorSpoofed = true
		case protocol.OpRestoreCursorPos:
			st.CursorSpoofed = false
		case protocol.OpSetKeyDown:
			st.KeyDownSpoofed = true
		case protocol.OpRestoreKeyDown:
			st.KeyDownSpoofed = false
		case protocol.OpSetSpecialKey:
			st.SpecialSpoofed = true
		case protocol.OpRestoreSpecialKey:
			st.SpecialSpoofed = false
		case protocol.OpEject:
			st.Ejected = true
		}
	}
	for op := protocol.OpHookFocus; op <= protocol.OpHookKeyString; op++ {
		if installed[op] {
			st.Hooks = append(st.Hooks, op)
		}
	}
	return st
}

// Reset forgets received bytes.
func (l *Listener) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Reset()
}

func (l *Listener) dial(name string) (io.WriteCloser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.absent {
		return nil, channel.ErrChannelUnavailable
	}
	l.dials++
	return &conn{l: l, closed: make(chan struct{})}, nil
}

type conn struct {
	l      *Listener
	once   sync.Once
	closed chan struct{}
}

func (c *conn) Write(b []byte) (int, error) {
	l := c.l
	l.mu.Lock()
	l.writes++
	block := l.block
	fail := l.failAt == l.writes
	if l.failOn && len(b) > 0 && protocol.Opcode(b[0]) == l.failOp {
		fail = true
		l.failOn = false
	}
	if !fail && block == nil {
		l.buf.Write(b)
	}
	l.mu.Unlock()

	if fail {
		return 0, ErrBrokenPipe
	}
	if block != nil {
		select {
		case <-block:
		case <-c.closed:
		}
		return 0, ErrBrokenPipe
	}
	return len(b), nil
}

func (c *conn) Close() error {
	c.once.Do(func() {
		close(c.closed)
		c.l.mu.Lock()
		c.l.closes++
		c.l.mu.Unlock()
	})
	return nil
}
