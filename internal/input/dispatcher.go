// Package input performs atomic spoof-act-restore sequences against the game
// window: every operation spoofs the listener's reported state, posts the
// window messages and restores the state on every exit path.
package input

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nguctl/internal/channel"
	"nguctl/internal/logging"
	"nguctl/internal/protocol"
	"nguctl/internal/window"
)

// DefaultDelay is the pause between posting an event and restoring state.
const DefaultDelay = 30 * time.Millisecond

// ErrUnrestored is wrapped when a restore command could not be written and the
// listener may still report spoofed state.
var ErrUnrestored = errors.New("input: spoofed state left unrestored")

// Spoof is a set of listener-side spoofs.
type Spoof uint8

const (
	SpoofCursor Spoof = 1 << iota
	SpoofKeyDown
	SpoofSpecial
)

func (s Spoof) String() string {
	if s == 0 {
		return "none"
	}
	var parts []string
	if s&SpoofCursor != 0 {
		parts = append(parts, "cursor")
	}
	if s&SpoofKeyDown != 0 {
		parts = append(parts, "key-down")
	}
	if s&SpoofSpecial != 0 {
		parts = append(parts, "special")
	}
	return strings.Join(parts, "+")
}

func (s Spoof) restoreOp() protocol.Opcode {
	switch s {
	case SpoofCursor:
		return protocol.OpRestoreCursorPos
	case SpoofKeyDown:
		return protocol.OpRestoreKeyDown
	case SpoofSpecial:
		return protocol.OpRestoreSpecialKey
	default:
		panic(fmt.Sprintf("input: no restore opcode for %s", s))
	}
}

// Channel is the part of channel.Channel the dispatcher writes through.
type Channel interface {
	Connected() bool
	Send(protocol.Command) error
	Barrier() error
}

// Geometer supplies fresh window geometry; window.Mapper implements it.
type Geometer interface {
	Geometry() (window.Geometry, error)
}

// Options tunes dispatcher timing.
type Options struct {
	// Delay is the pause after posting events, before restoring state
	Delay time.Duration

	// Settle is an extra pause after a spoof barrier. The barrier carries no
	// acknowledgement, so this is the only way to give the listener time.
	Settle time.Duration

	// Sleep replaces time.Sleep
	Sleep func(time.Duration)

	Logger logrus.FieldLogger
}

// Dispatcher composes the command channel, the coordinate mapper and the
// window message target. Operations are serialized.
type Dispatcher struct {
	ch     Channel
	geo    Geometer
	target window.Target
	delay  time.Duration
	settle time.Duration
	sleep  func(time.Duration)
	log    logrus.FieldLogger

	mu         sync.Mutex
	unrestored Spoof
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(ch Channel, geo Geometer, target window.Target, opts Options) *Dispatcher {
	if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Dispatcher{
		ch:     ch,
		geo:    geo,
		target: target,
		delay:  opts.Delay,
		settle: opts.Settle,
		sleep:  opts.Sleep,
		log:    logging.Component(opts.Logger, "input"),
	}
}

// Unrestored reports spoofs whose restore command could not be written.
func (d *Dispatcher) Unrestored() Spoof {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unrestored
}

// RestoreAll retries the restore command of every unrestored spoof.
func (d *Dispatcher) RestoreAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	return d.restorePending()
}

// ForceRestore restores every spoof kind, including ones armed by another
// process that exited before restoring.
func (d *Dispatcher) ForceRestore() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	d.unrestored = SpoofCursor | SpoofKeyDown | SpoofSpecial
	return d.restorePending()
}

func (d *Dispatcher) restorePending() error {
	var errs []error
	for _, kind := range []Spoof{SpoofCursor, SpoofKeyDown, SpoofSpecial} {
		if d.unrestored&kind == 0 {
			continue
		}
		if err := d.restore(kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Click presses and releases btn at the logical point p.
func (d *Dispatcher) Click(p window.Point, btn Button) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, pts, err := d.prepare(p)
	if err != nil {
		return err
	}
	return d.click(g.Handle, pts[0], btn)
}

// SpecialClick clicks at p while the listener reports key as held.
func (d *Dispatcher) SpecialClick(p window.Point, btn Button, key SpecialKey) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, pts, err := d.prepare(p)
	if err != nil {
		return err
	}
	return d.guard(SpoofSpecial, protocol.SetSpecialKey(key.Code()), func() error {
		return d.click(g.Handle, pts[0], btn)
	})
}

// CtrlClick clicks at p with left control held.
func (d *Dispatcher) CtrlClick(p window.Point, btn Button) error {
	return d.SpecialClick(p, btn, LeftControl)
}

// Drag presses btn at from, moves to to and releases there.
func (d *Dispatcher) Drag(from, to window.Point, btn Button) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, pts, err := d.prepare(from, to)
	if err != nil {
		return err
	}
	m := btn.messages()

	cmd, err := protocol.SetCursorPos(pts[0].X, pts[0].Y)
	if err != nil {
		return err
	}
	return d.guard(SpoofCursor, cmd, func() error {
		if err := d.target.Send(g.Handle, m.down, m.state, 0); err != nil {
			return err
		}
		d.sleep(d.delay)

		next, err := protocol.SetCursorPos(pts[1].X, pts[1].Y)
		if err != nil {
			return err
		}
		if err := d.spoof(next); err != nil {
			return err
		}
		if err := d.target.Send(g.Handle, wmMouseMove, 0, 0); err != nil {
			return err
		}
		if err := d.target.Send(g.Handle, m.up, m.state, 0); err != nil {
			return err
		}
		d.sleep(d.delay)
		return nil
	})
}

// TypeString types s one rune at a time: the key-down message feeds text
// fields and the key-down spoof feeds shortcut handlers. Engine key codes
// match the character codes.
func (d *Dispatcher) TypeString(s string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}

	runes := []rune(s)
	vks := make([]uintptr, len(runes))
	for i, r := range runes {
		vk, err := d.target.KeyScan(r)
		if err != nil {
			return err
		}
		vks[i] = vk
	}

	g, _, err := d.prepare()
	if err != nil {
		return err
	}

	for i, r := range runes {
		if err := d.target.Post(g.Handle, wmKeyDown, vks[i], 0); err != nil {
			return err
		}
		err := d.guard(SpoofKeyDown, protocol.SetKeyDown(int32(r)), func() error {
			d.sleep(d.delay)
			return nil
		})
		if err != nil {
			return fmt.Errorf("type %q at %d: %w", r, i, err)
		}
	}
	return nil
}

// SendArrow reports a single arrow key press.
func (d *Dispatcher) SendArrow(a Arrow) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	return d.guard(SpoofKeyDown, protocol.SetKeyDown(a.KeyCode()), func() error {
		d.sleep(d.delay)
		return nil
	})
}

// HoldSpecial runs fn while the listener reports key as held. fn must not call
// back into the dispatcher.
func (d *Dispatcher) HoldSpecial(key SpecialKey, fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	return d.guard(SpoofSpecial, protocol.SetSpecialKey(key.Code()), fn)
}

func (d *Dispatcher) click(handle uintptr, p window.Point, btn Button) error {
	m := btn.messages()
	cmd, err := protocol.SetCursorPos(p.X, p.Y)
	if err != nil {
		return err
	}
	return d.guard(SpoofCursor, cmd, func() error {
		if err := d.target.Send(handle, m.down, m.state, 0); err != nil {
			return err
		}
		if err := d.target.Send(handle, m.up, m.state, 0); err != nil {
			return err
		}
		d.sleep(d.delay)
		return nil
	})
}

// ready fails when no channel handle is open, before anything is sent.
func (d *Dispatcher) ready() error {
	if !d.ch.Connected() {
		return channel.ErrChannelUnavailable
	}
	return nil
}

// prepare checks the channel and maps every logical point against a single
// geometry snapshot, so failures happen before the first command.
func (d *Dispatcher) prepare(pts ...window.Point) (window.Geometry, []window.Point, error) {
	if err := d.ready(); err != nil {
		return window.Geometry{}, nil, err
	}
	g, err := d.geo.Geometry()
	if err != nil {
		return window.Geometry{}, nil, err
	}
	out := make([]window.Point, len(pts))
	for i, p := range pts {
		if out[i], err = window.ToPhysical(p, g); err != nil {
			return window.Geometry{}, nil, err
		}
		if _, err := protocol.SetCursorPos(out[i].X, out[i].Y); err != nil {
			return window.Geometry{}, nil, err
		}
	}
	return g, out, nil
}

// spoof writes a set command followed by a barrier and the settle pause.
func (d *Dispatcher) spoof(cmd protocol.Command) error {
	if err := d.ch.Send(cmd); err != nil {
		return err
	}
	if err := d.ch.Barrier(); err != nil {
		return err
	}
	if d.settle > 0 {
		d.sleep(d.settle)
	}
	return nil
}

// guard arms a spoof, runs body and restores the spoof on every path. A
// restore failure is never dropped: it is joined with the body error and the
// spoof stays flagged in Unrestored.
func (d *Dispatcher) guard(kind Spoof, set protocol.Command, body func() error) error {
	if err := d.ch.Send(set); err != nil {
		return err
	}
	d.unrestored |= kind

	err := d.ch.Barrier()
	if err == nil {
		if d.settle > 0 {
			d.sleep(d.settle)
		}
		err = body()
	}

	if rerr := d.restore(kind); rerr != nil {
		if err == nil {
			return rerr
		}
		return errors.Join(err, rerr)
	}
	return err
}

func (d *Dispatcher) restore(kind Spoof) error {
	op := kind.restoreOp()
	if err := d.ch.Send(protocol.Simple(op)); err != nil {
		d.log.WithError(err).Errorf("Restoring %s spoof failed", kind)
		return fmt.Errorf("%w (%s): %w", ErrUnrestored, kind, err)
	}
	d.unrestored &^= kind
	return d.ch.Barrier()
}
