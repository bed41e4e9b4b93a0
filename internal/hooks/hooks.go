// Package hooks tracks which listener hooks have been requested and issues the
// install/remove commands in bring-up order.
package hooks

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"nguctl/internal/logging"
	"nguctl/internal/protocol"
)

// Hook is an input-reporting API the listener can intercept.
type Hook uint8

const (
	// Focus intercepts application focus changes. The target window must go
	// through a focus/unfocus cycle after install for it to arm.
	Focus Hook = iota
	CursorPos
	KeyDown
	KeyString
)

// Order is the bring-up sequence used by EnableAll.
var Order = []Hook{Focus, CursorPos, KeyDown, KeyString}

// Opcode returns the install command for h.
func (h Hook) Opcode() protocol.Opcode {
	switch h {
	case Focus:
		return protocol.OpHookFocus
	case CursorPos:
		return protocol.OpHookCursorPos
	case KeyDown:
		return protocol.OpHookKeyDown
	case KeyString:
		return protocol.OpHookKeyString
	default:
		panic(fmt.Sprintf("hooks: unknown hook %d", h))
	}
}

func (h Hook) String() string {
	switch h {
	case Focus:
		return "focus"
	case CursorPos:
		return "cursor-pos"
	case KeyDown:
		return "key-down"
	case KeyString:
		return "key-string"
	default:
		return fmt.Sprintf("hook(%d)", uint8(h))
	}
}

// ParseHook accepts the names produced by Hook.String.
func ParseHook(s string) (Hook, error) {
	for _, h := range Order {
		if strings.EqualFold(strings.TrimSpace(s), h.String()) {
			return h, nil
		}
	}
	return 0, fmt.Errorf("hooks: unknown hook %q", s)
}

// Set is a set of hooks.
type Set uint8

// Full contains every hook.
const Full = Set(1<<Focus | 1<<CursorPos | 1<<KeyDown | 1<<KeyString)

func (s Set) Has(h Hook) bool    { return s&(1<<h) != 0 }
func (s Set) With(h Hook) Set    { return s | 1<<h }
func (s Set) Without(h Hook) Set { return s &^ (1 << h) }
func (s Set) Empty() bool        { return s == 0 }

// Hooks lists the members in bring-up order.
func (s Set) Hooks() []Hook {
	var out []Hook
	for _, h := range Order {
		if s.Has(h) {
			out = append(out, h)
		}
	}
	return out
}

func (s Set) String() string {
	if s.Empty() {
		return "{}"
	}
	names := make([]string, 0, len(Order))
	for _, h := range s.Hooks() {
		names = append(names, h.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}

// ErrProtocolMisuse is wrapped by MisuseError.
var ErrProtocolMisuse = errors.New("hooks: protocol misuse")

// MisuseError reports a caller contract violation detected before anything
// was sent.
type MisuseError struct {
	Op     string
	Active Set
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("hooks: %s while hooks %s are still enabled; disable all first", e.Op, e.Active)
}

func (e *MisuseError) Unwrap() error {
	return ErrProtocolMisuse
}

// Sender is the part of channel.Channel the controller needs.
type Sender interface {
	Send(protocol.Command) error
	Barrier() error
	Close() error
}

// Controller is the only mutator of the requested hook set.
type Controller struct {
	mu  sync.Mutex
	ch  Sender
	set Set
	log logrus.FieldLogger
}

// NewController returns a controller with an empty set.
func NewController(ch Sender, log logrus.FieldLogger) *Controller {
	return &Controller{
		ch:  ch,
		log: logging.Component(log, "hooks"),
	}
}

// Set returns the currently requested hooks.
func (c *Controller) Set() Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set
}

// EnableAll installs every hook in Order, each followed by a barrier. A hook is
// recorded only once both its command and barrier were written; on failure the
// sequence stops and the partial set is kept.
func (c *Controller) EnableAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.set
	for _, h := range Order {
		if err := c.enableLocked(h); err != nil {
			c.log.WithError(err).Errorf("Enable all stopped at %s, active %s", h, c.set)
			return err
		}
	}
	c.log.Infof("Hooks enabled: %s -> %s", before, c.set)
	return nil
}

// Enable installs a single hook.
func (c *Controller) Enable(h Hook) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enableLocked(h)
}

func (c *Controller) enableLocked(h Hook) error {
	if err := c.ch.Send(protocol.Simple(h.Opcode())); err != nil {
		return fmt.Errorf("install %s hook: %w", h, err)
	}
	if err := c.ch.Barrier(); err != nil {
		return fmt.Errorf("install %s hook: %w", h, err)
	}
	c.set = c.set.With(h)
	return nil
}

// DisableAll asks the listener to remove every hook. The listener tears the
// hooks down itself, so one command suffices.
func (c *Controller) DisableAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.Send(protocol.Simple(protocol.OpUnhookAll)); err != nil {
		return fmt.Errorf("unhook all: %w", err)
	}
	if err := c.ch.Barrier(); err != nil {
		return fmt.Errorf("unhook all: %w", err)
	}
	c.log.Infof("Hooks disabled: %s -> {}", c.set)
	c.set = 0
	return nil
}

// Shutdown ejects the listener and closes the channel. Hooks must have been
// disabled first; the listener terminates and cannot acknowledge, so no
// barrier follows Eject.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.set.Empty() {
		return &MisuseError{Op: "eject", Active: c.set}
	}
	if err := c.ch.Send(protocol.Simple(protocol.OpEject)); err != nil {
		return fmt.Errorf("eject: %w", err)
	}
	c.log.Info("Listener ejected")
	return c.ch.Close()
}

// Forget clears the local set without sending anything. Used after the
// channel was lost, since the listener's hooks are not guaranteed to survive.
func (c *Controller) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set.Empty() {
		c.log.Warnf("Forgetting hooks %s", c.set)
	}
	c.set = 0
}
