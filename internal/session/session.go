// Package session owns the controller's lifecycle against one listener: it
// wires the command channel, hook controller, coordinate mapper and input
// dispatcher and serializes every operation on them.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nguctl/internal/channel"
	"nguctl/internal/config"
	"nguctl/internal/hooks"
	"nguctl/internal/input"
	"nguctl/internal/logging"
	"nguctl/internal/window"
)

// Window is a window provider that also accepts input messages.
type Window interface {
	window.Provider
	window.Target
}

// focusCycler is implemented by windows that can be focused and unfocused.
// The focus hook only takes effect after such a cycle.
type focusCycler interface {
	CycleFocus() error
}

// Options configures a Session.
type Options struct {
	Offset window.Point
	Delay  time.Duration
	Settle time.Duration
	Sleep  func(time.Duration)

	// EnableHooks installs every hook as part of Open
	EnableHooks bool

	Logger logrus.FieldLogger
}

// Status is a snapshot of the session.
type Status struct {
	Pipe       string       `json:"pipe"`
	Connected  bool         `json:"connected"`
	Hooks      []string     `json:"hooks"`
	Unrestored string       `json:"unrestored"`
	Offset     window.Point `json:"offset"`
}

// Session serializes the channel, hooks and dispatcher so that API, tray and
// hotkey callers keep a single ordered command stream.
type Session struct {
	mu     sync.Mutex
	ch     *channel.Channel
	hooks  *hooks.Controller
	mapper *window.Mapper
	input  *input.Dispatcher
	win    Window
	opts   Options
	log    logrus.FieldLogger
}

// New wires a session over ch and win.
func New(ch *channel.Channel, win Window, opts Options) *Session {
	mapper := window.NewMapper(win, opts.Offset)
	return &Session{
		ch:     ch,
		hooks:  hooks.NewController(ch, opts.Logger),
		mapper: mapper,
		input: input.NewDispatcher(ch, mapper, win, input.Options{
			Delay:  opts.Delay,
			Settle: opts.Settle,
			Sleep:  opts.Sleep,
			Logger: opts.Logger,
		}),
		win:  win,
		opts: opts,
		log:  logging.Component(opts.Logger, "session"),
	}
}

// FromConfig builds a session against the real pipe and window.
func FromConfig(cfg config.Config, log logrus.FieldLogger) *Session {
	ch := channel.New(channel.PipeDialer(), channel.Options{
		Name:         cfg.Listener.PipeName,
		WriteTimeout: cfg.WriteTimeout(),
		Logger:       log,
	})
	win := window.NewSystem(cfg.Window.Title, cfg.HandleTTL(), log)
	return New(ch, win, Options{
		Offset:      window.Point{X: cfg.Window.OffsetX, Y: cfg.Window.OffsetY},
		Delay:       cfg.ShortSleep(),
		Settle:      cfg.Settle(),
		EnableHooks: cfg.Listener.EnableHooksOnConnect,
		Logger:      log,
	})
}

// Channel returns the underlying channel.
func (s *Session) Channel() *channel.Channel {
	return s.ch
}

// Mapper returns the coordinate mapper.
func (s *Session) Mapper() *window.Mapper {
	return s.mapper
}

// Open checks that the window exists, connects and, when configured, enables
// every hook. Nothing is written when the window cannot be found.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.mapper.Geometry()
	if err != nil {
		return err
	}
	s.log.Debugf("Window 0x%x client %dx%d", g.Handle, g.Client.Width(), g.Client.Height())

	if err := s.ch.Connect(); err != nil {
		return err
	}
	if !s.opts.EnableHooks {
		return nil
	}
	return s.enableAll()
}

func (s *Session) enableAll() error {
	if err := s.hooks.EnableAll(); err != nil {
		return err
	}
	s.cycleFocus()
	return nil
}

// cycleFocus arms a newly installed focus hook. Failure only degrades
// background play, so it is logged.
func (s *Session) cycleFocus() {
	fc, ok := s.win.(focusCycler)
	if !ok || !s.hooks.Set().Has(hooks.Focus) {
		return
	}
	if err := fc.CycleFocus(); err != nil {
		s.log.WithError(err).Warn("Focus cycle failed; focus the game window once by hand")
	}
}

// Connect opens the channel without touching hooks.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch.Connect()
}

// Rearm recovers from a lost channel: reconnect, forget the hooks the
// listener may have dropped, install them again and retry pending restores.
func (s *Session) Rearm() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ch.Reconnect(); err != nil {
		return err
	}
	s.hooks.Forget()
	if err := s.enableAll(); err != nil {
		return err
	}
	if pending := s.input.Unrestored(); pending != 0 {
		s.log.Warnf("Retrying restore of %s", pending)
		return s.input.RestoreAll()
	}
	return nil
}

// EnableHooks installs hs, or every hook when hs is empty.
func (s *Session) EnableHooks(hs ...hooks.Hook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(hs) == 0 {
		return s.enableAll()
	}
	for _, h := range hs {
		if err := s.hooks.Enable(h); err != nil {
			return err
		}
		if h == hooks.Focus {
			s.cycleFocus()
		}
	}
	return nil
}

// DisableHooks removes every hook.
func (s *Session) DisableHooks() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hooks.DisableAll()
}

// Close disables the hooks and ejects the listener. The listener is never
// ejected while hooks may still be armed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.hooks.DisableAll(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return s.hooks.Shutdown()
}

// Detach closes the handle and leaves the listener and its hooks in place.
func (s *Session) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch.Close()
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.hooks.Set()
	names := make([]string, 0, len(hooks.Order))
	for _, h := range set.Hooks() {
		names = append(names, h.String())
	}
	return Status{
		Pipe:       s.ch.Name(),
		Connected:  s.ch.Connected(),
		Hooks:      names,
		Unrestored: s.input.Unrestored().String(),
		Offset:     s.mapper.Offset(),
	}
}

// Hooks returns the requested hook set.
func (s *Session) Hooks() hooks.Set {
	return s.hooks.Set()
}

// Geometry returns fresh window geometry.
func (s *Session) Geometry() (window.Geometry, error) {
	return s.mapper.Geometry()
}

// Click clicks btn at p, holding key when one is given.
func (s *Session) Click(p window.Point, btn input.Button, key *input.SpecialKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key != nil {
		return s.input.SpecialClick(p, btn, *key)
	}
	return s.input.Click(p, btn)
}

// Drag drags btn from one logical point to another.
func (s *Session) Drag(from, to window.Point, btn input.Button) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input.Drag(from, to, btn)
}

// Type types text into the focused game field.
func (s *Session) Type(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input.TypeString(text)
}

// Arrow sends a single arrow key press.
func (s *Session) Arrow(a input.Arrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input.SendArrow(a)
}

// MaxHold bounds HoldSpecial; the session is locked for the whole hold.
const MaxHold = 10 * time.Second

// HoldSpecial reports key as held for d, for clicks made by hand while the
// game believes the modifier is down.
func (s *Session) HoldSpecial(key input.SpecialKey, d time.Duration) error {
	if d <= 0 || d > MaxHold {
		return fmt.Errorf("hold %s: duration %s outside (0, %s]", key, d, MaxHold)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input.HoldSpecial(key, func() error {
		s.sleep(d)
		return nil
	})
}

func (s *Session) sleep(d time.Duration) {
	if s.opts.Sleep != nil {
		s.opts.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Restore retries every pending restore.
func (s *Session) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input.RestoreAll()
}

// ForceRestore restores every spoof kind regardless of local state.
func (s *Session) ForceRestore() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input.ForceRestore()
}

// Panic removes every hook without waiting for a running operation; used by
// the panic hotkey and tray. Any write failure has already dropped the handle,
// so the local hook set is forgotten too.
func (s *Session) Panic() error {
	err := s.hooks.DisableAll()
	if err != nil {
		s.log.WithError(err).Error("Panic unhook failed")
		var werr *channel.WriteError
		if errors.As(err, &werr) {
			s.hooks.Forget()
		}
	}
	return err
}
