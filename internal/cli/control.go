package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nguctl/internal/hooks"
	"nguctl/internal/input"
	"nguctl/internal/remote"
	"nguctl/internal/session"
	"nguctl/internal/window"
)

// remoteTimeout bounds a one-shot call to a running controller; it covers
// the longest hold.
const remoteTimeout = 30 * time.Second

// errServing is returned by commands that must not run beside a controller.
var errServing = errors.New("nguctl serve owns the pipe; stop it first")

// withSession connects, runs fn and closes the handle. The listener keeps
// its hooks after the command exits.
func (a *app) withSession(fn func(s *session.Session) error) error {
	s := a.session()
	if err := s.Connect(); err != nil {
		return err
	}
	err := fn(s)
	if cerr := s.Detach(); cerr != nil {
		a.log().WithError(cerr).Warn("Closing pipe handle")
	}
	return err
}

// callRemote runs action on a running serve. ok is false when no controller
// answers on the configured API port.
func (a *app) callRemote(action string, params any) (result json.RawMessage, ok bool, err error) {
	cfg := a.cfgMgr.Get()
	if !cfg.General.APIEnabled {
		return nil, false, nil
	}
	c := remote.New(fmt.Sprintf("127.0.0.1:%d", cfg.General.APIPort), cfg.General.APIToken, a.log())
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()

	r, err := c.Call(ctx, action, params)
	if errors.Is(err, remote.ErrUnreachable) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	a.log().Debugf("%s handled by the running controller", action)
	if !r.OK {
		return nil, true, fmt.Errorf("controller: %s", r.Error)
	}
	return r.Result, true, nil
}

// run sends action to a running serve so the pipe keeps a single writer, and
// falls back to a private session when none is running.
func (a *app) run(action string, params any, direct func(s *session.Session) error) (json.RawMessage, error) {
	result, ok, err := a.callRemote(action, params)
	if ok {
		return result, err
	}
	return nil, a.withSession(direct)
}

func (a *app) hookCmd() *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Install the listener hooks (focus, cursor-pos, key-down, key-string)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hs := make([]hooks.Hook, 0, len(only))
			names := make([]string, 0, len(only))
			for _, name := range only {
				h, err := hooks.ParseHook(name)
				if err != nil {
					return err
				}
				hs = append(hs, h)
				names = append(names, h.String())
			}
			var set string
			raw, err := a.run("hooks.enable", map[string]any{"hooks": names}, func(s *session.Session) error {
				if err := s.EnableHooks(hs...); err != nil {
					return err
				}
				set = s.Hooks().String()
				return nil
			})
			if err != nil {
				return err
			}
			if raw != nil {
				var st session.Status
				if err := json.Unmarshal(raw, &st); err != nil {
					return err
				}
				set = "{" + strings.Join(st.Hooks, ",") + "}"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hooks %s\n", set)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "install only these hooks, in the given order")
	return cmd
}

func (a *app) unhookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unhook",
		Short: "Remove every hook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := a.run("hooks.disable", nil, func(s *session.Session) error {
				return s.DisableHooks()
			})
			return err
		},
	}
}

func (a *app) ejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eject",
		Short: "Remove every hook and unload the listener",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok, err := a.callRemote("status", nil); ok {
				if err != nil {
					return err
				}
				return errServing
			}
			s := a.session()
			if err := s.Connect(); err != nil {
				return err
			}
			if err := s.Close(); err != nil {
				_ = s.Detach()
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "listener ejected")
			return nil
		},
	}
}

func (a *app) clickCmd() *cobra.Command {
	var button, special string
	cmd := &cobra.Command{
		Use:   "click X Y",
		Short: "Click at a logical 960x600 coordinate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePoint(args[0], args[1])
			if err != nil {
				return err
			}
			btn, err := input.ParseButton(button)
			if err != nil {
				return err
			}
			var key *input.SpecialKey
			if special != "" {
				k, err := input.ParseSpecialKey(special)
				if err != nil {
					return err
				}
				key = &k
			}
			params := map[string]any{"x": p.X, "y": p.Y, "button": btn.String()}
			if key != nil {
				params["special"] = key.String()
			}
			_, err = a.run("click", params, func(s *session.Session) error {
				return s.Click(p, btn, key)
			})
			return err
		},
	}
	cmd.Flags().StringVarP(&button, "button", "b", "left", "mouse button: left, right or middle")
	cmd.Flags().StringVar(&special, "special", "", "hold a modifier: leftShift, rightShift, leftControl, rightControl")
	return cmd
}

func (a *app) dragCmd() *cobra.Command {
	var button string
	cmd := &cobra.Command{
		Use:   "drag X1 Y1 X2 Y2",
		Short: "Drag between two logical coordinates",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parsePoint(args[0], args[1])
			if err != nil {
				return err
			}
			to, err := parsePoint(args[2], args[3])
			if err != nil {
				return err
			}
			btn, err := input.ParseButton(button)
			if err != nil {
				return err
			}
			params := map[string]any{"x1": from.X, "y1": from.Y, "x2": to.X, "y2": to.Y, "button": btn.String()}
			_, err = a.run("drag", params, func(s *session.Session) error {
				return s.Drag(from, to, btn)
			})
			return err
		},
	}
	cmd.Flags().StringVarP(&button, "button", "b", "left", "mouse button: left, right or middle")
	return cmd
}

func (a *app) typeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "type TEXT",
		Short: "Type text into the focused game field",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			_, err := a.run("type", map[string]any{"text": text}, func(s *session.Session) error {
				return s.Type(text)
			})
			return err
		},
	}
}

func (a *app) arrowCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "arrow DIRECTION",
		Short:     "Press an arrow key (up, down, left, right)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "left", "right"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := input.ParseArrow(args[0])
			if err != nil {
				return err
			}
			_, err = a.run("arrow", map[string]any{"direction": dir.String()}, func(s *session.Session) error {
				return s.Arrow(dir)
			})
			return err
		},
	}
}

func (a *app) holdCmd() *cobra.Command {
	var dur time.Duration
	cmd := &cobra.Command{
		Use:   "hold KEY",
		Short: "Report a modifier (leftShift, rightShift, leftControl, rightControl) as held",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := input.ParseSpecialKey(args[0])
			if err != nil {
				return err
			}
			if dur <= 0 || dur > session.MaxHold {
				return fmt.Errorf("--for must be in (0, %s]", session.MaxHold)
			}
			_, err = a.run("hold", map[string]any{"special": key.String(), "ms": dur.Milliseconds()}, func(s *session.Session) error {
				return s.HoldSpecial(key, dur)
			})
			return err
		},
	}
	cmd.Flags().DurationVar(&dur, "for", time.Second, "how long to hold the key")
	return cmd
}

func (a *app) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore the real cursor, key-down and modifier state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := a.run("restore", map[string]any{"all": true}, func(s *session.Session) error {
				return s.ForceRestore()
			})
			return err
		},
	}
}

func (a *app) geometryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geometry [X Y | X1 Y1 X2 Y2]",
		Short: "Show the game window geometry, or where a logical point or area lands",
		Args: func(cmd *cobra.Command, args []string) error {
			switch len(args) {
			case 0, 2, 4:
				return nil
			}
			return errors.New("expects no arguments, X Y or X1 Y1 X2 Y2")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.session().Geometry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			b := window.Borders(g)
			fmt.Fprintf(out, "handle  0x%x\n", g.Handle)
			fmt.Fprintf(out, "outer   %dx%d\n", g.Outer.Width(), g.Outer.Height())
			fmt.Fprintf(out, "client  %dx%d\n", g.Client.Width(), g.Client.Height())
			fmt.Fprintf(out, "borders %d,%d\n", b.X, b.Y)
			fmt.Fprintf(out, "offset  %d,%d\n", g.Offset.X, g.Offset.Y)
			switch len(args) {
			case 2:
				p, err := parsePoint(args[0], args[1])
				if err != nil {
					return err
				}
				phys, err := window.ToPhysical(p, g)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d,%d -> %d,%d\n", p.X, p.Y, phys.X, phys.Y)
			case 4:
				tl, err := parsePoint(args[0], args[1])
				if err != nil {
					return err
				}
				br, err := parsePoint(args[2], args[3])
				if err != nil {
					return err
				}
				ptl, pbr, err := window.ToPhysicalArea(tl, br, g)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d,%d %d,%d -> %d,%d %d,%d\n", tl.X, tl.Y, br.X, br.Y, ptl.X, ptl.Y, pbr.X, pbr.Y)
			}
			return nil
		},
	}
}

func parsePoint(xs, ys string) (window.Point, error) {
	x, err := strconv.Atoi(xs)
	if err != nil {
		return window.Point{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return window.Point{}, fmt.Errorf("y: %w", err)
	}
	return window.Point{X: x, Y: y}, nil
}
