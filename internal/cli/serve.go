package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nguctl/internal/api"
	"nguctl/internal/hotkey"
	"nguctl/internal/osutils"
	"nguctl/internal/session"
	"nguctl/internal/tray"
	"nguctl/internal/ui"
	"nguctl/internal/window"
)

func (a *app) serveCmd() *cobra.Command {
	var ejectOnExit, noTray bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the controller with tray, panic hotkey and local API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, ejectOnExit, noTray)
		},
	}
	cmd.Flags().BoolVar(&ejectOnExit, "eject-on-exit", false, "unload the listener when quitting")
	cmd.Flags().BoolVar(&noTray, "no-tray", false, "run without the tray icon")
	return cmd
}

func (a *app) serve(ctx context.Context, ejectOnExit, noTray bool) error {
	log := a.log()
	cfg := a.cfgMgr.Get()
	log.Infof("nguctl %s starting, pipe %s, window %q", version, cfg.Listener.PipeName, cfg.Window.Title)

	if err := osutils.EnableDPIAwareness(); err != nil {
		log.WithError(err).Warn("DPI awareness not enabled; geometry may be scaled")
	}

	sess := a.session()
	if err := sess.Open(); err != nil {
		log.WithError(err).Warn("Listener not ready; use Reconnect from the tray or POST /api/rearm")
	} else {
		a.checkElevation(sess)
	}

	// Offset edits posted to /api/config apply without a restart
	a.cfgMgr.RegisterChangeCallback(func() {
		c := a.cfgMgr.Get()
		sess.Mapper().SetOffset(window.Point{X: c.Window.OffsetX, Y: c.Window.OffsetY})
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var openPanel func()
	if cfg.General.APIEnabled {
		srv := api.NewServer(sess, api.Options{
			Token:   cfg.General.APIToken,
			Config:  a.cfgMgr,
			Version: version,
			Logger:  log,
		})
		go func() {
			if err := srv.Start(ctx, cfg.General.APIPort); err != nil {
				log.WithError(err).Error("API server stopped")
			}
		}()
		panelURL := ui.URL(cfg.General.APIPort, cfg.General.APIToken)
		openPanel = func() {
			if err := ui.OpenBrowser(panelURL); err != nil {
				log.WithError(err).Warn("Unable to open the control panel")
			}
		}
	}

	showTray := cfg.General.ShowTray && !noTray
	var t *tray.Tray
	var menu *tray.Menu
	if showTray {
		t = tray.New("nguctl - "+cfg.Window.Title, cancel)
		menu = tray.Install(t, sess, openPanel, t.Stop, log)
	}

	hk := hotkey.NewManager(log)
	if _, err := hk.Register(cfg.General.PanicHotkey, func() {
		log.Warn("Panic hotkey: removing every hook")
		_ = sess.Panic()
		if menu != nil {
			menu.Refresh()
		}
	}); err != nil {
		log.WithError(err).Warn("Panic hotkey not registered")
	} else if err := hk.Start(ctx); err != nil {
		log.WithError(err).Warn("Hotkey engine failed to start")
	}

	if !showTray {
		<-ctx.Done()
		return a.shutdown(sess, ejectOnExit)
	}

	go func() {
		<-ctx.Done()
		t.Stop()
	}()
	t.Run()
	return a.shutdown(sess, ejectOnExit)
}

func (a *app) shutdown(sess *session.Session, eject bool) error {
	log := a.log()
	if !sess.Status().Connected {
		return nil
	}
	if eject {
		log.Info("Ejecting listener")
		return sess.Close()
	}
	if err := sess.DisableHooks(); err != nil {
		log.WithError(err).Warn("Unhook on exit failed")
	}
	return sess.Detach()
}

func (a *app) checkElevation(sess *session.Session) {
	g, err := sess.Geometry()
	if err != nil {
		return
	}
	elevated, err := osutils.WindowElevated(g.Handle)
	if err != nil {
		a.log().WithError(err).Debug("Elevation check skipped")
		return
	}
	if elevated && !osutils.IsAdmin() {
		a.log().Warn("The game runs elevated but nguctl does not; window messages will be dropped")
	}
}
