// Package cli implements the nguctl command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"nguctl/internal/config"
	"nguctl/internal/logging"
	"nguctl/internal/session"
)

var version = "0.1.0"

// SessionFactory builds the session a command runs against.
type SessionFactory func(cfg config.Config, log logrus.FieldLogger) *session.Session

type app struct {
	configPath string
	logLevel   string

	newSession SessionFactory
	cfgMgr     *config.Manager
	logs       logging.Runtime
}

// NewRootCmd builds the command tree. A nil factory uses the real pipe and
// window.
func NewRootCmd(newSession SessionFactory) *cobra.Command {
	if newSession == nil {
		newSession = session.FromConfig
	}
	a := &app{newSession: newSession}

	root := &cobra.Command{
		Use:           "nguctl",
		Short:         "Controller for the input listener injected into NGU Idle",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.logs.Close()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default per-user config dir)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level, overrides the config file")

	root.AddCommand(
		a.serveCmd(),
		a.hookCmd(),
		a.unhookCmd(),
		a.ejectCmd(),
		a.clickCmd(),
		a.dragCmd(),
		a.typeCmd(),
		a.arrowCmd(),
		a.holdCmd(),
		a.restoreCmd(),
		a.geometryCmd(),
		a.autostartCmd(),
		a.watchCmd(),
		versionCmd(),
	)
	return root
}

// Execute runs the command tree against os.Args and exits on error.
func Execute() {
	if err := NewRootCmd(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) setup(stderr io.Writer) error {
	boot := logging.Discard()
	mgr, err := config.NewManager(a.configPath, boot)
	if err != nil {
		return err
	}
	if err := mgr.Load(); err != nil {
		return err
	}
	cfg := mgr.Get()

	level := cfg.General.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	logs, err := logging.New(level, cfg.General.LogFile)
	if err != nil {
		return err
	}
	if logs.Path == "" {
		logs.Logger.SetOutput(stderr)
	}

	a.cfgMgr = mgr
	a.logs = logs
	return nil
}

func (a *app) log() logrus.FieldLogger {
	return a.logs.Logger
}

// session builds a session from the current configuration.
func (a *app) session() *session.Session {
	return a.newSession(a.cfgMgr.Get(), a.log())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "nguctl version %s\n", version)
			return err
		},
	}
}
