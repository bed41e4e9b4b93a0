package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"nguctl/internal/autostart"
)

func (a *app) autostartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Manage starting the tray controller at login",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Start nguctl serve at login",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path := a.configPath
				if path != "" {
					abs, err := filepath.Abs(path)
					if err != nil {
						return err
					}
					path = abs
				}
				if err := autostart.Enable(path); err != nil {
					return err
				}
				a.log().Info("Autostart enabled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Remove the login entry",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return autostart.Disable()
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the login entry",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				v, err := autostart.Status()
				if err != nil {
					return err
				}
				if v == "" {
					v = "disabled"
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
	)
	return cmd
}
