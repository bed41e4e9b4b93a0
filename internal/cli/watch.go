package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nguctl/internal/remote"
)

func (a *app) watchCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the commands a running serve writes to the listener",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfgMgr.Get()
			if addr == "" {
				addr = fmt.Sprintf("127.0.0.1:%d", cfg.General.APIPort)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			c := remote.New(addr, cfg.General.APIToken, a.log())
			return c.Watch(ctx, func(ev remote.Event) {
				fmt.Fprintf(out, "%s %s\n", time.UnixMilli(ev.Time).Format("15:04:05.000"), ev.Command)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "controller address (default 127.0.0.1:<api_port>)")
	return cmd
}
