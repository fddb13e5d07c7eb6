package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"agendaengine/internal/app"
)

func addServe(topLevel *cobra.Command, ro *RootOptions) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler daemon",
		Long: `Run the expiry sweep, the agenda planner and the alarm planner on their
configured schedules until interrupted. The config file is watched and
logging, calendar and job changes are applied live.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(ro.ConfigPath)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
	topLevel.AddCommand(cmd)
}
