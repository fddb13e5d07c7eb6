package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"agendaengine/internal/app"
)

func addPlan(topLevel *cobra.Command, ro *RootOptions) {
	plan := &cobra.Command{
		Use:   "plan",
		Short: "Run a planner once",
	}

	ao := &OutputOptions{}
	agenda := &cobra.Command{
		Use:   "agenda [date]",
		Short: "Place every active routine task on a day's agenda",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, ro, func(a *app.App) error {
				svcs := a.Services()
				day := a.Now()
				if len(args) == 1 {
					start, err := svcs.Zone.StartOfDay(args[0])
					if err != nil {
						return err
					}
					day = start
				}
				res, err := svcs.AgendaPlanner.PlanForDate(cmd.Context(), day)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if ao.JSON {
					return printJSON(w, res)
				}
				title(w, fmt.Sprintf("Agenda %s", res.DateKey))
				_, _ = faint.Fprintf(w, "created %d, skipped %d\n", len(res.Created), res.Skipped)
				if len(res.Created) > 0 {
					tbl := newTable()
					for _, it := range res.Created {
						itemRow(tbl, svcs.Zone, it)
					}
					flush(w, tbl)
				}
				return nil
			})
		},
	}
	AddOutputArg(agenda, ao)

	lo := &OutputOptions{}
	alarms := &cobra.Command{
		Use:   "alarms",
		Short: "Derive alarm plans for active SLEEP and STEP routines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, ro, func(a *app.App) error {
				plans, err := a.Services().AlarmPlanner.PlanForActiveRoutines(cmd.Context(), a.Now())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if lo.JSON {
					return printJSON(w, plans)
				}
				renderAlarms(w, a.Services().Zone, a.Now(), plans)
				return nil
			})
		},
	}
	AddOutputArg(alarms, lo)

	plan.AddCommand(agenda, alarms)
	topLevel.AddCommand(plan)
}

func addExpire(topLevel *cobra.Command, ro *RootOptions) {
	oo := &OutputOptions{}
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Mark overdue pending items UNFINISHED",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, ro, func(a *app.App) error {
				res, err := a.Services().Expiry.Execute(cmd.Context())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if oo.JSON {
					return printJSON(w, res)
				}
				_, _ = fmt.Fprintf(w, "marked %d item(s) unfinished\n", res.MarkedCount)
				return nil
			})
		},
	}
	AddOutputArg(cmd, oo)
	topLevel.AddCommand(cmd)
}
