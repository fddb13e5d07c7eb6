package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"agendaengine/internal/app"
	"agendaengine/internal/calendar"
	"agendaengine/internal/domain"
)

type alarmsOptions struct {
	Output        OutputOptions
	RoutineTaskID string
	Statuses      []string
	Types         []string
}

func addAlarms(topLevel *cobra.Command, ro *RootOptions) {
	alarms := &cobra.Command{
		Use:   "alarms",
		Short: "Inspect alarm plans",
	}

	lo := &alarmsOptions{}
	list := &cobra.Command{
		Use:   "list",
		Short: "List alarm plans ordered by target time",
		Example: `
agendad alarms list
agendad alarms list --status PENDING --type STEP
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := domain.AlarmPlanFilter{RoutineTaskID: lo.RoutineTaskID}
			for _, s := range lo.Statuses {
				f.Statuses = append(f.Statuses, domain.AlarmStatus(strings.ToUpper(s)))
			}
			for _, t := range lo.Types {
				f.Types = append(f.Types, domain.AlarmType(strings.ToUpper(t)))
			}
			return withApp(cmd, ro, func(a *app.App) error {
				plans, err := a.Store().ListAlarmPlans(cmd.Context(), f)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if lo.Output.JSON {
					return printJSON(w, plans)
				}
				renderAlarms(w, a.Services().Zone, a.Now(), plans)
				return nil
			})
		},
	}
	AddOutputArg(list, &lo.Output)
	list.Flags().StringVar(&lo.RoutineTaskID, "task", "", "Only plans of this routine task id.")
	list.Flags().StringSliceVar(&lo.Statuses, "status", nil, "Filter by status (PENDING, ACTIVE, DONE, CANCELLED).")
	list.Flags().StringSliceVar(&lo.Types, "type", nil, "Filter by type (SLEEP, WAKE, STEP).")

	alarms.AddCommand(list)
	topLevel.AddCommand(alarms)
}

func renderAlarms(w io.Writer, z calendar.Zone, now time.Time, plans []domain.AlarmPlan) {
	title(w, "Alarm plans")
	if len(plans) == 0 {
		none(w)
		return
	}
	tbl := newTable()
	tbl.AddRow("ID", "TYPE", "TARGET", "", "STATUS", "PROGRESS")
	for _, p := range plans {
		progress := ""
		if p.Metadata.Expected != nil && p.Metadata.Actual != nil {
			progress = fmt.Sprintf("%d/%d", *p.Metadata.Actual, *p.Metadata.Expected)
		}
		tbl.AddRow(
			faint.Sprint(p.ID),
			string(p.Type),
			formatStamp(p.TargetAt, z),
			faint.Sprint(humanize.RelTime(p.TargetAt, now, "ago", "from now")),
			string(p.Status),
			progress,
		)
	}
	flush(w, tbl)
}
