package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"agendaengine/internal/app"
	"agendaengine/internal/domain"
)

type routineAddOptions struct {
	Output         OutputOptions
	Name           string
	Type           string
	Target         string
	SeparateInto   int
	RepeatInterval int
	Paused         bool
}

func addRoutine(topLevel *cobra.Command, ro *RootOptions) {
	routine := &cobra.Command{
		Use:   "routine",
		Short: "Create routines and log their progress",
	}

	ao := &routineAddOptions{}
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a routine and plan it onto today's agenda",
		Example: `
agendad routine add --name Sleep --type SLEEP --target 06:30-22:30
agendad routine add --name Walk --type STEP --target 10000 --separate-into 4 --repeat 30
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := domain.RoutineInput{
				Name:         ao.Name,
				Type:         domain.RoutineType(strings.ToUpper(ao.Type)),
				Target:       ao.Target,
				SeparateInto: ao.SeparateInto,
				Status:       domain.RoutineActive,
			}
			if ao.Paused {
				in.Status = domain.RoutinePaused
			}
			if cmd.Flags().Changed("repeat") {
				in.RepeatIntervalMinutes = domain.IntPtr(ao.RepeatInterval)
			}
			return withApp(cmd, ro, func(a *app.App) error {
				r, err := a.Services().Routines.Create(cmd.Context(), in)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if ao.Output.JSON {
					return printJSON(w, r)
				}
				renderRoutine(w, r)
				return nil
			})
		},
	}
	AddOutputArg(add, &ao.Output)
	add.Flags().StringVar(&ao.Name, "name", "", "Routine name.")
	add.Flags().StringVar(&ao.Type, "type", string(domain.RoutineOther), "SLEEP, STEP or OTHER.")
	add.Flags().StringVar(&ao.Target, "target", "", `Target: "HH:MM-HH:MM" for SLEEP, a number for STEP.`)
	add.Flags().IntVar(&ao.SeparateInto, "separate-into", 1, "Number of STEP segments.")
	add.Flags().IntVar(&ao.RepeatInterval, "repeat", 0, "Alarm repeat interval in minutes.")
	add.Flags().BoolVar(&ao.Paused, "paused", false, "Create the routine PAUSED.")

	lo := &OutputOptions{}
	logCmd := &cobra.Command{
		Use:   "log <routine-task-id> <value>",
		Short: "Record progress against a routine task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, ro, func(a *app.App) error {
				l, err := a.Services().Routines.LogProgress(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if lo.JSON {
					return printJSON(w, l)
				}
				_, _ = fmt.Fprintf(w, "logged %s for task %s\n", l.Value, l.RoutineTaskID)
				return nil
			})
		},
	}
	AddOutputArg(logCmd, lo)

	listOut := &OutputOptions{}
	list := &cobra.Command{
		Use:   "list",
		Short: "List routines with their tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, ro, func(a *app.App) error {
				rs, err := a.Services().Routines.List(cmd.Context())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if listOut.JSON {
					return printJSON(w, rs)
				}
				if len(rs) == 0 {
					title(w, "Routines")
					none(w)
				}
				for _, r := range rs {
					renderRoutine(w, r)
				}
				return nil
			})
		},
	}
	AddOutputArg(list, listOut)

	routine.AddCommand(add, logCmd, list)
	topLevel.AddCommand(routine)
}

func renderRoutine(w io.Writer, r domain.Routine) {
	title(w, fmt.Sprintf("%s [%s]", r.Name, r.Type))
	_, _ = faint.Fprintf(w, "%s  target %s  %s\n", r.ID, r.Target, r.Status)
	tbl := newTable()
	for _, t := range r.Tasks {
		tbl.AddRow(faint.Sprint(t.ID), t.Name, t.Target)
	}
	flush(w, tbl)
}
