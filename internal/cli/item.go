package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"agendaengine/internal/agendaitem"
	"agendaengine/internal/app"
	"agendaengine/internal/domain"
)

type itemAddOptions struct {
	Output   OutputOptions
	Title    string
	Type     string
	Start    string
	Duration int
	Notes    string
}

type itemRescheduleOptions struct {
	Output     OutputOptions
	Start      string
	Duration   int
	AllDay     bool
	NoDuration bool
}

func addItem(topLevel *cobra.Command, ro *RootOptions) {
	item := &cobra.Command{
		Use:   "item",
		Short: "Schedule, complete and move agenda items",
	}

	ao := &itemAddOptions{}
	add := &cobra.Command{
		Use:   "add <date>",
		Short: "Schedule an item on a day's agenda",
		Example: `
agendad item add 2026-10-17 --title "Write report" --start 09:00 --duration 90
agendad item add 2026-10-17 --title "Release day" --type MILESTONE
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(ao.Title) == "" {
				return errors.New("--title is required")
			}
			key := args[0]
			return withApp(cmd, ro, func(a *app.App) error {
				svcs := a.Services()
				in := domain.ItemInput{
					Type:  domain.ItemType(strings.ToUpper(ao.Type)),
					Notes: ao.Notes,
				}
				if ao.Start != "" {
					t, err := svcs.Zone.TimeOn(key, ao.Start)
					if err != nil {
						return err
					}
					in.StartAt = &t
				}
				if cmd.Flags().Changed("duration") {
					in.Duration = domain.IntPtr(ao.Duration)
				}
				task, err := a.Store().CreateTask(cmd.Context(), ao.Title)
				if err != nil {
					return err
				}
				in.TaskID = task.ID

				it, err := svcs.Items.Schedule(cmd.Context(), key, in)
				if err != nil {
					return err
				}
				if it.Task == nil {
					it.Task = &task
				}
				w := cmd.OutOrStdout()
				if ao.Output.JSON {
					return printJSON(w, it)
				}
				tbl := newTable()
				itemRow(tbl, svcs.Zone, it)
				flush(w, tbl)
				return nil
			})
		},
	}
	AddOutputArg(add, &ao.Output)
	add.Flags().StringVar(&ao.Title, "title", "", "Task title.")
	add.Flags().StringVar(&ao.Type, "type", string(domain.ItemRegular), "REGULAR, MEETING or MILESTONE.")
	add.Flags().StringVar(&ao.Start, "start", "", "Local start time HH:MM; omit for an all-day item.")
	add.Flags().IntVar(&ao.Duration, "duration", 0, "Duration in minutes.")
	add.Flags().StringVar(&ao.Notes, "notes", "", "Free-form notes.")

	co := &OutputOptions{}
	var completeNotes, completedAt string
	complete := &cobra.Command{
		Use:   "complete <item-id>",
		Short: "Mark an item COMPLETED",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var at time.Time
			if completedAt != "" {
				t, err := time.Parse(time.RFC3339, completedAt)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				at = t
			}
			return withApp(cmd, ro, func(a *app.App) error {
				it, err := a.Services().Items.Complete(cmd.Context(), args[0], at, completeNotes)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if co.JSON {
					return printJSON(w, it)
				}
				tbl := newTable()
				itemRow(tbl, a.Services().Zone, it)
				flush(w, tbl)
				return nil
			})
		},
	}
	AddOutputArg(complete, co)
	complete.Flags().StringVar(&completeNotes, "notes", "", "Completion notes.")
	complete.Flags().StringVar(&completedAt, "at", "", "Completion time, RFC 3339 (defaults to now).")

	rso := &itemRescheduleOptions{}
	reschedule := &cobra.Command{
		Use:   "reschedule <item-id> <date>",
		Short: "Move an item to another day or time",
		Example: `
agendad item reschedule 3f2c... 2026-10-18 --start 14:00
agendad item reschedule 3f2c... 2026-10-18 --all-day
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rso.AllDay && rso.Start != "" {
				return errors.New("--all-day and --start are mutually exclusive")
			}
			id, key := args[0], args[1]
			return withApp(cmd, ro, func(a *app.App) error {
				svcs := a.Services()
				in := agendaitem.RescheduleInput{
					DateKey:       key,
					ClearStartAt:  rso.AllDay,
					ClearDuration: rso.NoDuration,
				}
				if rso.Start != "" {
					t, err := svcs.Zone.TimeOn(key, rso.Start)
					if err != nil {
						return err
					}
					in.StartAt = &t
				}
				if cmd.Flags().Changed("duration") {
					in.Duration = domain.IntPtr(rso.Duration)
				}
				it, err := svcs.Items.Reschedule(cmd.Context(), id, in)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if rso.Output.JSON {
					return printJSON(w, it)
				}
				tbl := newTable()
				itemRow(tbl, svcs.Zone, it)
				flush(w, tbl)
				return nil
			})
		},
	}
	AddOutputArg(reschedule, &rso.Output)
	reschedule.Flags().StringVar(&rso.Start, "start", "", "New local start time HH:MM.")
	reschedule.Flags().IntVar(&rso.Duration, "duration", 0, "New duration in minutes.")
	reschedule.Flags().BoolVar(&rso.AllDay, "all-day", false, "Drop the start time.")
	reschedule.Flags().BoolVar(&rso.NoDuration, "no-duration", false, "Drop the duration.")

	item.AddCommand(add, complete, reschedule)
	topLevel.AddCommand(item)
}
