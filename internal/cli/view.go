package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"agendaengine/internal/agendaview"
	"agendaengine/internal/app"
	"agendaengine/internal/calendar"
	"agendaengine/internal/domain"
)

type viewOptions struct {
	Output   OutputOptions
	Timezone string
}

func addView(topLevel *cobra.Command, ro *RootOptions) {
	vo := &viewOptions{}
	cmd := &cobra.Command{
		Use:       "view day|week|month [date]",
		Short:     "Render a calendar view",
		ValidArgs: []string{string(agendaview.ModeDay), string(agendaview.ModeWeek), string(agendaview.ModeMonth)},
		Example: `
agendad view day
agendad view week 2026-10-17 --tz Asia/Jakarta
agendad view month --json
`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := agendaview.Mode(strings.ToLower(args[0]))
			return withApp(cmd, ro, func(a *app.App) error {
				tz := vo.Timezone
				if tz == "" {
					tz = a.Services().Zone.Name()
				}
				z, err := calendar.LoadZone(tz)
				if err != nil {
					return err
				}
				anchor := z.Today(a.Now())
				if len(args) == 2 {
					anchor = args[1]
				}
				views := a.Services().Views
				ctx := cmd.Context()
				w := cmd.OutOrStdout()

				var v any
				switch mode {
				case agendaview.ModeDay:
					day, err := views.Day(ctx, anchor, tz)
					if err != nil {
						return err
					}
					v = day
					if !vo.Output.JSON {
						renderDay(w, z, day)
					}
				case agendaview.ModeWeek:
					week, err := views.Week(ctx, anchor, tz)
					if err != nil {
						return err
					}
					v = week
					if !vo.Output.JSON {
						renderWeek(w, z, week)
					}
				case agendaview.ModeMonth:
					month, err := views.Month(ctx, anchor, tz)
					if err != nil {
						return err
					}
					v = month
					if !vo.Output.JSON {
						renderMonth(w, month)
					}
				default:
					return fmt.Errorf("unknown view %q (want day, week or month)", args[0])
				}
				if vo.Output.JSON {
					return printJSON(w, v)
				}
				return nil
			})
		},
	}
	AddOutputArg(cmd, &vo.Output)
	cmd.Flags().StringVar(&vo.Timezone, "tz", "", "IANA time zone (defaults to calendar.timezone).")
	topLevel.AddCommand(cmd)
}

func renderDay(w io.Writer, z calendar.Zone, v agendaview.DayView) {
	label := v.Label
	if v.IsToday {
		label += " (today)"
	}
	title(w, label)

	tbl := newTable()
	for _, it := range v.AllDayItems {
		itemRow(tbl, z, it)
	}
	for _, slot := range v.Hours {
		for _, it := range slot.Items {
			itemRow(tbl, z, it)
		}
	}
	if v.IsEmpty {
		none(w)
	} else {
		flush(w, tbl)
	}
	renderUnfinished(w, z, v.UnfinishedItems)
}

func renderWeek(w io.Writer, z calendar.Zone, v agendaview.WeekView) {
	title(w, v.Label)
	tbl := newTable()
	for _, d := range v.Days {
		day := d.Label
		if d.IsToday {
			day = completed.Sprint(day)
		}
		tbl.AddRow(day, faint.Sprintf("%d all-day, %d timed", len(d.AllDayItems), len(d.TimedItems)))
		for _, it := range d.AllDayItems {
			itemRow(tbl, z, it)
		}
		for _, p := range d.TimedItems {
			itemRow(tbl, z, p.Item)
		}
	}
	flush(w, tbl)
	renderUnfinished(w, z, v.UnfinishedItems)
}

func renderMonth(w io.Writer, v agendaview.MonthView) {
	title(w, v.Label)
	tbl := newTable()
	header := make([]any, 0, len(v.WeekdayLabels))
	for _, l := range v.WeekdayLabels {
		header = append(header, l)
	}
	tbl.AddRow(header...)
	for week := 0; week < len(v.Days); week += 7 {
		row := make([]any, 0, 7)
		for _, d := range v.Days[week:min(week+7, len(v.Days))] {
			cell := d.Label
			if n := len(d.Items) + d.OverflowCount; n > 0 {
				cell = fmt.Sprintf("%s (%d)", cell, n)
			}
			switch {
			case d.IsToday:
				cell = completed.Sprint(cell)
			case !d.IsCurrentMonth:
				cell = faint.Sprint(cell)
			}
			row = append(row, cell)
		}
		tbl.AddRow(row...)
	}
	flush(w, tbl)
}

func renderUnfinished(w io.Writer, z calendar.Zone, items []domain.AgendaItem) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	title(w, "Unfinished")
	tbl := newTable()
	for _, it := range items {
		itemRow(tbl, z, it)
	}
	flush(w, tbl)
}
