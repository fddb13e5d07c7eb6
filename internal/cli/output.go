package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"agendaengine/internal/calendar"
	"agendaengine/internal/domain"
)

// OutputOptions
type OutputOptions struct {
	JSON bool
}

func AddOutputArg(cmd *cobra.Command, po *OutputOptions) {
	cmd.Flags().BoolVar(&po.JSON, "json", false,
		"Output as JSON.")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var (
	titleColor = color.New(color.Bold, color.Underline)
	faint      = color.New(color.Faint)
	pending    = color.New(color.FgYellow)
	completed  = color.New(color.FgGreen)
	unfinished = color.New(color.FgRed)
)

func title(w io.Writer, s string) {
	_, _ = titleColor.Fprintln(w, s)
}

func none(w io.Writer) {
	_, _ = faint.Fprintln(w, "  none")
}

func newTable() *uitable.Table {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 48
	return tbl
}

func statusText(s domain.ItemStatus) string {
	switch s {
	case domain.ItemCompleted:
		return completed.Sprint(s)
	case domain.ItemUnfinished:
		return unfinished.Sprint(s)
	default:
		return pending.Sprint(s)
	}
}

// itemTitle is the task title, the routine task name, or the notes.
func itemTitle(it domain.AgendaItem) string {
	switch {
	case it.Task != nil && it.Task.Title != "":
		return it.Task.Title
	case it.RoutineTask != nil:
		return it.RoutineTask.Name
	case it.Notes != "":
		return it.Notes
	}
	return "(untitled)"
}

// itemWhen renders the local time span of a timed item.
func itemWhen(z calendar.Zone, it domain.AgendaItem) string {
	if it.StartAt == nil {
		return "all day"
	}
	start := it.StartAt.In(z.Location())
	end, ok := it.End()
	if !ok {
		return start.Format("15:04")
	}
	return fmt.Sprintf("%s-%s", start.Format("15:04"), end.In(z.Location()).Format("15:04"))
}

func itemRow(tbl *uitable.Table, z calendar.Zone, it domain.AgendaItem) {
	tbl.AddRow(faint.Sprint(it.ID), itemWhen(z, it), itemTitle(it), statusText(it.Status))
}

func flush(w io.Writer, tbl *uitable.Table) {
	_, _ = fmt.Fprintln(w, tbl)
}

func formatStamp(t time.Time, z calendar.Zone) string {
	return t.In(z.Location()).Format("2006-01-02 15:04")
}
