// Package cli is the agendad command line: the scheduler daemon plus
// one-shot commands that read and write the configured store.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agendaengine/internal/app"
)

// RootOptions are flags shared by every command.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	ro := &RootOptions{}
	root := &cobra.Command{
		Use:   "agendad",
		Short: "Agenda scheduling and calendar layout engine",
		Long: `agendad plans routine items onto daily agendas, derives alarm plans,
expires overdue items and renders day, week and month calendar views.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&ro.ConfigPath, "config", "c", os.Getenv("AGENDAD_CONFIG"),
		"Path to a YAML or JSON config file (defaults to in-memory storage).")

	addServe(root, ro)
	addView(root, ro)
	addPlan(root, ro)
	addExpire(root, ro)
	addRoutine(root, ro)
	addItem(root, ro)
	addAlarms(root, ro)
	return root
}

// Execute runs the root command against the process arguments.
func Execute(ctx context.Context, version string) error {
	if err := NewRootCommand(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// withApp builds the app for a one-shot command and closes it afterwards.
// Logs go to stderr so stdout stays parseable.
func withApp(cmd *cobra.Command, ro *RootOptions, fn func(a *app.App) error) error {
	a, err := app.New(ro.ConfigPath, app.WithLogOutput(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
