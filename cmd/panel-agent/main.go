package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"panel-agent/internal/bootstrap"
	"panel-agent/internal/config"
)

type runFlags struct {
	jobPath  string
	farm     string
	farmName string
	manager  string
	date     string
	noSelect bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "panel-agent",
		Short:         "Browser automation for the farm management panel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(), newConsoleCmd())

	return root
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one job: log in, open the farm, select the manager and read the report status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			job, err := flags.jobFile(cmd)
			if err != nil {
				return err
			}

			return start(bootstrap.NewApp(bootstrap.ModeRun, fx.Supply(job)))
		},
	}

	cmd.Flags().StringVar(&flags.jobPath, "job", "", "YAML job descriptor")
	cmd.Flags().StringVar(&flags.farm, "farm", "", "farm section URL or path")
	cmd.Flags().StringVar(&flags.farmName, "farm-name", "", "farm name to pick from the listing when --farm is empty")
	cmd.Flags().StringVar(&flags.manager, "manager", "", "manager label, exactly as shown in the panel")
	cmd.Flags().StringVar(&flags.date, "date", "", "report date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&flags.noSelect, "no-select", false, "skip clicking the manager control after navigation")

	return cmd
}

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Start the interactive operator console",
		RunE: func(*cobra.Command, []string) error {
			return start(bootstrap.NewApp(bootstrap.ModeConsole))
		},
	}
}

// start reports graph construction errors (missing config, bad patterns)
// before handing control to fx, which exits the process on its own.
func start(app *fx.App) error {
	if err := app.Err(); err != nil {
		return fmt.Errorf("start panel-agent: %w", err)
	}

	app.Run()

	return nil
}

// jobFile loads the descriptor named by --job, if any, and applies the
// flags that were explicitly set on top of it.
func (f *runFlags) jobFile(cmd *cobra.Command) (*config.JobFile, error) {
	job := &config.JobFile{}

	if f.jobPath != "" {
		loaded, err := config.LoadJobFile(f.jobPath)
		if err != nil {
			return nil, err
		}
		job = loaded
	}

	flags := cmd.Flags()

	if flags.Changed("farm") {
		job.Farm = f.farm
	}

	if flags.Changed("farm-name") {
		job.FarmName = f.farmName
	}

	if flags.Changed("manager") {
		job.Manager = f.manager
	}

	if flags.Changed("date") {
		job.Date = f.date
	}

	if flags.Changed("no-select") {
		selectManager := !f.noSelect
		job.SelectManager = &selectManager
	}

	if job.Manager == "" {
		return nil, fmt.Errorf("a manager is required (--manager or manager: in the job file)")
	}

	return job, nil
}
