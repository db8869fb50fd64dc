package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/baiirun/worklog/internal/engine"
	"github.com/baiirun/worklog/internal/tui"
)

var (
	flagProject string
	flagYAML    bool
	flagAt      string
)

var progressCmd = &cobra.Command{
	Use:   "progress <main-task-id>",
	Short: "Show a main task's progress derived from its sub-tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := current.svc.ComputeProgress(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if flagJSON {
			return printJSON(w, p)
		}
		fmt.Fprintf(w, "%s %3d%%  %s", progressBar(p.Percent, 30), p.Percent, statusText(p.Status))
		if p.Derived {
			fmt.Fprintf(w, "  %s", dimStyle.Render(fmt.Sprintf("%d of %d sub-tasks completed", p.Completed, p.Total)))
		}
		fmt.Fprintln(w)
		return nil
	},
}

var timelineCmd = &cobra.Command{
	Use:   "timeline [main-task-id]",
	Short: "Show the history of a main task, or of every main task in a project",
	Long: `Show the history of a main task, newest first. Each sub-task's history is
folded into one entry placed at its latest event.

With --project, every main task in the project is listed, most recently
active first. --yaml exports the same data as YAML.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w := cmd.OutOrStdout()

		if flagProject != "" {
			tls, err := current.svc.AggregateForProject(ctx, flagProject)
			if err != nil {
				return err
			}
			switch {
			case flagYAML:
				return printYAML(w, timelinesJSON(tls))
			case flagJSON:
				return printJSON(w, timelinesJSON(tls))
			}
			for i, tl := range tls {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "%s  %s  %s\n", titleStyle.Render(tl.Task.Name), statusText(tl.Task.Status), dimStyle.Render(tl.Task.ID))
				printEntries(w, "  ", tl.Entries)
			}
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("timeline needs a main task id or --project")
		}
		entries, err := current.svc.AggregateForWorkItem(ctx, args[0])
		if err != nil {
			return err
		}
		switch {
		case flagYAML:
			return printYAML(w, entriesJSON(entries))
		case flagJSON:
			return printJSON(w, entriesJSON(entries))
		}
		if len(entries) == 0 {
			fmt.Fprintln(w, "No activity yet")
			return nil
		}
		printEntries(w, "", entries)
		return nil
	},
}

var remindersCmd = &cobra.Command{
	Use:   "reminders <project-id>",
	Short: "List collection tasks whose reminder window has opened",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at := time.Now()
		if flagAt != "" {
			t, err := parseDate(flagAt)
			if err != nil {
				return err
			}
			at = *t
		}
		due, err := current.svc.CollectionReminders(cmd.Context(), args[0], at)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if flagJSON {
			out := make([]ItemJSON, 0, len(due))
			for _, it := range due {
				out = append(out, itemJSON(it))
			}
			return printJSON(w, out)
		}
		if len(due) == 0 {
			fmt.Fprintln(w, "No reminders due")
			return nil
		}
		for _, it := range due {
			printItemLine(w, it)
		}
		return nil
	},
}

var browseCmd = &cobra.Command{
	Use:   "browse [main-task-id]",
	Short: "Browse a timeline interactively",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := tui.Target{ProjectID: flagProject}
		if len(args) == 1 {
			target.MainTaskID = args[0]
		}
		if target.ProjectID == "" && target.MainTaskID == "" {
			return fmt.Errorf("browse needs a main task id or --project")
		}
		return tui.Run(current.svc, target)
	},
}

var _ tui.Source = (*engine.Service)(nil)

func init() {
	timelineCmd.Flags().StringVar(&flagProject, "project", "", "show every main task in this project")
	timelineCmd.Flags().BoolVar(&flagYAML, "yaml", false, "export as YAML")
	remindersCmd.Flags().StringVar(&flagAt, "at", "", "evaluate reminders as of this date (YYYY-MM-DD)")
	browseCmd.Flags().StringVar(&flagProject, "project", "", "browse every main task in this project")
}
