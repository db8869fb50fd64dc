package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/baiirun/worklog/internal/engine"
	"github.com/baiirun/worklog/internal/model"
)

// Task flags.
var (
	flagKind      string
	flagDesc      string
	flagAssign    string
	flagDue       string
	flagClearDue  bool
	flagName      string
	flagAmount    int64
	flagReminder  int
	flagProofFile string
)

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return &t, nil
}

// splitIDs splits a comma-separated id list, dropping blanks.
func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func parseStatus(s string) (model.Status, error) {
	switch strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)) {
	case "todo":
		return model.StatusToDo, nil
	case "inprogress", "started", "start":
		return model.StatusInProgress, nil
	case "completed", "complete", "done":
		return model.StatusCompleted, nil
	}
	return "", fmt.Errorf("invalid status %q (want todo, in-progress or completed)", s)
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage main tasks and sub-tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <project-id> <name>",
	Short: "Create a main task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		due, err := parseDate(flagDue)
		if err != nil {
			return err
		}
		in := engine.NewItem{
			ProjectID:   args[0],
			Kind:        model.ItemKind(flagKind),
			Name:        strings.Join(args[1:], " "),
			Description: flagDesc,
			Assignees:   splitIDs(flagAssign),
			DueDate:     due,
			AmountCents: flagAmount,
		}
		if cmd.Flags().Changed("reminder") {
			days := flagReminder
			in.ReminderDays = &days
		}
		out, err := current.svc.CreateMainTask(cmd.Context(), current.actor(), in)
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), fmt.Sprintf("Created %s task %s", out.Item.Kind, out.Item.ID), out)
	},
}

var taskSubCmd = &cobra.Command{
	Use:   "sub <parent-id> <name>",
	Short: "Create a sub-task under a standard main task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		due, err := parseDate(flagDue)
		if err != nil {
			return err
		}
		out, err := current.svc.CreateSubTask(cmd.Context(), current.actor(), args[0], engine.NewItem{
			Name:        strings.Join(args[1:], " "),
			Description: flagDesc,
			Assignees:   splitIDs(flagAssign),
			DueDate:     due,
		})
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), "Created sub-task "+out.Item.ID, out)
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a work item with its progress, sub-tasks, issues and attachments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := current.svc.DescribeItem(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), showJSON(d))
		}
		printDescribe(cmd.OutOrStdout(), d)
		return nil
	},
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a work item's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var u model.ItemUpdate
		if flags.Changed("name") {
			u.Name = &flagName
		}
		if flags.Changed("desc") {
			u.Description = &flagDesc
		}
		if flags.Changed("due") {
			due, err := parseDate(flagDue)
			if err != nil {
				return err
			}
			u.DueDate = due
		}
		u.ClearDueDate = flagClearDue
		if flags.Changed("amount") {
			u.AmountCents = &flagAmount
		}
		if flags.Changed("reminder") {
			u.ReminderDays = &flagReminder
		}
		if u.IsEmpty() {
			return fmt.Errorf("nothing to change: pass --name, --desc, --due, --clear-due, --amount or --reminder")
		}

		out, err := current.svc.UpdateItem(cmd.Context(), current.actor(), args[0], u)
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), "Updated "+args[0], out)
	},
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign <id> [user-id...]",
	Short: "Replace a work item's assignees (none clears them)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := current.svc.SetAssignees(cmd.Context(), current.actor(), args[0], args[1:])
		if err != nil {
			return err
		}
		msg := "Assignees unchanged"
		if len(out.Events) > 0 {
			msg = "Updated assignees of " + args[0]
		}
		return printOutcome(cmd.OutOrStdout(), msg, out)
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <id> <todo|in-progress|completed>",
	Short: "Change the status of a sub-task or collection task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, err := parseStatus(args[1])
		if err != nil {
			return err
		}

		var opts []engine.StatusOption
		if flagProofFile != "" {
			content, err := os.ReadFile(flagProofFile)
			if err != nil {
				return fmt.Errorf("read proof: %w", err)
			}
			stderr := cmd.ErrOrStderr()
			opts = append(opts, engine.WithProof(engine.Proof{
				Name:    flagProofFile,
				Content: content,
				Progress: func(written, total int64) {
					if !flagJSON {
						fmt.Fprintf(stderr, "\ruploading proof %d/%d bytes", written, total)
						if written == total {
							fmt.Fprintln(stderr)
						}
					}
				},
			}))
		}

		out, err := current.svc.ChangeStatus(cmd.Context(), current.actor(), args[0], to, opts...)
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("%s is now %s", args[0], to)
		if len(out.Events) == 0 {
			msg = fmt.Sprintf("%s is already %s", args[0], to)
		}
		return printOutcome(cmd.OutOrStdout(), msg, out)
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a work item and, for main tasks, all of its sub-tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := current.svc.DeleteWorkItem(cmd.Context(), current.actor(), args[0])
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), "Deleted "+args[0], out)
	},
}

var taskMineCmd = &cobra.Command{
	Use:   "mine",
	Short: "List work items assigned to you",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := current.svc.ListAssigned(cmd.Context(), current.actor())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if flagJSON {
			out := make([]ItemJSON, 0, len(items))
			for _, it := range items {
				out = append(out, itemJSON(it))
			}
			return printJSON(w, out)
		}
		if len(items) == 0 {
			fmt.Fprintln(w, "Nothing assigned to "+current.actor().ID)
			return nil
		}
		for _, it := range items {
			printItemLine(w, it)
		}
		return nil
	},
}

func init() {
	taskAddCmd.Flags().StringVar(&flagKind, "kind", string(model.KindStandard), "task kind: standard or collection")
	taskAddCmd.Flags().StringVar(&flagDesc, "desc", "", "description")
	taskAddCmd.Flags().StringVar(&flagAssign, "assign", "", "comma-separated assignee user ids")
	taskAddCmd.Flags().StringVar(&flagDue, "due", "", "due date (YYYY-MM-DD)")
	taskAddCmd.Flags().Int64Var(&flagAmount, "amount", 0, "amount in cents (collection tasks)")
	taskAddCmd.Flags().IntVar(&flagReminder, "reminder", 0, "remind this many days before due (collection tasks)")

	taskSubCmd.Flags().StringVar(&flagDesc, "desc", "", "description")
	taskSubCmd.Flags().StringVar(&flagAssign, "assign", "", "comma-separated assignee user ids")
	taskSubCmd.Flags().StringVar(&flagDue, "due", "", "due date (YYYY-MM-DD)")

	taskEditCmd.Flags().StringVar(&flagName, "name", "", "new name")
	taskEditCmd.Flags().StringVar(&flagDesc, "desc", "", "new description")
	taskEditCmd.Flags().StringVar(&flagDue, "due", "", "new due date (YYYY-MM-DD)")
	taskEditCmd.Flags().BoolVar(&flagClearDue, "clear-due", false, "remove the due date")
	taskEditCmd.Flags().Int64Var(&flagAmount, "amount", 0, "amount in cents (collection tasks)")
	taskEditCmd.Flags().IntVar(&flagReminder, "reminder", 0, "reminder days (collection tasks)")

	taskStatusCmd.Flags().StringVar(&flagProofFile, "proof", "", "file to upload as completion proof")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskSubCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskEditCmd)
	taskCmd.AddCommand(taskAssignCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskMineCmd)
}
