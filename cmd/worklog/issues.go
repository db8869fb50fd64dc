package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baiirun/worklog/internal/engine"
	"github.com/baiirun/worklog/internal/model"
)

var flagSeverity string

func parseIssueStatus(s string) (model.IssueStatus, error) {
	switch strings.ToLower(s) {
	case "open", "reopen":
		return model.IssueOpen, nil
	case "closed", "close":
		return model.IssueClosed, nil
	}
	return "", fmt.Errorf("invalid issue status %q (want open or closed)", s)
}

func parseSeverity(s string) (model.Severity, error) {
	switch strings.ToLower(s) {
	case "", "normal":
		return model.SeverityNormal, nil
	case "critical":
		return model.SeverityCritical, nil
	}
	return "", fmt.Errorf("invalid severity %q (want normal or critical)", s)
}

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Raise and resolve issues on sub-tasks",
}

var issueAddCmd = &cobra.Command{
	Use:   "add <sub-task-id> <title>",
	Short: "Raise an issue; a completed sub-task goes back to In Progress",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		due, err := parseDate(flagDue)
		if err != nil {
			return err
		}
		severity, err := parseSeverity(flagSeverity)
		if err != nil {
			return err
		}
		out, err := current.svc.CreateIssue(cmd.Context(), current.actor(), engine.NewIssue{
			ItemID:      args[0],
			Title:       strings.Join(args[1:], " "),
			Description: flagDesc,
			Severity:    severity,
			Assignees:   splitIDs(flagAssign),
			DueDate:     due,
		})
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), "Raised issue "+out.Issue.ID, out)
	},
}

var issueStatusCmd = &cobra.Command{
	Use:   "status <issue-id> <open|closed>",
	Short: "Open or close an issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, err := parseIssueStatus(args[1])
		if err != nil {
			return err
		}
		out, err := current.svc.SetIssueStatus(cmd.Context(), current.actor(), args[0], to)
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), fmt.Sprintf("Issue %s is %s", args[0], to), out)
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:   "delete <issue-id>",
	Short: "Delete an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := current.svc.DeleteIssue(cmd.Context(), current.actor(), args[0])
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), "Deleted issue "+args[0], out)
	},
}

var issueListCmd = &cobra.Command{
	Use:   "list <sub-task-id>",
	Short: "List a sub-task's issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := current.svc.ListIssues(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if flagJSON {
			out := make([]IssueJSON, 0, len(issues))
			for _, is := range issues {
				out = append(out, issueJSON(is))
			}
			return printJSON(w, out)
		}
		if len(issues) == 0 {
			fmt.Fprintln(w, "No issues")
			return nil
		}
		for _, is := range issues {
			title := is.Title
			if is.Severity == model.SeverityCritical {
				title = errorStyle.Render(title)
			}
			fmt.Fprintf(w, "%s  %-6s  %s\n", dimStyle.Render(is.ID), is.Status, title)
		}
		return nil
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Manage work item attachments",
}

var attachAddCmd = &cobra.Command{
	Use:   "add <item-id> <file>",
	Short: "Upload a file and link it to a work item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		out, err := current.svc.AddAttachment(cmd.Context(), current.actor(), args[0], engine.Proof{Name: args[1], Content: content})
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), "Attached "+out.Attachment.ID, out)
	},
}

var attachDeleteCmd = &cobra.Command{
	Use:   "delete <attachment-id>",
	Short: "Remove an attachment and its file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := current.svc.DeleteAttachment(cmd.Context(), current.actor(), args[0])
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), "Removed attachment "+args[0], out)
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&flagDesc, "desc", "", "description")
	issueAddCmd.Flags().StringVar(&flagSeverity, "severity", "normal", "severity: normal or critical")
	issueAddCmd.Flags().StringVar(&flagAssign, "assign", "", "comma-separated assignee user ids")
	issueAddCmd.Flags().StringVar(&flagDue, "due", "", "due date (YYYY-MM-DD)")

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueStatusCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	issueCmd.AddCommand(issueListCmd)

	attachCmd.AddCommand(attachAddCmd)
	attachCmd.AddCommand(attachDeleteCmd)
}
