package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/baiirun/worklog/internal/config"
)

// configFile is the shape of config.yaml written by init.
type configFile struct {
	DB                     string `yaml:"db"`
	AttachmentsDir         string `yaml:"attachments_dir"`
	Actor                  actor  `yaml:"actor"`
	RequireCompletionProof bool   `yaml:"require_completion_proof"`
	RequestTimeout         string `yaml:"request_timeout"`
	Log                    struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

type actor struct {
	ID   string `yaml:"id"`
	Role string `yaml:"role"`
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database and write a config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The root already opened the database and created the schema.
		path := flagConfig
		if path == "" {
			var err error
			if path, err = config.DefaultPath(); err != nil {
				return err
			}
		}

		w := cmd.OutOrStdout()
		_, err := os.Stat(path)
		switch {
		case err == nil:
			fmt.Fprintf(w, "Config exists at %s\n", path)
		case errors.Is(err, os.ErrNotExist):
			if err := writeConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(w, "Wrote config to %s\n", path)
		default:
			return err
		}
		fmt.Fprintf(w, "Database ready at %s\n", current.cfg.DB)
		return nil
	},
}

func writeConfig(path string) error {
	cfg := current.cfg
	var f configFile
	f.DB = cfg.DB
	f.AttachmentsDir = cfg.AttachmentsDir
	f.Actor = actor{ID: cfg.Actor.ID, Role: string(cfg.Actor.Role)}
	f.RequireCompletionProof = cfg.RequireCompletionProof
	f.RequestTimeout = cfg.RequestTimeout.String()
	f.Log.Level = cfg.Log.Level
	f.Log.Format = cfg.Log.Format

	data, err := yaml.Marshal(&f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user display names",
}

var userAddCmd = &cobra.Command{
	Use:   "add <id> <display name>",
	Short: "Register or rename a user",
	Long:  `Register or rename a user. Timeline entries keep the name the author had when they were written.`,
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args[1:], " ")
		if err := current.db.UpsertUser(cmd.Context(), args[0], name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", args[0], name)
		return nil
	},
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a project owned by you",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := current.svc.CreateProject(cmd.Context(), current.actor(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), projectJSON(*p))
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Created project "+p.ID))
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := current.svc.ListProjects(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if flagJSON {
			out := make([]ProjectJSON, 0, len(projects))
			for _, p := range projects {
				out = append(out, projectJSON(p))
			}
			return printJSON(w, out)
		}
		if len(projects) == 0 {
			fmt.Fprintln(w, "No projects")
			return nil
		}
		for _, p := range projects {
			fmt.Fprintf(w, "%s  %s  %s\n", dimStyle.Render(p.ID), titleStyle.Render(p.Name), dimStyle.Render("owner "+p.OwnerID))
		}
		return nil
	},
}

var projectProgressCmd = &cobra.Command{
	Use:   "progress <project-id>",
	Short: "Show the mean progress of a project's main tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pp, err := current.svc.ProjectProgress(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if flagJSON {
			return printJSON(w, projectProgressJSON(pp))
		}
		fmt.Fprintf(w, "%s %d%%\n", labelStyle.Render("Project "+pp.ProjectID+":"), pp.Percent)
		for _, t := range pp.Tasks {
			fmt.Fprintf(w, "  %s %3d%%  %s  %s\n", progressBar(t.Progress.Percent, 20), t.Progress.Percent, statusText(t.Task.Status), t.Task.Name)
		}
		for _, id := range pp.Omitted {
			fmt.Fprintln(w, warnStyle.Render("  omitted "+id+": sub-tasks unavailable"))
		}
		return nil
	},
}

func progressBar(percent, width int) string {
	filled := percent * width / 100
	return okStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

func init() {
	userCmd.AddCommand(userAddCmd)
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectProgressCmd)
}
