package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ternarybob/batchmon/internal/models"
	"github.com/ternarybob/batchmon/internal/storage/badger"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage the monitored job registry",
}

var jobFlags models.Job

var jobsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job := jobFlags
		job.Name = args[0]
		kind, err := models.ParseBatchKind(string(jobFlags.BatchKind))
		if err != nil {
			return err
		}
		job.BatchKind = kind

		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		if err := application.JobService.Add(cmd.Context(), &job); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", job.Name)
		return nil
	},
}

var jobsRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a job, deleting its scheduler task first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		ctx, cancel := signalContext()
		defer cancel()

		if err := application.JobService.Remove(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		jobList, err := application.JobService.List(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tKIND\tLOG\tERROR LOG\tEXECUTABLE")
		for _, job := range jobList {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", job.Name, job.BatchKind, dash(job.LogFilePath), dash(job.ErrorLogFilePath), dash(job.ExecutablePath))
		}
		return tw.Flush()
	},
}

var jobsLoadCmd = &cobra.Command{
	Use:   "load <file-or-dir>",
	Short: "Upsert jobs from a TOML, YAML or JSON file or a directory of them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		path := args[0]
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		storage := application.StorageManager.JobStorage()

		if info.IsDir() {
			count, err := badger.LoadJobsFromFiles(cmd.Context(), storage, path, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d jobs from %s\n", count, path)
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		format := badger.FormatForExt(filepath.Ext(path))
		if format == "" {
			return fmt.Errorf("unsupported job file %s: expected .toml, .yaml, .yml or .json", path)
		}
		jobList, err := badger.ParseJobFile(data, format)
		if err != nil {
			return err
		}
		for _, job := range jobList {
			if err := storage.SaveJob(cmd.Context(), job); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d jobs from %s\n", len(jobList), path)
		return nil
	},
}

var exportFormat string

var jobsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the registry as a job file (configuration fields only)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return badger.ExportJobs(cmd.Context(), application.StorageManager.JobStorage(), out, exportFormat)
	},
}

func init() {
	jobsAddCmd.Flags().StringVar(&jobFlags.LogFilePath, "log", "", "Main log file path")
	jobsAddCmd.Flags().StringVar(&jobFlags.ErrorLogFilePath, "error-log", "", "Error log file path")
	jobsAddCmd.Flags().StringVar(&jobFlags.CustomLogFilePath, "custom-log", "", "Custom log file path (takes priority over the main log)")
	jobsAddCmd.Flags().StringVar(&jobFlags.ConfigFilePath, "config-file", "", "Job configuration file path")
	jobsAddCmd.Flags().StringVar(&jobFlags.ExecutablePath, "exe", "", "Executable run by the scheduler task")
	jobsAddCmd.Flags().StringVar((*string)(&jobFlags.BatchKind), "kind", "fixed_time", "Batch kind: fixed_time or hourly")

	jobsExportCmd.Flags().StringVar(&exportFormat, "format", "toml", "Export format: toml, yaml or json")

	jobsCmd.AddCommand(jobsAddCmd, jobsRemoveCmd, jobsListCmd, jobsLoadCmd, jobsExportCmd)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
