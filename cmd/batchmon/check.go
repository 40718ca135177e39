package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/batchmon/internal/common"
	"github.com/ternarybob/batchmon/internal/models"
	"github.com/ternarybob/batchmon/internal/services/loganalysis"
)

var checkCmd = &cobra.Command{
	Use:   "check [job...]",
	Short: "Check job logs for a day",
	Long: `Analyzes the logs of every registered job (or the named jobs) for the
filter date and prints one status per job.

Examples:
  batchmon check
  batchmon check --date yesterday
  batchmon check Export --show-log
  batchmon check --report html --output-dir ./reports`,
	RunE: runCheck,
}

var (
	checkDate      string
	checkShowLog   bool
	checkLogLines  int
	checkReport    string
	checkOutputDir string
	checkDigest    bool
	checkIssues    bool
)

func init() {
	checkCmd.Flags().StringVarP(&checkDate, "date", "d", "", "Filter date: yyyy-mm-dd, today or yesterday (default today)")
	checkCmd.Flags().BoolVar(&checkShowLog, "show-log", false, "Print the tail of each job's main, error and config files")
	checkCmd.Flags().IntVar(&checkLogLines, "lines", 20, "Lines shown per file with --show-log")
	checkCmd.Flags().StringVar(&checkReport, "report", "", "Render a report instead of the table: markdown or html")
	checkCmd.Flags().StringVar(&checkOutputDir, "output-dir", "", "Write the report here instead of stdout (overrides config)")
	checkCmd.Flags().BoolVar(&checkDigest, "digest", false, "Print the failed-batches digest")
	checkCmd.Flags().BoolVar(&checkIssues, "issues", false, "List each job's issues under the table")
}

func runCheck(cmd *cobra.Command, args []string) error {
	filterDate, err := common.ParseFilterDate(checkDate, time.Now())
	if err != nil {
		return err
	}

	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, cancel := signalContext()
	defer cancel()

	results, err := application.Check(ctx, filterDate, args, nil)
	if err != nil {
		return err
	}
	if len(args) > 0 && len(results) == 0 {
		return fmt.Errorf("no registered job matches %s", strings.Join(args, ", "))
	}

	out := cmd.OutOrStdout()
	switch {
	case checkDigest:
		digest := application.Reports.FailureDigest(results, filterDate)
		if digest == "" {
			digest = "No failed batches.\n"
		}
		fmt.Fprint(out, digest)
	case checkReport != "":
		dir := checkOutputDir
		if dir == "" {
			dir = config.Report.OutputDir
		}
		if dir != "" {
			path, err := application.Reports.WriteFile(dir, checkReport, results, filterDate)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Report written to %s\n", path)
		} else {
			content, err := application.Reports.Render(checkReport, results, filterDate)
			if err != nil {
				return err
			}
			fmt.Fprint(out, content)
		}
	default:
		printResults(out, results, filterDate, checkIssues)
	}

	if checkShowLog {
		jobList, err := application.JobService.List(ctx)
		if err != nil {
			return err
		}
		for _, job := range jobList {
			if len(args) > 0 && !contains(args, job.Name) {
				continue
			}
			printLogs(out, job, checkLogLines)
		}
	}
	return nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

// printResults writes the status table for a pass
func printResults(w io.Writer, results []*models.AnalysisResult, filterDate time.Time, withIssues bool) {
	fmt.Fprintf(w, "Batch status for %s\n\n", filterDate.Format(common.DateLayout))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH\tSTATUS\tLAST RUN\tNEXT RUN\tMESSAGE")
	for _, r := range results {
		if r == nil {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.JobName, r.Status.Label(), clockOrDash(r.LastRun), nextRun(r.Schedule), r.StatusMessage)
	}
	tw.Flush()

	if !withIssues {
		return
	}
	for _, r := range results {
		if r == nil || len(r.Issues) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s (%d errors, %d warnings, %d info)\n", r.JobName,
			r.IssueCount(models.IssueError), r.IssueCount(models.IssueWarning), r.IssueCount(models.IssueInfo))
		for _, issue := range r.Issues {
			fmt.Fprintf(w, "  %-7s %s:%d  %s\n", strings.ToUpper(string(issue.Kind)), issue.FileName, issue.LineNumber, issue.Message)
		}
	}
}

func printLogs(w io.Writer, job *models.Job, lines int) {
	fmt.Fprintf(w, "\n===== %s =====\n", job.Name)
	for _, file := range []struct{ label, path string }{
		{"Main log", job.LogFilePath},
		{"Error log", job.ErrorLogFilePath},
		{"Custom log", job.CustomLogFilePath},
		{"Config file", job.ConfigFilePath},
	} {
		if file.path == "" && file.label == "Custom log" {
			continue
		}
		fmt.Fprintf(w, "--- %s ---\n%s\n", file.label, loganalysis.TailText(file.label, file.path, lines))
	}
}

func clockOrDash(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func nextRun(s models.ScheduleInfo) string {
	switch {
	case s.NextRun != nil:
		return s.NextRun.Format("2006-01-02 15:04")
	case s.IsScheduled:
		return "scheduled"
	default:
		return "not scheduled"
	}
}
