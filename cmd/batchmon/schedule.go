package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/batchmon/internal/models"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage host scheduler tasks for jobs",
	Long: `Registers, moves and deletes the host scheduler task of a job. The task
is named after the job; FixedTime jobs run daily at the start time and Hourly
jobs repeat every hour for one day from it. Every change is verified by
querying the scheduler afterwards.`,
}

var scheduleAt string

var scheduleAddCmd = &cobra.Command{
	Use:   "add <job>",
	Short: "Schedule a job at --at",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseClock(scheduleAt, time.Now())
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

		info, err := application.JobService.Schedule(ctx, args[0], start)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %s on %s (next run %s)\n", args[0], application.Backend.Name(), nextRun(info))
		return nil
	},
}

var scheduleUpdateCmd = &cobra.Command{
	Use:   "update <job>",
	Short: "Move a scheduled job to --at",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseClock(scheduleAt, time.Now())
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

		info, err := application.JobService.Reschedule(ctx, args[0], start)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (next run %s)\n", args[0], nextRun(info))
		return nil
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <job>",
	Short: "Delete a job's scheduler task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		ctx, cancel := signalContext()
		defer cancel()

		if err := application.JobService.Unschedule(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted scheduled task %s\n", args[0])
		return nil
	},
}

var scheduleStatusCmd = &cobra.Command{
	Use:   "status [job...]",
	Short: "Show whether jobs are scheduled and when they run next",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		ctx, cancel := signalContext()
		defer cancel()

		names := args
		if len(names) == 0 {
			jobList, err := application.JobService.List(ctx)
			if err != nil {
				return err
			}
			for _, job := range jobList {
				names = append(names, job.Name)
			}
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "BATCH\tSCHEDULED\tNEXT RUN")
		for _, name := range names {
			info := application.JobService.ScheduleStatus(ctx, name)
			fmt.Fprintf(tw, "%s\t%s\t%s\n", name, yesNo(info), nextRun(info))
		}
		return tw.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{scheduleAddCmd, scheduleUpdateCmd} {
		c.Flags().StringVar(&scheduleAt, "at", "", "Start time as HH:MM (24-hour, local time)")
		_ = c.MarkFlagRequired("at")
	}
	scheduleCmd.AddCommand(scheduleAddCmd, scheduleUpdateCmd, scheduleDeleteCmd, scheduleStatusCmd)
}

// parseClock turns HH:MM into that time on now's date
func parseClock(value string, now time.Time) (time.Time, error) {
	t, err := time.ParseInLocation("15:04", value, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start time %q, expected HH:MM", value)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}

func yesNo(info models.ScheduleInfo) string {
	if info.IsScheduled {
		return "yes"
	}
	return "no"
}
