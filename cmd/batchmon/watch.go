package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/batchmon/internal/common"
	"github.com/ternarybob/batchmon/internal/models"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-check all jobs on a schedule",
	Long: `Runs a status pass immediately and then on monitor.refresh_schedule
(every 30 seconds by default) until interrupted. A pass that is still running
when the next tick fires makes that tick a no-op.`,
	RunE: runWatch,
}

var (
	watchDate     string
	watchSchedule string
	watchDigest   bool
)

func init() {
	watchCmd.Flags().StringVarP(&watchDate, "date", "d", "", "Fixed filter date; default follows today")
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "Refresh cron expression with seconds (overrides config)")
	watchCmd.Flags().BoolVar(&watchDigest, "digest", false, "Print the failed-batches digest after each pass")
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Validate a fixed date up front; an empty one is re-read every pass
	if _, err := common.ParseFilterDate(watchDate, time.Now()); err != nil {
		return err
	}
	schedule := config.Monitor.RefreshSchedule
	if watchSchedule != "" {
		if err := common.ValidateRefreshSchedule(watchSchedule); err != nil {
			return err
		}
		schedule = watchSchedule
	}

	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()
	dateFn := func() time.Time {
		d, _ := common.ParseFilterDate(watchDate, time.Now())
		return d
	}
	refresh := application.NewRefresh(dateFn, func(results []*models.AnalysisResult, filterDate time.Time) {
		fmt.Fprintf(out, "\n[%s] ", time.Now().Format("15:04:05"))
		printResults(out, results, filterDate, false)
		if watchDigest {
			if digest := application.Reports.FailureDigest(results, filterDate); digest != "" {
				fmt.Fprintf(out, "\n%s", digest)
			}
		}
	})

	if err := refresh.TriggerNow(); err != nil {
		logger.Warn().Err(err).Msg("Initial pass failed")
	}
	if err := refresh.Start(schedule); err != nil {
		return err
	}

	logger.Info().Str("schedule", schedule).Msg("Watching batches - Press Ctrl+C to stop")
	<-ctx.Done()
	logger.Info().Msg("Interrupt signal received")

	return refresh.Stop()
}
