package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/ussymbols/internal/scheduler"
	"github.com/wonny/ussymbols/internal/scheduler/jobs"
	"github.com/wonny/ussymbols/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the pipeline on a cron schedule",
	Long: `Starts the scheduler with the symbol-refresh job. The schedule is a
cron expression with seconds (default from REFRESH_SCHEDULE, daily at 6 AM).

Example:
  go run ./cmd/ussym scheduler
  go run ./cmd/ussym scheduler --schedule "0 30 5 * * 1-5"
  go run ./cmd/ussym scheduler --run-now`,
	RunE: runScheduler,
}

var (
	schedulerExpr   string
	schedulerRunNow bool
)

func init() {
	rootCmd.AddCommand(schedulerCmd)

	schedulerCmd.Flags().StringVar(&schedulerExpr, "schedule", "", "cron expression with seconds (default from REFRESH_SCHEDULE)")
	schedulerCmd.Flags().BoolVar(&schedulerRunNow, "run-now", false, "run the refresh job immediately on startup")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if schedulerExpr != "" {
		cfg.RefreshSchedule = schedulerExpr
	}
	log := logger.New(cfg)

	p, cleanup, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	sched := scheduler.New(log)
	job := jobs.NewRefreshJob(p, cfg.RefreshSchedule, log)
	if err := sched.AddJob(job); err != nil {
		return fmt.Errorf("add refresh job: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	if schedulerRunNow {
		if err := sched.RunJob(job.Name()); err != nil {
			return err
		}
	}

	fmt.Printf("Scheduler running (%s). Press Ctrl+C to stop.\n", cfg.RefreshSchedule)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	printJobSummary(sched, job.Name())
	return nil
}

// printJobSummary reports the job's run history on shutdown.
func printJobSummary(sched *scheduler.Scheduler, jobName string) {
	history, err := sched.GetJobHistory(jobName)
	if err != nil {
		return
	}
	last := history.LastResult()
	if last == nil {
		fmt.Printf("Job %s never ran\n", jobName)
		return
	}
	fmt.Printf("Job %s: %d runs, %.0f%% success, last run %s (success=%t, %s)\n",
		jobName,
		len(history.Results),
		history.SuccessRate()*100,
		last.StartTime.Format("2006-01-02 15:04:05"),
		last.Success,
		last.Duration.Round(time.Second),
	)
}
