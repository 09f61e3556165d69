// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/ussymbols/internal/api/handlers"
	"github.com/wonny/ussymbols/pkg/logger"
)

// RefreshJob runs the full symbol pipeline on a schedule. It shares the
// Runner with the API's refresh endpoint so both paths produce the same
// artifacts.
type RefreshJob struct {
	runner   handlers.Runner
	schedule string
	logger   *logger.Logger
}

// NewRefreshJob creates a refresh job. schedule is a cron expression with
// seconds, e.g. "0 0 6 * * *".
func NewRefreshJob(runner handlers.Runner, schedule string, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		runner:   runner,
		schedule: schedule,
		logger:   log,
	}
}

func (j *RefreshJob) Name() string { return "symbol-refresh" }

func (j *RefreshJob) Schedule() string { return j.schedule }

// Run executes one pipeline run.
func (j *RefreshJob) Run(ctx context.Context) error {
	report, _, err := j.runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("refresh run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"resolved":   report.Resolved,
		"fetched":    report.Fetched,
		"unresolved": len(report.Unresolved),
		"merged":     report.Merged,
	}).Info("Scheduled refresh completed")

	return nil
}
