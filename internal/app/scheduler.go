/**
 * @description
 * This file wires the scheduled jobs into a cron runner. The scheduler owns
 * the cron lifecycle; jobs themselves live in jobs.go.
 *
 * @dependencies
 * - github.com/robfig/cron/v3: cron expression parsing and scheduling.
 */

package app

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the recurring jobs of the service.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler registers the daily report job on the given cron schedule.
func NewScheduler(jobs *Jobs, reportSchedule string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))),
	))

	if _, err := c.AddFunc(reportSchedule, jobs.DailyActivityReport); err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", reportSchedule, err)
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	s.cron.Start()
}

// Stop halts scheduling and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
