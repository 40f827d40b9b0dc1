package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *zap.Logger

	outboxPurgeSchedule    string
	metricsRefreshSchedule string
}

func NewScheduler(jobs *Jobs, outboxPurgeSchedule, metricsRefreshSchedule string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "scheduler"))
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:                   c,
		jobs:                   jobs,
		logger:                 logger,
		outboxPurgeSchedule:    outboxPurgeSchedule,
		metricsRefreshSchedule: metricsRefreshSchedule,
	}
}

// Start registers the jobs and starts the cron scheduler. A job with an invalid schedule is
// logged and skipped.
func (s *Scheduler) Start() int {
	registered := 0
	register := func(name, schedule string, job func()) {
		if schedule == "" {
			return
		}
		if _, err := s.cron.AddFunc(schedule, job); err != nil {
			s.logger.Error("failed to schedule job", zap.String("job", name), zap.String("schedule", schedule), zap.Error(err))
			return
		}
		registered++
		s.logger.Info("scheduled job", zap.String("job", name), zap.String("schedule", schedule))
	}

	register("outbox_purge", s.outboxPurgeSchedule, s.jobs.PurgeOutbox)
	register("metrics_refresh", s.metricsRefreshSchedule, s.jobs.RefreshStatusGauges)

	s.cron.Start()
	return registered
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
