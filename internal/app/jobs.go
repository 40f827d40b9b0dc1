/**
 * @description
 * Scheduled job implementations: purging published outbox rows and refreshing the status gauges.
 */
package app

import (
	"context"
	"time"

	"github.com/upbank/core-service/internal/domain"
	"github.com/upbank/core-service/internal/store"
	"github.com/upbank/core-service/pkg/metrics"
	"go.uber.org/zap"
)

const jobTimeout = 30 * time.Second

// JobsRepository defines the store operations needed by the jobs.
type JobsRepository interface {
	PurgePublishedOutbox(ctx context.Context, publishedBefore time.Time) (int64, error)
	CountUsersByStatus(ctx context.Context, status domain.UserStatus) (int, error)
	CountAccountsByStatus(ctx context.Context, status domain.AccountStatus) (int, error)
}

var _ JobsRepository = (store.Repository)(nil)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo            JobsRepository
	metrics         *metrics.Collector
	outboxRetention time.Duration
	now             func() time.Time
	logger          *zap.Logger
}

func NewJobs(repo JobsRepository, collector *metrics.Collector, outboxRetention time.Duration, logger *zap.Logger) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	if outboxRetention <= 0 {
		outboxRetention = 7 * 24 * time.Hour
	}
	return &Jobs{
		repo:            repo,
		metrics:         collector,
		outboxRetention: outboxRetention,
		now:             time.Now,
		logger:          logger.With(zap.String("component", "jobs")),
	}
}

// PurgeOutbox deletes published outbox rows older than the retention period.
func (j *Jobs) PurgeOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := j.now().Add(-j.outboxRetention)
	purged, err := j.repo.PurgePublishedOutbox(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to purge published outbox rows", zap.Error(err))
		return
	}
	j.logger.Info("outbox purge job finished", zap.Int64("purged", purged), zap.Time("cutoff", cutoff))
}

// RefreshStatusGauges recounts blocked users and frozen accounts.
func (j *Jobs) RefreshStatusGauges() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	blocked, err := j.repo.CountUsersByStatus(ctx, domain.UserBlocked)
	if err != nil {
		j.logger.Error("failed to count blocked users", zap.Error(err))
		return
	}
	frozen, err := j.repo.CountAccountsByStatus(ctx, domain.AccountFrozen)
	if err != nil {
		j.logger.Error("failed to count frozen accounts", zap.Error(err))
		return
	}
	j.metrics.SetStatusGauges(blocked, frozen)
	j.logger.Debug("status gauges refreshed", zap.Int("blocked_users", blocked), zap.Int("frozen_accounts", frozen))
}
