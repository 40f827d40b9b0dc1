package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/upbank/core-service/internal/domain"
	"github.com/upbank/core-service/pkg/metrics"
)

type jobsRepoStub struct {
	purgedBefore time.Time
	purgeErr     error
	blocked      int
	frozen       int
	countErr     error
}

func (s *jobsRepoStub) PurgePublishedOutbox(ctx context.Context, publishedBefore time.Time) (int64, error) {
	s.purgedBefore = publishedBefore
	return 3, s.purgeErr
}

func (s *jobsRepoStub) CountUsersByStatus(ctx context.Context, status domain.UserStatus) (int, error) {
	if status != domain.UserBlocked {
		return 0, errors.New("unexpected status")
	}
	return s.blocked, s.countErr
}

func (s *jobsRepoStub) CountAccountsByStatus(ctx context.Context, status domain.AccountStatus) (int, error) {
	if status != domain.AccountFrozen {
		return 0, errors.New("unexpected status")
	}
	return s.frozen, s.countErr
}

func gaugeValue(t *testing.T, collector *metrics.Collector, name string) float64 {
	t.Helper()
	families, err := collector.Registry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name && len(family.GetMetric()) == 1 {
			return family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("gauge %s not found", name)
	return 0
}

func TestJobs_PurgeOutboxUsesRetention(t *testing.T) {
	repo := &jobsRepoStub{}
	jobs := NewJobs(repo, nil, 48*time.Hour, nil)
	now := time.Date(2026, 5, 20, 3, 0, 0, 0, time.UTC)
	jobs.now = func() time.Time { return now }

	jobs.PurgeOutbox()
	if want := now.Add(-48 * time.Hour); !repo.purgedBefore.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, repo.purgedBefore)
	}
}

func TestJobs_DefaultRetention(t *testing.T) {
	jobs := NewJobs(&jobsRepoStub{}, nil, 0, nil)
	if jobs.outboxRetention != 7*24*time.Hour {
		t.Fatalf("expected seven day default, got %v", jobs.outboxRetention)
	}
}

func TestJobs_RefreshStatusGauges(t *testing.T) {
	collector := metrics.NewCollector()
	repo := &jobsRepoStub{blocked: 2, frozen: 5}
	jobs := NewJobs(repo, collector, time.Hour, nil)

	jobs.RefreshStatusGauges()
	if got := gaugeValue(t, collector, "upbank_blocked_users"); got != 2 {
		t.Fatalf("expected 2 blocked users, got %v", got)
	}
	if got := gaugeValue(t, collector, "upbank_frozen_accounts"); got != 5 {
		t.Fatalf("expected 5 frozen accounts, got %v", got)
	}

	repo.blocked, repo.countErr = 9, errors.New("timeout")
	jobs.RefreshStatusGauges()
	if got := gaugeValue(t, collector, "upbank_blocked_users"); got != 2 {
		t.Fatalf("expected gauges untouched on error, got %v", got)
	}
}

func TestJobs_NilCollectorIsSafe(t *testing.T) {
	jobs := NewJobs(&jobsRepoStub{blocked: 1}, nil, time.Hour, nil)
	jobs.RefreshStatusGauges()
}

func TestScheduler_SkipsInvalidSchedules(t *testing.T) {
	jobs := NewJobs(&jobsRepoStub{}, nil, time.Hour, nil)

	tests := []struct {
		name        string
		purge       string
		refresh     string
		wantEntries int
	}{
		{name: "both valid", purge: "0 3 * * *", refresh: "@every 1m", wantEntries: 2},
		{name: "invalid purge", purge: "not a schedule", refresh: "@every 1m", wantEntries: 1},
		{name: "refresh disabled", purge: "0 3 * * *", refresh: "", wantEntries: 1},
		{name: "nothing scheduled", purge: "", refresh: "", wantEntries: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := NewScheduler(jobs, tt.purge, tt.refresh, nil)
			got := scheduler.Start()
			<-scheduler.Stop().Done()
			if got != tt.wantEntries {
				t.Fatalf("expected %d jobs, got %d", tt.wantEntries, got)
			}
		})
	}
}
