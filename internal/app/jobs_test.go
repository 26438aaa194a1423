package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/LASTMARIAN/atm-application/internal/domain"
)

type activitySourceStub struct {
	summary *domain.ActivitySummary
	err     error
}

func (s *activitySourceStub) ActivitySummarySince(ctx context.Context, since time.Time) (*domain.ActivitySummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	summary := *s.summary
	summary.Since = since
	return &summary, nil
}

func newTestJobs(source ActivitySource, publisher *publisherStub) *Jobs {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewJobs(source, publisher, "ledger_events", logger)
}

func TestDailyActivityReport_PublishesSummary(t *testing.T) {
	source := &activitySourceStub{
		summary: &domain.ActivitySummary{
			WithdrawalCount: 12,
			WithdrawalTotal: 240000,
			TopUpCount:      5,
			TopUpTotal:      100000,
			BlockedCards:    2,
		},
	}
	publisher := &publisherStub{}
	jobs := newTestJobs(source, publisher)

	jobs.DailyActivityReport()

	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != "report.daily" {
		t.Fatalf("expected one report.daily event, got %v", publisher.routingKeys)
	}
	if publisher.published[0] != "ledger_events" {
		t.Fatalf("expected ledger_events exchange, got %q", publisher.published[0])
	}
}

func TestDailyActivityReport_SkipsPublishOnSourceError(t *testing.T) {
	source := &activitySourceStub{err: errors.New("db unavailable")}
	publisher := &publisherStub{}
	jobs := newTestJobs(source, publisher)

	jobs.DailyActivityReport()

	if len(publisher.routingKeys) != 0 {
		t.Fatal("no event must be published when the summary query fails")
	}
}

func TestNewScheduler_RejectsInvalidSchedule(t *testing.T) {
	jobs := newTestJobs(&activitySourceStub{summary: &domain.ActivitySummary{}}, &publisherStub{})

	if _, err := NewScheduler(jobs, "not a cron expression", nil); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestNewScheduler_AcceptsStandardSchedule(t *testing.T) {
	jobs := newTestJobs(&activitySourceStub{summary: &domain.ActivitySummary{}}, &publisherStub{})

	scheduler, err := NewScheduler(jobs, "0 6 * * *", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scheduler == nil {
		t.Fatal("expected scheduler instance")
	}
}
