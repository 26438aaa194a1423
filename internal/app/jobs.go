/**
 * @description
 * This file defines the scheduled jobs of the service. The only job today
 * is the daily activity report: a summary of withdrawals, top-ups, and
 * blocked cards over the last 24 hours, logged and published as an event.
 *
 * @dependencies
 * - log/slog: structured logging for job output.
 * - pkg/rabbitmq: report event publishing.
 */

package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LASTMARIAN/atm-application/internal/domain"
	"github.com/LASTMARIAN/atm-application/pkg/rabbitmq"
)

// ActivitySource provides the aggregates the report job needs.
type ActivitySource interface {
	ActivitySummarySince(ctx context.Context, since time.Time) (*domain.ActivitySummary, error)
}

// Jobs holds the dependencies of the scheduled jobs.
type Jobs struct {
	source        ActivitySource
	events        rabbitmq.Publisher
	eventExchange string
	logger        *slog.Logger
}

// NewJobs creates the job set. The publisher may be a fallback no-op.
func NewJobs(source ActivitySource, events rabbitmq.Publisher, eventExchange string, logger *slog.Logger) *Jobs {
	if events == nil {
		events = &rabbitmq.FallbackProducer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Jobs{source: source, events: events, eventExchange: eventExchange, logger: logger}
}

// DailyActivityReport aggregates the last 24 hours of ledger activity,
// logs the summary, and publishes it on the report routing key.
func (j *Jobs) DailyActivityReport() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	since := time.Now().Add(-24 * time.Hour)
	summary, err := j.source.ActivitySummarySince(ctx, since)
	if err != nil {
		j.logger.Error("daily activity report failed", "err", err)
		return
	}

	j.logger.Info("daily activity report",
		"since", summary.Since.Format(time.RFC3339),
		"withdrawals", summary.WithdrawalCount,
		"withdrawal_total", domain.FormatCents(summary.WithdrawalTotal),
		"top_ups", summary.TopUpCount,
		"top_up_total", domain.FormatCents(summary.TopUpTotal),
		"blocked_cards", summary.BlockedCards,
	)

	event := rabbitmq.DailyReportEvent{
		EventID:         uuid.New(),
		WindowStart:     summary.Since,
		WithdrawalCount: summary.WithdrawalCount,
		WithdrawalTotal: domain.FormatCents(summary.WithdrawalTotal),
		TopUpCount:      summary.TopUpCount,
		TopUpTotal:      domain.FormatCents(summary.TopUpTotal),
		BlockedCards:    summary.BlockedCards,
	}
	if err := j.events.Publish(ctx, j.eventExchange, "report.daily", event); err != nil {
		j.logger.Warn("daily report publish failed", "err", err)
	}
}
