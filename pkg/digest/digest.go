// Package digest runs the scheduled approval digest.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/services"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the digest at the top of every hour.
const DefaultSchedule = "@hourly"

// DigestKey is the partition key of digest events.
const DigestKey = "digest"

var ErrAlreadyStarted = errors.New("digest job already started")

// SummaryProvider computes the workflow and approval counts.
type SummaryProvider interface {
	Summary(ctx context.Context) (*services.Summary, error)
}

// Job publishes an approval digest event on a cron schedule.
type Job struct {
	summaries SummaryProvider
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	schedule  string

	mu   sync.Mutex
	cron *cron.Cron
}

func New(summaries SummaryProvider, publisher eventbus.EventPublisher, logger *slog.Logger, schedule string) (*Job, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid digest schedule '%s': %w", schedule, err)
	}

	if publisher == nil {
		publisher = eventbus.Nop{}
	}

	return &Job{
		summaries: summaries,
		publisher: publisher,
		logger:    logger.With("module", "digest"),
		schedule:  schedule,
	}, nil
}

// Run computes the summary once and publishes it.
func (j *Job) Run(ctx context.Context) (*events.ApprovalDigest, error) {
	summary, err := j.summaries.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute summary: %w", err)
	}

	digest := events.ApprovalDigest{
		BaseEvent:        events.NewBaseEvent(events.ApprovalDigestEvent, ""),
		TotalWorkflows:   summary.TotalWorkflows,
		Drafts:           summary.Drafts,
		Published:        summary.Published,
		Unpublished:      summary.Unpublished,
		PendingApprovals: summary.PendingApprovals,
	}

	if err := j.publisher.Publish(ctx, DigestKey, digest); err != nil {
		return nil, fmt.Errorf("failed to publish digest: %w", err)
	}

	j.logger.InfoContext(ctx, "Published approval digest",
		"total_workflows", digest.TotalWorkflows,
		"pending_approvals", digest.PendingApprovals)

	return &digest, nil
}

// Start schedules the job. Runs use ctx until Stop is called.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return ErrAlreadyStarted
	}

	logger := cronLogger{logger: j.logger}
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	), cron.WithLogger(logger))

	entryID, err := c.AddFunc(j.schedule, func() {
		if _, err := j.Run(ctx); err != nil {
			j.logger.ErrorContext(ctx, "Approval digest failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule digest: %w", err)
	}

	c.Start()
	j.cron = c

	j.logger.Info("Digest job started", "schedule", j.schedule, "entry_id", entryID)

	return nil
}

// Stop halts the scheduler and waits for a running digest or ctx, whichever ends first.
func (j *Job) Stop(ctx context.Context) error {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		j.logger.Info("Digest job stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
