package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/jwalitptl/medibook-api/internal/repository"
	"github.com/jwalitptl/medibook-api/pkg/logger"
)

// RetentionWorker purges processed outbox events older than the retention period.
type RetentionWorker struct {
	repo      repository.OutboxRepository
	retention time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

func NewRetentionWorker(repo repository.OutboxRepository, retention time.Duration, logger *logger.Logger) *RetentionWorker {
	return &RetentionWorker{
		repo:      repo,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Schedule registers the cleanup on a cron expression and starts the scheduler.
func (w *RetentionWorker) Schedule(ctx context.Context, cronExpr string) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	if _, err := scheduler.Cron(cronExpr).Do(func() {
		if _, err := w.Cleanup(ctx); err != nil {
			w.logger.Error(err, "Outbox retention cleanup failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule retention cleanup: %w", err)
	}

	scheduler.StartAsync()
	w.logger.Info("Outbox retention cleanup scheduled", "cron", cronExpr, "retention", w.retention.String())
	return scheduler, nil
}

func (w *RetentionWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup outbox events: %w", err)
	}

	w.logger.Info("Cleaned up processed outbox events", "rows", rows, "cutoff", cutoff)
	return rows, nil
}
