package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/internal/repository"
	"github.com/jwalitptl/medibook-api/pkg/logger"
	"github.com/jwalitptl/medibook-api/pkg/messaging"
	"github.com/jwalitptl/medibook-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// MaxAttempts deliveries are tried before an event is dead-lettered.
	MaxAttempts int
	// RetryDelay is the first backoff step; it doubles on every attempt.
	RetryDelay time.Duration
	// Lease hides claimed events from other processors while they are handled.
	Lease time.Duration
}

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("BatchSize must be greater than 0")
	case c.PollInterval <= 0:
		return errors.New("PollInterval must be greater than 0")
	case c.MaxAttempts <= 0:
		return errors.New("MaxAttempts must be greater than 0")
	case c.RetryDelay <= 0:
		return errors.New("RetryDelay must be greater than 0")
	case c.Lease <= 0:
		return errors.New("Lease must be greater than 0")
	}
	return nil
}

// Notifier sends the email attached to an event.
type Notifier interface {
	Send(ctx context.Context, n *model.AppointmentNotification) error
}

// OutboxProcessor delivers committed outbox events at least once: the email
// when the event carries one, then the lifecycle event on the broker.
type OutboxProcessor struct {
	repo      repository.OutboxRepository
	publisher messaging.Publisher
	notifier  Notifier
	config    OutboxProcessorConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	publisher messaging.Publisher,
	notifier Notifier,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}

	return &OutboxProcessor{
		repo:      repo,
		publisher: publisher,
		notifier:  notifier,
		config:    config,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "poll_interval", p.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch handles one batch of due events and returns how many were delivered.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimPendingEvents(ctx, p.config.BatchSize, p.config.Lease)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "error").Inc()
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "success").Inc()
	p.metrics.OutboxQueueSize.Set(float64(len(events)))
	if len(events) > 0 {
		p.logger.Debug("Claimed outbox events", "count", len(events))
	}

	delivered := 0
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"attempt", event.RetryCount+1)
			continue
		}
		delivered++
	}

	return delivered, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	env, err := event.Envelope()
	if err != nil {
		// a payload that cannot be decoded will never succeed
		return p.deadLetter(ctx, event, err)
	}

	if err := p.deliver(ctx, event, env); err != nil {
		p.metrics.OutboxEventsFailed.Inc()
		if event.RetryCount+1 >= p.config.MaxAttempts {
			return p.deadLetter(ctx, event, err)
		}

		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		retryAt := p.now().Add(p.backoff(event.RetryCount))
		if updateErr := p.repo.MarkRetry(ctx, event.ID, err.Error(), retryAt); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		return err
	}
	return nil
}

func (p *OutboxProcessor) deliver(ctx context.Context, event *model.OutboxEvent, env *model.EventEnvelope) error {
	if env.Notification != nil {
		if p.notifier == nil {
			return errors.New("no notifier configured")
		}
		if err := p.notifier.Send(ctx, env.Notification); err != nil {
			return fmt.Errorf("notification: %w", err)
		}
	}
	if err := p.publisher.Publish(ctx, event.EventType, env.Event); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *OutboxProcessor) deadLetter(ctx context.Context, event *model.OutboxEvent, cause error) error {
	p.metrics.OutboxEventsDeadLetter.Inc()
	if err := p.repo.MoveToDeadLetter(ctx, event, cause.Error()); err != nil {
		return fmt.Errorf("failed to dead-letter event after %v: %w", cause, err)
	}
	p.logger.Warn("Outbox event moved to dead letter",
		"event_id", event.ID.String(),
		"event_type", event.EventType,
		"error", cause.Error())
	return cause
}

// backoff is RetryDelay * 2^attempt, capped at one hour.
func (p *OutboxProcessor) backoff(attempt int) time.Duration {
	delay := p.config.RetryDelay
	for i := 0; i < attempt && delay < time.Hour; i++ {
		delay *= 2
	}
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}
