package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/repository"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Channel is prefixed to the event type to form the pub/sub channel.
	Channel string
}

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("BatchSize must be greater than 0")
	case c.PollInterval <= 0:
		return errors.New("PollInterval must be greater than 0")
	case c.RetryAttempts <= 0:
		return errors.New("RetryAttempts must be greater than 0")
	case c.RetryDelay <= 0:
		return errors.New("RetryDelay must be greater than 0")
	}
	return nil
}

// OutboxProcessor relays outbox rows to the broker. Delivery is at least
// once: an event is marked processed only after a successful publish.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

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

// ProcessBatch claims one batch and publishes it. It returns how many
// events were delivered.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	lease := p.config.RetryDelay * time.Duration(p.config.RetryAttempts+1)
	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize, lease)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_outbox_events", "error").Inc()
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_outbox_events", "success").Inc()

	delivered := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			continue
		}
		delivered++
	}

	return delivered, nil
}

func (p *OutboxProcessor) channel(eventType string) string {
	if p.config.Channel == "" {
		return eventType
	}
	return p.config.Channel + "." + eventType
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := p.broker.Publish(ctx, p.channel(event.EventType), event.Payload)
	if err != nil {
		return p.handleFailure(ctx, event, err)
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// handleFailure backs off linearly until RetryAttempts publishes have
// failed, then parks the event as failed.
func (p *OutboxProcessor) handleFailure(ctx context.Context, event *model.OutboxEvent, publishErr error) error {
	attempt := event.RetryCount + 1
	msg := publishErr.Error()

	if attempt >= p.config.RetryAttempts {
		p.metrics.OutboxEventsFailed.Inc()
		if err := p.repo.MarkFailed(ctx, event.ID, msg); err != nil {
			p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		}
		return fmt.Errorf("event %s failed after %d attempts: %w", event.ID, attempt, publishErr)
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := p.now().Add(p.config.RetryDelay * time.Duration(attempt))
	if err := p.repo.MarkRetry(ctx, event.ID, msg, retryAt); err != nil {
		p.logger.Error(err, "Failed to schedule event retry", "event_id", event.ID.String())
	}
	return fmt.Errorf("failed to publish event: %w", publishErr)
}
