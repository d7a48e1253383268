package publisher

import (
	"context"
	"log/slog"
	"time"

	r "github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/repository"
	"github.com/segmentio/kafka-go"
)

const Topic = "order-status-events"

type EventSource interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*r.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
}

// StaleMarker flags orders whose gateway outcome never arrived.
type StaleMarker interface {
	MarkStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	staleAfter   time.Duration
	batch        int
	repo         EventSource
	stale        StaleMarker
	writer       messageWriter
	logger       *slog.Logger
}

func NewOutboxPoller(repo EventSource, stale StaleMarker, staleAfter time.Duration, logger *slog.Logger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		eventTick:    time.Second,
		recoveryTick: 30 * time.Second,
		staleAfter:   staleAfter,
		batch:        100,
		repo:         repo,
		stale:        stale,
		writer:       w,
		logger:       logger,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.sweepStaleOrders(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batch)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to fetch outbox events", "err", err)
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.logger.ErrorContext(ctx, "failed to publish outbox event", "event_id", event.ID, "err", err)
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.logger.ErrorContext(ctx, "failed to mark outbox event processed", "event_id", event.ID, "err", err)
			continue
		}
	}
}

func (p *OutboxPoller) sweepStaleOrders(ctx context.Context) {
	n, err := p.stale.MarkStale(ctx, p.staleAfter)
	if err != nil {
		p.logger.ErrorContext(ctx, "stale order sweep failed", "err", err)
		return
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "stale orders flagged", "count", n)
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *r.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // correlation id keeps an order's events ordered
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
