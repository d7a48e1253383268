package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type CaseRecorder interface {
	Record(ctx context.Context, e Entry) (bool, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer drains the reconciliation topic into the case store.
type Consumer struct {
	store  CaseRecorder
	reader messageReader
	logger *slog.Logger

	retryBackoff time.Duration
}

const maxRetryBackoff = 30 * time.Second

func NewConsumer(store CaseRecorder, logger *slog.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  "artvista-reconciler",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{store: store, reader: reader, logger: logger, retryBackoff: time.Second}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("error closing kafka reader", "err", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Error("error reading message", "err", err)
		return
	}

	var entry Entry
	if err := json.Unmarshal(m.Value, &entry); err != nil {
		// poison message, commit so it is not redelivered
		c.logger.Error("error parsing reconciliation entry", "err", err, "offset", m.Offset)
		c.commit(ctx, m)
		return
	}

	opened, err := c.record(ctx, entry)
	if err != nil {
		// uncommitted, redelivered to the group after restart
		c.logger.Error("failed to record reconciliation case",
			"correlation_id", entry.CorrelationID, "err", err)
		return
	}

	if opened {
		c.logger.Error("payment captured but order not updated, manual reconciliation required",
			"correlation_id", entry.CorrelationID,
			"order_id", entry.OrderID,
			"payment_id", entry.PaymentID,
			"amount", entry.Amount,
			"cause", entry.Cause)
	} else {
		c.logger.Info("reconciliation case already open", "correlation_id", entry.CorrelationID)
	}
	c.commit(ctx, m)
}

// record retries the store until it succeeds or ctx ends.
func (c *Consumer) record(ctx context.Context, e Entry) (bool, error) {
	backoff := c.retryBackoff
	for {
		opened, err := c.store.Record(ctx, e)
		if err == nil {
			return opened, nil
		}
		c.logger.Warn("retrying reconciliation case", "correlation_id", e.CorrelationID, "err", err)

		select {
		case <-ctx.Done():
			return false, err
		case <-time.After(backoff):
		}
		if backoff < maxRetryBackoff {
			backoff *= 2
		}
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.logger.Error("failed to commit message", "offset", m.Offset, "err", err)
	}
}
