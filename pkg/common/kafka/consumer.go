package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/maternal-risk/platform/pkg/common/config"
	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

const (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 30 * time.Second
)

type Consumer struct {
	reader *kafka.Reader

	dlq         Publisher
	source      string
	maxAttempts int
	backoff     func(attempt int) time.Duration
}

type EventHandler func(ctx context.Context, event models.Event) error

func NewConsumer(cfg *config.Config, topic string, groupID string) *Consumer {
	if groupID == "" {
		groupID = cfg.KafkaGroupID
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: reader, backoff: retryBackoff}
}

// WithDeadLetter parks events the handler still rejects after maxAttempts on
// dlq instead of retrying them forever.
func (c *Consumer) WithDeadLetter(dlq Publisher, source string, maxAttempts int) *Consumer {
	c.dlq = dlq
	c.source = source
	c.maxAttempts = maxAttempts
	return c
}

// Consume blocks until ctx is cancelled. Messages that fail to decode are
// committed and skipped. A failing handler is retried with backoff on the same
// message, which is committed only once it is handled or dead-lettered.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			logger.Log.WithError(err).Error("Failed to fetch message")
			continue
		}

		event, err := DecodeEvent(message.Value)
		if err != nil {
			logger.Log.WithError(err).Error("Failed to unmarshal event")
			c.reader.CommitMessages(ctx, message)
			continue
		}

		if err := c.deliver(ctx, event, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, message); err != nil {
			logger.Log.WithError(err).Error("Failed to commit message")
		}
	}
}

// deliver runs handler until it succeeds, the event is dead-lettered, or ctx
// ends. Only the last case returns an error.
func (c *Consumer) deliver(ctx context.Context, event models.Event, handler EventHandler) error {
	for attempt := 1; ; attempt++ {
		err := handler(ctx, event)
		if err == nil {
			return nil
		}
		fields := map[string]interface{}{
			"event_id": event.ID,
			"attempt":  attempt,
		}
		logger.Log.WithError(err).WithFields(fields).Error("Failed to process event")

		if c.dlq != nil && c.maxAttempts > 0 && attempt >= c.maxAttempts {
			dlqErr := c.deadLetter(ctx, event, err)
			if dlqErr == nil {
				return nil
			}
			logger.Log.WithError(dlqErr).WithFields(fields).Error("Failed to dead-letter event")
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		wait := time.Duration(0)
		if c.backoff != nil {
			wait = c.backoff(attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Consumer) deadLetter(ctx context.Context, event models.Event, cause error) error {
	data := make(map[string]interface{}, len(event.Data)+2)
	for k, v := range event.Data {
		data[k] = v
	}
	data["error"] = cause.Error()
	data["original_event_id"] = event.ID
	return c.dlq.PublishEvent(ctx, event.Type+".unprocessed", c.source, data)
}

func retryBackoff(attempt int) time.Duration {
	delay := retryBaseDelay
	for i := 1; i < attempt && delay < retryMaxDelay; i++ {
		delay *= 2
	}
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

func DecodeEvent(payload []byte) (models.Event, error) {
	var event models.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return models.Event{}, err
	}
	return event, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
