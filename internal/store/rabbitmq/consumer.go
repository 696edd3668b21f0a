package rabbitmq

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/chatbot/internal/chat"
)

const retryCountHeader = "x-retry-count"

// Sender is the publishing half of *amqp.Channel.
type Sender interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// TurnHandler processes one decoded turn event.
type TurnHandler func(ctx context.Context, ev chat.TurnEvent) error

type Outcome string

const (
	OutcomeAcked        Outcome = "acked"
	OutcomeRetried      Outcome = "retried"
	OutcomeDeadLettered Outcome = "dead_lettered"
)

// Consumer settles turn deliveries. A handler failure caused by an
// unavailable store is parked on the retry queue until MaxRetries is reached;
// everything else that fails goes to the DLQ.
type Consumer struct {
	ch         Sender
	queue      string
	handle     TurnHandler
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewConsumer(ch Sender, queue string, handle TurnHandler, maxRetries int, retryDelay time.Duration, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		ch:         ch,
		queue:      queue,
		handle:     handle,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// RetryCount reads how many times a delivery has been through the retry
// queue.
func RetryCount(h amqp.Table) int {
	switch v := h[retryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) Outcome {
	ev, err := DecodeTurn(d.Body)
	if err != nil {
		c.logger.Warn("bad message", "error", err)
		return c.deadLetter(d)
	}
	log := c.logger.With("session_id", ev.SessionID)

	err = c.handle(ctx, ev)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Error("ack failed", "error", err)
		}
		return OutcomeAcked
	}

	retries := RetryCount(d.Headers)
	if !errors.Is(err, chat.ErrStoreUnavailable) || retries >= c.maxRetries {
		log.Error("turn event dropped to dlq", "retries", retries, "error", err)
		return c.deadLetter(d)
	}

	if perr := c.publishRetry(ctx, d.Body, retries+1); perr != nil {
		log.Error("publish retry failed", "error", perr)
		return c.deadLetter(d)
	}
	if err := d.Ack(false); err != nil {
		log.Error("ack failed", "error", err)
	}
	log.Warn("turn event scheduled for retry", "retries", retries+1, "delay", c.retryDelay, "error", err)
	return OutcomeRetried
}

func (c *Consumer) deadLetter(d amqp.Delivery) Outcome {
	// requeue=false routes through the main queue's DLX
	_ = d.Nack(false, false)
	return OutcomeDeadLettered
}

// publishRetry parks the body on the retry queue; it expires back into the
// main queue after retryDelay.
func (c *Consumer) publishRetry(ctx context.Context, body []byte, retries int) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return c.ch.PublishWithContext(cctx,
		"",
		RetryQueue(c.queue),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Expiration:   strconv.FormatInt(c.retryDelay.Milliseconds(), 10),
			Headers:      amqp.Table{retryCountHeader: int32(retries)},
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
