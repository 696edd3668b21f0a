package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/chatbot/internal/chat"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	Declarer
	Sender
	Close() error
}

// Publisher sends chat.TurnEvent messages to the turn queue.
type Publisher struct {
	conn  *amqp.Connection
	ch    Channel
	queue string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	p, err := NewPublisherWithChannel(ch, queue)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisherWithChannel declares the queues on an open channel.
func NewPublisherWithChannel(ch Channel, queue string) (*Publisher, error) {
	if err := DeclareQueues(ch, queue); err != nil {
		return nil, fmt.Errorf("declare queues: %w", err)
	}
	return &Publisher{ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) PublishTurn(ctx context.Context, ev chat.TurnEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         string(ev.Status),
			Body:         body,
			Timestamp:    ev.At,
		},
	)
}

// DecodeTurn parses a delivery body. Events without a session id are
// rejected.
func DecodeTurn(body []byte) (chat.TurnEvent, error) {
	var ev chat.TurnEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return chat.TurnEvent{}, err
	}
	if ev.SessionID == "" {
		return chat.TurnEvent{}, fmt.Errorf("turn event without session_id")
	}
	if ev.Status != chat.TurnSucceeded && ev.Status != chat.TurnFailed {
		return chat.TurnEvent{}, fmt.Errorf("turn event with unknown status %q", ev.Status)
	}
	return ev, nil
}
