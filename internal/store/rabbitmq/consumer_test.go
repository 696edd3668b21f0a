package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chatbot/internal/chat"
)

type fakeAcker struct {
	acks     int
	nacks    int
	requeued bool
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.acks++
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.nacks++
	a.requeued = requeue
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func failedTurnDelivery(t *testing.T, acker *fakeAcker, headers amqp.Table) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(chat.TurnEvent{SessionID: "s1", Status: chat.TurnFailed, UserSequence: 1})
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: acker, Body: body, Headers: headers}
}

func storeDown(ctx context.Context, ev chat.TurnEvent) error {
	return &chat.StoreUnavailableError{SessionID: ev.SessionID, Err: errors.New("ProvisionedThroughputExceededException")}
}

func TestConsumer_Ack(t *testing.T) {
	ch := &fakeChannel{}
	var seen chat.TurnEvent
	c := NewConsumer(ch, "chat_turns", func(ctx context.Context, ev chat.TurnEvent) error {
		seen = ev
		return nil
	}, 3, time.Second, nil)

	acker := &fakeAcker{}
	assert.Equal(t, OutcomeAcked, c.Handle(context.Background(), failedTurnDelivery(t, acker, nil)))
	assert.Equal(t, 1, acker.acks)
	assert.Equal(t, "s1", seen.SessionID)
	assert.Empty(t, ch.published)
}

func TestConsumer_StoreUnavailableGoesToRetryQueue(t *testing.T) {
	ch := &fakeChannel{}
	c := NewConsumer(ch, "chat_turns", storeDown, 3, 10*time.Second, nil)

	acker := &fakeAcker{}
	d := failedTurnDelivery(t, acker, amqp.Table{"x-retry-count": int32(1)})
	assert.Equal(t, OutcomeRetried, c.Handle(context.Background(), d))

	assert.Equal(t, 1, acker.acks)
	assert.Zero(t, acker.nacks)
	require.Len(t, ch.published, 1)
	assert.Equal(t, "chat_turns.retry", ch.keys[0])
	msg := ch.published[0]
	assert.Equal(t, "10000", msg.Expiration)
	assert.Equal(t, 2, RetryCount(msg.Headers))
	assert.Equal(t, d.Body, msg.Body)
}

func TestConsumer_RetriesAreBounded(t *testing.T) {
	ch := &fakeChannel{}
	c := NewConsumer(ch, "chat_turns", storeDown, 3, time.Second, nil)

	acker := &fakeAcker{}
	d := failedTurnDelivery(t, acker, amqp.Table{"x-retry-count": int32(3)})
	assert.Equal(t, OutcomeDeadLettered, c.Handle(context.Background(), d))
	assert.Equal(t, 1, acker.nacks)
	assert.False(t, acker.requeued)
	assert.Empty(t, ch.published)
}

func TestConsumer_OtherFailuresDeadLetter(t *testing.T) {
	ch := &fakeChannel{}
	c := NewConsumer(ch, "chat_turns", func(ctx context.Context, ev chat.TurnEvent) error {
		return &chat.ParseError{Field: "role", Reason: "corrupt"}
	}, 3, time.Second, nil)

	acker := &fakeAcker{}
	assert.Equal(t, OutcomeDeadLettered, c.Handle(context.Background(), failedTurnDelivery(t, acker, nil)))
	assert.Equal(t, 1, acker.nacks)
	assert.Empty(t, ch.published)

	bad := amqp.Delivery{Acknowledger: acker, Body: []byte("not json")}
	assert.Equal(t, OutcomeDeadLettered, c.Handle(context.Background(), bad))
	assert.Equal(t, 2, acker.nacks)
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, RetryCount(nil))
	assert.Equal(t, 2, RetryCount(amqp.Table{"x-retry-count": int64(2)}))
	assert.Equal(t, 0, RetryCount(amqp.Table{"x-retry-count": "2"}))
}
