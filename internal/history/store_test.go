package history

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chatbot/internal/chat"
)

type failingDriver struct {
	err error
}

func (d failingDriver) Put(context.Context, chat.Record) error { return d.err }

func (d failingDriver) List(context.Context, string) ([]chat.Record, error) { return nil, d.err }

func (d failingDriver) Close() error { return nil }

func TestStore_AppendTurnUsesConversationLength(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryDriver(), nil)

	conv, err := chat.FromHistory("s1", nil)
	require.NoError(t, err)

	conv.Append(chat.TextMessage(chat.RoleUser, "Write me a rhyme about a goat"))
	got, err := store.AppendTurn(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, conv.Last(), got)

	conv.Append(chat.TextMessage(chat.RoleAssistant, "A goat on a hill"))
	_, err = store.AppendTurn(ctx, conv)
	require.NoError(t, err)

	loaded, err := store.History(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, conv.Messages(), loaded.Messages())
}

func TestStore_AppendTurnTwiceOverwrites(t *testing.T) {
	ctx := context.Background()
	drv := NewMemoryDriver()
	store := NewStore(drv, nil)

	conv, _ := chat.FromHistory("s1", []chat.Message{chat.TextMessage(chat.RoleUser, "hi")})
	_, err := store.AppendTurn(ctx, conv)
	require.NoError(t, err)
	_, err = store.AppendTurn(ctx, conv)
	require.NoError(t, err)

	recs, err := drv.List(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestStore_DriverErrorsAreStoreUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	store := NewStore(failingDriver{err: cause}, nil)

	conv, _ := chat.FromHistory("s1", []chat.Message{chat.TextMessage(chat.RoleUser, "hi")})
	_, err := store.AppendTurn(context.Background(), conv)

	var se *chat.StoreUnavailableError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "s1", se.SessionID)
	assert.Equal(t, 1, se.Sequence)
	assert.ErrorIs(t, err, cause)

	_, err = store.History(context.Background(), "s1")
	assert.ErrorIs(t, err, chat.ErrStoreUnavailable)
}

func TestStore_UnknownSessionIsEmpty(t *testing.T) {
	store := NewStore(NewMemoryDriver(), nil)
	conv, err := store.History(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, conv.Len())
	assert.Equal(t, "missing", conv.SessionID())
}

func TestStore_EmptyConversationPanics(t *testing.T) {
	store := NewStore(NewMemoryDriver(), nil)
	conv, _ := chat.FromHistory("s1", nil)
	assert.Panics(t, func() { _, _ = store.AppendTurn(context.Background(), conv) })
}
