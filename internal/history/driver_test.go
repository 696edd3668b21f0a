package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chatbot/internal/chat"
)

func rec(sid string, seq int, role chat.Role, text string) chat.Record {
	return chat.Record{SessionID: sid, Sequence: seq, Role: role, Content: []chat.ContentItem{{Text: text}}}
}

// testDriver runs the behaviour every backend must share.
func testDriver(t *testing.T, d Driver) {
	t.Helper()
	ctx := context.Background()

	t.Run("unknown session is empty", func(t *testing.T) {
		recs, err := d.List(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("list is ordered by sequence", func(t *testing.T) {
		require.NoError(t, d.Put(ctx, rec("s-order", 2, chat.RoleAssistant, "two")))
		require.NoError(t, d.Put(ctx, rec("s-order", 10, chat.RoleAssistant, "ten")))
		require.NoError(t, d.Put(ctx, rec("s-order", 1, chat.RoleUser, "one")))
		require.NoError(t, d.Put(ctx, rec("other", 1, chat.RoleUser, "elsewhere")))

		recs, err := d.List(ctx, "s-order")
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, []int{1, 2, 10}, []int{recs[0].Sequence, recs[1].Sequence, recs[2].Sequence})
		assert.Equal(t, chat.RoleUser, recs[0].Role)
		assert.Equal(t, chat.RoleAssistant, recs[1].Role)
		assert.Equal(t, "ten", recs[2].Content[0].Text)
		for _, r := range recs {
			assert.Equal(t, "s-order", r.SessionID)
		}
	})

	t.Run("same key overwrites", func(t *testing.T) {
		require.NoError(t, d.Put(ctx, rec("s-over", 1, chat.RoleUser, "first")))
		require.NoError(t, d.Put(ctx, rec("s-over", 1, chat.RoleUser, "second")))

		recs, err := d.List(ctx, "s-over")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "second", recs[0].Content[0].Text)
	})

	t.Run("multiple content items survive", func(t *testing.T) {
		r := chat.Record{
			SessionID: "s-multi",
			Sequence:  1,
			Role:      chat.RoleAssistant,
			Content:   []chat.ContentItem{{Text: "a"}, {Text: "b"}},
		}
		require.NoError(t, d.Put(ctx, r))

		recs, err := d.List(ctx, "s-multi")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, r.Content, recs[0].Content)
	})
}
