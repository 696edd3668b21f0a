package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/chatbot/internal/chat"
)

const redisKeyPrefix = "history:"

// RedisDriver keeps one hash per session; the field is the sequence number.
type RedisDriver struct {
	client *redis.Client
}

type redisRecord struct {
	Role    chat.Role          `json:"role"`
	Content []chat.ContentItem `json:"content"`
}

func NewRedisDriver(client *redis.Client) *RedisDriver {
	return &RedisDriver{client: client}
}

func (d *RedisDriver) Put(ctx context.Context, rec chat.Record) error {
	content := rec.Content
	if content == nil {
		content = []chat.ContentItem{}
	}
	val, err := json.Marshal(redisRecord{Role: rec.Role, Content: content})
	if err != nil {
		return err
	}
	return d.client.HSet(ctx, d.key(rec.SessionID), strconv.Itoa(rec.Sequence), val).Err()
}

func (d *RedisDriver) List(ctx context.Context, sessionID string) ([]chat.Record, error) {
	fields, err := d.client.HGetAll(ctx, d.key(sessionID)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]chat.Record, 0, len(fields))
	for field, val := range fields {
		seq, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("history: bad sequence field %q in %s: %w", field, d.key(sessionID), err)
		}
		var r redisRecord
		if err := json.Unmarshal([]byte(val), &r); err != nil {
			return nil, fmt.Errorf("history: decode %s/%d: %w", sessionID, seq, err)
		}
		out = append(out, chat.Record{SessionID: sessionID, Sequence: seq, Role: r.Role, Content: r.Content})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (d *RedisDriver) Close() error {
	return d.client.Close()
}

func (d *RedisDriver) key(sessionID string) string {
	return redisKeyPrefix + sessionID
}
