package history

import (
	"context"
	"sort"
	"sync"

	"github.com/suPer8Hu/chatbot/internal/chat"
)

// MemoryDriver keeps records in process memory.
type MemoryDriver struct {
	mu       sync.RWMutex
	sessions map[string]map[int]chat.Record
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{sessions: make(map[string]map[int]chat.Record)}
}

func (d *MemoryDriver) Put(ctx context.Context, rec chat.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, ok := d.sessions[rec.SessionID]
	if !ok {
		rows = make(map[int]chat.Record)
		d.sessions[rec.SessionID] = rows
	}
	rec.Content = append([]chat.ContentItem{}, rec.Content...)
	rows[rec.Sequence] = rec
	return nil
}

func (d *MemoryDriver) List(ctx context.Context, sessionID string) ([]chat.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows := d.sessions[sessionID]
	out := make([]chat.Record, 0, len(rows))
	for _, r := range rows {
		r.Content = append([]chat.ContentItem{}, r.Content...)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (d *MemoryDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sessions = make(map[string]map[int]chat.Record)
	return nil
}
