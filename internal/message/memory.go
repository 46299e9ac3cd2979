package message

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps messages in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	messages map[string]Message
	reads    map[string][]Read
}

// NewMemoryRepository creates an empty repo.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{messages: map[string]Message{}, reads: map[string][]Read{}}
}

func (r *MemoryRepository) Insert(_ context.Context, m Message) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[m.ID] = m
	return m, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return r.withReads(m), nil
}

func (r *MemoryRepository) ListByGroup(_ context.Context, groupID string, limit, offset int) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []Message
	for _, m := range r.messages {
		if m.GroupID == groupID {
			all = append(all, m)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset < 0 || offset >= len(all) {
		return []Message{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]Message, len(all))
	for i, m := range all {
		out[i] = r.withReads(m)
	}
	return out, nil
}

func (r *MemoryRepository) withReads(m Message) Message {
	m.ReadBy = append([]Read{}, r.reads[m.ID]...)
	return m
}

func (r *MemoryRepository) MarkRead(_ context.Context, messageID, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[messageID]; !ok {
		return ErrNotFound
	}
	for _, rd := range r.reads[messageID] {
		if rd.UserID == userID {
			return nil
		}
	}
	r.reads[messageID] = append(r.reads[messageID], Read{UserID: userID, ReadAt: at})
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[id]; !ok {
		return ErrNotFound
	}
	delete(r.messages, id)
	delete(r.reads, id)
	return nil
}

func (r *MemoryRepository) CountByGroup(_ context.Context, groupID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.messages {
		if m.GroupID == groupID {
			n++
		}
	}
	return n, nil
}
