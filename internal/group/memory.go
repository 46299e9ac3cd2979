package group

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps groups in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	groups  map[string]Group
	members map[string]map[string]Membership
}

// NewMemoryRepository creates an empty repo.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{groups: map[string]Group{}, members: map[string]map[string]Membership{}}
}

func (r *MemoryRepository) Create(_ context.Context, g Group) (Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[g.ID] = g
	r.members[g.ID] = map[string]Membership{
		g.CreatedBy: {GroupID: g.ID, UserID: g.CreatedBy, JoinedAt: g.CreatedAt},
	}
	return g, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return g, nil
}

func (r *MemoryRepository) ListAll(_ context.Context) ([]Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	newestFirst(out)
	return out, nil
}

func (r *MemoryRepository) ListForMember(_ context.Context, userID string) ([]Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Group
	for id, ms := range r.members {
		if _, ok := ms[userID]; ok {
			out = append(out, r.groups[id])
		}
	}
	newestFirst(out)
	return out, nil
}

func (r *MemoryRepository) Members(_ context.Context, groupID string) ([]Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Membership, 0, len(r.members[groupID]))
	for _, m := range r.members[groupID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (r *MemoryRepository) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[groupID][userID]
	return ok, nil
}

func (r *MemoryRepository) AddMember(_ context.Context, m Membership) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.members[m.GroupID]
	if !ok {
		return false, ErrNotFound
	}
	if _, exists := ms[m.UserID]; exists {
		return false, nil
	}
	ms[m.UserID] = m
	return true, nil
}

func (r *MemoryRepository) RemoveMember(_ context.Context, groupID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms := r.members[groupID]
	if _, ok := ms[userID]; !ok {
		return false, nil
	}
	delete(ms, userID)
	return true, nil
}

func newestFirst(gs []Group) {
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].CreatedAt.Equal(gs[j].CreatedAt) {
			return gs[i].ID > gs[j].ID
		}
		return gs[i].CreatedAt.After(gs[j].CreatedAt)
	})
}
