package poll

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps polls in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	polls map[string]Poll
}

// NewMemoryRepository creates an empty repo.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{polls: map[string]Poll{}}
}

func (r *MemoryRepository) Create(_ context.Context, p Poll) (Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls[p.ID] = clone(p)
	return p, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.polls[id]
	if !ok {
		return Poll{}, ErrNotFound
	}
	return clone(p), nil
}

func (r *MemoryRepository) ListByGroup(_ context.Context, groupID string) ([]Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Poll
	for _, p := range r.polls {
		if p.GroupID == groupID {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) CountByGroup(_ context.Context, groupID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.polls {
		if p.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Vote(_ context.Context, pollID string, option int, userID string, singleChoice bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[pollID]
	if !ok {
		return ErrNotFound
	}
	if option < 0 || option >= len(p.Options) {
		return ErrInvalidOption
	}
	if singleChoice && p.HasVoted(userID) {
		return ErrAlreadyVoted
	}
	for _, v := range p.Options[option].Votes {
		if v.UserID == userID {
			return ErrOptionVoted
		}
	}
	p.Options[option].Votes = append(p.Options[option].Votes, Vote{UserID: userID, VotedAt: at})
	r.polls[pollID] = p
	return nil
}

func clone(p Poll) Poll {
	opts := make([]Option, len(p.Options))
	for i, o := range p.Options {
		o.Votes = append([]Vote{}, o.Votes...)
		opts[i] = o
	}
	p.Options = opts
	return p
}
