package group

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

// Directory resolves user references.
type Directory interface {
	Get(ctx context.Context, id string) (user.User, error)
	Summaries(ctx context.Context, ids []string) (map[string]user.Summary, error)
	ListStudents(ctx context.Context, batch, semester string) ([]user.User, error)
}

// Counter reports how many items of one kind a group holds.
type Counter interface {
	CountByGroup(ctx context.Context, groupID string) (int, error)
}

// Service manages groups and membership.
type Service struct {
	repo   Repository
	dir    Directory
	logger *slog.Logger
	now    func() time.Time

	messages, assignments, polls Counter
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, dir Directory, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, dir: dir, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AttachCounters wires the per-group content counters shown on views.
// The content services depend on this one, so they are attached after construction.
func (s *Service) AttachCounters(messages, assignments, polls Counter) {
	s.messages, s.assignments, s.polls = messages, assignments, polls
}

// Create stores a group with the actor as creator and first member.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (View, error) {
	if !actor.Privileged() {
		return View{}, ErrNotPrivileged
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return View{}, ErrNameRequired
	}
	g, err := s.repo.Create(ctx, Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Subject:     strings.TrimSpace(in.Subject),
		Batch:       strings.TrimSpace(in.Batch),
		Semester:    strings.TrimSpace(in.Semester),
		CreatedBy:   actor.ID,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return View{}, err
	}
	s.logger.Info("group created", "group_id", g.ID, "by", actor.ID)
	return s.view(ctx, g)
}

// CanAccess returns nil when actor may read and post in the group.
// HOD and admin see every group; everyone else must be a member.
func (s *Service) CanAccess(ctx context.Context, groupID string, actor auth.Actor) error {
	if _, err := s.repo.Get(ctx, groupID); err != nil {
		return err
	}
	if auth.HasRole(actor.Role, auth.Approvers...) {
		return nil
	}
	ok, err := s.repo.IsMember(ctx, groupID, actor.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccessDenied
	}
	return nil
}

// Get returns a populated group.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (View, error) {
	if err := s.CanAccess(ctx, id, actor); err != nil {
		return View{}, err
	}
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, g)
}

// ListForUser returns the groups visible to actor, newest first.
func (s *Service) ListForUser(ctx context.Context, actor auth.Actor) ([]View, error) {
	var (
		groups []Group
		err    error
	)
	if auth.HasRole(actor.Role, auth.Approvers...) {
		groups, err = s.repo.ListAll(ctx)
	} else {
		groups, err = s.repo.ListForMember(ctx, actor.ID)
	}
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(groups))
	for _, g := range groups {
		v, err := s.view(ctx, g)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// AddMember adds userID to the group. Adding an existing member changes nothing.
func (s *Service) AddMember(ctx context.Context, actor auth.Actor, groupID, userID string) (View, error) {
	g, err := s.managed(ctx, actor, groupID)
	if err != nil {
		return View{}, err
	}
	if _, err := s.dir.Get(ctx, userID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return View{}, ErrMemberNotFound
		}
		return View{}, err
	}
	added, err := s.repo.AddMember(ctx, Membership{GroupID: groupID, UserID: userID, JoinedAt: s.now().UTC()})
	if err != nil {
		return View{}, err
	}
	if added {
		s.logger.Info("member added", "group_id", groupID, "user_id", userID, "by", actor.ID)
	}
	return s.view(ctx, g)
}

// RemoveMember removes userID from the group. The creator can never be removed.
func (s *Service) RemoveMember(ctx context.Context, actor auth.Actor, groupID, userID string) (View, error) {
	g, err := s.managed(ctx, actor, groupID)
	if err != nil {
		return View{}, err
	}
	if userID == g.CreatedBy {
		return View{}, ErrRemoveCreator
	}
	removed, err := s.repo.RemoveMember(ctx, groupID, userID)
	if err != nil {
		return View{}, err
	}
	if !removed {
		return View{}, ErrNotMember
	}
	s.logger.Info("member removed", "group_id", groupID, "user_id", userID, "by", actor.ID)
	return s.view(ctx, g)
}

// AvailableStudents lists approved students who are not members. With
// sameCohort set, only students matching the group's batch and semester are returned.
func (s *Service) AvailableStudents(ctx context.Context, actor auth.Actor, groupID string, sameCohort bool) ([]user.Summary, error) {
	g, err := s.managed(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}
	batch, semester := "", ""
	if sameCohort {
		batch, semester = g.Batch, g.Semester
	}
	students, err := s.dir.ListStudents(ctx, batch, semester)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.Members(ctx, groupID)
	if err != nil {
		return nil, err
	}
	current := make(map[string]struct{}, len(members))
	for _, m := range members {
		current[m.UserID] = struct{}{}
	}
	out := make([]user.Summary, 0, len(students))
	for _, st := range students {
		if _, ok := current[st.ID]; !ok {
			out = append(out, st.Summary())
		}
	}
	return out, nil
}

func (s *Service) managed(ctx context.Context, actor auth.Actor, groupID string) (Group, error) {
	if !actor.Privileged() {
		return Group{}, ErrNotPrivileged
	}
	if err := s.CanAccess(ctx, groupID, actor); err != nil {
		return Group{}, err
	}
	return s.repo.Get(ctx, groupID)
}

func (s *Service) view(ctx context.Context, g Group) (View, error) {
	members, err := s.repo.Members(ctx, g.ID)
	if err != nil {
		return View{}, err
	}
	ids := make([]string, 0, len(members)+1)
	ids = append(ids, g.CreatedBy)
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	sums, err := s.dir.Summaries(ctx, ids)
	if err != nil {
		return View{}, err
	}
	v := View{Group: g, Creator: sums[g.CreatedBy], Members: make([]Member, 0, len(members))}
	for _, m := range members {
		v.Members = append(v.Members, Member{User: sums[m.UserID], JoinedAt: m.JoinedAt})
	}
	if v.Counts, err = s.counts(ctx, g.ID); err != nil {
		return View{}, err
	}
	return v, nil
}

func (s *Service) counts(ctx context.Context, groupID string) (Counts, error) {
	var c Counts
	for _, item := range []struct {
		counter Counter
		dst     *int
	}{{s.messages, &c.Messages}, {s.assignments, &c.Assignments}, {s.polls, &c.Polls}} {
		if item.counter == nil {
			continue
		}
		n, err := item.counter.CountByGroup(ctx, groupID)
		if err != nil {
			return Counts{}, err
		}
		*item.dst = n
	}
	return c, nil
}

// Lookup returns the stored group without an access check.
func (s *Service) Lookup(ctx context.Context, id string) (Group, error) {
	return s.repo.Get(ctx, id)
}
