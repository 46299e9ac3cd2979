package poll

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/message"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/metrics"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

// Access decides whether an actor may use a group.
type Access interface {
	CanAccess(ctx context.Context, groupID string, actor auth.Actor) error
}

// Directory resolves user references.
type Directory interface {
	Summaries(ctx context.Context, ids []string) (map[string]user.Summary, error)
}

// Timeline posts the chat entry that announces a new poll.
type Timeline interface {
	PostPoll(ctx context.Context, groupID, senderID, pollID, question string) (message.Message, error)
}

// Service implements poll creation and voting.
type Service struct {
	repo     Repository
	groups   Access
	dir      Directory
	timeline Timeline
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, groups Access, dir Directory, timeline Timeline, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, groups: groups, dir: dir, timeline: timeline, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create posts a poll and announces it in the group chat.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (Poll, error) {
	if !actor.Privileged() {
		return Poll{}, ErrNotPrivileged
	}
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return Poll{}, ErrQuestionMissing
	}
	var options []Option
	for _, text := range in.Options {
		if text = strings.TrimSpace(text); text != "" {
			options = append(options, Option{Index: len(options), Text: text, Votes: []Vote{}})
		}
	}
	if len(options) < 2 {
		return Poll{}, ErrTooFewOptions
	}
	now := s.now().UTC()
	var expires *time.Time
	if in.ExpiresAt != nil {
		if !in.ExpiresAt.After(now) {
			return Poll{}, ErrExpiryInPast
		}
		t := in.ExpiresAt.UTC()
		expires = &t
	}
	if err := s.groups.CanAccess(ctx, in.GroupID, actor); err != nil {
		return Poll{}, err
	}

	p, err := s.repo.Create(ctx, Poll{
		ID:             uuid.NewString(),
		GroupID:        in.GroupID,
		CreatedByID:    actor.ID,
		Question:       question,
		Options:        options,
		MultipleChoice: in.MultipleChoice,
		ExpiresAt:      expires,
		CreatedAt:      now,
	})
	if err != nil {
		return Poll{}, err
	}
	if _, err := s.timeline.PostPoll(ctx, p.GroupID, actor.ID, p.ID, p.Question); err != nil {
		s.logger.Warn("poll announcement failed", "poll_id", p.ID, "error", err)
	}
	metrics.Record("poll_created")
	s.logger.Info("poll created", "poll_id", p.ID, "group_id", p.GroupID, "by", actor.ID)
	return s.decorate(ctx, p)
}

// Get returns a poll with tallies.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (Poll, error) {
	p, err := s.load(ctx, actor, id)
	if err != nil {
		return Poll{}, err
	}
	return s.decorate(ctx, p)
}

// PollSummaries resolves poll references for the message timeline. Ids that
// no longer exist are skipped.
func (s *Service) PollSummaries(ctx context.Context, ids []string) (map[string]message.PollSummary, error) {
	out := make(map[string]message.PollSummary, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		p, err := s.repo.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = message.PollSummary{ID: p.ID, Question: p.Question, MultipleChoice: p.MultipleChoice, ExpiresAt: p.ExpiresAt}
	}
	return out, nil
}

// ListByGroup returns a group's polls newest first.
func (s *Service) ListByGroup(ctx context.Context, actor auth.Actor, groupID string) ([]Poll, error) {
	if err := s.groups.CanAccess(ctx, groupID, actor); err != nil {
		return nil, err
	}
	polls, err := s.repo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	out := make([]Poll, 0, len(polls))
	for _, p := range polls {
		d, err := s.decorate(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Vote records a student's choice while the poll is open. Single-choice
// polls accept one vote per student; multiple-choice polls accept one vote
// per student per option.
func (s *Service) Vote(ctx context.Context, actor auth.Actor, pollID string, option int) (Poll, error) {
	if actor.Role != auth.RoleStudent {
		return Poll{}, ErrStudentsOnly
	}
	p, err := s.load(ctx, actor, pollID)
	if err != nil {
		return Poll{}, err
	}
	now := s.now().UTC()
	if p.ExpiredAt(now) {
		return Poll{}, ErrExpired
	}
	if option < 0 || option >= len(p.Options) {
		return Poll{}, ErrInvalidOption
	}
	if err := s.repo.Vote(ctx, pollID, option, actor.ID, !p.MultipleChoice, now); err != nil {
		return Poll{}, err
	}
	metrics.Record("poll_voted")
	return s.Get(ctx, actor, pollID)
}

// CountByGroup reports how many polls a group holds.
func (s *Service) CountByGroup(ctx context.Context, groupID string) (int, error) {
	return s.repo.CountByGroup(ctx, groupID)
}

func (s *Service) load(ctx context.Context, actor auth.Actor, id string) (Poll, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Poll{}, err
	}
	if err := s.groups.CanAccess(ctx, p.GroupID, actor); err != nil {
		return Poll{}, err
	}
	return p, nil
}

func (s *Service) decorate(ctx context.Context, p Poll) (Poll, error) {
	Tally(&p)
	p.Expired = p.ExpiredAt(s.now())
	sums, err := s.dir.Summaries(ctx, []string{p.CreatedByID})
	if err != nil {
		return Poll{}, err
	}
	p.CreatedBy = sums[p.CreatedByID]
	return p, nil
}
