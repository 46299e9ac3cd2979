package message

import (
	"context"
	"log/slog"
	"math"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/metrics"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/upload"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

const (
	// DefaultPageSize is the page length used when the caller gives none.
	DefaultPageSize = 50
	// MaxPageSize caps the page length a caller may ask for.
	MaxPageSize = 100
)

// Access decides whether an actor may use a group.
type Access interface {
	CanAccess(ctx context.Context, groupID string, actor auth.Actor) error
}

// Directory resolves sender references.
type Directory interface {
	Summaries(ctx context.Context, ids []string) (map[string]user.Summary, error)
}

// Publisher pushes server-created messages to connected clients.
type Publisher interface {
	PublishMessage(groupID string, m Message)
}

// AssignmentReferences resolves the assignments that timeline entries point at.
// Unknown ids are left out of the result.
type AssignmentReferences interface {
	AssignmentSummaries(ctx context.Context, ids []string) (map[string]AssignmentSummary, error)
}

// PollReferences resolves the polls that timeline entries point at.
// Unknown ids are left out of the result.
type PollReferences interface {
	PollSummaries(ctx context.Context, ids []string) (map[string]PollSummary, error)
}

// Service implements sending, listing, read tracking and deletion.
type Service struct {
	repo        Repository
	groups      Access
	dir         Directory
	files       upload.Store
	publisher   Publisher
	assignments AssignmentReferences
	polls       PollReferences
	logger      *slog.Logger
	now         func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher announces assignment and poll entries in real time. Clients
// broadcast their own messages, so only server-created entries are published.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, groups Access, dir Directory, files upload.Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, groups: groups, dir: dir, files: files, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AttachReferences sets the resolvers for assignment and poll entries. The
// assignment and poll services post through this one, so they are attached
// after construction. Either may be nil.
func (s *Service) AttachReferences(assignments AssignmentReferences, polls PollReferences) {
	s.assignments, s.polls = assignments, polls
}

// Send stores a message from actor. When no type is given, an attached file
// decides the media variant; otherwise the message is text. Empty content
// falls back to the file name, then the YouTube link.
func (s *Service) Send(ctx context.Context, actor auth.Actor, in SendInput, file *multipart.FileHeader) (Message, error) {
	if err := s.groups.CanAccess(ctx, in.GroupID, actor); err != nil {
		return Message{}, err
	}

	kind := KindText
	switch {
	case in.Type != "":
		k, err := ParseKind(in.Type)
		if err != nil {
			return Message{}, err
		}
		kind = k
	case file != nil:
		kind = KindForFile(file.Filename)
	}

	m := Message{
		ID:         uuid.NewString(),
		GroupID:    in.GroupID,
		SenderID:   actor.ID,
		Content:    strings.TrimSpace(in.Content),
		Type:       kind,
		YoutubeURL: strings.TrimSpace(in.YoutubeURL),
		CreatedAt:  s.now().UTC(),
	}
	if file != nil {
		m.File = &upload.FileMeta{FileName: file.Filename, FileSize: file.Size}
	}
	if m.Content == "" {
		switch {
		case m.File != nil:
			m.Content = m.File.FileName
		case m.YoutubeURL != "":
			m.Content = m.YoutubeURL
		}
	}
	// Reject before anything is written to upload storage.
	if err := Validate(m); err != nil {
		return Message{}, err
	}
	if file != nil {
		meta, err := s.files.Save(ctx, file, upload.PurposeMessages)
		if err != nil {
			return Message{}, err
		}
		m.File = &meta
	}
	return s.insert(ctx, m)
}

// PostAssignment adds the timeline entry announcing a new assignment.
func (s *Service) PostAssignment(ctx context.Context, groupID, senderID, assignmentID, title string) (Message, error) {
	return s.insert(ctx, Message{
		ID:           uuid.NewString(),
		GroupID:      groupID,
		SenderID:     senderID,
		Content:      "Assignment: " + title,
		Type:         KindAssignment,
		AssignmentID: assignmentID,
		CreatedAt:    s.now().UTC(),
	})
}

// PostPoll adds the timeline entry announcing a new poll.
func (s *Service) PostPoll(ctx context.Context, groupID, senderID, pollID, question string) (Message, error) {
	return s.insert(ctx, Message{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		SenderID:  senderID,
		Content:   "Poll: " + question,
		Type:      KindPoll,
		PollID:    pollID,
		CreatedAt: s.now().UTC(),
	})
}

func (s *Service) insert(ctx context.Context, m Message) (Message, error) {
	if err := Validate(m); err != nil {
		return Message{}, err
	}
	m, err := s.repo.Insert(ctx, m)
	if err != nil {
		return Message{}, err
	}
	m.ReadBy = []Read{}
	out := []Message{m}
	if err := s.populate(ctx, out); err != nil {
		return Message{}, err
	}
	metrics.Record("message_sent")
	s.logger.Debug("message stored", "message_id", m.ID, "group_id", m.GroupID, "type", m.Type)
	if s.publisher != nil && (m.Type == KindAssignment || m.Type == KindPoll) {
		s.publisher.PublishMessage(m.GroupID, out[0])
	}
	return out[0], nil
}

// List returns one page of a group's timeline in ascending time order.
// Pages count back from the newest message.
func (s *Service) List(ctx context.Context, actor auth.Actor, groupID string, page, limit int) ([]Message, error) {
	if err := s.groups.CanAccess(ctx, groupID, actor); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	// Pages past the addressable range are empty rather than a wrapped offset.
	if page-1 > math.MaxInt/limit {
		return []Message{}, nil
	}
	msgs, err := s.repo.ListByGroup(ctx, groupID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if err := s.populate(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead records that actor has read the message. Repeated calls are no-ops.
func (s *Service) MarkRead(ctx context.Context, actor auth.Actor, messageID string) error {
	m, err := s.repo.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.groups.CanAccess(ctx, m.GroupID, actor); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, messageID, actor.ID, s.now().UTC())
}

// Delete removes a message. Only its sender or a privileged role may do so.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, messageID string) error {
	m, err := s.repo.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if m.SenderID != actor.ID && !actor.Privileged() {
		return ErrCannotDelete
	}
	if err := s.repo.Delete(ctx, messageID); err != nil {
		return err
	}
	s.logger.Info("message deleted", "message_id", messageID, "by", actor.ID)
	return nil
}

// CountByGroup reports how many messages a group holds.
func (s *Service) CountByGroup(ctx context.Context, groupID string) (int, error) {
	return s.repo.CountByGroup(ctx, groupID)
}

func (s *Service) populate(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	var ids, assignmentIDs, pollIDs []string
	for _, m := range msgs {
		ids = append(ids, m.SenderID)
		if m.AssignmentID != "" {
			assignmentIDs = append(assignmentIDs, m.AssignmentID)
		}
		if m.PollID != "" {
			pollIDs = append(pollIDs, m.PollID)
		}
	}
	sums, err := s.dir.Summaries(ctx, ids)
	if err != nil {
		return err
	}
	var (
		assignments map[string]AssignmentSummary
		polls       map[string]PollSummary
	)
	if s.assignments != nil && len(assignmentIDs) > 0 {
		if assignments, err = s.assignments.AssignmentSummaries(ctx, assignmentIDs); err != nil {
			return err
		}
	}
	if s.polls != nil && len(pollIDs) > 0 {
		if polls, err = s.polls.PollSummaries(ctx, pollIDs); err != nil {
			return err
		}
	}
	for i := range msgs {
		msgs[i].Sender = sums[msgs[i].SenderID]
		if a, ok := assignments[msgs[i].AssignmentID]; ok {
			msgs[i].Assignment = &a
		}
		if p, ok := polls[msgs[i].PollID]; ok {
			msgs[i].Poll = &p
		}
		msgs[i].Preview = Preview(msgs[i])
	}
	return nil
}
