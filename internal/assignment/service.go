package assignment

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/group"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/message"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/metrics"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/upload"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

// Groups checks access and exposes group metadata for grade sheets.
type Groups interface {
	CanAccess(ctx context.Context, groupID string, actor auth.Actor) error
	Lookup(ctx context.Context, id string) (group.Group, error)
}

// Directory resolves user references.
type Directory interface {
	Summaries(ctx context.Context, ids []string) (map[string]user.Summary, error)
}

// Timeline posts the chat entry that announces a new assignment.
type Timeline interface {
	PostAssignment(ctx context.Context, groupID, senderID, assignmentID, title string) (message.Message, error)
}

// Service implements the assignment lifecycle.
type Service struct {
	repo     Repository
	groups   Groups
	dir      Directory
	files    upload.Store
	timeline Timeline
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, groups Groups, dir Directory, files upload.Store, timeline Timeline, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, groups: groups, dir: dir, files: files, timeline: timeline, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create posts an assignment to a group and announces it in the group chat.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput, attachments []*multipart.FileHeader) (Assignment, error) {
	if !actor.Privileged() {
		return Assignment{}, ErrNotPrivileged
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	switch {
	case in.Title == "" || in.Description == "":
		return Assignment{}, apperr.Validation("Title and description are required")
	case in.Deadline.IsZero():
		return Assignment{}, apperr.Validation("Deadline is required")
	case in.MaxMarks < 0:
		return Assignment{}, apperr.Validation("Max marks must be at least 1")
	}
	if in.MaxMarks == 0 {
		in.MaxMarks = DefaultMaxMarks
	}
	if err := s.groups.CanAccess(ctx, in.GroupID, actor); err != nil {
		return Assignment{}, err
	}

	files, err := upload.SaveAll(ctx, s.files, attachments, upload.PurposeAssignments)
	if err != nil {
		return Assignment{}, err
	}
	now := s.now().UTC()
	a, err := s.repo.Create(ctx, Assignment{
		ID:          uuid.NewString(),
		GroupID:     in.GroupID,
		CreatedByID: actor.ID,
		Title:       in.Title,
		Description: in.Description,
		Deadline:    in.Deadline.UTC(),
		MaxMarks:    in.MaxMarks,
		Attachments: files,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Assignment{}, err
	}

	// The assignment and its chat entry are separate writes.
	if _, err := s.timeline.PostAssignment(ctx, a.GroupID, actor.ID, a.ID, a.Title); err != nil {
		s.logger.Warn("assignment announcement failed", "assignment_id", a.ID, "error", err)
	}
	metrics.Record("assignment_created")
	s.logger.Info("assignment created", "assignment_id", a.ID, "group_id", a.GroupID, "by", actor.ID)
	return s.decorate(ctx, actor, a, nil)
}

// ListByGroup returns a group's assignments newest first, with stats.
func (s *Service) ListByGroup(ctx context.Context, actor auth.Actor, groupID string) ([]Assignment, error) {
	if err := s.groups.CanAccess(ctx, groupID, actor); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	out := make([]Assignment, 0, len(list))
	for _, a := range list {
		subs, err := s.repo.Submissions(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		d, err := s.decorate(ctx, actor, a, subs)
		if err != nil {
			return nil, err
		}
		d.Submissions = nil
		out = append(out, d)
	}
	return out, nil
}

// Get returns an assignment with submissions. Students only see their own.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (Assignment, error) {
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return Assignment{}, err
	}
	subs, err := s.repo.Submissions(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	return s.decorate(ctx, actor, a, subs)
}

// AssignmentSummaries resolves assignment references for the message
// timeline. Ids that no longer exist are skipped.
func (s *Service) AssignmentSummaries(ctx context.Context, ids []string) (map[string]message.AssignmentSummary, error) {
	out := make(map[string]message.AssignmentSummary, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		a, err := s.repo.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = message.AssignmentSummary{ID: a.ID, Title: a.Title, Deadline: a.Deadline, MaxMarks: a.MaxMarks}
	}
	return out, nil
}

// Submit records a student's files. Checks run in order: the assignment
// exists, the deadline has not passed, the student has not submitted, and at
// least one file is attached.
func (s *Service) Submit(ctx context.Context, actor auth.Actor, assignmentID string, files []*multipart.FileHeader) (Submission, error) {
	if actor.Role != auth.RoleStudent {
		return Submission{}, ErrStudentsOnly
	}
	a, err := s.load(ctx, actor, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	now := s.now().UTC()
	if a.StatusAt(now) == StatusClosed {
		return Submission{}, ErrDeadlinePassed
	}
	exists, err := s.repo.HasSubmission(ctx, assignmentID, actor.ID)
	if err != nil {
		return Submission{}, err
	}
	if exists {
		return Submission{}, ErrAlreadySubmitted
	}
	if len(files) == 0 {
		return Submission{}, ErrNoFiles
	}

	stored, err := upload.SaveAll(ctx, s.files, files, upload.PurposeSubmissions)
	if err != nil {
		return Submission{}, err
	}
	sub, err := s.repo.AddSubmission(ctx, Submission{
		ID:           uuid.NewString(),
		AssignmentID: assignmentID,
		StudentID:    actor.ID,
		SubmittedAt:  now,
		Files:        stored,
	})
	if err != nil {
		return Submission{}, err
	}
	metrics.Record("assignment_submitted")
	s.logger.Info("assignment submitted", "assignment_id", assignmentID, "student_id", actor.ID, "files", len(stored))
	return s.populateOne(ctx, sub)
}

// Grade sets the grade and feedback of a submission.
func (s *Service) Grade(ctx context.Context, actor auth.Actor, assignmentID, submissionID string, grade float64, feedback string) (Submission, error) {
	if !actor.Privileged() {
		return Submission{}, ErrNotPrivileged
	}
	a, err := s.load(ctx, actor, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if _, err := s.repo.GetSubmission(ctx, assignmentID, submissionID); err != nil {
		return Submission{}, err
	}
	if math.IsNaN(grade) || grade < 0 || grade > float64(a.MaxMarks) {
		return Submission{}, GradeRangeError(a.MaxMarks)
	}
	sub, err := s.repo.Grade(ctx, GradeUpdate{
		AssignmentID: assignmentID,
		SubmissionID: submissionID,
		Grade:        grade,
		Feedback:     strings.TrimSpace(feedback),
		GradedBy:     actor.ID,
		GradedAt:     s.now().UTC(),
	})
	if err != nil {
		return Submission{}, err
	}
	metrics.Record("submission_graded")
	s.logger.Info("submission graded", "assignment_id", assignmentID, "submission_id", submissionID, "by", actor.ID)
	return s.populateOne(ctx, sub)
}

// GradeSheet returns the grading projection of an assignment.
func (s *Service) GradeSheet(ctx context.Context, actor auth.Actor, id string) (GradeSheet, error) {
	if !actor.Privileged() {
		return GradeSheet{}, ErrNotPrivileged
	}
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return GradeSheet{}, err
	}
	g, err := s.groups.Lookup(ctx, a.GroupID)
	if err != nil {
		return GradeSheet{}, err
	}
	subs, err := s.repo.Submissions(ctx, id)
	if err != nil {
		return GradeSheet{}, err
	}
	if err := s.populate(ctx, subs); err != nil {
		return GradeSheet{}, err
	}
	stats := ComputeStats(subs)
	sheet := GradeSheet{
		AssignmentTitle:   a.Title,
		Subject:           g.Subject,
		Batch:             g.Batch,
		Semester:          g.Semester,
		MaxMarks:          a.MaxMarks,
		Deadline:          a.Deadline,
		CreatedAt:         a.CreatedAt,
		TotalSubmissions:  stats.SubmissionCount,
		GradedSubmissions: stats.GradedCount,
		AverageGrade:      stats.AverageGrade,
		Submissions:       make([]GradeSheetLine, 0, len(subs)),
	}
	for _, sub := range subs {
		sheet.Submissions = append(sheet.Submissions, GradeSheetLine{
			StudentName: sub.Student.Name,
			RegdNo:      sub.Student.RegdNo,
			Email:       sub.Student.Email,
			SubmittedAt: sub.SubmittedAt,
			Grade:       sub.Grade,
			Feedback:    sub.Feedback,
			Graded:      sub.Graded,
			GradedAt:    sub.GradedAt,
			FilesCount:  len(sub.Files),
		})
	}
	return sheet, nil
}

// CountByGroup reports how many assignments a group holds.
func (s *Service) CountByGroup(ctx context.Context, groupID string) (int, error) {
	return s.repo.CountByGroup(ctx, groupID)
}

func (s *Service) load(ctx context.Context, actor auth.Actor, id string) (Assignment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if err := s.groups.CanAccess(ctx, a.GroupID, actor); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (s *Service) decorate(ctx context.Context, actor auth.Actor, a Assignment, subs []Submission) (Assignment, error) {
	a.Status = a.StatusAt(s.now())
	a.Stats = ComputeStats(subs)
	if a.Attachments == nil {
		a.Attachments = []upload.FileMeta{}
	}
	if !actor.Privileged() {
		own := subs[:0:0]
		for _, sub := range subs {
			if sub.StudentID == actor.ID {
				own = append(own, sub)
			}
		}
		subs = own
	}
	if err := s.populate(ctx, subs); err != nil {
		return Assignment{}, err
	}
	sums, err := s.dir.Summaries(ctx, []string{a.CreatedByID})
	if err != nil {
		return Assignment{}, err
	}
	a.CreatedBy = sums[a.CreatedByID]
	a.Submissions = subs
	return a, nil
}

func (s *Service) populate(ctx context.Context, subs []Submission) error {
	if len(subs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.StudentID)
	}
	sums, err := s.dir.Summaries(ctx, ids)
	if err != nil {
		return err
	}
	for i := range subs {
		subs[i].Student = sums[subs[i].StudentID]
	}
	return nil
}

func (s *Service) populateOne(ctx context.Context, sub Submission) (Submission, error) {
	out := []Submission{sub}
	if err := s.populate(ctx, out); err != nil {
		return Submission{}, err
	}
	return out[0], nil
}
