package assignment

import (
	"context"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/group"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/message"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/upload"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

var start = time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type env struct {
	svc      *Service
	messages *message.Service
	clock    *fakeClock
	groupID  string
	faculty  auth.Actor
	alice    auth.Actor
	bob      auth.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	clock := &fakeClock{t: start}

	users := user.NewService(user.NewMemoryRepository(), auth.NewIssuer("t", "k", time.Hour, time.Hour), nil, user.WithBcryptCost(bcrypt.MinCost))
	groups := group.NewService(group.NewMemoryRepository(), users, nil, group.WithClock(clock.Now))
	files, err := upload.NewLocalStore(t.TempDir(), 1<<20, nil, nil)
	require.NoError(t, err)
	msgs := message.NewService(message.NewMemoryRepository(), groups, users, files, nil, message.WithClock(clock.Now))

	e := &env{
		svc:      NewService(NewMemoryRepository(), groups, users, files, msgs, nil, WithClock(clock.Now)),
		messages: msgs,
		clock:    clock,
	}
	provision := func(in user.RegisterInput) auth.Actor {
		in.Password = "secret1"
		u, err := users.Provision(ctx, in, true)
		require.NoError(t, err)
		return auth.Actor{ID: u.ID, Role: u.Role}
	}
	e.faculty = provision(user.RegisterInput{Name: "Dr. Rao", Email: "rao@college.edu", Role: auth.RoleFaculty, Subject: "Networks"})
	e.alice = provision(user.RegisterInput{Name: "Alice", Email: "alice@college.edu", Role: auth.RoleStudent, RegdNo: "21BCA01", Batch: "2021", Semester: "5"})
	e.bob = provision(user.RegisterInput{Name: "Bob", Email: "bob@college.edu", Role: auth.RoleStudent, RegdNo: "21BCA02", Batch: "2021", Semester: "5"})

	g, err := groups.Create(ctx, e.faculty, group.CreateInput{Name: "Networks", Subject: "Networks", Batch: "2021", Semester: "5"})
	require.NoError(t, err)
	for _, st := range []auth.Actor{e.alice, e.bob} {
		_, err = groups.AddMember(ctx, e.faculty, g.ID, st.ID)
		require.NoError(t, err)
	}
	e.groupID = g.ID
	return e
}

func (e *env) create(t *testing.T, maxMarks int) Assignment {
	t.Helper()
	a, err := e.svc.Create(context.Background(), e.faculty, CreateInput{
		GroupID:     e.groupID,
		Title:       "Subnetting",
		Description: "Solve the worksheet",
		Deadline:    start.Add(48 * time.Hour),
		MaxMarks:    maxMarks,
	}, nil)
	require.NoError(t, err)
	return a
}

func files(t *testing.T, names ...string) []*multipart.FileHeader {
	t.Helper()
	content := map[string][]byte{}
	for _, n := range names {
		content[n] = []byte("answer")
	}
	fhs, err := upload.NewFileHeaders("files", content)
	require.NoError(t, err)
	return fhs
}

func TestCreateDefaultsAndAnnounces(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.create(t, 0)
	assert.Equal(t, DefaultMaxMarks, a.MaxMarks)
	assert.Equal(t, StatusOpen, a.Status)
	assert.Equal(t, "Dr. Rao", a.CreatedBy.Name)
	assert.Empty(t, a.Attachments)

	timeline, err := e.messages.List(ctx, e.alice, e.groupID, 1, 50)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, message.KindAssignment, timeline[0].Type)
	assert.Equal(t, a.ID, timeline[0].AssignmentID)
	assert.Equal(t, "Assignment: Subnetting", timeline[0].Content)
}

func TestTimelineCarriesAssignmentSummary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.messages.AttachReferences(e.svc, nil)

	a := e.create(t, 25)
	timeline, err := e.messages.List(ctx, e.bob, e.groupID, 1, 50)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	require.NotNil(t, timeline[0].Assignment)
	assert.Equal(t, message.AssignmentSummary{ID: a.ID, Title: "Subnetting", Deadline: a.Deadline, MaxMarks: 25}, *timeline[0].Assignment)

	sums, err := e.svc.AssignmentSummaries(ctx, []string{a.ID, "missing", a.ID})
	require.NoError(t, err)
	assert.Len(t, sums, 1)
	assert.Equal(t, "Subnetting", sums[a.ID].Title)
}

func TestCreateValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	base := CreateInput{GroupID: e.groupID, Title: "T", Description: "D", Deadline: start.Add(time.Hour)}

	_, err := e.svc.Create(ctx, e.alice, base, nil)
	assert.ErrorIs(t, err, ErrNotPrivileged)

	in := base
	in.Title = " "
	_, err = e.svc.Create(ctx, e.faculty, in, nil)
	assert.Equal(t, "Title and description are required", apperr.Message(err))

	in = base
	in.MaxMarks = -5
	_, err = e.svc.Create(ctx, e.faculty, in, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	in = base
	in.GroupID = "missing"
	_, err = e.svc.Create(ctx, e.faculty, in, nil)
	assert.ErrorIs(t, err, group.ErrNotFound)
}

func TestSubmitPreconditionOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, 50)

	_, err := e.svc.Submit(ctx, e.alice, "missing", files(t, "a.pdf"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.svc.Submit(ctx, e.faculty, a.ID, files(t, "a.pdf"))
	assert.ErrorIs(t, err, ErrStudentsOnly)

	_, err = e.svc.Submit(ctx, e.alice, a.ID, nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	sub, err := e.svc.Submit(ctx, e.alice, a.ID, files(t, "answer.pdf", "diagram.png"))
	require.NoError(t, err)
	assert.Equal(t, "Alice", sub.Student.Name)
	assert.Len(t, sub.Files, 2)
	assert.Zero(t, sub.Grade)
	assert.False(t, sub.Graded)
	assert.Empty(t, sub.Feedback)

	_, err = e.svc.Submit(ctx, e.alice, a.ID, files(t, "again.pdf"))
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, "Assignment already submitted", apperr.Message(err))

	_, err = e.svc.Submit(ctx, e.alice, a.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadySubmitted, "duplicate check precedes the file check")
}

func TestSubmitAfterDeadline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, 50)

	e.clock.Set(a.Deadline)
	_, err := e.svc.Submit(ctx, e.bob, a.ID, files(t, "late.pdf"))
	assert.ErrorIs(t, err, ErrDeadlinePassed, "deadline is exclusive")

	e.clock.Set(a.Deadline.Add(time.Minute))
	_, err = e.svc.Submit(ctx, e.bob, a.ID, nil)
	assert.ErrorIs(t, err, ErrDeadlinePassed, "deadline is checked before files")

	got, err := e.svc.Get(ctx, e.faculty, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, got.Status)
	assert.Zero(t, got.SubmissionCount)
}

func TestGradeBounds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, 50)
	sub, err := e.svc.Submit(ctx, e.alice, a.ID, files(t, "answer.pdf"))
	require.NoError(t, err)

	_, err = e.svc.Grade(ctx, e.faculty, a.ID, sub.ID, 75, "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, apperr.Message(err), "50")

	_, err = e.svc.Grade(ctx, e.faculty, a.ID, sub.ID, -1, "")
	assert.Contains(t, apperr.Message(err), "between 0 and 50")

	_, err = e.svc.Grade(ctx, e.faculty, a.ID, "missing", 10, "")
	assert.ErrorIs(t, err, ErrSubmissionNotFound)

	_, err = e.svc.Grade(ctx, e.alice, a.ID, sub.ID, 10, "")
	assert.ErrorIs(t, err, ErrNotPrivileged)

	e.clock.Set(start.Add(time.Hour))
	graded, err := e.svc.Grade(ctx, e.faculty, a.ID, sub.ID, 40, " Good work ")
	require.NoError(t, err)
	assert.True(t, graded.Graded)
	assert.Equal(t, 40.0, graded.Grade)
	assert.Equal(t, "Good work", graded.Feedback)
	require.NotNil(t, graded.GradedAt)
	assert.Equal(t, start.Add(time.Hour), *graded.GradedAt)
	assert.Equal(t, e.faculty.ID, graded.GradedByID)

	graded, err = e.svc.Grade(ctx, e.faculty, a.ID, sub.ID, 50, "")
	require.NoError(t, err, "maxMarks itself is a valid grade")
	assert.Equal(t, 50.0, graded.Grade)
}

func TestRepositoryEnforcesGradeBound(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_, err := repo.Create(ctx, Assignment{ID: "a1", MaxMarks: 10})
	require.NoError(t, err)
	_, err = repo.AddSubmission(ctx, Submission{ID: "s1", AssignmentID: "a1", StudentID: "st"})
	require.NoError(t, err)

	_, err = repo.Grade(ctx, GradeUpdate{AssignmentID: "a1", SubmissionID: "s1", Grade: 11})
	assert.Equal(t, "Grade must be between 0 and 10", apperr.Message(err))

	_, err = repo.AddSubmission(ctx, Submission{ID: "s2", AssignmentID: "a1", StudentID: "st"})
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestConcurrentSubmissionsKeepOnePerStudent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, 50)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	batches := make([][]*multipart.FileHeader, 8)
	for i := range batches {
		batches[i] = files(t, "a.pdf")
	}
	for _, batch := range batches {
		wg.Add(1)
		go func(batch []*multipart.FileHeader) {
			defer wg.Done()
			if _, err := e.svc.Submit(ctx, e.alice, a.ID, batch); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(batch)
	}
	wg.Wait()
	assert.Equal(t, 1, success)

	got, err := e.svc.Get(ctx, e.faculty, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SubmissionCount)
}

func TestStatsAndGradeSheet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, 50)

	subA, err := e.svc.Submit(ctx, e.alice, a.ID, files(t, "a1.pdf", "a2.pdf"))
	require.NoError(t, err)
	_, err = e.svc.Submit(ctx, e.bob, a.ID, files(t, "b.pdf"))
	require.NoError(t, err)

	got, err := e.svc.Get(ctx, e.faculty, a.ID)
	require.NoError(t, err)
	assert.Equal(t, Stats{SubmissionCount: 2}, got.Stats)

	_, err = e.svc.Grade(ctx, e.faculty, a.ID, subA.ID, 33.333, "ok")
	require.NoError(t, err)

	got, err = e.svc.Get(ctx, e.faculty, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SubmissionCount)
	assert.Equal(t, 1, got.GradedCount)
	assert.Equal(t, 33.33, got.AverageGrade)
	assert.Len(t, got.Submissions, 2)

	own, err := e.svc.Get(ctx, e.bob, a.ID)
	require.NoError(t, err)
	require.Len(t, own.Submissions, 1)
	assert.Equal(t, "Bob", own.Submissions[0].Student.Name)
	assert.Equal(t, 2, own.SubmissionCount)

	sheet, err := e.svc.GradeSheet(ctx, e.faculty, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Subnetting", sheet.AssignmentTitle)
	assert.Equal(t, "Networks", sheet.Subject)
	assert.Equal(t, "2021", sheet.Batch)
	assert.Equal(t, 50, sheet.MaxMarks)
	assert.Equal(t, 2, sheet.TotalSubmissions)
	assert.Equal(t, 1, sheet.GradedSubmissions)
	require.Len(t, sheet.Submissions, 2)
	byName := map[string]GradeSheetLine{}
	for _, line := range sheet.Submissions {
		byName[line.StudentName] = line
	}
	assert.Equal(t, "21BCA01", byName["Alice"].RegdNo)
	assert.Equal(t, 2, byName["Alice"].FilesCount)
	assert.True(t, byName["Alice"].Graded)
	assert.False(t, byName["Bob"].Graded)

	_, err = e.svc.GradeSheet(ctx, e.alice, a.ID)
	assert.ErrorIs(t, err, ErrNotPrivileged)

	list, err := e.svc.ListByGroup(ctx, e.alice, e.groupID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Submissions)
	assert.Equal(t, 1, list[0].GradedCount)
}

func TestComputeStats(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil))
	assert.Equal(t, Stats{SubmissionCount: 2}, ComputeStats([]Submission{{}, {}}))
	assert.Equal(t, Stats{SubmissionCount: 3, GradedCount: 3, AverageGrade: 6.67},
		ComputeStats([]Submission{{Graded: true, Grade: 5}, {Graded: true, Grade: 7}, {Graded: true, Grade: 8}}))
}
