package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/assignment"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/group"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/message"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/poll"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/relay"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/upload"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

type probe bool

func (p probe) Healthy(context.Context) bool { return bool(p) }

type fixture struct {
	t      *testing.T
	router *gin.Engine
	users  *user.Service
	issuer *auth.Issuer
	deps   Deps
}

func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer := auth.NewIssuer("test", "secret", time.Hour, 2*time.Hour)
	users := user.NewService(user.NewMemoryRepository(), issuer, nil, user.WithBcryptCost(bcrypt.MinCost))
	groups := group.NewService(group.NewMemoryRepository(), users, nil)
	hub := relay.NewHub(groups, nil)
	files, err := upload.NewLocalStore(t.TempDir(), 1<<20, nil, nil)
	require.NoError(t, err)
	messages := message.NewService(message.NewMemoryRepository(), groups, users, files, nil, message.WithPublisher(hub))
	assignments := assignment.NewService(assignment.NewMemoryRepository(), groups, users, files, messages, nil)
	polls := poll.NewService(poll.NewMemoryRepository(), groups, users, messages, nil)
	groups.AttachCounters(messages, assignments, polls)
	messages.AttachReferences(assignments, polls)

	deps := Deps{
		Users:       users,
		Groups:      groups,
		Messages:    messages,
		Assignments: assignments,
		Polls:       polls,
		Hub:         hub,
		Issuer:      issuer,
		Files:       files,
		Env:         "test",
		CORSOrigin:  "*",
	}
	for _, m := range mutate {
		m(&deps)
	}
	return &fixture{t: t, router: NewRouter(deps), users: users, issuer: issuer, deps: deps}
}

// account provisions an approved user and returns its access token.
func (f *fixture) account(in user.RegisterInput) (string, user.User) {
	f.t.Helper()
	in.Password = "secret1"
	u, err := f.users.Provision(context.Background(), in, true)
	require.NoError(f.t, err)
	tokens, err := f.issuer.Issue(u.ID, u.Role)
	require.NoError(f.t, err)
	return tokens.AccessToken, u
}

func (f *fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(f.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) multipart(path, token string, fields map[string]string, fileField string, files map[string][]byte) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(f.t, mw.WriteField(k, v))
	}
	for name, content := range files {
		part, err := mw.CreateFormFile(fileField, name)
		require.NoError(f.t, err)
		_, err = part.Write(content)
		require.NoError(f.t, err)
	}
	require.NoError(f.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["error"]
}

// classroom creates a faculty-run group with one student member.
func (f *fixture) classroom() (faculty, student, outsider, groupID string) {
	faculty, _ = f.account(user.RegisterInput{Name: "Dr. Rao", Email: "rao@college.edu", Role: auth.RoleFaculty, Subject: "DBMS"})
	student, alice := f.account(user.RegisterInput{Name: "Alice", Email: "alice@college.edu", Role: auth.RoleStudent, RegdNo: "21BCA01", Batch: "2021", Semester: "5"})
	outsider, _ = f.account(user.RegisterInput{Name: "Zed", Email: "zed@college.edu", Role: auth.RoleStudent, RegdNo: "21BCA99", Batch: "2021", Semester: "5"})

	w := f.do(http.MethodPost, "/api/groups", faculty, gin.H{"name": "DBMS", "subject": "DBMS", "batch": "2021", "semester": "5"})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	groupID = decode[group.View](f.t, w).ID

	w = f.do(http.MethodPost, "/api/groups/"+groupID+"/members", faculty, gin.H{"userId": alice.ID})
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())
	return faculty, student, outsider, groupID
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "memory", body["database"])

	f = newFixture(t, func(d *Deps) { d.Store = probe(false); d.Redis = probe(true) })
	w = f.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body = decode[map[string]string](t, w)
	assert.Equal(t, "Disconnected", body["database"])
	assert.Equal(t, "Connected", body["redis"])
}

func TestRegistrationNeedsApproval(t *testing.T) {
	f := newFixture(t)
	admin, _ := f.account(user.RegisterInput{Name: "Admin", Email: "admin@college.edu", Role: auth.RoleAdmin})

	w := f.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Bob", "email": "bob@college.edu", "password": "secret1",
		"role": "student", "regdno": "21BCA02", "batch": "2021", "semester": "5",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bob := decode[struct {
		User user.User `json:"user"`
	}](t, w).User

	login := gin.H{"email": "bob@college.edu", "password": "secret1"}
	w = f.do(http.MethodPost, "/api/auth/login", "", login)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Account pending approval", errorOf(t, w))

	w = f.do(http.MethodGet, "/api/auth/pending", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]user.User](t, w), 1)

	w = f.do(http.MethodPut, "/api/auth/approve/"+bob.ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/auth/login", "", login)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	session := decode[user.Session](t, w)
	assert.NotEmpty(t, session.Tokens.AccessToken)

	w = f.do(http.MethodGet, "/api/auth/me", session.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, bob.ID, decode[user.User](t, w).ID)

	w = f.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Bob", "email": "bob@college.edu", "password": "secret1",
		"role": "student", "regdno": "21BCA02", "batch": "2021", "semester": "5",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already registered", errorOf(t, w))
}

func TestRoutesRequireAuthAndRoles(t *testing.T) {
	f := newFixture(t)
	_, student, _, _ := f.classroom()

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/groups", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/groups", "garbage", nil).Code)

	w := f.do(http.MethodPost, "/api/groups", student, gin.H{"name": "Mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied", errorOf(t, w))
}

func TestMessagesFlow(t *testing.T) {
	f := newFixture(t)
	faculty, student, outsider, groupID := f.classroom()

	for _, text := range []string{"one", "two", "three"} {
		w := f.do(http.MethodPost, "/api/messages", student, gin.H{"groupId": groupID, "content": text})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := f.do(http.MethodGet, "/api/messages/group/"+groupID+"?page=1&limit=2", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[[]message.Message](t, w)
	require.Len(t, page, 2)
	assert.Equal(t, "two", page[0].Content)
	assert.Equal(t, "three", page[1].Content)

	w = f.do(http.MethodGet, "/api/messages/group/"+groupID, outsider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You are not a member of this group", errorOf(t, w))

	id := page[1].ID
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/messages/"+id+"/read", faculty, nil).Code)
	}
	w = f.do(http.MethodGet, "/api/messages/group/"+groupID+"?limit=1", faculty, nil)
	assert.Len(t, decode[[]message.Message](t, w)[0].ReadBy, 1)

	w = f.do(http.MethodPost, "/api/messages", student, gin.H{"groupId": groupID, "content": "x", "type": "sticker"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/messages/"+id, faculty, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/messages/"+id, faculty, nil).Code)
}

func TestUploadedFilesAreServedWithMIMEType(t *testing.T) {
	f := newFixture(t)
	_, student, _, groupID := f.classroom()

	w := f.multipart("/api/messages", student, map[string]string{"groupId": groupID}, "file", map[string][]byte{"Diagram.PNG": []byte("png-bytes")})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	m := decode[message.Message](t, w)
	assert.Equal(t, message.KindImage, m.Type)
	assert.Equal(t, "Diagram.PNG", m.Content)
	require.NotNil(t, m.File)

	w = f.do(http.MethodGet, m.File.FileURL, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", w.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/uploads/../../etc/passwd", "", nil).Code)
}

func TestAssignmentFlow(t *testing.T) {
	f := newFixture(t)
	faculty, student, _, groupID := f.classroom()

	w := f.multipart("/api/assignments", faculty, map[string]string{
		"groupId":     groupID,
		"title":       "ER diagrams",
		"description": "Model the library database",
		"deadline":    time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
	}, "attachments", map[string][]byte{"brief.pdf": []byte("%PDF")})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	a := decode[assignment.Assignment](t, w)
	assert.Equal(t, assignment.DefaultMaxMarks, a.MaxMarks)
	assert.Len(t, a.Attachments, 1)

	w = f.do(http.MethodGet, "/api/messages/group/"+groupID, student, nil)
	msgs := decode[[]message.Message](t, w)
	require.NotEmpty(t, msgs)
	assert.Equal(t, message.KindAssignment, msgs[len(msgs)-1].Type)
	assert.Equal(t, a.ID, msgs[len(msgs)-1].AssignmentID)
	require.NotNil(t, msgs[len(msgs)-1].Assignment)
	assert.Equal(t, "ER diagrams", msgs[len(msgs)-1].Assignment.Title)
	assert.Equal(t, assignment.DefaultMaxMarks, msgs[len(msgs)-1].Assignment.MaxMarks)

	w = f.multipart("/api/assignments/"+a.ID+"/submit", student, nil, "files", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No files provided for submission", errorOf(t, w))

	w = f.multipart("/api/assignments/"+a.ID+"/submit", student, nil, "files", map[string][]byte{"er.pdf": []byte("diagram")})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sub := decode[struct {
		Submission assignment.Submission `json:"submission"`
	}](t, w).Submission

	w = f.multipart("/api/assignments/"+a.ID+"/submit", student, nil, "files", map[string][]byte{"er2.pdf": []byte("again")})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Assignment already submitted", errorOf(t, w))

	gradePath := "/api/assignments/" + a.ID + "/submissions/" + sub.ID + "/grade"
	w = f.do(http.MethodPost, gradePath, faculty, gin.H{"grade": 101})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Grade must be between 0 and 100", errorOf(t, w))

	w = f.do(http.MethodPost, gradePath, faculty, gin.H{"feedback": "missing grade"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, gradePath, student, gin.H{"grade": 100})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, gradePath, faculty, gin.H{"grade": 87.5, "feedback": "Good"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodGet, "/api/assignments/"+a.ID, faculty, nil)
	got := decode[assignment.Assignment](t, w)
	assert.Equal(t, 1, got.SubmissionCount)
	assert.Equal(t, 1, got.GradedCount)
	assert.InDelta(t, 87.5, got.AverageGrade, 0.001)

	w = f.do(http.MethodGet, "/api/assignments/"+a.ID+"/gradesheet", faculty, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sheet := decode[assignment.GradeSheet](t, w)
	assert.Equal(t, 1, sheet.GradedSubmissions)

	w = f.do(http.MethodPost, "/api/assignments/"+a.ID+"/submissions/nope/grade", faculty, gin.H{"grade": 50})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Submission not found", errorOf(t, w))
}

func TestCreateAssignmentRejectsBadDeadline(t *testing.T) {
	f := newFixture(t)
	faculty, _, _, groupID := f.classroom()
	w := f.do(http.MethodPost, "/api/assignments", faculty, gin.H{
		"groupId": groupID, "title": "T", "description": "D", "deadline": "next week",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPollFlow(t *testing.T) {
	f := newFixture(t)
	faculty, student, _, groupID := f.classroom()

	w := f.do(http.MethodPost, "/api/polls", faculty, gin.H{"groupId": groupID, "question": "Lab slot?", "options": []string{"Mon"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/polls", faculty, gin.H{"groupId": groupID, "question": "Lab slot?", "options": []string{"Mon", "Wed"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decode[poll.Poll](t, w)

	w = f.do(http.MethodPost, "/api/polls/"+p.ID+"/vote", student, gin.H{"optionIndex": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid option", errorOf(t, w))

	w = f.do(http.MethodPost, "/api/polls/"+p.ID+"/vote", student, gin.H{"optionIndex": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	voted := decode[poll.Poll](t, w)
	assert.Equal(t, 1, voted.TotalVotes)
	assert.InDelta(t, 100, voted.Options[1].Percentage, 0.001)
	assert.InDelta(t, 0, voted.Options[0].Percentage, 0.001)

	w = f.do(http.MethodPost, "/api/polls/"+p.ID+"/vote", student, gin.H{"optionIndex": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/polls/"+p.ID+"/vote", faculty, gin.H{"optionIndex": 0})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodGet, "/api/polls/group/"+groupID, student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]poll.Poll](t, w), 1)
}

func TestGroupMembership(t *testing.T) {
	f := newFixture(t)
	faculty, _, _, groupID := f.classroom()
	_, bob := f.account(user.RegisterInput{Name: "Bob", Email: "bob@college.edu", Role: auth.RoleStudent, RegdNo: "21BCA02", Batch: "2021", Semester: "5"})

	w := f.do(http.MethodGet, "/api/groups/"+groupID+"/available-students", faculty, nil)
	require.Equal(t, http.StatusOK, w.Code)
	available := decode[[]user.Summary](t, w)
	ids := make([]string, 0, len(available))
	for _, s := range available {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, bob.ID)

	w = f.do(http.MethodPost, "/api/groups/"+groupID+"/members", faculty, gin.H{"userId": bob.ID})
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodPost, "/api/groups/"+groupID+"/members", faculty, gin.H{"userId": bob.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[group.View](t, w).Members, 3)

	view := decode[group.View](t, f.do(http.MethodGet, "/api/groups/"+groupID, faculty, nil))
	w = f.do(http.MethodDelete, "/api/groups/"+groupID+"/members/"+view.CreatedBy, faculty, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot remove the group creator", errorOf(t, w))

	w = f.do(http.MethodDelete, "/api/groups/"+groupID+"/members/"+bob.ID, faculty, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodDelete, "/api/groups/"+groupID+"/members/"+bob.ID, faculty, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParseDeadline(t *testing.T) {
	for _, in := range []string{"2024-10-01T17:00:00Z", "2024-10-01T17:00", "2024-10-01 17:00"} {
		got, err := parseDeadline(in)
		require.NoError(t, err, in)
		assert.Equal(t, time.Date(2024, 10, 1, 17, 0, 0, 0, time.UTC), got.UTC())
	}
	_, err := parseDeadline("tomorrow")
	assert.Error(t, err)
}
