package assignment

import (
	"context"
	"sort"
	"sync"
)

type submissionKey struct{ assignmentID, studentID string }

// MemoryRepository keeps assignments in process memory. The same invariants
// as the Postgres schema are checked under one lock.
type MemoryRepository struct {
	mu          sync.RWMutex
	assignments map[string]Assignment
	submissions map[string]Submission
	byStudent   map[submissionKey]string
}

// NewMemoryRepository creates an empty repo.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		assignments: map[string]Assignment{},
		submissions: map[string]Submission{},
		byStudent:   map[submissionKey]string{},
	}
}

func (r *MemoryRepository) Create(_ context.Context, a Assignment) (Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments[a.ID] = a
	return a, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assignments[id]
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepository) ListByGroup(_ context.Context, groupID string) ([]Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Assignment
	for _, a := range r.assignments {
		if a.GroupID == groupID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) CountByGroup(_ context.Context, groupID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.assignments {
		if a.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Submissions(_ context.Context, assignmentID string) ([]Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Submission
	for _, s := range r.submissions {
		if s.AssignmentID == assignmentID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (r *MemoryRepository) GetSubmission(_ context.Context, assignmentID, submissionID string) (Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.submissions[submissionID]
	if !ok || s.AssignmentID != assignmentID {
		return Submission{}, ErrSubmissionNotFound
	}
	return s, nil
}

func (r *MemoryRepository) HasSubmission(_ context.Context, assignmentID, studentID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byStudent[submissionKey{assignmentID, studentID}]
	return ok, nil
}

func (r *MemoryRepository) AddSubmission(_ context.Context, s Submission) (Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[s.AssignmentID]; !ok {
		return Submission{}, ErrNotFound
	}
	key := submissionKey{s.AssignmentID, s.StudentID}
	if _, ok := r.byStudent[key]; ok {
		return Submission{}, ErrAlreadySubmitted
	}
	s.Grade, s.Feedback, s.Graded, s.GradedAt, s.GradedByID = 0, "", false, nil, ""
	r.submissions[s.ID] = s
	r.byStudent[key] = s.ID
	return s, nil
}

func (r *MemoryRepository) Grade(_ context.Context, u GradeUpdate) (Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[u.SubmissionID]
	if !ok || s.AssignmentID != u.AssignmentID {
		return Submission{}, ErrSubmissionNotFound
	}
	a := r.assignments[u.AssignmentID]
	if u.Grade < 0 || u.Grade > float64(a.MaxMarks) {
		return Submission{}, GradeRangeError(a.MaxMarks)
	}
	at := u.GradedAt
	s.Grade, s.Feedback, s.Graded, s.GradedAt, s.GradedByID = u.Grade, u.Feedback, true, &at, u.GradedBy
	r.submissions[s.ID] = s
	return s, nil
}
