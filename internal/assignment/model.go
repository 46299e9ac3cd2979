package assignment

import (
	"math"
	"time"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/upload"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

// DefaultMaxMarks applies when an assignment is created without maxMarks.
const DefaultMaxMarks = 100

var (
	ErrNotFound           = apperr.NotFound("Assignment not found")
	ErrSubmissionNotFound = apperr.NotFound("Submission not found")
	ErrDeadlinePassed     = apperr.Validation("Assignment deadline has passed")
	ErrAlreadySubmitted   = apperr.Validation("Assignment already submitted")
	ErrNoFiles            = apperr.Validation("No files provided for submission")
	ErrStudentsOnly       = apperr.Forbidden("Only students can submit assignments")
	ErrNotPrivileged      = apperr.Forbidden("Only faculty, HOD or admin can manage assignments")
)

// Status is derived from the deadline.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Assignment is a task posted to a group.
type Assignment struct {
	ID          string            `json:"id"`
	GroupID     string            `json:"groupId"`
	CreatedByID string            `json:"-"`
	CreatedBy   user.Summary      `json:"createdBy"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Deadline    time.Time         `json:"deadline"`
	MaxMarks    int               `json:"maxMarks"`
	Attachments []upload.FileMeta `json:"attachments"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`

	Status      Status       `json:"status"`
	Submissions []Submission `json:"submissions,omitempty"`
	Stats
}

// Submission is one student's response to an assignment.
type Submission struct {
	ID           string            `json:"id"`
	AssignmentID string            `json:"assignmentId"`
	StudentID    string            `json:"-"`
	Student      user.Summary      `json:"student"`
	SubmittedAt  time.Time         `json:"submittedAt"`
	Files        []upload.FileMeta `json:"files"`
	Grade        float64           `json:"grade"`
	Feedback     string            `json:"feedback"`
	Graded       bool              `json:"graded"`
	GradedAt     *time.Time        `json:"gradedAt,omitempty"`
	GradedByID   string            `json:"gradedBy,omitempty"`
}

// GradeUpdate is the single mutation applied to a submission.
type GradeUpdate struct {
	AssignmentID string
	SubmissionID string
	Grade        float64
	Feedback     string
	GradedBy     string
	GradedAt     time.Time
}

// Stats are the derived aggregates of an assignment's submissions.
type Stats struct {
	SubmissionCount int     `json:"submissionCount"`
	GradedCount     int     `json:"gradedCount"`
	AverageGrade    float64 `json:"averageGrade"`
}

// ComputeStats derives counts and the mean grade of graded submissions,
// rounded to two decimals and 0 when nothing is graded.
func ComputeStats(subs []Submission) Stats {
	st := Stats{SubmissionCount: len(subs)}
	var sum float64
	for _, s := range subs {
		if s.Graded {
			st.GradedCount++
			sum += s.Grade
		}
	}
	if st.GradedCount > 0 {
		st.AverageGrade = round2(sum / float64(st.GradedCount))
	}
	return st
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// StatusAt reports whether submissions are accepted at now.
func (a Assignment) StatusAt(now time.Time) Status {
	if now.Before(a.Deadline) {
		return StatusOpen
	}
	return StatusClosed
}

// CreateInput carries the fields of a new assignment.
type CreateInput struct {
	GroupID     string
	Title       string
	Description string
	Deadline    time.Time
	MaxMarks    int
}

// GradeSheet is the read-only grading projection of an assignment.
type GradeSheet struct {
	AssignmentTitle   string           `json:"assignmentTitle"`
	Subject           string           `json:"subject"`
	Batch             string           `json:"batch"`
	Semester          string           `json:"semester"`
	MaxMarks          int              `json:"maxMarks"`
	Deadline          time.Time        `json:"deadline"`
	CreatedAt         time.Time        `json:"createdAt"`
	TotalSubmissions  int              `json:"totalSubmissions"`
	GradedSubmissions int              `json:"gradedSubmissions"`
	AverageGrade      float64          `json:"averageGrade"`
	Submissions       []GradeSheetLine `json:"submissions"`
}

// GradeSheetLine is one row of a grade sheet.
type GradeSheetLine struct {
	StudentName string     `json:"studentName"`
	RegdNo      string     `json:"regdno"`
	Email       string     `json:"email"`
	SubmittedAt time.Time  `json:"submittedAt"`
	Grade       float64    `json:"grade"`
	Feedback    string     `json:"feedback"`
	Graded      bool       `json:"graded"`
	GradedAt    *time.Time `json:"gradedAt,omitempty"`
	FilesCount  int        `json:"filesCount"`
}

// GradeRangeError is returned when a grade falls outside [0, maxMarks].
func GradeRangeError(maxMarks int) error {
	return apperr.Validationf("Grade must be between 0 and %d", maxMarks)
}
