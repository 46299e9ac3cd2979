package assignment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/store"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/upload"
)

// Repository persists assignments and their submissions. Submissions are
// child rows keyed by (assignment, student); the repository is the single
// place that enforces one submission per student and the grade bound.
type Repository interface {
	Create(ctx context.Context, a Assignment) (Assignment, error)
	Get(ctx context.Context, id string) (Assignment, error)
	ListByGroup(ctx context.Context, groupID string) ([]Assignment, error)
	CountByGroup(ctx context.Context, groupID string) (int, error)

	Submissions(ctx context.Context, assignmentID string) ([]Submission, error)
	GetSubmission(ctx context.Context, assignmentID, submissionID string) (Submission, error)
	HasSubmission(ctx context.Context, assignmentID, studentID string) (bool, error)
	// AddSubmission fails with ErrAlreadySubmitted when the student already has one.
	AddSubmission(ctx context.Context, s Submission) (Submission, error)
	// Grade applies u only when 0 <= u.Grade <= maxMarks of the parent assignment.
	Grade(ctx context.Context, u GradeUpdate) (Submission, error)
}

// PostgresRepository stores assignments in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const assignmentColumns = `id, group_id, created_by, title, description, deadline, max_marks, attachments, created_at, updated_at`

const submissionColumns = `s.id, s.assignment_id, s.student_id, s.submitted_at, s.files, s.grade, s.feedback,
	s.graded, s.graded_at, COALESCE(s.graded_by, '')`

func scanAssignment(row interface{ Scan(...any) error }) (Assignment, error) {
	var (
		a   Assignment
		raw []byte
	)
	if err := row.Scan(&a.ID, &a.GroupID, &a.CreatedByID, &a.Title, &a.Description, &a.Deadline,
		&a.MaxMarks, &raw, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Assignment{}, err
	}
	files, err := decodeFiles(raw)
	a.Attachments = files
	return a, err
}

func scanSubmission(row interface{ Scan(...any) error }) (Submission, error) {
	var (
		s        Submission
		raw      []byte
		gradedAt sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.AssignmentID, &s.StudentID, &s.SubmittedAt, &raw, &s.Grade, &s.Feedback,
		&s.Graded, &gradedAt, &s.GradedByID); err != nil {
		return Submission{}, err
	}
	if gradedAt.Valid {
		t := gradedAt.Time
		s.GradedAt = &t
	}
	files, err := decodeFiles(raw)
	s.Files = files
	return s, err
}

func decodeFiles(raw []byte) ([]upload.FileMeta, error) {
	files := []upload.FileMeta{}
	if len(raw) == 0 {
		return files, nil
	}
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("decode files: %w", err)
	}
	return files, nil
}

func encodeFiles(files []upload.FileMeta) ([]byte, error) {
	if files == nil {
		files = []upload.FileMeta{}
	}
	return json.Marshal(files)
}

func (r *PostgresRepository) Create(ctx context.Context, a Assignment) (Assignment, error) {
	attachments, err := encodeFiles(a.Attachments)
	if err != nil {
		return Assignment{}, err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.GroupID, a.CreatedByID, a.Title, a.Description, a.Deadline, a.MaxMarks, string(attachments), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return Assignment{}, fmt.Errorf("insert assignment: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Assignment, error) {
	a, err := scanAssignment(r.db.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, ErrNotFound
	}
	if err != nil {
		return Assignment{}, fmt.Errorf("select assignment: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) ListByGroup(ctx context.Context, groupID string) ([]Assignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE group_id = $1 ORDER BY created_at DESC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CountByGroup(ctx context.Context, groupID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments WHERE group_id = $1`, groupID).Scan(&n)
	return n, err
}

func (r *PostgresRepository) Submissions(ctx context.Context, assignmentID string) ([]Submission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions s
		WHERE s.assignment_id = $1 ORDER BY s.submitted_at ASC
	`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetSubmission(ctx context.Context, assignmentID, submissionID string) (Submission, error) {
	s, err := scanSubmission(r.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions s
		WHERE s.id = $1 AND s.assignment_id = $2
	`, submissionID, assignmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrSubmissionNotFound
	}
	if err != nil {
		return Submission{}, fmt.Errorf("select submission: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) HasSubmission(ctx context.Context, assignmentID, studentID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM submissions WHERE assignment_id = $1 AND student_id = $2)
	`, assignmentID, studentID).Scan(&ok)
	return ok, err
}

func (r *PostgresRepository) AddSubmission(ctx context.Context, s Submission) (Submission, error) {
	files, err := encodeFiles(s.Files)
	if err != nil {
		return Submission{}, err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO submissions (id, assignment_id, student_id, submitted_at, files, grade, feedback, graded)
		VALUES ($1, $2, $3, $4, $5, 0, '', FALSE)
	`, s.ID, s.AssignmentID, s.StudentID, s.SubmittedAt, string(files))
	if store.IsUniqueViolation(err) {
		return Submission{}, ErrAlreadySubmitted
	}
	if err != nil {
		return Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Grade(ctx context.Context, u GradeUpdate) (Submission, error) {
	s, err := scanSubmission(r.db.QueryRowContext(ctx, `
		UPDATE submissions s
		SET grade = $3, feedback = $4, graded = TRUE, graded_at = $5, graded_by = $6
		FROM assignments a
		WHERE s.id = $1 AND s.assignment_id = $2 AND a.id = s.assignment_id
		  AND $3 >= 0 AND $3 <= a.max_marks
		RETURNING `+submissionColumns,
		u.SubmissionID, u.AssignmentID, u.Grade, u.Feedback, u.GradedAt, u.GradedBy))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Submission{}, fmt.Errorf("grade submission: %w", err)
	}

	// Nothing matched: either the submission is gone or the grade is out of range.
	if _, err := r.GetSubmission(ctx, u.AssignmentID, u.SubmissionID); err != nil {
		return Submission{}, err
	}
	a, err := r.Get(ctx, u.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	return Submission{}, GradeRangeError(a.MaxMarks)
}
