package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/store"
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetMany(ctx context.Context, ids []string) ([]User, error)
	List(ctx context.Context, f Filter) ([]User, error)
	SetApproved(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// PostgresRepository stores users in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, name, email, password_hash, role, approved, regd_no, batch, semester, subject, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Approved,
		&u.RegdNo, &u.Batch, &u.Semester, &u.Subject, &u.CreatedAt)
	return u, err
}

// Create inserts u. A duplicate email yields ErrEmailTaken.
func (r *PostgresRepository) Create(ctx context.Context, u User) (User, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Approved, u.RegdNo, u.Batch, u.Semester, u.Subject, u.CreatedAt)
	if store.IsUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

// GetByID loads a user.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByEmail loads a user by normalized email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, "email = $1", email)
}

// GetMany loads every user in ids that exists.
func (r *PostgresRepository) GetMany(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	return collect(rows)
}

// List returns users matching f, oldest first.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]User, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Role != "" {
		add("role = $%d", f.Role)
	}
	if f.Approved != nil {
		add("approved = $%d", *f.Approved)
	}
	if f.Batch != "" {
		add("batch = $%d", f.Batch)
	}
	if f.Semester != "" {
		add("semester = $%d", f.Semester)
	}
	query := `SELECT ` + userColumns + ` FROM users`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collect(rows)
}

// SetApproved flips the approval flag.
func (r *PostgresRepository) SetApproved(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET approved = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("approve user: %w", err)
	}
	return expectOne(res)
}

// Delete removes a user row.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOne(res)
}

func collect(rows *sql.Rows) ([]User, error) {
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
