package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/store"
)

// Repository persists groups and their member lists.
type Repository interface {
	// Create stores g and its creator membership.
	Create(ctx context.Context, g Group) (Group, error)
	Get(ctx context.Context, id string) (Group, error)
	ListAll(ctx context.Context) ([]Group, error)
	ListForMember(ctx context.Context, userID string) ([]Group, error)
	Members(ctx context.Context, groupID string) ([]Membership, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	// AddMember reports false when the user was already a member.
	AddMember(ctx context.Context, m Membership) (bool, error)
	// RemoveMember reports false when the user was not a member.
	RemoveMember(ctx context.Context, groupID, userID string) (bool, error)
}

// PostgresRepository stores groups in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const groupColumns = `g.id, g.name, g.description, g.subject, g.batch, g.semester, g.created_by, g.created_at`

func scanGroup(row interface{ Scan(...any) error }) (Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Subject, &g.Batch, &g.Semester, &g.CreatedBy, &g.CreatedAt)
	return g, err
}

func (r *PostgresRepository) Create(ctx context.Context, g Group) (Group, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Group{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO groups (id, name, description, subject, batch, semester, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, g.ID, g.Name, g.Description, g.Subject, g.Batch, g.Semester, g.CreatedBy, g.CreatedAt); err != nil {
		return Group{}, fmt.Errorf("insert group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, joined_at) VALUES ($1, $2, $3)
	`, g.ID, g.CreatedBy, g.CreatedAt); err != nil {
		return Group{}, fmt.Errorf("insert creator membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Group{}, fmt.Errorf("commit: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Group, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups g WHERE g.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, fmt.Errorf("select group: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]Group, error) {
	return r.list(ctx, `SELECT `+groupColumns+` FROM groups g ORDER BY g.created_at DESC`)
}

func (r *PostgresRepository) ListForMember(ctx context.Context, userID string) ([]Group, error) {
	return r.list(ctx, `
		SELECT `+groupColumns+`
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.created_at DESC
	`, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Group, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()
	var out []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Members(ctx context.Context, groupID string) ([]Membership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT group_id, user_id, joined_at FROM group_members
		WHERE group_id = $1 ORDER BY joined_at ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	var out []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
	`, groupID, userID).Scan(&ok)
	return ok, err
}

func (r *PostgresRepository) AddMember(ctx context.Context, m Membership) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, joined_at) VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, m.GroupID, m.UserID, m.JoinedAt)
	if store.IsForeignKeyViolation(err) {
		return false, ErrMemberNotFound
	}
	if err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresRepository) RemoveMember(ctx context.Context, groupID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
