package poll

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/store"
)

// Repository persists polls, options and votes. Votes are child rows keyed
// by (poll, option, user); single-choice polls additionally hold one ballot
// row per (poll, user).
type Repository interface {
	Create(ctx context.Context, p Poll) (Poll, error)
	Get(ctx context.Context, id string) (Poll, error)
	ListByGroup(ctx context.Context, groupID string) ([]Poll, error)
	CountByGroup(ctx context.Context, groupID string) (int, error)
	// Vote fails with ErrAlreadyVoted (single choice) or ErrOptionVoted (multiple choice).
	Vote(ctx context.Context, pollID string, option int, userID string, singleChoice bool, at time.Time) error
}

// PostgresRepository stores polls in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const pollColumns = `id, group_id, created_by, question, multiple_choice, expires_at, created_at`

func scanPoll(row interface{ Scan(...any) error }) (Poll, error) {
	var (
		p       Poll
		expires sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.GroupID, &p.CreatedByID, &p.Question, &p.MultipleChoice, &expires, &p.CreatedAt); err != nil {
		return Poll{}, err
	}
	if expires.Valid {
		t := expires.Time
		p.ExpiresAt = &t
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p Poll) (Poll, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Poll{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var expires sql.NullTime
	if p.ExpiresAt != nil {
		expires = sql.NullTime{Time: *p.ExpiresAt, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO polls (`+pollColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.GroupID, p.CreatedByID, p.Question, p.MultipleChoice, expires, p.CreatedAt); err != nil {
		return Poll{}, fmt.Errorf("insert poll: %w", err)
	}
	for _, o := range p.Options {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO poll_options (poll_id, idx, text) VALUES ($1, $2, $3)
		`, p.ID, o.Index, o.Text); err != nil {
			return Poll{}, fmt.Errorf("insert poll option: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Poll{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Poll, error) {
	p, err := scanPoll(r.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Poll{}, ErrNotFound
	}
	if err != nil {
		return Poll{}, fmt.Errorf("select poll: %w", err)
	}
	out := []Poll{p}
	if err := r.attachOptions(ctx, out); err != nil {
		return Poll{}, err
	}
	return out[0], nil
}

func (r *PostgresRepository) ListByGroup(ctx context.Context, groupID string) ([]Poll, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+pollColumns+` FROM polls WHERE group_id = $1 ORDER BY created_at DESC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	var out []Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachOptions(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) attachOptions(ctx context.Context, polls []Poll) error {
	if len(polls) == 0 {
		return nil
	}
	ids := make([]string, len(polls))
	index := make(map[string]int, len(polls))
	for i, p := range polls {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT poll_id, idx, text FROM poll_options WHERE poll_id = ANY($1) ORDER BY poll_id, idx
	`, ids)
	if err != nil {
		return fmt.Errorf("list options: %w", err)
	}
	for rows.Next() {
		var (
			pollID string
			o      Option
		)
		if err := rows.Scan(&pollID, &o.Index, &o.Text); err != nil {
			rows.Close()
			return err
		}
		o.Votes = []Vote{}
		p := &polls[index[pollID]]
		p.Options = append(p.Options, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT poll_id, option_index, user_id, voted_at FROM poll_votes
		WHERE poll_id = ANY($1) ORDER BY voted_at ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pollID string
			option int
			v      Vote
		)
		if err := rows.Scan(&pollID, &option, &v.UserID, &v.VotedAt); err != nil {
			return err
		}
		p := &polls[index[pollID]]
		if option >= 0 && option < len(p.Options) {
			p.Options[option].Votes = append(p.Options[option].Votes, v)
		}
	}
	return rows.Err()
}

func (r *PostgresRepository) CountByGroup(ctx context.Context, groupID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM polls WHERE group_id = $1`, groupID).Scan(&n)
	return n, err
}

func (r *PostgresRepository) Vote(ctx context.Context, pollID string, option int, userID string, singleChoice bool, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if singleChoice {
		_, err := tx.ExecContext(ctx, `INSERT INTO poll_ballots (poll_id, user_id) VALUES ($1, $2)`, pollID, userID)
		if store.IsUniqueViolation(err) {
			return ErrAlreadyVoted
		}
		if err != nil {
			return fmt.Errorf("insert ballot: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO poll_votes (poll_id, option_index, user_id, voted_at) VALUES ($1, $2, $3, $4)
	`, pollID, option, userID, at)
	if store.IsUniqueViolation(err) {
		return ErrOptionVoted
	}
	if store.IsForeignKeyViolation(err) {
		return ErrInvalidOption
	}
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return tx.Commit()
}
