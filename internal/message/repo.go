package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/upload"
)

// Repository persists messages and read receipts.
type Repository interface {
	Insert(ctx context.Context, m Message) (Message, error)
	Get(ctx context.Context, id string) (Message, error)
	// ListByGroup returns a page of messages, newest first.
	ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]Message, error)
	// MarkRead records a receipt; repeating it for the same user changes nothing.
	MarkRead(ctx context.Context, messageID, userID string, at time.Time) error
	Delete(ctx context.Context, id string) error
	CountByGroup(ctx context.Context, groupID string) (int, error)
}

// PostgresRepository stores messages in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const messageColumns = `id, group_id, sender_id, content, type, file_name, file_url, file_size,
	youtube_url, COALESCE(assignment_id, ''), COALESCE(poll_id, ''), created_at`

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var (
		m    Message
		file upload.FileMeta
	)
	err := row.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.Content, &m.Type, &file.FileName, &file.FileURL, &file.FileSize,
		&m.YoutubeURL, &m.AssignmentID, &m.PollID, &m.CreatedAt)
	if file.FileURL != "" {
		m.File = &file
	}
	return m, err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresRepository) Insert(ctx context.Context, m Message) (Message, error) {
	var file upload.FileMeta
	if m.File != nil {
		file = *m.File
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, group_id, sender_id, content, type, file_name, file_url, file_size,
			youtube_url, assignment_id, poll_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, m.ID, m.GroupID, m.SenderID, m.Content, string(m.Type), file.FileName, file.FileURL, file.FileSize,
		m.YoutubeURL, nullable(m.AssignmentID), nullable(m.PollID), m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("select message: %w", err)
	}
	out := []Message{m}
	if err := r.attachReads(ctx, out); err != nil {
		return Message{}, err
	}
	return out[0], nil
}

func (r *PostgresRepository) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE group_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, groupID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachReads(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) attachReads(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, len(msgs))
	index := make(map[string]int, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
		index[m.ID] = i
		msgs[i].ReadBy = []Read{}
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT message_id, user_id, read_at FROM message_reads
		WHERE message_id = ANY($1) ORDER BY read_at ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("list reads: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			msgID string
			rd    Read
		)
		if err := rows.Scan(&msgID, &rd.UserID, &rd.ReadAt); err != nil {
			return err
		}
		i := index[msgID]
		msgs[i].ReadBy = append(msgs[i].ReadBy, rd)
	}
	return rows.Err()
}

func (r *PostgresRepository) MarkRead(ctx context.Context, messageID, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO message_reads (message_id, user_id, read_at) VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, messageID, userID, at)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CountByGroup(ctx context.Context, groupID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE group_id = $1`, groupID).Scan(&n)
	return n, err
}
