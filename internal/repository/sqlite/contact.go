package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/repository"
)

func (db *DB) CreateContactMessage(ctx context.Context, m *model.ContactMessage) error {
	m.ID = xid.New().String()
	m.CreatedAt = time.Now().UTC()

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO contact_messages (id, name, email, subject, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Email, m.Subject, m.Message, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting contact message: %w", err)
	}
	return nil
}

func (db *DB) ListContactMessages(ctx context.Context, opts repository.ListOptions) ([]model.ContactMessage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := db.q.QueryContext(ctx,
		`SELECT id, name, email, subject, message, created_at
		 FROM contact_messages ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing contact messages: %w", err)
	}
	defer rows.Close()

	var out []model.ContactMessage
	for rows.Next() {
		var m model.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning contact message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (db *DB) DeleteContactMessage(ctx context.Context, id string) error {
	res, err := db.q.ExecContext(ctx, `DELETE FROM contact_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting contact message %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("contact message", id)
	}
	return nil
}
