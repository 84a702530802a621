package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/nowastemate/internal/model"
)

func (db *DB) CreateNotification(ctx context.Context, n *model.Notification) error {
	n.ID = xid.New().String()
	n.CreatedAt = time.Now().UTC()
	n.IsRead = false

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO notifications (id, account_id, message, link, is_read, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		n.ID, n.AccountID, n.Message, n.Link, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting notification for %s: %w", n.AccountID, err)
	}
	return nil
}

// ListNotifications returns the newest notifications first. limit <= 0
// returns all of them.
func (db *DB) ListNotifications(ctx context.Context, accountID string, limit int) ([]model.Notification, error) {
	query := `SELECT id, account_id, message, link, is_read, created_at
	          FROM notifications WHERE account_id = ?
	          ORDER BY created_at DESC, id DESC`
	args := []any{accountID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notifications for %s: %w", accountID, err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Message, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (db *DB) CountUnread(ctx context.Context, accountID string) (int, error) {
	var n int
	err := db.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE account_id = ? AND is_read = 0`, accountID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting unread for %s: %w", accountID, err)
	}
	return n, nil
}

// MarkAllRead flags every unread notification of accountID as read and
// returns how many changed.
func (db *DB) MarkAllRead(ctx context.Context, accountID string) (int64, error) {
	res, err := db.q.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE account_id = ? AND is_read = 0`, accountID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: marking notifications read for %s: %w", accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}
