package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/model"
)

const accountColumns = `id, username, email, password_hash, github_id, is_admin, created_at, updated_at`

// CreateAccount inserts a new account. ID and timestamps are filled in on
// the passed struct. A taken username or GitHub ID yields apperror.ErrConflict.
func (db *DB) CreateAccount(ctx context.Context, a *model.Account) error {
	now := time.Now().UTC()
	a.ID = xid.New().String()
	a.CreatedAt = now
	a.UpdatedAt = now

	var githubID sql.NullInt64
	if a.GitHubID != nil {
		githubID = sql.NullInt64{Int64: *a.GitHubID, Valid: true}
	}

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.Username,
		a.Email,
		a.PasswordHash,
		githubID,
		boolToInt(a.IsAdmin),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("username %q is already taken", a.Username))
		}
		return fmt.Errorf("sqlite: inserting account %q: %w", a.Username, err)
	}
	return nil
}

func (db *DB) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	a, err := scanAccount(db.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr(err, "account", id, "getting")
	}
	return a, nil
}

// GetAccountByUsername matches case-insensitively (the column is NOCASE).
func (db *DB) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	a, err := scanAccount(db.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username))
	if err != nil {
		return nil, notFoundOr(err, "account", username, "getting")
	}
	return a, nil
}

// GetAccountByEmail returns the oldest account registered with email.
func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	a, err := scanAccount(db.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE email <> '' AND lower(email) = lower(?)
		 ORDER BY created_at ASC LIMIT 1`, email))
	if err != nil {
		return nil, notFoundOr(err, "account", email, "getting")
	}
	return a, nil
}

func (db *DB) GetAccountByGitHubID(ctx context.Context, githubID int64) (*model.Account, error) {
	id := strconv.FormatInt(githubID, 10)
	a, err := scanAccount(db.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE github_id = ?`, githubID))
	if err != nil {
		return nil, notFoundOr(err, "account", id, "getting")
	}
	return a, nil
}

// LinkGitHub records the GitHub user ID on an existing account.
func (db *DB) LinkGitHub(ctx context.Context, accountID string, githubID int64) error {
	res, err := db.q.ExecContext(ctx,
		`UPDATE accounts SET github_id = ?, updated_at = ? WHERE id = ?`,
		githubID, time.Now().UTC(), accountID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("this GitHub account is linked to another user")
		}
		return fmt.Errorf("sqlite: linking github to account %s: %w", accountID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("account", accountID)
	}
	return nil
}

func scanAccount(row *sql.Row) (*model.Account, error) {
	var (
		a        model.Account
		githubID sql.NullInt64
	)
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&githubID,
		&a.IsAdmin,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if githubID.Valid {
		a.GitHubID = &githubID.Int64
	}
	return &a, nil
}
