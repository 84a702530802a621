package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/repository"
)

func (db *DB) CreateProfile(ctx context.Context, p *model.Profile) error {
	_, err := db.q.ExecContext(ctx,
		`INSERT INTO profiles (account_id, role, is_approved, phone_number, average_rating)
		 VALUES (?, ?, ?, ?, ?)`,
		p.AccountID,
		string(p.Role),
		boolToInt(p.IsApproved),
		p.PhoneNumber,
		p.AverageRating,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("profile already exists")
		}
		return fmt.Errorf("sqlite: inserting profile for %s: %w", p.AccountID, err)
	}
	return nil
}

func (db *DB) GetProfile(ctx context.Context, accountID string) (*model.Profile, error) {
	var (
		p    model.Profile
		role string
	)
	err := db.q.QueryRowContext(ctx,
		`SELECT account_id, role, is_approved, phone_number, average_rating
		 FROM profiles WHERE account_id = ?`, accountID,
	).Scan(&p.AccountID, &role, &p.IsApproved, &p.PhoneNumber, &p.AverageRating)
	if err != nil {
		return nil, notFoundOr(err, "profile", accountID, "getting")
	}
	p.Role = model.Role(role)
	return &p, nil
}

// ListProfiles returns profiles joined with their accounts, oldest first.
func (db *DB) ListProfiles(ctx context.Context, f repository.ProfileFilter) ([]model.ProfileRow, error) {
	var (
		where []string
		args  []any
	)
	if f.Role != "" {
		where = append(where, "p.role = ?")
		args = append(args, string(f.Role))
	}
	if f.PendingOnly {
		where = append(where, "p.is_approved = 0")
	}
	if f.ApprovedOnly {
		where = append(where, "p.is_approved = 1")
	}

	query := `SELECT a.id, a.username, a.email, a.is_admin, a.created_at, a.updated_at,
	                 p.account_id, p.role, p.is_approved, p.phone_number, p.average_rating
	          FROM profiles p JOIN accounts a ON a.id = p.account_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.created_at ASC, a.id ASC"

	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing profiles: %w", err)
	}
	defer rows.Close()

	var out []model.ProfileRow
	for rows.Next() {
		var (
			r    model.ProfileRow
			role string
		)
		if err := rows.Scan(
			&r.Account.ID,
			&r.Username,
			&r.Email,
			&r.IsAdmin,
			&r.Account.CreatedAt,
			&r.Account.UpdatedAt,
			&r.AccountID,
			&role,
			&r.IsApproved,
			&r.PhoneNumber,
			&r.AverageRating,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning profile row: %w", err)
		}
		r.Role = model.Role(role)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating profile rows: %w", err)
	}
	return out, nil
}

// ApproveProfile returns false when the profile was already approved.
func (db *DB) ApproveProfile(ctx context.Context, accountID string) (bool, error) {
	res, err := db.q.ExecContext(ctx,
		`UPDATE profiles SET is_approved = 1 WHERE account_id = ? AND is_approved = 0`,
		accountID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: approving profile %s: %w", accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	// Distinguish "already approved" from "no such profile".
	if _, err := db.GetProfile(ctx, accountID); err != nil {
		return false, err
	}
	return false, nil
}

func (db *DB) UpdateAverageRating(ctx context.Context, accountID string, avg float64) error {
	res, err := db.q.ExecContext(ctx,
		`UPDATE profiles SET average_rating = ? WHERE account_id = ?`, avg, accountID)
	if err != nil {
		return fmt.Errorf("sqlite: updating rating for %s: %w", accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("profile", accountID)
	}
	return nil
}

func (db *DB) RatedAverages(ctx context.Context, role model.Role, minReviews int) ([]float64, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT p.average_rating
		 FROM profiles p
		 WHERE p.role = ? AND p.is_approved = 1
		   AND (SELECT COUNT(*) FROM reviews r WHERE r.reviewed_id = p.account_id) >= ?`,
		string(role), minReviews,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying rated %s profiles: %w", role, err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var avg sql.NullFloat64
		if err := rows.Scan(&avg); err != nil {
			return nil, fmt.Errorf("sqlite: scanning rating: %w", err)
		}
		out = append(out, avg.Float64)
	}
	return out, rows.Err()
}
