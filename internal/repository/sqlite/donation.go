package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/repository"
)

const donationSelect = `SELECT d.id, d.donor_id, da.username, d.claimed_by, COALESCE(ca.username, ''),
       d.food_item, d.quantity, d.category, d.pickup_location, d.pickup_by,
       d.status, d.created_at, d.updated_at
FROM donations d
JOIN accounts da ON da.id = d.donor_id
LEFT JOIN accounts ca ON ca.id = d.claimed_by`

// CreateDonation inserts d as a new available donation.
func (db *DB) CreateDonation(ctx context.Context, d *model.Donation) error {
	now := time.Now().UTC()
	d.ID = xid.New().String()
	d.Status = model.StatusAvailable
	d.ClaimedBy = nil
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO donations (id, donor_id, claimed_by, food_item, quantity, category,
		                        pickup_location, pickup_by, status, created_at, updated_at)
		 VALUES (?, ?, NULL, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.DonorID,
		d.FoodItem,
		d.Quantity,
		string(d.Category),
		d.PickupLocation,
		d.PickupBy.UTC(),
		string(d.Status),
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting donation: %w", err)
	}
	return nil
}

func (db *DB) GetDonation(ctx context.Context, id string) (*model.Donation, error) {
	d, err := scanDonation(db.q.QueryRowContext(ctx, donationSelect+` WHERE d.id = ?`, id))
	if err != nil {
		return nil, notFoundOr(err, "donation", id, "getting")
	}
	return d, nil
}

// ListDonations returns donations matching f, newest first.
func (db *DB) ListDonations(ctx context.Context, f repository.DonationFilter) ([]model.Donation, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "d.status = ?")
		args = append(args, string(f.Status))
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		where = append(where, "instr(lower(d.food_item), lower(?)) > 0")
		args = append(args, kw)
	}
	if f.Category != "" {
		where = append(where, "d.category = ?")
		args = append(args, string(f.Category))
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		where = append(where, "instr(lower(d.pickup_location), lower(?)) > 0")
		args = append(args, loc)
	}
	if f.DonorID != "" {
		where = append(where, "d.donor_id = ?")
		args = append(args, f.DonorID)
	}
	if f.ClaimedBy != "" {
		where = append(where, "d.claimed_by = ?")
		args = append(args, f.ClaimedBy)
	}

	query := donationSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.OrderByUpdated {
		query += " ORDER BY d.updated_at DESC, d.id DESC"
	} else {
		query += " ORDER BY d.created_at DESC, d.id DESC"
	}
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing donations: %w", err)
	}
	defer rows.Close()

	var out []model.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning donation: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating donations: %w", err)
	}
	return out, nil
}

// ClaimDonation is a single conditional UPDATE: of two concurrent claims only
// one can match status = 'available'.
func (db *DB) ClaimDonation(ctx context.Context, id, ngoID string, at time.Time) error {
	res, err := db.q.ExecContext(ctx,
		`UPDATE donations SET status = ?, claimed_by = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(model.StatusClaimed), ngoID, at.UTC(),
		id, string(model.StatusAvailable),
	)
	if err != nil {
		return fmt.Errorf("sqlite: claiming donation %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("available donation", id)
	}
	return nil
}

func (db *DB) CompleteDonation(ctx context.Context, id, donorID string, at time.Time) error {
	res, err := db.q.ExecContext(ctx,
		`UPDATE donations SET status = ?, updated_at = ?
		 WHERE id = ? AND donor_id = ? AND status = ?`,
		string(model.StatusCompleted), at.UTC(),
		id, donorID, string(model.StatusClaimed),
	)
	if err != nil {
		return fmt.Errorf("sqlite: completing donation %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.Conflict("This donation cannot be completed.")
	}
	return nil
}

func (db *DB) CountDonations(ctx context.Context, status model.DonationStatus) (int, error) {
	var n int
	err := db.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM donations WHERE status = ?`, string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting %s donations: %w", status, err)
	}
	return n, nil
}

// TopDonors ranks donors by completed donations. Ties go to the earlier account.
func (db *DB) TopDonors(ctx context.Context, limit int) ([]model.DonorTotal, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT a.id, a.username, COUNT(d.id) AS completed
		 FROM donations d JOIN accounts a ON a.id = d.donor_id
		 WHERE d.status = ?
		 GROUP BY a.id, a.username
		 ORDER BY completed DESC, a.created_at ASC
		 LIMIT ?`,
		string(model.StatusCompleted), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: ranking donors: %w", err)
	}
	defer rows.Close()

	var out []model.DonorTotal
	for rows.Next() {
		var t model.DonorTotal
		if err := rows.Scan(&t.AccountID, &t.Username, &t.Completed); err != nil {
			return nil, fmt.Errorf("sqlite: scanning donor total: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DonationTimesSince returns creation times of donations posted at or after
// since, oldest first. Timestamps are written in UTC by the same driver
// encoding as the bound parameter, so the text comparison orders correctly.
func (db *DB) DonationTimesSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT created_at FROM donations WHERE created_at >= ? ORDER BY created_at ASC`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing donation times: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("sqlite: scanning donation time: %w", err)
		}
		out = append(out, t.UTC())
	}
	return out, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(s rowScanner) (*model.Donation, error) {
	var (
		d         model.Donation
		claimedBy sql.NullString
		category  string
		status    string
	)
	err := s.Scan(
		&d.ID,
		&d.DonorID,
		&d.DonorName,
		&claimedBy,
		&d.ClaimedByName,
		&d.FoodItem,
		&d.Quantity,
		&category,
		&d.PickupLocation,
		&d.PickupBy,
		&status,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if claimedBy.Valid {
		d.ClaimedBy = &claimedBy.String
	}
	d.Category = model.Category(category)
	d.Status = model.DonationStatus(status)
	return &d, nil
}
