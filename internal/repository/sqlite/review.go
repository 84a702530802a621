package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/model"
)

// CreateReview inserts r. The (donation_id, reviewer_id) UNIQUE constraint
// turns a second review into apperror.ErrConflict.
func (db *DB) CreateReview(ctx context.Context, r *model.Review) error {
	r.ID = xid.New().String()
	r.CreatedAt = time.Now().UTC()

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO reviews (id, donation_id, reviewer_id, reviewed_id, rating, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.DonationID,
		r.ReviewerID,
		r.ReviewedID,
		r.Rating,
		r.Comment,
		r.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("You have already reviewed this donation.")
		}
		return fmt.Errorf("sqlite: inserting review for donation %s: %w", r.DonationID, err)
	}
	return nil
}

// ReceivedRatings returns every rating accountID has received.
func (db *DB) ReceivedRatings(ctx context.Context, accountID string) ([]int, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT rating FROM reviews WHERE reviewed_id = ? ORDER BY created_at`, accountID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ratings for %s: %w", accountID, err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, fmt.Errorf("sqlite: scanning rating: %w", err)
		}
		out = append(out, rating)
	}
	return out, rows.Err()
}

// ReviewedDonationIDs returns the set of donations reviewerID has reviewed.
func (db *DB) ReviewedDonationIDs(ctx context.Context, reviewerID string) (map[string]bool, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT donation_id FROM reviews WHERE reviewer_id = ?`, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reviews by %s: %w", reviewerID, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning reviewed donation: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}
