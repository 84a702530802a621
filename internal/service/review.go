package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/metrics"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/repository"
)

const MaxCommentLength = 1000

// ReviewTarget is a completed donation together with the party the caller
// would review.
type ReviewTarget struct {
	Donation model.Donation
	Reviewed model.Account
}

type ReviewService struct {
	repo   repository.Repository
	mail   MailQueue
	logger *slog.Logger
}

func NewReviewService(repo repository.Repository, mail MailQueue, logger *slog.Logger) *ReviewService {
	return &ReviewService{repo: repo, mail: mail, logger: logger}
}

// Target resolves who v reviews for donationID. A donor reviews the NGO that
// claimed the donation and an NGO reviews the donor.
func (s *ReviewService) Target(ctx context.Context, v *model.Viewer, donationID string) (*ReviewTarget, error) {
	return reviewTarget(ctx, s.repo, v, donationID)
}

func reviewTarget(ctx context.Context, repo repository.Repository, v *model.Viewer, donationID string) (*ReviewTarget, error) {
	if v == nil {
		return nil, apperror.Unauthenticated()
	}

	d, err := repo.GetDonation(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if d.Status != model.StatusCompleted {
		return nil, apperror.Conflict("You can only review completed donations.")
	}

	var reviewedID string
	switch v.Role() {
	case model.RoleDonor:
		if d.DonorID != v.ID() {
			return nil, apperror.Forbidden("You were not part of this donation.")
		}
		reviewedID = *d.ClaimedBy
	case model.RoleNGO:
		if !d.IsClaimedBy(v.ID()) {
			return nil, apperror.Forbidden("You were not part of this donation.")
		}
		reviewedID = d.DonorID
	default:
		return nil, apperror.ProfileMissing()
	}

	reviewed, err := repo.GetAccountByID(ctx, reviewedID)
	if err != nil {
		return nil, err
	}
	return &ReviewTarget{Donation: *d, Reviewed: *reviewed}, nil
}

// Submit records v's review of the counterpart on donationID, recomputes the
// reviewed party's average rating and notifies them, all in one transaction.
// A second review by the same reviewer yields apperror.ErrConflict.
func (s *ReviewService) Submit(ctx context.Context, v *model.Viewer, donationID string, rating int, comment string) (*model.Review, error) {
	comment = strings.TrimSpace(comment)
	if rating < model.MinRating || rating > model.MaxRating {
		return nil, apperror.ValidationFailed("rating",
			fmt.Sprintf("Rating must be between %d and %d.", model.MinRating, model.MaxRating))
	}
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return nil, apperror.ValidationFailed("comment",
			fmt.Sprintf("Comment must be %d characters or less.", MaxCommentLength))
	}

	var (
		r   *model.Review
		avg float64
	)
	out := &outbox{transition: metrics.TransitionReviewed}
	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		target, err := reviewTarget(ctx, tx, v, donationID)
		if err != nil {
			return err
		}

		r = &model.Review{
			DonationID: donationID,
			ReviewerID: v.ID(),
			ReviewedID: target.Reviewed.ID,
			Rating:     rating,
			Comment:    comment,
		}
		if err := tx.CreateReview(ctx, r); err != nil {
			return err
		}

		ratings, err := tx.ReceivedRatings(ctx, target.Reviewed.ID)
		if err != nil {
			return err
		}
		avg = AverageRating(ratings)
		if err := tx.UpdateAverageRating(ctx, target.Reviewed.ID, avg); err != nil {
			return err
		}

		msg := fmt.Sprintf("%s left you a %d-star review for '%s'.", v.Account.Username, rating, target.Donation.FoodItem)
		return out.notify(ctx, tx, target.Reviewed.ID, target.Reviewed.Email, "You received a new review", msg, "/dashboard/")
	})
	if err != nil {
		return nil, fmt.Errorf("service/review: reviewing donation %s: %w", donationID, err)
	}
	out.flush(s.mail, s.logger)

	s.logger.Info("review added",
		slog.String("donationID", donationID),
		slog.String("reviewerID", r.ReviewerID),
		slog.String("reviewedID", r.ReviewedID),
		slog.Int("rating", rating),
		slog.Float64("average", avg),
	)
	return r, nil
}
