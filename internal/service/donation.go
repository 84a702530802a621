package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/metrics"
	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/repository"
)

const (
	MaxFoodItemLength = 200
	MaxQuantityLength = 100
	MaxLocationLength = 500
	MaxSearchLength   = 100
)

// PostInput is what a donor fills in on the donation form.
type PostInput struct {
	FoodItem       string
	Quantity       string
	Category       model.Category
	PickupLocation string
	PickupBy       time.Time
}

// BrowseFilter is the NGO search form.
type BrowseFilter struct {
	Keyword  string
	Category model.Category
	Location string
}

// DonationService runs the donation lifecycle:
//
//	available --Claim--> claimed --Complete--> completed
type DonationService struct {
	repo   repository.Repository
	mail   MailQueue
	logger *slog.Logger
	now    clock
}

func NewDonationService(repo repository.Repository, mail MailQueue, logger *slog.Logger) *DonationService {
	return &DonationService{
		repo:   repo,
		mail:   mail,
		logger: logger,
		now:    systemClock,
	}
}

// Post creates an available donation owned by the donor v and notifies every
// approved NGO.
func (s *DonationService) Post(ctx context.Context, v *model.Viewer, in PostInput) (*model.Donation, error) {
	if err := requireRole(v, model.RoleDonor); err != nil {
		return nil, err
	}
	if err := validatePost(&in, s.now()); err != nil {
		return nil, err
	}

	d := &model.Donation{
		DonorID:        v.ID(),
		DonorName:      v.Account.Username,
		FoodItem:       in.FoodItem,
		Quantity:       in.Quantity,
		Category:       in.Category,
		PickupLocation: in.PickupLocation,
		PickupBy:       in.PickupBy,
	}

	out := &outbox{transition: metrics.TransitionPosted}
	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		if err := tx.CreateDonation(ctx, d); err != nil {
			return err
		}

		ngos, err := tx.ListProfiles(ctx, repository.ProfileFilter{Role: model.RoleNGO, ApprovedOnly: true})
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("New donation available: %s (%s) from %s, pickup at %s.",
			d.FoodItem, d.Quantity, v.Account.Username, d.PickupLocation)
		for _, ngo := range ngos {
			if err := out.notify(ctx, tx, ngo.Account.ID, ngo.Email, "New food donation available", msg, "/donations/"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service/donation: posting: %w", err)
	}
	out.flush(s.mail, s.logger)

	s.logger.Info("donation posted",
		slog.String("donationID", d.ID),
		slog.String("donorID", d.DonorID),
		slog.String("category", string(d.Category)),
		slog.Int("notified", out.notifications),
	)
	return d, nil
}

func validatePost(in *PostInput, now time.Time) error {
	in.FoodItem = strings.TrimSpace(in.FoodItem)
	in.Quantity = strings.TrimSpace(in.Quantity)
	in.PickupLocation = strings.TrimSpace(in.PickupLocation)

	switch {
	case in.FoodItem == "":
		return apperror.ValidationFailed("food_item", "Please describe the food item.")
	case utf8.RuneCountInString(in.FoodItem) > MaxFoodItemLength:
		return apperror.ValidationFailed("food_item",
			fmt.Sprintf("Food item must be %d characters or less.", MaxFoodItemLength))
	case in.Quantity == "":
		return apperror.ValidationFailed("quantity", "Please enter a quantity.")
	case utf8.RuneCountInString(in.Quantity) > MaxQuantityLength:
		return apperror.ValidationFailed("quantity",
			fmt.Sprintf("Quantity must be %d characters or less.", MaxQuantityLength))
	case !in.Category.Valid():
		return apperror.ValidationFailed("category", "Please choose a category.")
	case in.PickupLocation == "":
		return apperror.ValidationFailed("pickup_location", "Please enter a pickup location.")
	case utf8.RuneCountInString(in.PickupLocation) > MaxLocationLength:
		return apperror.ValidationFailed("pickup_location",
			fmt.Sprintf("Pickup location must be %d characters or less.", MaxLocationLength))
	case in.PickupBy.IsZero():
		return apperror.ValidationFailed("pickup_by", "Please enter a pickup deadline.")
	case !in.PickupBy.After(now):
		return apperror.ValidationFailed("pickup_by", "The pickup deadline must be in the future.")
	}
	return nil
}

// Claim reserves an available donation for the NGO v. Anything but an
// available donation, including one that was just claimed by someone else,
// is reported as not found.
func (s *DonationService) Claim(ctx context.Context, v *model.Viewer, donationID string) (*model.Donation, error) {
	if err := requireRole(v, model.RoleNGO); err != nil {
		return nil, err
	}

	var d *model.Donation
	out := &outbox{transition: metrics.TransitionClaimed}
	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		if err := tx.ClaimDonation(ctx, donationID, v.ID(), s.now()); err != nil {
			return err
		}

		var err error
		d, err = tx.GetDonation(ctx, donationID)
		if err != nil {
			return err
		}
		donor, err := tx.GetAccountByID(ctx, d.DonorID)
		if err != nil {
			return err
		}

		msg := fmt.Sprintf("Your donation '%s' has been claimed by %s.", d.FoodItem, v.Account.Username)
		return out.notify(ctx, tx, donor.ID, donor.Email, "Your donation was claimed", msg, "/dashboard/")
	})
	if err != nil {
		return nil, fmt.Errorf("service/donation: claiming %s: %w", donationID, err)
	}
	out.flush(s.mail, s.logger)

	s.logger.Info("donation claimed",
		slog.String("donationID", donationID),
		slog.String("ngoID", v.ID()),
	)
	return d, nil
}

// Complete confirms the handoff of a claimed donation. Only its donor may do
// it, and only from the claimed state.
func (s *DonationService) Complete(ctx context.Context, v *model.Viewer, donationID string) (*model.Donation, error) {
	if err := requireRole(v, model.RoleDonor); err != nil {
		return nil, err
	}

	var d *model.Donation
	out := &outbox{transition: metrics.TransitionCompleted}
	err := s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		current, err := tx.GetDonation(ctx, donationID)
		if err != nil {
			return err
		}
		if current.DonorID != v.ID() {
			return apperror.Forbidden("You can only complete your own donations.")
		}
		if err := tx.CompleteDonation(ctx, donationID, v.ID(), s.now()); err != nil {
			return err
		}

		d, err = tx.GetDonation(ctx, donationID)
		if err != nil {
			return err
		}
		claimant, err := tx.GetAccountByID(ctx, *d.ClaimedBy)
		if err != nil {
			return err
		}

		msg := fmt.Sprintf("%s marked the donation '%s' as completed. You can now leave a review.",
			v.Account.Username, d.FoodItem)
		return out.notify(ctx, tx, claimant.ID, claimant.Email, "Donation completed", msg,
			"/review/add/"+d.ID+"/")
	})
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("This donation cannot be completed.")
		}
		return nil, fmt.Errorf("service/donation: completing %s: %w", donationID, err)
	}
	out.flush(s.mail, s.logger)

	s.logger.Info("donation completed",
		slog.String("donationID", donationID),
		slog.String("donorID", v.ID()),
	)
	return d, nil
}

// Browse lists available donations for the NGO v, newest first.
func (s *DonationService) Browse(ctx context.Context, v *model.Viewer, f BrowseFilter) ([]model.Donation, error) {
	if err := requireRole(v, model.RoleNGO); err != nil {
		return nil, err
	}
	if f.Category != "" && !f.Category.Valid() {
		f.Category = ""
	}

	filter := repository.DonationFilter{
		Status:   model.StatusAvailable,
		Keyword:  truncate(strings.TrimSpace(f.Keyword), MaxSearchLength),
		Category: f.Category,
		Location: truncate(strings.TrimSpace(f.Location), MaxSearchLength),
	}
	donations, err := s.repo.ListDonations(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service/donation: browsing: %w", err)
	}
	return donations, nil
}

// DonorDashboard is what a donor sees on /dashboard/.
type DonorDashboard struct {
	Donations []model.Donation
	// Reviewed holds IDs of completed donations the donor already reviewed.
	Reviewed map[string]bool
}

// NGODashboard is what an NGO sees on /dashboard/.
type NGODashboard struct {
	Claimed  []model.Donation
	Reviewed map[string]bool
}

// ForDonor lists the donor's own donations, newest first.
func (s *DonationService) ForDonor(ctx context.Context, v *model.Viewer) (*DonorDashboard, error) {
	if err := requireRole(v, model.RoleDonor); err != nil {
		return nil, err
	}
	donations, err := s.repo.ListDonations(ctx, repository.DonationFilter{DonorID: v.ID()})
	if err != nil {
		return nil, fmt.Errorf("service/donation: donor dashboard: %w", err)
	}
	reviewed, err := s.repo.ReviewedDonationIDs(ctx, v.ID())
	if err != nil {
		return nil, fmt.Errorf("service/donation: donor dashboard: %w", err)
	}
	return &DonorDashboard{Donations: donations, Reviewed: reviewed}, nil
}

// ForNGO lists donations the NGO claimed, most recently updated first.
func (s *DonationService) ForNGO(ctx context.Context, v *model.Viewer) (*NGODashboard, error) {
	if err := requireRole(v, model.RoleNGO); err != nil {
		return nil, err
	}
	claimed, err := s.repo.ListDonations(ctx, repository.DonationFilter{ClaimedBy: v.ID(), OrderByUpdated: true})
	if err != nil {
		return nil, fmt.Errorf("service/donation: ngo dashboard: %w", err)
	}
	reviewed, err := s.repo.ReviewedDonationIDs(ctx, v.ID())
	if err != nil {
		return nil, fmt.Errorf("service/donation: ngo dashboard: %w", err)
	}
	return &NGODashboard{Claimed: claimed, Reviewed: reviewed}, nil
}

// List is the unrestricted listing used by the admin CLI.
func (s *DonationService) List(ctx context.Context, status model.DonationStatus) ([]model.Donation, error) {
	donations, err := s.repo.ListDonations(ctx, repository.DonationFilter{Status: status})
	if err != nil {
		return nil, fmt.Errorf("service/donation: listing: %w", err)
	}
	return donations, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
