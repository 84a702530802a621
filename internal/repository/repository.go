// Package repository declares the persistence contracts the services depend on.
// The sqlite subpackage implements them.
package repository

import (
	"context"
	"time"

	"github.com/sakif/nowastemate/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// DonationFilter narrows a donation listing. Zero values mean "any".
// Keyword and Location are case-insensitive substring matches; Category is exact.
type DonationFilter struct {
	Status    model.DonationStatus
	Keyword   string
	Category  model.Category
	Location  string
	DonorID   string
	ClaimedBy string
	// OrderByUpdated sorts by last update instead of creation time.
	OrderByUpdated bool
	ListOptions
}

// ProfileFilter narrows a profile listing.
type ProfileFilter struct {
	Role         model.Role
	PendingOnly  bool
	ApprovedOnly bool
}

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByGitHubID(ctx context.Context, githubID int64) (*model.Account, error)
	LinkGitHub(ctx context.Context, accountID string, githubID int64) error
}

type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *model.Profile) error
	GetProfile(ctx context.Context, accountID string) (*model.Profile, error)
	ListProfiles(ctx context.Context, filter ProfileFilter) ([]model.ProfileRow, error)
	// ApproveProfile sets is_approved and reports whether the row changed.
	ApproveProfile(ctx context.Context, accountID string) (bool, error)
	UpdateAverageRating(ctx context.Context, accountID string, avg float64) error
	// RatedAverages returns the average ratings of approved profiles with the
	// given role that have received at least minReviews reviews.
	RatedAverages(ctx context.Context, role model.Role, minReviews int) ([]float64, error)
}

type DonationRepository interface {
	CreateDonation(ctx context.Context, donation *model.Donation) error
	GetDonation(ctx context.Context, id string) (*model.Donation, error)
	ListDonations(ctx context.Context, filter DonationFilter) ([]model.Donation, error)
	// ClaimDonation moves an available donation to claimed. It returns
	// apperror.ErrNotFound when no available donation has this id.
	ClaimDonation(ctx context.Context, id, ngoID string, at time.Time) error
	// CompleteDonation moves a claimed donation owned by donorID to completed.
	// It returns apperror.ErrConflict when no such row matched.
	CompleteDonation(ctx context.Context, id, donorID string, at time.Time) error
	CountDonations(ctx context.Context, status model.DonationStatus) (int, error)
	TopDonors(ctx context.Context, limit int) ([]model.DonorTotal, error)
	DonationTimesSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

type ReviewRepository interface {
	// CreateReview returns apperror.ErrConflict when the reviewer already
	// reviewed this donation.
	CreateReview(ctx context.Context, review *model.Review) error
	ReceivedRatings(ctx context.Context, accountID string) ([]int, error)
	ReviewedDonationIDs(ctx context.Context, reviewerID string) (map[string]bool, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, accountID string, limit int) ([]model.Notification, error)
	CountUnread(ctx context.Context, accountID string) (int, error)
	MarkAllRead(ctx context.Context, accountID string) (int64, error)
}

type ContactRepository interface {
	CreateContactMessage(ctx context.Context, msg *model.ContactMessage) error
	ListContactMessages(ctx context.Context, opts ListOptions) ([]model.ContactMessage, error)
	DeleteContactMessage(ctx context.Context, id string) error
}

// Repository is the full store. WithinTx runs fn against a transactional
// view of the same store; fn's error rolls the transaction back.
type Repository interface {
	AccountRepository
	ProfileRepository
	DonationRepository
	ReviewRepository
	NotificationRepository
	ContactRepository

	WithinTx(ctx context.Context, fn func(tx Repository) error) error
}
