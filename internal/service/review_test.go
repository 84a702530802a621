package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/nowastemate/internal/apperror"
	"github.com/sakif/nowastemate/internal/model"
)

func TestAverageRating(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    float64
	}{
		{"no reviews", nil, 0},
		{"single", []int{5}, 5},
		{"three and five", []int{3, 5}, 4},
		{"uneven", []int{1, 2, 2}, 5.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AverageRating(tt.ratings), 1e-9)
		})
	}
}

// completedDonation runs a donation from post to completion.
func completedDonation(t *testing.T, f *fixture, donor, ngo *model.Viewer, food string) *model.Donation {
	t.Helper()
	ctx := context.Background()
	d := f.post(t, donor, food)
	_, err := f.donations.Claim(ctx, ngo, d.ID)
	require.NoError(t, err)
	d, err = f.donations.Complete(ctx, donor, d.ID)
	require.NoError(t, err)
	return d
}

func TestReview_CounterpartFollowsCallerRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	donor := f.member(t, "alice", model.RoleDonor)
	ngo := f.member(t, "foodbank", model.RoleNGO)
	d := completedDonation(t, f, donor, ngo, "Apples")

	target, err := f.reviews.Target(ctx, donor, d.ID)
	require.NoError(t, err)
	assert.Equal(t, ngo.ID(), target.Reviewed.ID)

	target, err = f.reviews.Target(ctx, ngo, d.ID)
	require.NoError(t, err)
	assert.Equal(t, donor.ID(), target.Reviewed.ID)

	r, err := f.reviews.Submit(ctx, donor, d.ID, 5, "Friendly volunteers")
	require.NoError(t, err)
	assert.Equal(t, ngo.ID(), r.ReviewedID)

	p, err := f.db.GetProfile(ctx, ngo.ID())
	require.NoError(t, err)
	assert.Equal(t, 5.0, p.AverageRating)
}

func TestReview_AverageAcrossDonations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	donor := f.member(t, "alice", model.RoleDonor)
	ngo := f.member(t, "foodbank", model.RoleNGO)

	first := completedDonation(t, f, donor, ngo, "Apples")
	second := completedDonation(t, f, donor, ngo, "Bread")

	_, err := f.reviews.Submit(ctx, ngo, first.ID, 3, "")
	require.NoError(t, err)
	_, err = f.reviews.Submit(ctx, ngo, second.ID, 5, "")
	require.NoError(t, err)

	p, err := f.db.GetProfile(ctx, donor.ID())
	require.NoError(t, err)
	assert.Equal(t, 4.0, p.AverageRating)
}

func TestReview_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	donor := f.member(t, "alice", model.RoleDonor)
	ngo := f.member(t, "foodbank", model.RoleNGO)
	outsider := f.member(t, "shelter", model.RoleNGO)

	done := completedDonation(t, f, donor, ngo, "Apples")
	open := f.post(t, donor, "Bread")

	_, err := f.reviews.Submit(ctx, ngo, done.ID, 4, "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		viewer   *model.Viewer
		donation string
		rating   int
		want     error
	}{
		{"duplicate review", ngo, done.ID, 4, apperror.ErrConflict},
		{"not completed", donor, open.ID, 4, apperror.ErrConflict},
		{"not a party", outsider, done.ID, 4, apperror.ErrForbidden},
		{"rating too low", donor, done.ID, 0, apperror.ErrValidation},
		{"rating too high", donor, done.ID, 6, apperror.ErrValidation},
		{"missing donation", donor, "nope", 4, apperror.ErrNotFound},
		{"anonymous", nil, done.ID, 4, apperror.ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reviews.Submit(ctx, tt.viewer, tt.donation, tt.rating, "")
			require.ErrorIs(t, err, tt.want)
		})
	}

	// The rejected duplicate left the first rating in place.
	ratings, err := f.db.ReceivedRatings(ctx, donor.ID())
	require.NoError(t, err)
	assert.Equal(t, []int{4}, ratings)
}

func TestReview_DuplicateMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	donor := f.member(t, "alice", model.RoleDonor)
	ngo := f.member(t, "foodbank", model.RoleNGO)
	d := completedDonation(t, f, donor, ngo, "Apples")

	_, err := f.reviews.Submit(ctx, donor, d.ID, 2, "")
	require.NoError(t, err)
	_, err = f.reviews.Submit(ctx, donor, d.ID, 5, "")
	require.Error(t, err)
	assert.Equal(t, "You have already reviewed this donation.", apperror.MessageOf(err, ""))

	p, err := f.db.GetProfile(ctx, ngo.ID())
	require.NoError(t, err)
	assert.Equal(t, 2.0, p.AverageRating)
}
