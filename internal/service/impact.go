package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/repository"
)

const (
	// MinReviewsForAverage keeps accounts with only a handful of reviews out
	// of the platform-wide rating averages.
	MinReviewsForAverage = 3
	TopDonorLimit        = 5
	ImpactDays           = 30
)

type ImpactService struct {
	repo repository.Repository
	now  clock
}

func NewImpactService(repo repository.Repository) *ImpactService {
	return &ImpactService{repo: repo, now: systemClock}
}

// Impact gathers the numbers for the public impact page.
func (s *ImpactService) Impact(ctx context.Context) (*model.Impact, error) {
	var (
		out model.Impact
		err error
	)

	if out.CompletedDonations, err = s.repo.CountDonations(ctx, model.StatusCompleted); err != nil {
		return nil, fmt.Errorf("service/impact: %w", err)
	}

	donors, err := s.repo.ListProfiles(ctx, repository.ProfileFilter{Role: model.RoleDonor, ApprovedOnly: true})
	if err != nil {
		return nil, fmt.Errorf("service/impact: %w", err)
	}
	out.ApprovedDonors = len(donors)

	ngos, err := s.repo.ListProfiles(ctx, repository.ProfileFilter{Role: model.RoleNGO, ApprovedOnly: true})
	if err != nil {
		return nil, fmt.Errorf("service/impact: %w", err)
	}
	out.ApprovedNGOs = len(ngos)

	donorAvgs, err := s.repo.RatedAverages(ctx, model.RoleDonor, MinReviewsForAverage)
	if err != nil {
		return nil, fmt.Errorf("service/impact: %w", err)
	}
	out.AvgDonorRating = meanOf(donorAvgs)

	ngoAvgs, err := s.repo.RatedAverages(ctx, model.RoleNGO, MinReviewsForAverage)
	if err != nil {
		return nil, fmt.Errorf("service/impact: %w", err)
	}
	out.AvgNGORating = meanOf(ngoAvgs)

	if out.TopDonors, err = s.repo.TopDonors(ctx, TopDonorLimit); err != nil {
		return nil, fmt.Errorf("service/impact: %w", err)
	}

	today := startOfDay(s.now())
	since := today.AddDate(0, 0, -(ImpactDays - 1))
	times, err := s.repo.DonationTimesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("service/impact: %w", err)
	}
	out.Daily = dailyCounts(since, ImpactDays, times)

	return &out, nil
}

// dailyCounts buckets times into days UTC days starting at since, oldest
// first. Days without donations are present with a zero count.
func dailyCounts(since time.Time, days int, times []time.Time) []model.DailyCount {
	out := make([]model.DailyCount, days)
	for i := range out {
		out[i].Day = since.AddDate(0, 0, i)
	}
	for _, t := range times {
		idx := int(startOfDay(t).Sub(since).Hours() / 24)
		if idx >= 0 && idx < days {
			out[idx].Count++
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
