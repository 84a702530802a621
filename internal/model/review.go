package model

import "time"

// Review is a 1..5 rating one party of a completed donation gives the other.
// A reviewer can review a donation at most once.
type Review struct {
	ID         string    `json:"id"`
	DonationID string    `json:"donationId"`
	ReviewerID string    `json:"reviewerId"`
	ReviewedID string    `json:"reviewedId"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

const (
	MinRating = 1
	MaxRating = 5
)
