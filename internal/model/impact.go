package model

import "time"

// DonorTotal is one row of the top donors table.
type DonorTotal struct {
	AccountID string
	Username  string
	Completed int
}

// DailyCount is the number of donations posted on one UTC day.
type DailyCount struct {
	Day   time.Time
	Count int
}

// Impact aggregates the public dashboard numbers.
type Impact struct {
	CompletedDonations int
	ApprovedDonors     int
	ApprovedNGOs       int
	AvgDonorRating     float64
	AvgNGORating       float64
	TopDonors          []DonorTotal
	Daily              []DailyCount
}
