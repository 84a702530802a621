package model

import "time"

// DonationStatus is the lifecycle state of a donation.
//
//	available --claim--> claimed --complete--> completed
//
// There are no other transitions.
type DonationStatus string

const (
	StatusAvailable DonationStatus = "available"
	StatusClaimed   DonationStatus = "claimed"
	StatusCompleted DonationStatus = "completed"
)

// Category classifies the donated food.
type Category string

const (
	CategoryCooked   Category = "cooked"
	CategoryProduce  Category = "produce"
	CategoryPackaged Category = "packaged"
	CategoryBakery   Category = "bakery"
	CategoryDairy    Category = "dairy"
	CategoryOther    Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryCooked,
	CategoryProduce,
	CategoryPackaged,
	CategoryBakery,
	CategoryDairy,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) Label() string {
	switch c {
	case CategoryCooked:
		return "Cooked Meal"
	case CategoryProduce:
		return "Fresh Produce"
	case CategoryPackaged:
		return "Packaged Food"
	case CategoryBakery:
		return "Bakery"
	case CategoryDairy:
		return "Dairy"
	}
	return "Other"
}

// Donation is one offer of surplus food.
//
// ClaimedBy is nil exactly when Status is available.
type Donation struct {
	ID             string         `json:"id"`
	DonorID        string         `json:"donorId"`
	DonorName      string         `json:"donorName"`
	ClaimedBy      *string        `json:"claimedBy"`
	ClaimedByName  string         `json:"claimedByName"`
	FoodItem       string         `json:"foodItem"`
	Quantity       string         `json:"quantity"`
	Category       Category       `json:"category"`
	PickupLocation string         `json:"pickupLocation"`
	PickupBy       time.Time      `json:"pickupBy"`
	Status         DonationStatus `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// IsClaimedBy reports whether accountID is the claimant.
func (d *Donation) IsClaimedBy(accountID string) bool {
	return d.ClaimedBy != nil && *d.ClaimedBy == accountID
}
