package model

import "time"

// Notification is an in-app message for one account.
type Notification struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationSummary is what the page layout shows in its header.
type NotificationSummary struct {
	Unread int
	Latest []Notification
}
