package domain

import "time"

// Notification is a queued customer notification.
type Notification struct {
	NotificationID string             `json:"notification_id"`
	CustomerID     string             `json:"customer_id"`
	Stage          string             `json:"stage"`
	Status         NotificationStatus `json:"status"`
	DueAt          time.Time          `json:"due_at"`
	Attempts       int                `json:"attempts"`
	LastError      string             `json:"last_error,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	SentAt         *time.Time         `json:"sent_at,omitempty"`
}

// NotificationResult is what a sender reports for one delivery.
type NotificationResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
