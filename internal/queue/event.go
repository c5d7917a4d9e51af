// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingCreatedEvent is published after a booking commits locally.
// It carries enough information for downstream consumers to log, notify
// the owner, or trigger analytics without querying the primary database.
type BookingCreatedEvent struct {
	BookingID    uint64 `json:"booking_id"`
	ResourceID   uint64 `json:"resource_id"`
	ResourceType string `json:"resource_type"`
	ResourceName string `json:"resource_name"`
	StartsAt     string `json:"starts_at"`
	EndsAt       string `json:"ends_at"`
	CustomerName string `json:"customer_name"`
	Source       string `json:"source"`
	CreatedAt    string `json:"created_at"`
}

// SyncCompletedEvent is published after each reconcile pass with the
// pass counters, so operators can watch divergence between calendars
// and the database without scraping logs.
type SyncCompletedEvent struct {
	ResourceID  uint64 `json:"resource_id"`
	Created     int    `json:"created"`
	SoftDeleted int    `json:"soft_deleted"`
	Protected   int    `json:"protected"`
	Drifted     int    `json:"drifted"`
	Errors      int    `json:"errors"`
	SyncedAt    string `json:"synced_at"`
}
