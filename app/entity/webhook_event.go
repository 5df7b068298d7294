package entity

import "time"

const (
	WebhookEventProcessed = "processed"
	WebhookEventIgnored   = "ignored"
)

type WebhookEvent struct {
	ID uint64

	ProviderEventID string
	EventType       string
	SubmissionID    *uint64

	PayloadJSON string
	Status      string
	Error       *string

	CreatedAt time.Time
}
