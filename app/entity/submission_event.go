package entity

import "time"

const (
	SubmissionEventCreated        = "submission_created"
	SubmissionEventDraftMerged    = "draft_merged"
	SubmissionEventEdited         = "submission_edited"
	SubmissionEventStatusChanged  = "status_changed"
	SubmissionEventPaid           = "payment_succeeded"
	SubmissionEventPaymentFailed  = "payment_failed"
	SubmissionEventMethodAttached = "payment_method_attached"
	SubmissionEventAutoCharged    = "auto_charged"
	SubmissionEventAmountMismatch = "payment_amount_mismatch"
)

type SubmissionEvent struct {
	ID uint64

	SubmissionID uint64

	EventType string

	OldSubmissionStatus *string
	NewSubmissionStatus string

	OldPaymentStatus *string
	NewPaymentStatus string

	ActorID         string
	ProviderEventID *string

	CreatedAt time.Time
}
