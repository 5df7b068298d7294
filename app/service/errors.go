package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidTier         = errors.New("invalid service tier")
	ErrInvalidStatus       = errors.New("invalid submission status")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrAccessDenied        = errors.New("access denied")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrIntentNotFound      = errors.New("payment intent not found for submission")
	ErrAlreadyPaid         = errors.New("submission is already paid")
	ErrImmutableSubmission = errors.New("paid submissions cannot be edited")
	ErrPaymentRequired     = errors.New("payment is required before changing status")
	ErrPaymentNotCompleted = errors.New("payment has not completed yet")
	ErrConcurrentUpdate    = errors.New("submission is being updated by another request")
	ErrWebhookRejected     = errors.New("webhook rejected")
)
