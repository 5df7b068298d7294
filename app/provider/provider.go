package provider

import (
	"context"
	"errors"
	"fmt"
)

var ErrWebhookVerification = errors.New("webhook verification failed")

// Normalized intent states shared by payment and setup intents. A failed
// payment intent had its last attempt declined but can still be retried;
// only canceled is final.
const (
	IntentPending    = "pending"
	IntentProcessing = "processing"
	IntentSucceeded  = "succeeded"
	IntentFailed     = "failed"
	IntentCanceled   = "canceled"
)

const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventChargeSucceeded        = "charge.succeeded"
	EventChargeFailed           = "charge.failed"
	EventSetupIntentSucceeded   = "setup_intent.succeeded"
)

const (
	MetadataSubmissionID = "submission_id"
	MetadataPaymentID    = "payment_id"
	MetadataCustomerID   = "customer_id"
)

type CustomerInput struct {
	CustomerID string
	Email      string
}

type PaymentIntentInput struct {
	AmountCents      int64
	Currency         string
	StripeCustomerID string
	IdempotencyKey   string
	Metadata         map[string]string
}

type ChargeInput struct {
	AmountCents      int64
	Currency         string
	StripeCustomerID string
	PaymentMethodID  string
	IdempotencyKey   string
	Metadata         map[string]string
}

type SetupIntentInput struct {
	StripeCustomerID string
	Metadata         map[string]string
}

type Intent struct {
	ID              string
	ClientSecret    string
	Status          string
	ChargeID        string
	PaymentMethodID string
	ErrorMessage    string
	Metadata        map[string]string
}

// WebhookEvent is a verified processor event reduced to the fields the
// reconciliation path needs.
type WebhookEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	SetupIntentID   string
	ChargeID        string
	PaymentMethodID string
	ErrorMessage    string
	Metadata        map[string]string
}

// ProcessorError is a declined or rejected processor call. Only the upstream
// message and code are ever exposed to clients.
type ProcessorError struct {
	Code    string
	Message string
}

func (e *ProcessorError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("payment processor error: %s", e.Message)
	}
	return fmt.Sprintf("payment processor error (%s): %s", e.Code, e.Message)
}

type Provider interface {
	CreateCustomer(ctx context.Context, input *CustomerInput) (string, error)
	CreatePaymentIntent(ctx context.Context, input *PaymentIntentInput) (*Intent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*Intent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
	ChargeOffSession(ctx context.Context, input *ChargeInput) (*Intent, error)
	CreateSetupIntent(ctx context.Context, input *SetupIntentInput) (*Intent, error)
	GetSetupIntent(ctx context.Context, intentID string) (*Intent, error)
	VerifyAndParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}
