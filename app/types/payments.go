package types

import (
	"errors"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
)

type PayNowRequest struct {
	SubmissionId uint64 `json:"submissionId"`
}

func (r *PayNowRequest) GetSubmissionId() uint64 { return r.SubmissionId }

func NewPayNowRequestFromContext(ctx echo.Context) (*PayNowRequest, error) {
	var body PayNowRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *PayNowRequest) Validate() error {
	if r.SubmissionId == 0 {
		return errors.New("submissionId is required")
	}
	return nil
}

type ConfirmPaymentRequest struct {
	SubmissionId    uint64 `json:"submissionId"`
	PaymentIntentId string `json:"paymentIntentId"`
}

func (r *ConfirmPaymentRequest) GetSubmissionId() uint64    { return r.SubmissionId }
func (r *ConfirmPaymentRequest) GetPaymentIntentId() string { return r.PaymentIntentId }

func NewConfirmPaymentRequestFromContext(ctx echo.Context) (*ConfirmPaymentRequest, error) {
	var body ConfirmPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.PaymentIntentId = strings.TrimSpace(body.PaymentIntentId)
	return &body, nil
}

func (r *ConfirmPaymentRequest) Validate() error {
	if r.SubmissionId == 0 {
		return errors.New("submissionId is required")
	}
	if r.PaymentIntentId == "" {
		return errors.New("paymentIntentId is required")
	}
	return nil
}

type PayLaterRequest struct {
	SubmissionId uint64 `json:"submissionId"`
}

func (r *PayLaterRequest) GetSubmissionId() uint64 { return r.SubmissionId }

func NewPayLaterRequestFromContext(ctx echo.Context) (*PayLaterRequest, error) {
	var body PayLaterRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *PayLaterRequest) Validate() error {
	if r.SubmissionId == 0 {
		return errors.New("submissionId is required")
	}
	return nil
}

type ConfirmPaymentMethodRequest struct {
	SubmissionId    uint64 `json:"submissionId"`
	SetupIntentId   string `json:"setupIntentId"`
	PaymentMethodId string `json:"paymentMethodId"`
}

func (r *ConfirmPaymentMethodRequest) GetSubmissionId() uint64    { return r.SubmissionId }
func (r *ConfirmPaymentMethodRequest) GetSetupIntentId() string   { return r.SetupIntentId }
func (r *ConfirmPaymentMethodRequest) GetPaymentMethodId() string { return r.PaymentMethodId }

func NewConfirmPaymentMethodRequestFromContext(ctx echo.Context) (*ConfirmPaymentMethodRequest, error) {
	var body ConfirmPaymentMethodRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.SetupIntentId = strings.TrimSpace(body.SetupIntentId)
	body.PaymentMethodId = strings.TrimSpace(body.PaymentMethodId)
	return &body, nil
}

func (r *ConfirmPaymentMethodRequest) Validate() error {
	if r.SubmissionId == 0 {
		return errors.New("submissionId is required")
	}
	if r.SetupIntentId == "" {
		return errors.New("setupIntentId is required")
	}
	return nil
}

// StripeWebhookRequest carries the raw body untouched; signature checks
// run over the exact bytes Stripe sent.
type StripeWebhookRequest struct {
	Signature string
	Payload   []byte
}

func (r *StripeWebhookRequest) GetSignature() string { return r.Signature }
func (r *StripeWebhookRequest) GetPayload() []byte   { return r.Payload }

func NewStripeWebhookRequestFromContext(ctx echo.Context) (*StripeWebhookRequest, error) {
	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}
	return &StripeWebhookRequest{
		Signature: strings.TrimSpace(ctx.Request().Header.Get("Stripe-Signature")),
		Payload:   rawBody,
	}, nil
}

func (r *StripeWebhookRequest) Validate() error {
	if r.Signature == "" {
		return errors.New("Stripe-Signature header is required")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	return nil
}

type IntentResponse struct {
	SubmissionId    uint64 `json:"submissionId"`
	PaymentId       uint64 `json:"paymentId,omitempty"`
	IntentId        string `json:"intentId"`
	ClientSecret    string `json:"clientSecret"`
	Status          string `json:"status"`
	Amount          string `json:"amount,omitempty"`
	Currency        string `json:"currency,omitempty"`
	PaymentRequired bool   `json:"paymentRequired"`
}

type PaymentResponse struct {
	Id                    uint64 `json:"id"`
	SubmissionId          uint64 `json:"submissionId"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	PaymentType           string `json:"paymentType"`
	Status                string `json:"status"`
	StripePaymentIntentId string `json:"stripePaymentIntentId,omitempty"`
	StripeChargeId        string `json:"stripeChargeId,omitempty"`
	ErrorMessage          string `json:"errorMessage,omitempty"`
	CreatedAt             string `json:"createdAt"`
	UpdatedAt             string `json:"updatedAt"`
}

type ListPaymentsResponse struct {
	Payments []*PaymentResponse `json:"payments"`
}

type WebhookAckResponse struct {
	Received bool   `json:"received"`
	Status   string `json:"status"`
}
