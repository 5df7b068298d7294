package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	APIBaseURL                string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
	Logger                    logrus.FieldLogger
}

type StripeProvider struct {
	cfg    StripeConfig
	client *client.API
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tolerance := cfg.SignatureToleranceSeconds
	if tolerance <= 0 {
		tolerance = 300
	}
	cfg.SignatureToleranceSeconds = tolerance

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.Logger != nil {
		backendCfg.LeveledLogger = cfg.Logger
	}
	if base := strings.TrimSpace(cfg.APIBaseURL); base != "" {
		backendCfg.URL = stripe.String(strings.TrimRight(base, "/"))
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
	})

	return &StripeProvider{cfg: cfg, client: api}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, input *CustomerInput) (string, error) {
	if err := p.requireSecretKey(); err != nil {
		return "", err
	}

	params := &stripe.CustomerParams{}
	params.Context = ctx
	if email := strings.TrimSpace(input.Email); email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata(MetadataCustomerID, input.CustomerID)

	customer, err := p.client.Customers.New(params)
	if err != nil {
		return "", wrapStripeError(err)
	}
	return customer.ID, nil
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, input *PaymentIntentInput) (*Intent, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(input.AmountCents),
		Currency: stripe.String(strings.ToLower(input.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if input.StripeCustomerID != "" {
		params.Customer = stripe.String(input.StripeCustomerID)
	}
	applyMetadata(&params.Params, input.Metadata, input.IdempotencyKey)

	pi, err := p.client.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return paymentIntentToIntent(pi), nil
}

func (p *StripeProvider) GetPaymentIntent(ctx context.Context, intentID string) (*Intent, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.client.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return paymentIntentToIntent(pi), nil
}

func (p *StripeProvider) CancelPaymentIntent(ctx context.Context, intentID string) error {
	if err := p.requireSecretKey(); err != nil {
		return err
	}

	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := p.client.PaymentIntents.Cancel(intentID, params); err != nil {
		return wrapStripeError(err)
	}
	return nil
}

// ChargeOffSession confirms a payment intent against a stored method without
// the customer present. A decline comes back as *ProcessorError.
func (p *StripeProvider) ChargeOffSession(ctx context.Context, input *ChargeInput) (*Intent, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.PaymentMethodID) == "" {
		return nil, errors.New("payment method is required for off-session charge")
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(input.AmountCents),
		Currency:      stripe.String(strings.ToLower(input.Currency)),
		PaymentMethod: stripe.String(input.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	if input.StripeCustomerID != "" {
		params.Customer = stripe.String(input.StripeCustomerID)
	}
	applyMetadata(&params.Params, input.Metadata, input.IdempotencyKey)

	pi, err := p.client.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	intent := paymentIntentToIntent(pi)
	if intent.Status == IntentFailed || intent.Status == IntentCanceled {
		message := intent.ErrorMessage
		if message == "" {
			message = "off-session charge was not completed"
		}
		return intent, &ProcessorError{Code: string(pi.Status), Message: message}
	}
	return intent, nil
}

func (p *StripeProvider) CreateSetupIntent(ctx context.Context, input *SetupIntentInput) (*Intent, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	params := &stripe.SetupIntentParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Usage:              stripe.String("off_session"),
	}
	params.Context = ctx
	if input.StripeCustomerID != "" {
		params.Customer = stripe.String(input.StripeCustomerID)
	}
	applyMetadata(&params.Params, input.Metadata, "")

	si, err := p.client.SetupIntents.New(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return setupIntentToIntent(si), nil
}

func (p *StripeProvider) GetSetupIntent(ctx context.Context, intentID string) (*Intent, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	params := &stripe.SetupIntentParams{}
	params.Context = ctx
	si, err := p.client.SetupIntents.Get(intentID, params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return setupIntentToIntent(si), nil
}

func (p *StripeProvider) VerifyAndParseWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if strings.TrimSpace(p.cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("%w: webhook secret is not configured", ErrWebhookVerification)
	}

	event, err := webhook.ConstructEventWithOptions(payload, strings.TrimSpace(signature), p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                time.Duration(p.cfg.SignatureToleranceSeconds) * time.Second,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookVerification, err)
	}

	result := &WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if event.Data == nil {
		return result, nil
	}

	switch result.Type {
	case EventPaymentIntentSucceeded, EventPaymentIntentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, err
		}
		intent := paymentIntentToIntent(&pi)
		result.PaymentIntentID = intent.ID
		result.ChargeID = intent.ChargeID
		result.PaymentMethodID = intent.PaymentMethodID
		result.ErrorMessage = intent.ErrorMessage
		result.Metadata = intent.Metadata
	case EventChargeSucceeded, EventChargeFailed:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, err
		}
		result.ChargeID = ch.ID
		if ch.PaymentIntent != nil {
			result.PaymentIntentID = ch.PaymentIntent.ID
		}
		result.PaymentMethodID = ch.PaymentMethod
		result.ErrorMessage = ch.FailureMessage
		result.Metadata = cloneStringMap(ch.Metadata)
	case EventSetupIntentSucceeded:
		var si stripe.SetupIntent
		if err := json.Unmarshal(event.Data.Raw, &si); err != nil {
			return nil, err
		}
		intent := setupIntentToIntent(&si)
		result.SetupIntentID = intent.ID
		result.PaymentMethodID = intent.PaymentMethodID
		result.Metadata = intent.Metadata
	}

	return result, nil
}

func (p *StripeProvider) requireSecretKey() error {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return errors.New("stripe secret key is not configured")
	}
	return nil
}

func applyMetadata(params *stripe.Params, metadata map[string]string, idempotencyKey string) {
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
}

func paymentIntentToIntent(pi *stripe.PaymentIntent) *Intent {
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Metadata:     cloneStringMap(pi.Metadata),
	}
	if pi.LatestCharge != nil {
		intent.ChargeID = pi.LatestCharge.ID
	}
	if pi.PaymentMethod != nil {
		intent.PaymentMethodID = pi.PaymentMethod.ID
	}
	if pi.LastPaymentError != nil {
		intent.ErrorMessage = pi.LastPaymentError.Msg
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		intent.Status = IntentSucceeded
	case stripe.PaymentIntentStatusProcessing:
		intent.Status = IntentProcessing
	case stripe.PaymentIntentStatusCanceled:
		intent.Status = IntentCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// A fresh intent also starts here; only a recorded error makes it a failure.
		if pi.LastPaymentError != nil {
			intent.Status = IntentFailed
		} else {
			intent.Status = IntentPending
		}
	default:
		intent.Status = IntentPending
	}
	return intent
}

func setupIntentToIntent(si *stripe.SetupIntent) *Intent {
	intent := &Intent{
		ID:           si.ID,
		ClientSecret: si.ClientSecret,
		Metadata:     cloneStringMap(si.Metadata),
	}
	if si.PaymentMethod != nil {
		intent.PaymentMethodID = si.PaymentMethod.ID
	}

	switch si.Status {
	case stripe.SetupIntentStatusSucceeded:
		intent.Status = IntentSucceeded
	case stripe.SetupIntentStatusProcessing:
		intent.Status = IntentProcessing
	case stripe.SetupIntentStatusCanceled:
		intent.Status = IntentCanceled
	default:
		intent.Status = IntentPending
	}
	return intent
}

// wrapStripeError turns request-level rejections (declines, invalid
// parameters) into *ProcessorError and leaves transport or auth failures as-is.
func wrapStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return err
	}
	switch stripeErr.HTTPStatusCode {
	case http.StatusBadRequest, http.StatusPaymentRequired, http.StatusNotFound:
		message := strings.TrimSpace(stripeErr.Msg)
		if message == "" {
			message = "payment was declined"
		}
		return &ProcessorError{Code: string(stripeErr.Code), Message: message}
	default:
		return err
	}
}

func cloneStringMap(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
