package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-grading/app/entity"
	"github.com/vibast-solutions/ms-go-grading/app/factory"
	"github.com/vibast-solutions/ms-go-grading/app/provider"
	"github.com/vibast-solutions/ms-go-grading/app/repository"
)

const (
	WebhookOutcomeProcessed = entity.WebhookEventProcessed
	WebhookOutcomeIgnored   = entity.WebhookEventIgnored
	WebhookOutcomeDuplicate = "duplicate"

	webhookActor = "stripe"
)

type stripeWebhookRequest interface {
	GetSignature() string
	GetPayload() []byte
}

// HandleStripeWebhook verifies and applies a processor event. Anything that
// passes verification is acknowledged, including unknown types, redelivered
// events and events for records this service does not know.
func (s *SubmissionService) HandleStripeWebhook(ctx context.Context, req stripeWebhookRequest) (string, error) {
	logger := factory.LoggerFromContext(ctx, s.logger)

	event, err := s.processor.VerifyAndParseWebhook(ctx, req.GetPayload(), strings.TrimSpace(req.GetSignature()))
	if err != nil {
		logger.WithError(err).Warn("rejected stripe webhook")
		return "", ErrWebhookRejected
	}

	existing, err := s.webhookRepo.FindByProviderEventID(ctx, event.ID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return WebhookOutcomeDuplicate, nil
	}

	submissionID, applied, err := s.applyWebhookEvent(ctx, event)
	if err != nil {
		// Not recorded, so the processor's redelivery gets another try.
		return "", err
	}

	outcome := WebhookOutcomeIgnored
	if applied {
		outcome = WebhookOutcomeProcessed
	}

	record := &entity.WebhookEvent{
		ProviderEventID: event.ID,
		EventType:       event.Type,
		SubmissionID:    submissionID,
		PayloadJSON:     string(req.GetPayload()),
		Status:          outcome,
		CreatedAt:       s.now(),
	}
	if err := s.webhookRepo.Create(ctx, record); err != nil && !errors.Is(err, repository.ErrWebhookEventAlreadyProcessed) {
		logger.WithError(err).WithField("event_id", event.ID).Warn("failed to record webhook event")
	}

	logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"outcome":    outcome,
	}).Info("stripe webhook handled")
	return outcome, nil
}

func (s *SubmissionService) applyWebhookEvent(ctx context.Context, event *provider.WebhookEvent) (*uint64, bool, error) {
	eventID := event.ID

	switch event.Type {
	case provider.EventPaymentIntentSucceeded, provider.EventChargeSucceeded:
		payment, err := s.findPaymentForEvent(ctx, event)
		if err != nil || payment == nil {
			return nil, false, err
		}
		submissionID := payment.SubmissionID
		if payment.IsTerminal() {
			if payment.Status == entity.PaymentRecordFailed {
				factory.LoggerFromContext(ctx, s.logger).WithFields(logrus.Fields{
					"payment_id": payment.ID,
					"event_id":   event.ID,
				}).Error("success reported for a closed payment; refund required")
			}
			return &submissionID, false, nil
		}

		sub, err := s.commitPaymentSuccess(ctx, payment.ID, paymentOutcome{
			IntentID:        event.PaymentIntentID,
			ChargeID:        event.ChargeID,
			ActorID:         webhookActor,
			ProviderEventID: &eventID,
		}, "")
		if err != nil {
			return nil, false, err
		}
		return &submissionID, sub != nil, nil

	case provider.EventPaymentIntentFailed, provider.EventChargeFailed:
		payment, err := s.findPaymentForEvent(ctx, event)
		if err != nil || payment == nil {
			return nil, false, err
		}
		submissionID := payment.SubmissionID
		if payment.IsTerminal() {
			return &submissionID, false, nil
		}

		message := event.ErrorMessage
		if message == "" {
			message = "payment failed"
		}
		outcome := paymentOutcome{
			IntentID:        event.PaymentIntentID,
			ChargeID:        event.ChargeID,
			ErrorMessage:    message,
			ActorID:         webhookActor,
			ProviderEventID: &eventID,
		}
		// The customer can retry a declined pay-now intent, so its row stays
		// open. A declined off-session charge is final.
		if payment.PaymentType == entity.PaymentTypePayNow {
			err = s.recordDeclinedAttempt(ctx, payment.ID, outcome)
		} else {
			err = s.commitPaymentFailure(ctx, payment.ID, outcome)
		}
		if err != nil {
			return nil, false, err
		}
		return &submissionID, true, nil

	case provider.EventSetupIntentSucceeded:
		if event.SetupIntentID == "" || event.PaymentMethodID == "" {
			return nil, false, nil
		}
		sub, err := s.submissionRepo.FindBySetupIntentID(ctx, event.SetupIntentID)
		if err != nil || sub == nil {
			return nil, false, err
		}
		submissionID := sub.ID
		if sub.IsPaid() {
			return &submissionID, false, nil
		}
		if _, err := s.attachMethod(ctx, sub.ID, event.PaymentMethodID, webhookActor, &eventID); err != nil {
			return nil, false, err
		}
		return &submissionID, true, nil
	}

	return nil, false, nil
}

// findPaymentForEvent looks the payment up by intent id, then by the
// payment id stamped into the intent metadata.
func (s *SubmissionService) findPaymentForEvent(ctx context.Context, event *provider.WebhookEvent) (*entity.Payment, error) {
	if event.PaymentIntentID != "" {
		payment, err := s.paymentRepo.FindByIntentID(ctx, event.PaymentIntentID)
		if err != nil || payment != nil {
			return payment, err
		}
	}

	raw := strings.TrimSpace(event.Metadata[provider.MetadataPaymentID])
	if raw == "" {
		return nil, nil
	}
	paymentID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, nil
	}

	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil || payment == nil {
		return nil, err
	}
	if payment.StripePaymentIntentID != nil && event.PaymentIntentID != "" && *payment.StripePaymentIntentID != event.PaymentIntentID {
		return nil, nil
	}
	return payment, nil
}
