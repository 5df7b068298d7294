package service

import (
	"context"
	"strings"

	"github.com/vibast-solutions/ms-go-grading/app/entity"
	"github.com/vibast-solutions/ms-go-grading/app/factory"
	"github.com/vibast-solutions/ms-go-grading/app/provider"
)

const reconcileActor = "reconcile-job"

// RunReconcileBatch re-reads intents of payments stuck in pending and
// applies the result the webhook would have applied. It never starts a
// charge.
func (s *SubmissionService) RunReconcileBatch(ctx context.Context) (int, error) {
	before := s.now().Add(-s.cfg.ReconcileStaleAfter)
	items, err := s.paymentRepo.ListStalePending(ctx, before, s.batchSize())
	if err != nil {
		return 0, err
	}

	applied := 0
	var firstErr error
	for _, payment := range items {
		if payment == nil || payment.StripePaymentIntentID == nil || strings.TrimSpace(*payment.StripePaymentIntentID) == "" {
			continue
		}

		intent, err := s.processor.GetPaymentIntent(ctx, *payment.StripePaymentIntentID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		switch intent.Status {
		case provider.IntentSucceeded:
			_, err = s.commitPaymentSuccess(ctx, payment.ID, paymentOutcome{
				IntentID: intent.ID,
				ChargeID: intent.ChargeID,
				ActorID:  reconcileActor,
			}, "")
		case provider.IntentFailed, provider.IntentCanceled:
			message := intent.ErrorMessage
			if message == "" {
				message = "payment " + intent.Status
			}
			outcome := paymentOutcome{
				IntentID:     intent.ID,
				ErrorMessage: message,
				ActorID:      reconcileActor,
			}
			if intent.Status == provider.IntentCanceled || payment.PaymentType != entity.PaymentTypePayNow {
				err = s.commitPaymentFailure(ctx, payment.ID, outcome)
				break
			}
			if payment.ErrorMessage != nil && *payment.ErrorMessage == truncate(message, 1024) {
				// Decline already recorded; the customer has not retried yet.
				s.touchPending(ctx, payment.ID)
				continue
			}
			err = s.recordDeclinedAttempt(ctx, payment.ID, outcome)
		default:
			s.touchPending(ctx, payment.ID)
			continue
		}
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		applied++
	}

	return applied, firstErr
}

// touchPending moves a still-open payment to the back of the stale queue so
// long-lived intents do not starve the batch.
func (s *SubmissionService) touchPending(ctx context.Context, paymentID uint64) {
	if _, err := s.paymentRepo.RefreshPending(ctx, paymentID, nil, s.now()); err != nil {
		factory.LoggerFromContext(ctx, s.logger).WithError(err).WithField("payment_id", paymentID).
			Warn("failed to refresh pending payment")
	}
}

func (s *SubmissionService) batchSize() int32 {
	if s.cfg.JobBatchSize > 0 {
		return s.cfg.JobBatchSize
	}
	return defaultBatchSize
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
