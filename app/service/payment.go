package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-grading/app/entity"
	"github.com/vibast-solutions/ms-go-grading/app/factory"
	"github.com/vibast-solutions/ms-go-grading/app/provider"
	"github.com/vibast-solutions/ms-go-grading/app/repository"
)

const supersededMessage = "superseded by a newer payment intent"

type submissionPaymentRequest interface {
	GetSubmissionId() uint64
}

type confirmPaymentRequest interface {
	GetSubmissionId() uint64
	GetPaymentIntentId() string
}

type confirmPaymentMethodRequest interface {
	GetSubmissionId() uint64
	GetSetupIntentId() string
	GetPaymentMethodId() string
}

// PaymentSession is what a client needs to finish a payment step with the
// processor's client library.
type PaymentSession struct {
	Submission *entity.Submission
	Payment    *entity.Payment
	Intent     *provider.Intent
}

// paymentOutcome carries the processor references of a finished attempt.
type paymentOutcome struct {
	IntentID        string
	ChargeID        string
	ErrorMessage    string
	ActorID         string
	ProviderEventID *string
}

// InitiatePayNow opens a payment intent for the submission total. The
// submission is only marked paid once the intent is confirmed or the
// processor reports success.
func (s *SubmissionService) InitiatePayNow(ctx context.Context, actor *Actor, req submissionPaymentRequest) (*PaymentSession, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	sub, err := s.loadSubmission(ctx, req.GetSubmissionId())
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, sub); err != nil {
		return nil, err
	}
	if sub.IsPaid() {
		return nil, ErrAlreadyPaid
	}
	if sub.Pricing.TotalCents <= 0 {
		return nil, fmt.Errorf("%w: submission total must be positive", ErrInvalidRequest)
	}

	profile, err := s.ensureCustomerProfile(ctx, actor.ID, actor.Email)
	if err != nil {
		return nil, err
	}

	now := s.now()
	payment := &entity.Payment{
		SubmissionID: sub.ID,
		CustomerID:   sub.CustomerID,
		AmountCents:  sub.Pricing.TotalCents,
		Currency:     s.cfg.Currency,
		PaymentType:  entity.PaymentTypePayNow,
		Status:       entity.PaymentRecordPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	intent, err := s.processor.CreatePaymentIntent(ctx, &provider.PaymentIntentInput{
		AmountCents:      payment.AmountCents,
		Currency:         payment.Currency,
		StripeCustomerID: profile.StripeCustomerID,
		IdempotencyKey:   fmt.Sprintf("pay-now-%d", payment.ID),
		Metadata:         paymentMetadata(sub, payment),
	})
	if err != nil {
		s.failPendingPayment(ctx, payment, err)
		return nil, err
	}

	var previous *string
	updated, err := s.withConflictRetryTx(ctx, func(ctx context.Context) (*entity.Submission, error) {
		if err := s.paymentRepo.AttachIntent(ctx, payment.ID, intent.ID, s.now()); err != nil {
			return nil, err
		}

		current, err := s.loadSubmission(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		if current.IsPaid() {
			return nil, ErrAlreadyPaid
		}
		previous = current.StripePaymentIntentID
		current.StripePaymentIntentID = &intent.ID
		current.UpdatedAt = s.now()
		if err := s.submissionRepo.Update(ctx, current); err != nil {
			return nil, err
		}
		return current, nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyPaid) {
			_ = s.processor.CancelPaymentIntent(ctx, intent.ID)
			s.failPendingPayment(ctx, payment, err)
		}
		return nil, err
	}

	if previous != nil && *previous != intent.ID {
		s.supersedeIntent(ctx, *previous)
	}

	intentID := intent.ID
	payment.StripePaymentIntentID = &intentID
	return &PaymentSession{Submission: updated, Payment: payment, Intent: intent}, nil
}

// ConfirmPayNow re-reads the intent from the processor and applies the
// terminal transition it reports. Running it after the webhook already
// applied the same result is a no-op.
func (s *SubmissionService) ConfirmPayNow(ctx context.Context, actor *Actor, req confirmPaymentRequest) (*entity.Submission, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	sub, err := s.loadSubmission(ctx, req.GetSubmissionId())
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, sub); err != nil {
		return nil, err
	}

	intentID := strings.TrimSpace(req.GetPaymentIntentId())
	payment, err := s.paymentRepo.FindByIntentID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.SubmissionID != sub.ID {
		return nil, ErrIntentNotFound
	}
	if payment.Status == entity.PaymentRecordSucceeded && sub.IsPaid() {
		return sub, nil
	}

	intent, err := s.processor.GetPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	switch intent.Status {
	case provider.IntentSucceeded:
		updated, err := s.commitPaymentSuccess(ctx, payment.ID, paymentOutcome{
			IntentID: intent.ID,
			ChargeID: intent.ChargeID,
			ActorID:  actor.ID,
		}, "")
		if err != nil {
			return nil, err
		}
		if updated == nil {
			if updated, err = s.loadSubmission(ctx, sub.ID); err != nil {
				return nil, err
			}
		}
		if !updated.IsPaid() {
			return nil, ErrPaymentNotCompleted
		}
		return updated, nil
	case provider.IntentFailed, provider.IntentCanceled:
		message := intent.ErrorMessage
		if message == "" {
			message = "payment " + intent.Status
		}
		outcome := paymentOutcome{
			IntentID:     intent.ID,
			ErrorMessage: message,
			ActorID:      actor.ID,
		}
		// A declined intent stays open at the processor and the customer may
		// retry it; only a canceled one is final.
		if intent.Status == provider.IntentCanceled {
			err = s.commitPaymentFailure(ctx, payment.ID, outcome)
		} else {
			err = s.recordDeclinedAttempt(ctx, payment.ID, outcome)
		}
		if err != nil {
			return nil, err
		}
		return nil, &provider.ProcessorError{Code: "payment_" + intent.Status, Message: message}
	default:
		return nil, ErrPaymentNotCompleted
	}
}

// InitiatePayLater starts collecting a reusable payment method. Nothing is
// charged until the submission reaches the billing stage.
func (s *SubmissionService) InitiatePayLater(ctx context.Context, actor *Actor, req submissionPaymentRequest) (*PaymentSession, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	sub, err := s.loadSubmission(ctx, req.GetSubmissionId())
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, sub); err != nil {
		return nil, err
	}
	if sub.IsPaid() {
		return nil, ErrAlreadyPaid
	}

	profile, err := s.ensureCustomerProfile(ctx, actor.ID, actor.Email)
	if err != nil {
		return nil, err
	}

	intent, err := s.processor.CreateSetupIntent(ctx, &provider.SetupIntentInput{
		StripeCustomerID: profile.StripeCustomerID,
		Metadata: map[string]string{
			provider.MetadataSubmissionID: strconv.FormatUint(sub.ID, 10),
			provider.MetadataCustomerID:   sub.CustomerID,
		},
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.mutateSubmission(ctx, sub.ID, func(current *entity.Submission, now time.Time) (bool, error) {
		if current.IsPaid() {
			return false, ErrAlreadyPaid
		}
		current.StripeSetupIntentID = &intent.ID
		current.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return &PaymentSession{Submission: updated, Intent: intent}, nil
}

// ConfirmPaymentMethod stores the method collected by a confirmed setup
// intent. The submission stays unpaid.
func (s *SubmissionService) ConfirmPaymentMethod(ctx context.Context, actor *Actor, req confirmPaymentMethodRequest) (*entity.Submission, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	sub, err := s.loadSubmission(ctx, req.GetSubmissionId())
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, sub); err != nil {
		return nil, err
	}

	setupIntentID := strings.TrimSpace(req.GetSetupIntentId())
	if sub.StripeSetupIntentID == nil || *sub.StripeSetupIntentID != setupIntentID {
		return nil, ErrIntentNotFound
	}
	if sub.IsPaid() {
		return nil, ErrAlreadyPaid
	}

	intent, err := s.processor.GetSetupIntent(ctx, setupIntentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != provider.IntentSucceeded {
		return nil, fmt.Errorf("%w: setup intent is %s", ErrInvalidRequest, intent.Status)
	}

	methodID := strings.TrimSpace(req.GetPaymentMethodId())
	if methodID == "" {
		methodID = intent.PaymentMethodID
	}
	if methodID == "" {
		return nil, fmt.Errorf("%w: paymentMethodId is required", ErrInvalidRequest)
	}
	if intent.PaymentMethodID != "" && intent.PaymentMethodID != methodID {
		return nil, fmt.Errorf("%w: payment method does not match the setup intent", ErrInvalidRequest)
	}

	return s.attachMethod(ctx, sub.ID, methodID, actor.ID, nil)
}

// attachMethod stores a reusable payment method. Attaching the same method
// again changes nothing.
func (s *SubmissionService) attachMethod(ctx context.Context, submissionID uint64, methodID, actorID string, providerEventID *string) (*entity.Submission, error) {
	var oldStatus string
	attached := false
	sub, err := s.mutateSubmission(ctx, submissionID, func(sub *entity.Submission, now time.Time) (bool, error) {
		if sub.IsPaid() {
			return false, nil
		}
		if sub.StripePaymentMethodID != nil && *sub.StripePaymentMethodID == methodID {
			return false, nil
		}

		oldStatus = sub.SubmissionStatus
		sub.StripePaymentMethodID = &methodID
		if sub.SubmissionStatus == entity.StatusCreated {
			sub.SubmissionStatus = entity.StatusAwaitingShipment
		}
		sub.UpdatedAt = now
		attached = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if attached {
		s.recordEvent(ctx, sub, entity.SubmissionEventMethodAttached, &oldStatus, nil, actorID, providerEventID)
	}
	return sub, nil
}

// chargeStoredMethod charges the stored method off-session for the move to
// targetStatus. An off-session charge still pending from an earlier attempt
// is resumed instead of charging again: its intent is re-read, or, when the
// earlier call never returned an intent, the charge is re-sent under the
// same idempotency key.
func (s *SubmissionService) chargeStoredMethod(ctx context.Context, submissionID uint64, actorID, targetStatus string) (*entity.Payment, *provider.Intent, error) {
	payment, methodID, err := s.claimCharge(ctx, submissionID, targetStatus)
	if err != nil {
		return nil, nil, err
	}

	var intent *provider.Intent
	if payment.StripePaymentIntentID != nil {
		intent, err = s.processor.GetPaymentIntent(ctx, *payment.StripePaymentIntentID)
		if err != nil {
			return nil, nil, err
		}
	} else {
		profile, err := s.ensureCustomerProfile(ctx, payment.CustomerID, "")
		if err != nil {
			return nil, nil, err
		}

		intent, err = s.processor.ChargeOffSession(ctx, &provider.ChargeInput{
			AmountCents:      payment.AmountCents,
			Currency:         payment.Currency,
			StripeCustomerID: profile.StripeCustomerID,
			PaymentMethodID:  methodID,
			IdempotencyKey:   fmt.Sprintf("charge-%d", payment.ID),
			Metadata: map[string]string{
				provider.MetadataSubmissionID: strconv.FormatUint(payment.SubmissionID, 10),
				provider.MetadataPaymentID:    strconv.FormatUint(payment.ID, 10),
				provider.MetadataCustomerID:   payment.CustomerID,
			},
		})
		if err != nil {
			var processorErr *provider.ProcessorError
			if errors.As(err, &processorErr) {
				if commitErr := s.commitPaymentFailure(ctx, payment.ID, paymentOutcome{
					ErrorMessage: processorErr.Message,
					ActorID:      actorID,
				}); commitErr != nil {
					factory.LoggerFromContext(ctx, s.logger).WithError(commitErr).Error("failed to record declined charge")
				}
				return nil, nil, processorErr
			}
			// The charge may still have gone through; the row stays pending for
			// the webhook, the reconcile job or the next attempt.
			return nil, nil, err
		}

		if err := s.paymentRepo.AttachIntent(ctx, payment.ID, intent.ID, s.now()); err != nil {
			factory.LoggerFromContext(ctx, s.logger).WithError(err).WithField("payment_id", payment.ID).
				Warn("failed to store intent on payment")
		} else {
			intentID := intent.ID
			payment.StripePaymentIntentID = &intentID
		}
	}

	switch intent.Status {
	case provider.IntentSucceeded:
		return payment, intent, nil
	case provider.IntentFailed, provider.IntentCanceled:
		message := intent.ErrorMessage
		if message == "" {
			message = "payment " + intent.Status
		}
		if err := s.commitPaymentFailure(ctx, payment.ID, paymentOutcome{
			IntentID:     intent.ID,
			ErrorMessage: message,
			ActorID:      actorID,
		}); err != nil {
			return nil, nil, err
		}
		return nil, nil, &provider.ProcessorError{Code: "payment_" + intent.Status, Message: message}
	default:
		return nil, nil, ErrPaymentNotCompleted
	}
}

// claimCharge returns the submission's open off-session charge or creates
// one. Creating bumps the submission version in the same transaction, so of
// two concurrent claims one retries and finds the other's row.
func (s *SubmissionService) claimCharge(ctx context.Context, submissionID uint64, targetStatus string) (*entity.Payment, string, error) {
	var (
		payment  *entity.Payment
		methodID string
	)
	_, err := s.withConflictRetryTx(ctx, func(ctx context.Context) (*entity.Submission, error) {
		payment = nil

		sub, err := s.loadSubmission(ctx, submissionID)
		if err != nil {
			return nil, err
		}
		if sub.IsPaid() {
			return nil, ErrAlreadyPaid
		}
		if !sub.HasStoredPaymentMethod() {
			return nil, ErrPaymentRequired
		}
		methodID = *sub.StripePaymentMethodID

		open, err := s.paymentRepo.FindOpenCharge(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		if open != nil {
			payment = open
			return sub, nil
		}

		now := s.now()
		created := &entity.Payment{
			SubmissionID: sub.ID,
			CustomerID:   sub.CustomerID,
			AmountCents:  sub.Pricing.TotalCents,
			Currency:     s.cfg.Currency,
			PaymentType:  entity.PaymentTypePayLater,
			Status:       entity.PaymentRecordPending,
			TargetStatus: strPtr(targetStatus),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.paymentRepo.Create(ctx, created); err != nil {
			return nil, err
		}

		sub.UpdatedAt = now
		if err := s.submissionRepo.Update(ctx, sub); err != nil {
			return nil, err
		}
		payment = created
		return sub, nil
	})
	if err != nil {
		return nil, "", err
	}
	return payment, methodID, nil
}

// commitPaymentSuccess applies a succeeded payment and the status change it
// pays for, in one transaction. targetStatus is the change requested by the
// caller; without one, a target stored on the payment is applied when it is
// still ahead of the submission. It is safe to run more than once for the
// same payment and returns nil when there is nothing to apply to.
func (s *SubmissionService) commitPaymentSuccess(ctx context.Context, paymentID uint64, outcome paymentOutcome, targetStatus string) (*entity.Submission, error) {
	logger := factory.LoggerFromContext(ctx, s.logger)

	return s.withConflictRetryTx(ctx, func(ctx context.Context) (*entity.Submission, error) {
		now := s.now()
		completed, err := s.paymentRepo.CompletePending(ctx, paymentID, repository.PaymentCompletion{
			Status:                entity.PaymentRecordSucceeded,
			StripePaymentIntentID: strPtr(outcome.IntentID),
			StripeChargeID:        strPtr(outcome.ChargeID),
			At:                    now,
		})
		if err != nil {
			return nil, err
		}

		payment, err := s.paymentRepo.FindByID(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		if payment == nil {
			return nil, nil
		}
		if payment.Status != entity.PaymentRecordSucceeded {
			if payment.Status == entity.PaymentRecordFailed {
				logger.WithField("payment_id", payment.ID).Error("success reported for a closed payment; refund required")
			}
			return nil, nil
		}

		sub, err := s.submissionRepo.FindByID(ctx, payment.SubmissionID)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, nil
		}

		oldStatus := sub.SubmissionStatus
		oldPayment := sub.PaymentStatus
		fields := logrus.Fields{
			"submission_id": sub.ID,
			"payment_id":    payment.ID,
		}

		if sub.IsPaid() {
			if completed {
				logger.WithFields(fields).Error("payment succeeded for an already paid submission; refund required")
			}
		} else if payment.AmountCents != sub.Pricing.TotalCents {
			// The submission was re-priced after the charge started; the
			// captured amount does not cover it.
			if completed {
				logger.WithFields(fields).WithField("amount_cents", payment.AmountCents).
					WithField("total_cents", sub.Pricing.TotalCents).
					Error("payment amount does not match submission total; refund required")
				s.recordEvent(ctx, sub, entity.SubmissionEventAmountMismatch, &oldStatus, &oldPayment, outcome.ActorID, outcome.ProviderEventID)
			}
			return sub, nil
		}

		if targetStatus == "" && payment.TargetStatus != nil &&
			entity.StatusIndex(sub.SubmissionStatus) < entity.StatusIndex(*payment.TargetStatus) {
			targetStatus = *payment.TargetStatus
		}

		changed := false
		if !sub.IsPaid() {
			sub.MarkPaid(now)
			changed = true
			if targetStatus == "" && sub.SubmissionStatus == entity.StatusCreated {
				sub.SubmissionStatus = entity.StatusAwaitingShipment
			}
		}
		if targetStatus != "" && sub.SubmissionStatus != targetStatus {
			sub.SubmissionStatus = targetStatus
			changed = true
		}
		if !changed {
			return sub, nil
		}

		sub.UpdatedAt = now
		if err := s.submissionRepo.Update(ctx, sub); err != nil {
			return nil, err
		}

		eventType := entity.SubmissionEventPaid
		if payment.PaymentType == entity.PaymentTypePayLater && targetStatus != "" {
			eventType = entity.SubmissionEventAutoCharged
		}
		s.recordEvent(ctx, sub, eventType, &oldStatus, &oldPayment, outcome.ActorID, outcome.ProviderEventID)
		if oldStatus != sub.SubmissionStatus {
			s.recordEvent(ctx, sub, entity.SubmissionEventStatusChanged, &oldStatus, &oldPayment, outcome.ActorID, outcome.ProviderEventID)
		}
		return sub, nil
	})
}

// commitPaymentFailure closes a pending payment as failed.
func (s *SubmissionService) commitPaymentFailure(ctx context.Context, paymentID uint64, outcome paymentOutcome) error {
	return s.applyPaymentFailure(ctx, paymentID, outcome, true)
}

// recordDeclinedAttempt notes a declined attempt on an intent that stays
// open. The row remains pending so a later success on the same intent still
// pays the submission.
func (s *SubmissionService) recordDeclinedAttempt(ctx context.Context, paymentID uint64, outcome paymentOutcome) error {
	return s.applyPaymentFailure(ctx, paymentID, outcome, false)
}

// applyPaymentFailure writes a failure to the payment row. Only the intent a
// pay-now submission is currently waiting on can flag the submission failed;
// a failed deferred charge leaves the submission untouched.
func (s *SubmissionService) applyPaymentFailure(ctx context.Context, paymentID uint64, outcome paymentOutcome, final bool) error {
	_, err := s.withConflictRetryTx(ctx, func(ctx context.Context) (*entity.Submission, error) {
		now := s.now()
		message := truncate(outcome.ErrorMessage, 1024)

		var (
			applied bool
			err     error
		)
		if final {
			applied, err = s.paymentRepo.CompletePending(ctx, paymentID, repository.PaymentCompletion{
				Status:                entity.PaymentRecordFailed,
				StripePaymentIntentID: strPtr(outcome.IntentID),
				StripeChargeID:        strPtr(outcome.ChargeID),
				ErrorMessage:          strPtr(message),
				At:                    now,
			})
		} else {
			applied, err = s.paymentRepo.RefreshPending(ctx, paymentID, strPtr(message), now)
		}
		if err != nil || !applied {
			return nil, err
		}

		payment, err := s.paymentRepo.FindByID(ctx, paymentID)
		if err != nil || payment == nil {
			return nil, err
		}

		sub, err := s.submissionRepo.FindByID(ctx, payment.SubmissionID)
		if err != nil || sub == nil {
			return nil, err
		}

		oldStatus := sub.SubmissionStatus
		oldPayment := sub.PaymentStatus
		if payment.PaymentType == entity.PaymentTypePayNow &&
			payment.StripePaymentIntentID != nil &&
			sub.StripePaymentIntentID != nil &&
			*payment.StripePaymentIntentID == *sub.StripePaymentIntentID &&
			sub.MarkFailed(now) {
			if err := s.submissionRepo.Update(ctx, sub); err != nil {
				return nil, err
			}
		}

		s.recordEvent(ctx, sub, entity.SubmissionEventPaymentFailed, &oldStatus, &oldPayment, outcome.ActorID, outcome.ProviderEventID)
		return sub, nil
	})
	return err
}

func (s *SubmissionService) withConflictRetryTx(ctx context.Context, fn func(ctx context.Context) (*entity.Submission, error)) (*entity.Submission, error) {
	var result *entity.Submission
	err := s.retryOnConflict(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			sub, err := fn(ctx)
			if err != nil {
				return err
			}
			result = sub
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.invalidateAnalytics(ctx)
	return result, nil
}

// supersedeIntent cancels an intent that is no longer the one the submission
// waits on. Its payment row is closed only when the cancel went through.
func (s *SubmissionService) supersedeIntent(ctx context.Context, intentID string) {
	logger := factory.LoggerFromContext(ctx, s.logger).WithField("intent_id", intentID)

	if err := s.processor.CancelPaymentIntent(ctx, intentID); err != nil {
		logger.WithError(err).Info("could not cancel superseded intent")
		return
	}

	payment, err := s.paymentRepo.FindByIntentID(ctx, intentID)
	if err != nil || payment == nil || !payment.IsPending() {
		return
	}

	message := supersededMessage
	if _, err := s.paymentRepo.CompletePending(ctx, payment.ID, repository.PaymentCompletion{
		Status:       entity.PaymentRecordFailed,
		ErrorMessage: &message,
		At:           s.now(),
	}); err != nil {
		logger.WithError(err).Warn("failed to close superseded payment")
	}
}

func (s *SubmissionService) failPendingPayment(ctx context.Context, payment *entity.Payment, cause error) {
	message := truncate(cause.Error(), 1024)
	var processorErr *provider.ProcessorError
	if errors.As(cause, &processorErr) {
		message = truncate(processorErr.Message, 1024)
	}
	if _, err := s.paymentRepo.CompletePending(ctx, payment.ID, repository.PaymentCompletion{
		Status:       entity.PaymentRecordFailed,
		ErrorMessage: &message,
		At:           s.now(),
	}); err != nil {
		factory.LoggerFromContext(ctx, s.logger).WithError(err).Warn("failed to close payment after processor error")
	}
}

func (s *SubmissionService) ensureCustomerProfile(ctx context.Context, customerID, email string) (*entity.CustomerProfile, error) {
	profile, err := s.profileRepo.FindByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	stripeCustomerID, err := s.processor.CreateCustomer(ctx, &provider.CustomerInput{
		CustomerID: customerID,
		Email:      email,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	profile = &entity.CustomerProfile{
		CustomerID:       customerID,
		Email:            email,
		StripeCustomerID: stripeCustomerID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrCustomerProfileExists) {
			return s.profileRepo.FindByCustomerID(ctx, customerID)
		}
		return nil, err
	}
	return profile, nil
}

func paymentMetadata(sub *entity.Submission, payment *entity.Payment) map[string]string {
	return map[string]string{
		provider.MetadataSubmissionID: strconv.FormatUint(sub.ID, 10),
		provider.MetadataPaymentID:    strconv.FormatUint(payment.ID, 10),
		provider.MetadataCustomerID:   sub.CustomerID,
	}
}
