package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-grading/app/entity"
)

type updateStatusRequest interface {
	GetId() uint64
	GetStatus() string
}

// UpdateStatus moves a submission along the pipeline. A submission must be
// paid, or carry a stored payment method, before an admin can move it.
// Reaching the billing stage with a stored method charges it first; a
// failed charge leaves both status and payment status unchanged.
func (s *SubmissionService) UpdateStatus(ctx context.Context, actor *Actor, req updateStatusRequest) (*entity.Submission, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	target := strings.TrimSpace(req.GetStatus())
	if !entity.IsValidStatus(target) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}

	release, err := s.acquireSubmissionLock(ctx, req.GetId())
	if err != nil {
		return nil, err
	}
	defer release()

	sub, err := s.loadSubmission(ctx, req.GetId())
	if err != nil {
		return nil, err
	}
	if sub.SubmissionStatus == target {
		return sub, nil
	}

	if !sub.IsPaid() {
		if !sub.HasStoredPaymentMethod() {
			return nil, ErrPaymentRequired
		}
		if entity.StatusIndex(target) >= entity.StatusIndex(entity.BillingTriggerStatus) {
			return s.autoCharge(ctx, actor, sub, target)
		}
	}

	var oldStatus string
	updated, err := s.mutateSubmission(ctx, sub.ID, func(current *entity.Submission, now time.Time) (bool, error) {
		if current.SubmissionStatus == target {
			return false, nil
		}
		if !current.IsPaid() && !current.HasStoredPaymentMethod() {
			return false, ErrPaymentRequired
		}
		if !current.IsPaid() && entity.StatusIndex(target) >= entity.StatusIndex(entity.BillingTriggerStatus) {
			return false, ErrPaymentRequired
		}
		oldStatus = current.SubmissionStatus
		current.SubmissionStatus = target
		current.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if oldStatus != "" {
		s.recordEvent(ctx, updated, entity.SubmissionEventStatusChanged, &oldStatus, nil, actor.ID, nil)
	}
	return updated, nil
}

func (s *SubmissionService) autoCharge(ctx context.Context, actor *Actor, sub *entity.Submission, target string) (*entity.Submission, error) {
	payment, intent, err := s.chargeStoredMethod(ctx, sub.ID, actor.ID, target)
	if err != nil {
		return nil, err
	}

	updated, err := s.commitPaymentSuccess(ctx, payment.ID, paymentOutcome{
		IntentID: intent.ID,
		ChargeID: intent.ChargeID,
		ActorID:  actor.ID,
	}, target)
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
}
