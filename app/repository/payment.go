package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-grading/app/entity"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
)

const paymentColumns = `
	id, submission_id, customer_id, amount_cents, currency, payment_type, status,
	stripe_payment_intent_id, stripe_charge_id, error_message, target_status, created_at, updated_at
`

// PaymentCompletion describes the single allowed move of a pending payment
// into a terminal state.
type PaymentCompletion struct {
	Status                string
	StripePaymentIntentID *string
	StripeChargeID        *string
	ErrorMessage          *string
	At                    time.Time
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (
			submission_id, customer_id, amount_cents, currency, payment_type, status,
			stripe_payment_intent_id, stripe_charge_id, error_message, target_status, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		payment.SubmissionID,
		payment.CustomerID,
		payment.AmountCents,
		payment.Currency,
		payment.PaymentType,
		payment.Status,
		nullableStringValue(payment.StripePaymentIntentID),
		nullableStringValue(payment.StripeChargeID),
		nullableStringValue(payment.ErrorMessage),
		nullableStringValue(payment.TargetStatus),
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = uint64(id)
	return nil
}

// CompletePending moves a pending payment to a terminal state. It reports
// false without error when the row already left pending.
func (r *PaymentRepository) CompletePending(ctx context.Context, id uint64, completion PaymentCompletion) (bool, error) {
	query := `
		UPDATE payments SET
			status = ?,
			stripe_payment_intent_id = COALESCE(?, stripe_payment_intent_id),
			stripe_charge_id = COALESCE(?, stripe_charge_id),
			error_message = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		completion.Status,
		nullableStringValue(completion.StripePaymentIntentID),
		nullableStringValue(completion.StripeChargeID),
		nullableStringValue(completion.ErrorMessage),
		completion.At,
		id,
		entity.PaymentRecordPending,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return false, ErrPaymentAlreadyExists
		}
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RefreshPending bumps a pending row's updated_at and, when errorMessage is
// set, records the last declined attempt. It reports false when the row is
// no longer pending.
func (r *PaymentRepository) RefreshPending(ctx context.Context, id uint64, errorMessage *string, at time.Time) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE payments SET error_message = COALESCE(?, error_message), updated_at = ? WHERE id = ? AND status = ?",
		nullableStringValue(errorMessage), at, id, entity.PaymentRecordPending,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// AttachIntent records the processor intent of a payment that is still
// pending.
func (r *PaymentRepository) AttachIntent(ctx context.Context, id uint64, intentID string, at time.Time) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE payments SET stripe_payment_intent_id = ?, updated_at = ? WHERE id = ? AND status = ?",
		intentID, at, id, entity.PaymentRecordPending,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uint64) (*entity.Payment, error) {
	return r.findOne(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = ?", id)
}

func (r *PaymentRepository) FindByIntentID(ctx context.Context, intentID string) (*entity.Payment, error) {
	return r.findOne(ctx, "SELECT "+paymentColumns+" FROM payments WHERE stripe_payment_intent_id = ? LIMIT 1", intentID)
}

// FindOpenCharge returns the newest off-session charge of a submission that
// is still pending, if any.
func (r *PaymentRepository) FindOpenCharge(ctx context.Context, submissionID uint64) (*entity.Payment, error) {
	query := "SELECT " + paymentColumns + `
		FROM payments
		WHERE submission_id = ? AND payment_type = ? AND status = ?
		ORDER BY id DESC
		LIMIT 1
	`
	return r.findOne(ctx, query, submissionID, entity.PaymentTypePayLater, entity.PaymentRecordPending)
}

func (r *PaymentRepository) ListBySubmission(ctx context.Context, submissionID uint64) ([]*entity.Payment, error) {
	return r.list(ctx, "SELECT "+paymentColumns+" FROM payments WHERE submission_id = ? ORDER BY id DESC", submissionID)
}

func (r *PaymentRepository) ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	query := "SELECT " + paymentColumns + `
		FROM payments
		WHERE status = ?
		  AND stripe_payment_intent_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`
	return r.list(ctx, query, entity.PaymentRecordPending, before, limit)
}

func (r *PaymentRepository) SumSucceededCents(ctx context.Context) (int64, error) {
	var total int64
	err := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE status = ?",
		entity.PaymentRecordSucceeded,
	).Scan(&total)
	return total, err
}

func (r *PaymentRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Payment, error) {
	payment := &entity.Payment{}
	if err := scanPayment(conn(ctx, r.db).QueryRowContext(ctx, query, args...), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *PaymentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Payment, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var intentID sql.NullString
	var chargeID sql.NullString
	var errorMessage sql.NullString
	var targetStatus sql.NullString

	err := scan.Scan(
		&payment.ID,
		&payment.SubmissionID,
		&payment.CustomerID,
		&payment.AmountCents,
		&payment.Currency,
		&payment.PaymentType,
		&payment.Status,
		&intentID,
		&chargeID,
		&errorMessage,
		&targetStatus,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	payment.StripePaymentIntentID = stringPtrFromNull(intentID)
	payment.StripeChargeID = stringPtrFromNull(chargeID)
	payment.ErrorMessage = stringPtrFromNull(errorMessage)
	payment.TargetStatus = stringPtrFromNull(targetStatus)
	return nil
}
