package entity

import "time"

const (
	PaymentTypePayNow   = "pay_now"
	PaymentTypePayLater = "pay_later"
)

const (
	PaymentRecordPending   = "pending"
	PaymentRecordSucceeded = "succeeded"
	PaymentRecordFailed    = "failed"
	PaymentRecordRefunded  = "refunded"
)

const DefaultCurrency = "USD"

// Payment is the audit row for one processor intent against a submission.
// A row leaves pending once. A declined attempt on an intent the customer can
// still retry keeps the row pending with the decline in ErrorMessage.
type Payment struct {
	ID uint64

	SubmissionID uint64
	CustomerID   string

	AmountCents int64
	Currency    string

	PaymentType string
	Status      string

	StripePaymentIntentID *string
	StripeChargeID        *string
	ErrorMessage          *string

	// TargetStatus is the stage an off-session charge was started for. A
	// success that lands after the request returned still moves the
	// submission there.
	TargetStatus *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Payment) IsPending() bool {
	return p.Status == PaymentRecordPending
}

func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentRecordSucceeded, PaymentRecordFailed, PaymentRecordRefunded:
		return true
	default:
		return false
	}
}
