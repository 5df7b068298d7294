package entity

import "time"

const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
	PaymentStatusFailed = "failed"
)

const (
	StatusCreated          = "Created"
	StatusAwaitingShipment = "Awaiting Shipment"
	StatusReceived         = "Received"
	StatusInGrading        = "In Grading"
	StatusReadyForPayment  = "Ready for Payment"
	StatusShipped          = "Shipped"
	StatusCompleted        = "Completed"
)

// BillingTriggerStatus is the first pipeline stage at which a stored payment
// method gets charged.
const BillingTriggerStatus = StatusReadyForPayment

var statusPipeline = []string{
	StatusCreated,
	StatusAwaitingShipment,
	StatusReceived,
	StatusInGrading,
	StatusReadyForPayment,
	StatusShipped,
	StatusCompleted,
}

const (
	TierSpeedDemon  = "SPEED_DEMON"
	TierTheStandard = "THE_STANDARD"
	TierBigMoney    = "BIG_MONEY"
)

const (
	PricingModelTier    = "tier"
	PricingModelPerCard = "per_card"
)

const (
	CardStatusUnpaid = "unpaid"
	CardStatusPaid   = "paid"
)

type Card struct {
	ID         string
	Player     string
	Year       string
	Set        string
	CardNumber string
	Notes      string
	PriceCents int64
	IsDeleted  bool
	Status     string
}

type Pricing struct {
	BasePriceCents     int64
	ProcessingFeeCents int64
	TotalCents         int64
}

type Submission struct {
	ID uint64

	CustomerID string

	Cards     []Card
	CardCount int32

	PricingModel string
	ServiceTier  string
	Pricing      Pricing

	PaymentStatus    string
	SubmissionStatus string

	StripePaymentIntentID *string
	StripeSetupIntentID   *string
	StripePaymentMethodID *string

	OrderSummary string

	Version uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusPipeline returns the ordered operational stages.
func StatusPipeline() []string {
	out := make([]string, len(statusPipeline))
	copy(out, statusPipeline)
	return out
}

// StatusIndex returns the position of status in the pipeline, or -1.
func StatusIndex(status string) int {
	for i, s := range statusPipeline {
		if s == status {
			return i
		}
	}
	return -1
}

func IsValidStatus(status string) bool {
	return StatusIndex(status) >= 0
}

// FinalizedStatuses lists every stage an order reaches after checkout.
func FinalizedStatuses() []string {
	return StatusPipeline()[1:]
}

func IsFinalizedStatus(status string) bool {
	return StatusIndex(status) > 0
}

func IsValidTier(tier string) bool {
	switch tier {
	case TierSpeedDemon, TierTheStandard, TierBigMoney:
		return true
	default:
		return false
	}
}

func (s *Submission) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

func (s *Submission) HasStoredPaymentMethod() bool {
	return s.StripePaymentMethodID != nil && *s.StripePaymentMethodID != ""
}

// IsDraft reports whether the submission is still a customer's unsubmitted
// work in progress.
func (s *Submission) IsDraft() bool {
	return !s.IsPaid() && s.SubmissionStatus == StatusCreated && !s.HasStoredPaymentMethod()
}

// IsActiveOrder holds for paid submissions that reached a finalized stage.
func (s *Submission) IsActiveOrder() bool {
	return s.IsPaid() && IsFinalizedStatus(s.SubmissionStatus)
}

// DraftKey is the value of the one-draft-per-customer unique key.
func (s *Submission) DraftKey() *string {
	if !s.IsDraft() {
		return nil
	}
	key := s.CustomerID
	return &key
}

func (s *Submission) ActiveCards() []Card {
	out := make([]Card, 0, len(s.Cards))
	for _, c := range s.Cards {
		if !c.IsDeleted {
			out = append(out, c)
		}
	}
	return out
}

// MarkPaid moves the payment state to paid from unpaid or failed and flips
// every live card to paid. It returns false when already paid.
func (s *Submission) MarkPaid(now time.Time) bool {
	if s.IsPaid() {
		return false
	}
	s.PaymentStatus = PaymentStatusPaid
	for i := range s.Cards {
		if !s.Cards[i].IsDeleted {
			s.Cards[i].Status = CardStatusPaid
		}
	}
	s.UpdatedAt = now
	return true
}

// MarkFailed is only legal from unpaid.
func (s *Submission) MarkFailed(now time.Time) bool {
	if s.PaymentStatus != PaymentStatusUnpaid {
		return false
	}
	s.PaymentStatus = PaymentStatusFailed
	s.UpdatedAt = now
	return true
}

func (s *Submission) Clone() *Submission {
	if s == nil {
		return nil
	}
	out := *s
	out.Cards = make([]Card, len(s.Cards))
	copy(out.Cards, s.Cards)
	out.StripePaymentIntentID = cloneString(s.StripePaymentIntentID)
	out.StripeSetupIntentID = cloneString(s.StripeSetupIntentID)
	out.StripePaymentMethodID = cloneString(s.StripePaymentMethodID)
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
