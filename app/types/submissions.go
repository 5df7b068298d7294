package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const maxCardsPerSubmission = 500

type CardPayload struct {
	Id         string          `json:"id,omitempty"`
	Player     string          `json:"player"`
	Year       string          `json:"year"`
	Set        string          `json:"set"`
	CardNumber string          `json:"cardNumber"`
	Notes      string          `json:"notes,omitempty"`
	Price      decimal.Decimal `json:"price"`
	IsDeleted  bool            `json:"isDeleted"`
}

type CreateSubmissionRequest struct {
	Cards       []CardPayload `json:"cards"`
	CardCount   int32         `json:"cardCount"`
	ServiceTier string        `json:"serviceTier"`
}

func (r *CreateSubmissionRequest) GetCards() []CardPayload { return r.Cards }
func (r *CreateSubmissionRequest) GetCardCount() int32     { return r.CardCount }
func (r *CreateSubmissionRequest) GetServiceTier() string  { return r.ServiceTier }

func NewCreateSubmissionRequestFromContext(ctx echo.Context) (*CreateSubmissionRequest, error) {
	var body CreateSubmissionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.ServiceTier = strings.ToUpper(strings.TrimSpace(body.ServiceTier))
	return &body, nil
}

func (r *CreateSubmissionRequest) Validate() error {
	return validateIntakeShape(r.Cards, r.CardCount, r.ServiceTier)
}

type UpdateSubmissionRequest struct {
	Id          uint64        `json:"-"`
	Cards       []CardPayload `json:"cards"`
	CardCount   int32         `json:"cardCount"`
	ServiceTier string        `json:"serviceTier"`
}

func (r *UpdateSubmissionRequest) GetId() uint64            { return r.Id }
func (r *UpdateSubmissionRequest) GetCards() []CardPayload { return r.Cards }
func (r *UpdateSubmissionRequest) GetCardCount() int32     { return r.CardCount }
func (r *UpdateSubmissionRequest) GetServiceTier() string  { return r.ServiceTier }

func NewUpdateSubmissionRequestFromContext(ctx echo.Context) (*UpdateSubmissionRequest, error) {
	id, err := parseIDParam(ctx)
	if err != nil {
		return nil, err
	}

	var body UpdateSubmissionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Id = id
	body.ServiceTier = strings.ToUpper(strings.TrimSpace(body.ServiceTier))
	return &body, nil
}

func (r *UpdateSubmissionRequest) Validate() error {
	if r.Id == 0 {
		return errors.New("invalid submission id")
	}
	return validateIntakeShape(r.Cards, r.CardCount, r.ServiceTier)
}

type GetSubmissionRequest struct {
	Id uint64
}

func (r *GetSubmissionRequest) GetId() uint64 { return r.Id }

func NewGetSubmissionRequestFromContext(ctx echo.Context) (*GetSubmissionRequest, error) {
	id, err := parseIDParam(ctx)
	if err != nil {
		return nil, err
	}
	return &GetSubmissionRequest{Id: id}, nil
}

func (r *GetSubmissionRequest) Validate() error {
	if r.Id == 0 {
		return errors.New("invalid submission id")
	}
	return nil
}

type ListSubmissionsRequest struct {
	View string
}

func (r *ListSubmissionsRequest) GetView() string { return r.View }

func NewListSubmissionsRequestFromContext(ctx echo.Context) (*ListSubmissionsRequest, error) {
	view := strings.ToLower(strings.TrimSpace(ctx.QueryParam("view")))
	if view == "" {
		view = "all"
	}
	return &ListSubmissionsRequest{View: view}, nil
}

func (r *ListSubmissionsRequest) Validate() error {
	switch r.View {
	case "all", "active", "drafts":
		return nil
	default:
		return errors.New("view must be all, active, or drafts")
	}
}

type UpdateStatusRequest struct {
	Id               uint64 `json:"-"`
	SubmissionStatus string `json:"submissionStatus"`
}

func (r *UpdateStatusRequest) GetId() uint64     { return r.Id }
func (r *UpdateStatusRequest) GetStatus() string { return r.SubmissionStatus }

func NewUpdateStatusRequestFromContext(ctx echo.Context) (*UpdateStatusRequest, error) {
	id, err := parseIDParam(ctx)
	if err != nil {
		return nil, err
	}

	var body UpdateStatusRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Id = id
	body.SubmissionStatus = strings.TrimSpace(body.SubmissionStatus)
	return &body, nil
}

func (r *UpdateStatusRequest) Validate() error {
	if r.Id == 0 {
		return errors.New("invalid submission id")
	}
	if r.SubmissionStatus == "" {
		return errors.New("submissionStatus is required")
	}
	return nil
}

func validateIntakeShape(cards []CardPayload, cardCount int32, tier string) error {
	if tier == "" {
		return errors.New("serviceTier is required")
	}
	if cardCount < 0 {
		return errors.New("cardCount must be >= 0")
	}
	if len(cards) > maxCardsPerSubmission {
		return fmt.Errorf("a submission can hold at most %d cards", maxCardsPerSubmission)
	}
	for i, c := range cards {
		if c.Price.IsNegative() {
			return fmt.Errorf("cards[%d].price must be >= 0", i)
		}
	}
	return nil
}

type CardResponse struct {
	Id         string `json:"id"`
	Player     string `json:"player"`
	Year       string `json:"year"`
	Set        string `json:"set"`
	CardNumber string `json:"cardNumber"`
	Notes      string `json:"notes"`
	Price      string `json:"price"`
	IsDeleted  bool   `json:"isDeleted"`
	Status     string `json:"status"`
}

type PricingResponse struct {
	BasePrice     string `json:"basePrice"`
	ProcessingFee string `json:"processingFee"`
	Total         string `json:"total"`
}

type SubmissionResponse struct {
	Id                    uint64          `json:"id"`
	CustomerId            string          `json:"customerId"`
	Cards                 []CardResponse  `json:"cards"`
	CardCount             int32           `json:"cardCount"`
	PricingModel          string          `json:"pricingModel"`
	ServiceTier           string          `json:"serviceTier"`
	Pricing               PricingResponse `json:"pricing"`
	PaymentStatus         string          `json:"paymentStatus"`
	SubmissionStatus      string          `json:"submissionStatus"`
	StripePaymentIntentId string          `json:"stripePaymentIntentId,omitempty"`
	StripeSetupIntentId   string          `json:"stripeSetupIntentId,omitempty"`
	HasPaymentMethod      bool            `json:"hasPaymentMethod"`
	OrderSummary          string          `json:"orderSummary"`
	CreatedAt             string          `json:"createdAt"`
	UpdatedAt             string          `json:"updatedAt"`
}

type SubmissionEnvelopeResponse struct {
	Submission *SubmissionResponse `json:"submission"`
}

type ListSubmissionsResponse struct {
	Submissions []*SubmissionResponse `json:"submissions"`
}

type DashboardResponse struct {
	TotalCards   int64  `json:"totalCards"`
	PaidCards    int64  `json:"paidCards"`
	UnpaidCards  int64  `json:"unpaidCards"`
	UnpaidAmount string `json:"unpaidAmount"`
}
