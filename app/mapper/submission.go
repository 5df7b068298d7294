package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-grading/app/entity"
	"github.com/vibast-solutions/ms-go-grading/app/pricing"
	"github.com/vibast-solutions/ms-go-grading/app/provider"
	"github.com/vibast-solutions/ms-go-grading/app/types"
)

func SubmissionToResponse(item *entity.Submission) *types.SubmissionResponse {
	if item == nil {
		return nil
	}

	cards := make([]types.CardResponse, 0, len(item.Cards))
	for _, c := range item.Cards {
		cards = append(cards, types.CardResponse{
			Id:         c.ID,
			Player:     c.Player,
			Year:       c.Year,
			Set:        c.Set,
			CardNumber: c.CardNumber,
			Notes:      c.Notes,
			Price:      pricing.FormatCents(c.PriceCents),
			IsDeleted:  c.IsDeleted,
			Status:     c.Status,
		})
	}

	return &types.SubmissionResponse{
		Id:           item.ID,
		CustomerId:   item.CustomerID,
		Cards:        cards,
		CardCount:    item.CardCount,
		PricingModel: item.PricingModel,
		ServiceTier:  item.ServiceTier,
		Pricing: types.PricingResponse{
			BasePrice:     pricing.FormatCents(item.Pricing.BasePriceCents),
			ProcessingFee: pricing.FormatCents(item.Pricing.ProcessingFeeCents),
			Total:         pricing.FormatCents(item.Pricing.TotalCents),
		},
		PaymentStatus:         item.PaymentStatus,
		SubmissionStatus:      item.SubmissionStatus,
		StripePaymentIntentId: derefString(item.StripePaymentIntentID),
		StripeSetupIntentId:   derefString(item.StripeSetupIntentID),
		HasPaymentMethod:      item.HasStoredPaymentMethod(),
		OrderSummary:          item.OrderSummary,
		CreatedAt:             formatTime(item.CreatedAt),
		UpdatedAt:             formatTime(item.UpdatedAt),
	}
}

func SubmissionsToResponse(items []*entity.Submission) []*types.SubmissionResponse {
	result := make([]*types.SubmissionResponse, 0, len(items))
	for _, item := range items {
		result = append(result, SubmissionToResponse(item))
	}
	return result
}

// CardsFromPayload converts request cards into entity cards. Prices are
// rounded to cents; ids and statuses are assigned by the service.
func CardsFromPayload(items []types.CardPayload) []entity.Card {
	cards := make([]entity.Card, 0, len(items))
	for _, c := range items {
		cards = append(cards, entity.Card{
			ID:         c.Id,
			Player:     c.Player,
			Year:       c.Year,
			Set:        c.Set,
			CardNumber: c.CardNumber,
			Notes:      c.Notes,
			PriceCents: pricing.ToCents(c.Price),
			IsDeleted:  c.IsDeleted,
		})
	}
	return cards
}

func PaymentToResponse(item *entity.Payment) *types.PaymentResponse {
	if item == nil {
		return nil
	}

	return &types.PaymentResponse{
		Id:                    item.ID,
		SubmissionId:          item.SubmissionID,
		Amount:                pricing.FormatCents(item.AmountCents),
		Currency:              item.Currency,
		PaymentType:           item.PaymentType,
		Status:                item.Status,
		StripePaymentIntentId: derefString(item.StripePaymentIntentID),
		StripeChargeId:        derefString(item.StripeChargeID),
		ErrorMessage:          derefString(item.ErrorMessage),
		CreatedAt:             formatTime(item.CreatedAt),
		UpdatedAt:             formatTime(item.UpdatedAt),
	}
}

func PaymentsToResponse(items []*entity.Payment) []*types.PaymentResponse {
	result := make([]*types.PaymentResponse, 0, len(items))
	for _, item := range items {
		result = append(result, PaymentToResponse(item))
	}
	return result
}

// IntentToResponse describes a processor intent the client still has to
// confirm. payment is nil for setup intents.
func IntentToResponse(sub *entity.Submission, payment *entity.Payment, intent *provider.Intent) *types.IntentResponse {
	if sub == nil || intent == nil {
		return nil
	}

	resp := &types.IntentResponse{
		SubmissionId:    sub.ID,
		IntentId:        intent.ID,
		ClientSecret:    intent.ClientSecret,
		Status:          intent.Status,
		PaymentRequired: !sub.IsPaid(),
	}
	if payment != nil {
		resp.PaymentId = payment.ID
		resp.Amount = pricing.FormatCents(payment.AmountCents)
		resp.Currency = payment.Currency
	}
	return resp
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
