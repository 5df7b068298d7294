package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-grading/app/entity"
)

var (
	ErrInvalidTier      = errors.New("invalid service tier")
	ErrInvalidModel     = errors.New("invalid pricing model")
	ErrInvalidCardPrice = errors.New("invalid card price")
)

var (
	processingFeeRate = decimal.RequireFromString("0.05")

	tierBasePrices = map[string]decimal.Decimal{
		entity.TierSpeedDemon:  decimal.NewFromInt(289),
		entity.TierTheStandard: decimal.NewFromInt(49),
		entity.TierBigMoney:    decimal.NewFromInt(69),
	}

	allowedCardPrices = []decimal.Decimal{
		decimal.NewFromInt(5),
		decimal.NewFromInt(10),
		decimal.NewFromInt(20),
	}
)

// Breakdown holds dollar amounts rounded to cents.
type Breakdown struct {
	BasePrice     decimal.Decimal
	ProcessingFee decimal.Decimal
	Total         decimal.Decimal
}

// Calculate prices a submission. Tier pricing ignores cards; per-card pricing
// sums the live cards and charges no fee.
func Calculate(model, tier string, cards []entity.Card) (Breakdown, error) {
	switch model {
	case entity.PricingModelTier, "":
		return ForTier(tier)
	case entity.PricingModelPerCard:
		if !entity.IsValidTier(tier) {
			return Breakdown{}, fmt.Errorf("%w: %s", ErrInvalidTier, tier)
		}
		return ForCards(cards)
	default:
		return Breakdown{}, fmt.Errorf("%w: %s", ErrInvalidModel, model)
	}
}

func ForTier(tier string) (Breakdown, error) {
	base, ok := tierBasePrices[tier]
	if !ok {
		return Breakdown{}, fmt.Errorf("%w: %s", ErrInvalidTier, tier)
	}
	base = round(base)
	fee := round(base.Mul(processingFeeRate))
	return Breakdown{
		BasePrice:     base,
		ProcessingFee: fee,
		Total:         round(base.Add(fee)),
	}, nil
}

func ForCards(cards []entity.Card) (Breakdown, error) {
	base := decimal.Zero
	for _, card := range cards {
		if card.IsDeleted {
			continue
		}
		price := FromCents(card.PriceCents)
		if !IsAllowedCardPrice(price) {
			return Breakdown{}, fmt.Errorf("%w: %s", ErrInvalidCardPrice, price.StringFixed(2))
		}
		base = base.Add(price)
	}
	base = round(base)
	return Breakdown{
		BasePrice:     base,
		ProcessingFee: decimal.Zero,
		Total:         base,
	}, nil
}

func IsAllowedCardPrice(price decimal.Decimal) bool {
	for _, allowed := range allowedCardPrices {
		if price.Equal(allowed) {
			return true
		}
	}
	return false
}

// Rounding is half away from zero, which is half-up for the non-negative
// amounts handled here.
func round(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

func (b Breakdown) ToEntity() entity.Pricing {
	return entity.Pricing{
		BasePriceCents:     ToCents(b.BasePrice),
		ProcessingFeeCents: ToCents(b.ProcessingFee),
		TotalCents:         ToCents(b.Total),
	}
}

func FromEntity(p entity.Pricing) Breakdown {
	return Breakdown{
		BasePrice:     FromCents(p.BasePriceCents),
		ProcessingFee: FromCents(p.ProcessingFeeCents),
		Total:         FromCents(p.TotalCents),
	}
}

func ToCents(v decimal.Decimal) int64 {
	return round(v).Shift(2).IntPart()
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatCents renders an amount as a fixed two-decimal dollar string.
func FormatCents(cents int64) string {
	return FromCents(cents).StringFixed(2)
}

// ParseAmount converts a dollar amount from user input into cents.
func ParseAmount(raw string) (int64, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	return ToCents(v), nil
}
