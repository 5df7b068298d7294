package entity

import "time"

type CustomerProfile struct {
	ID uint64

	CustomerID       string
	Email            string
	StripeCustomerID string

	CreatedAt time.Time
	UpdatedAt time.Time
}
