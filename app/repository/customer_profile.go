package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-grading/app/entity"
)

var ErrCustomerProfileExists = errors.New("customer profile already exists")

type CustomerProfileRepository struct {
	db DBTX
}

func NewCustomerProfileRepository(db DBTX) *CustomerProfileRepository {
	return &CustomerProfileRepository{db: db}
}

func (r *CustomerProfileRepository) Create(ctx context.Context, profile *entity.CustomerProfile) error {
	query := `
		INSERT INTO customer_profiles (customer_id, email, stripe_customer_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		profile.CustomerID,
		profile.Email,
		profile.StripeCustomerID,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrCustomerProfileExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	profile.ID = uint64(id)
	return nil
}

func (r *CustomerProfileRepository) FindByCustomerID(ctx context.Context, customerID string) (*entity.CustomerProfile, error) {
	query := `
		SELECT id, customer_id, email, stripe_customer_id, created_at, updated_at
		FROM customer_profiles
		WHERE customer_id = ?
	`

	profile := &entity.CustomerProfile{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, customerID).Scan(
		&profile.ID,
		&profile.CustomerID,
		&profile.Email,
		&profile.StripeCustomerID,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}
