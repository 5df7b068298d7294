package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-grading/app/entity"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrDraftAlreadyExists = errors.New("customer already has a draft submission")
	ErrConcurrentUpdate   = errors.New("submission was modified concurrently")
)

const (
	ViewAll      = "all"
	ViewActive   = "active"
	ViewDeferred = "deferred"
	ViewDrafts   = "drafts"
)

const submissionColumns = `
	id, customer_id, cards_json, card_count, pricing_model, service_tier,
	base_price_cents, processing_fee_cents, total_cents,
	payment_status, submission_status,
	stripe_payment_intent_id, stripe_setup_intent_id, stripe_payment_method_id,
	order_summary, version, created_at, updated_at
`

type SubmissionFilter struct {
	CustomerID    string
	View          string
	Status        string
	PaymentStatus string
	Limit         int32
	Offset        int32
}

type cardRecord struct {
	ID         string `json:"id"`
	Player     string `json:"player"`
	Year       string `json:"year"`
	Set        string `json:"set"`
	CardNumber string `json:"cardNumber"`
	Notes      string `json:"notes"`
	PriceCents int64  `json:"priceCents"`
	IsDeleted  bool   `json:"isDeleted"`
	Status     string `json:"status"`
}

type SubmissionRepository struct {
	db DBTX
}

func NewSubmissionRepository(db DBTX) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, sub *entity.Submission) error {
	cardsJSON, err := serializeCards(sub.Cards)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO submissions (
			customer_id, cards_json, card_count, pricing_model, service_tier,
			base_price_cents, processing_fee_cents, total_cents,
			payment_status, submission_status,
			stripe_payment_intent_id, stripe_setup_intent_id, stripe_payment_method_id,
			order_summary, draft_key, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		sub.CustomerID,
		cardsJSON,
		sub.CardCount,
		sub.PricingModel,
		sub.ServiceTier,
		sub.Pricing.BasePriceCents,
		sub.Pricing.ProcessingFeeCents,
		sub.Pricing.TotalCents,
		sub.PaymentStatus,
		sub.SubmissionStatus,
		nullableStringValue(sub.StripePaymentIntentID),
		nullableStringValue(sub.StripeSetupIntentID),
		nullableStringValue(sub.StripePaymentMethodID),
		sub.OrderSummary,
		nullableStringValue(sub.DraftKey()),
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDraftAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	sub.ID = uint64(id)
	sub.Version = 1
	return nil
}

// Update writes the submission only if its version still matches the row.
// On success the in-memory version is advanced.
func (r *SubmissionRepository) Update(ctx context.Context, sub *entity.Submission) error {
	cardsJSON, err := serializeCards(sub.Cards)
	if err != nil {
		return err
	}

	query := `
		UPDATE submissions SET
			cards_json = ?,
			card_count = ?,
			service_tier = ?,
			base_price_cents = ?,
			processing_fee_cents = ?,
			total_cents = ?,
			payment_status = ?,
			submission_status = ?,
			stripe_payment_intent_id = ?,
			stripe_setup_intent_id = ?,
			stripe_payment_method_id = ?,
			order_summary = ?,
			draft_key = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`

	db := conn(ctx, r.db)
	result, err := db.ExecContext(ctx, query,
		cardsJSON,
		sub.CardCount,
		sub.ServiceTier,
		sub.Pricing.BasePriceCents,
		sub.Pricing.ProcessingFeeCents,
		sub.Pricing.TotalCents,
		sub.PaymentStatus,
		sub.SubmissionStatus,
		nullableStringValue(sub.StripePaymentIntentID),
		nullableStringValue(sub.StripeSetupIntentID),
		nullableStringValue(sub.StripePaymentMethodID),
		sub.OrderSummary,
		nullableStringValue(sub.DraftKey()),
		sub.UpdatedAt,
		sub.ID,
		sub.Version,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDraftAlreadyExists
		}
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err := db.QueryRowContext(ctx, "SELECT 1 FROM submissions WHERE id = ?", sub.ID).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrSubmissionNotFound
		}
		if err != nil {
			return err
		}
		return ErrConcurrentUpdate
	}

	sub.Version++
	return nil
}

func (r *SubmissionRepository) FindByID(ctx context.Context, id uint64) (*entity.Submission, error) {
	return r.findOne(ctx, "SELECT "+submissionColumns+" FROM submissions WHERE id = ?", id)
}

func (r *SubmissionRepository) FindDraftByCustomer(ctx context.Context, customerID string) (*entity.Submission, error) {
	return r.findOne(ctx, "SELECT "+submissionColumns+" FROM submissions WHERE draft_key = ? LIMIT 1", customerID)
}

func (r *SubmissionRepository) FindByPaymentIntentID(ctx context.Context, intentID string) (*entity.Submission, error) {
	return r.findOne(ctx, "SELECT "+submissionColumns+" FROM submissions WHERE stripe_payment_intent_id = ? LIMIT 1", intentID)
}

func (r *SubmissionRepository) FindBySetupIntentID(ctx context.Context, intentID string) (*entity.Submission, error) {
	return r.findOne(ctx, "SELECT "+submissionColumns+" FROM submissions WHERE stripe_setup_intent_id = ? LIMIT 1", intentID)
}

func (r *SubmissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]*entity.Submission, error) {
	where, args := filter.where()
	query := "SELECT " + submissionColumns + " FROM submissions" + where + " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Submission, 0)
	for rows.Next() {
		item := &entity.Submission{}
		if err := scanSubmission(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *SubmissionRepository) Count(ctx context.Context, filter SubmissionFilter) (int64, error) {
	where, args := filter.where()
	var count int64
	err := conn(ctx, r.db).QueryRowContext(ctx, "SELECT COUNT(*) FROM submissions"+where, args...).Scan(&count)
	return count, err
}

func (r *SubmissionRepository) SumTotalCents(ctx context.Context, filter SubmissionFilter) (int64, error) {
	where, args := filter.where()
	var total int64
	err := conn(ctx, r.db).QueryRowContext(ctx, "SELECT COALESCE(SUM(total_cents), 0) FROM submissions"+where, args...).Scan(&total)
	return total, err
}

func (r *SubmissionRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Submission, error) {
	sub := &entity.Submission{}
	if err := scanSubmission(conn(ctx, r.db).QueryRowContext(ctx, query, args...), sub); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return sub, nil
}

func (f SubmissionFilter) where() (string, []interface{}) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 12)

	if strings.TrimSpace(f.CustomerID) != "" {
		conditions = append(conditions, "customer_id = ?")
		args = append(args, f.CustomerID)
	}

	switch f.View {
	case ViewActive:
		finalized := entity.FinalizedStatuses()
		conditions = append(conditions, "payment_status = ?", "submission_status IN ("+placeholders(len(finalized))+")")
		args = append(args, entity.PaymentStatusPaid)
		for _, s := range finalized {
			args = append(args, s)
		}
	case ViewDeferred:
		conditions = append(conditions, "payment_status <> ?", "stripe_payment_method_id IS NOT NULL")
		args = append(args, entity.PaymentStatusPaid)
	case ViewDrafts:
		conditions = append(conditions, "draft_key IS NOT NULL")
	}

	if strings.TrimSpace(f.Status) != "" {
		conditions = append(conditions, "submission_status = ?")
		args = append(args, f.Status)
	}
	if strings.TrimSpace(f.PaymentStatus) != "" {
		conditions = append(conditions, "payment_status = ?")
		args = append(args, f.PaymentStatus)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(scan rowScanner, sub *entity.Submission) error {
	var cardsJSON string
	var paymentIntentID sql.NullString
	var setupIntentID sql.NullString
	var paymentMethodID sql.NullString

	err := scan.Scan(
		&sub.ID,
		&sub.CustomerID,
		&cardsJSON,
		&sub.CardCount,
		&sub.PricingModel,
		&sub.ServiceTier,
		&sub.Pricing.BasePriceCents,
		&sub.Pricing.ProcessingFeeCents,
		&sub.Pricing.TotalCents,
		&sub.PaymentStatus,
		&sub.SubmissionStatus,
		&paymentIntentID,
		&setupIntentID,
		&paymentMethodID,
		&sub.OrderSummary,
		&sub.Version,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return err
	}

	sub.StripePaymentIntentID = stringPtrFromNull(paymentIntentID)
	sub.StripeSetupIntentID = stringPtrFromNull(setupIntentID)
	sub.StripePaymentMethodID = stringPtrFromNull(paymentMethodID)

	cards, err := parseCards(cardsJSON)
	if err != nil {
		return err
	}
	sub.Cards = cards
	return nil
}

func serializeCards(cards []entity.Card) (string, error) {
	records := make([]cardRecord, 0, len(cards))
	for _, c := range cards {
		records = append(records, cardRecord(c))
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func parseCards(raw string) ([]entity.Card, error) {
	if raw == "" {
		return []entity.Card{}, nil
	}
	var records []cardRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, err
	}
	cards := make([]entity.Card, 0, len(records))
	for _, rec := range records {
		cards = append(cards, entity.Card(rec))
	}
	return cards, nil
}
