package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-grading/app/entity"
)

var ErrWebhookEventAlreadyProcessed = errors.New("webhook event already processed")

type WebhookEventRepository struct {
	db DBTX
}

func NewWebhookEventRepository(db DBTX) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Create(ctx context.Context, event *entity.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (
			provider_event_id, event_type, submission_id, payload_json, status, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		event.ProviderEventID,
		event.EventType,
		nullableUint64Value(event.SubmissionID),
		event.PayloadJSON,
		event.Status,
		nullableStringValue(event.Error),
		event.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrWebhookEventAlreadyProcessed
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}

func (r *WebhookEventRepository) FindByProviderEventID(ctx context.Context, providerEventID string) (*entity.WebhookEvent, error) {
	query := `
		SELECT id, provider_event_id, event_type, submission_id, payload_json, status, error, created_at
		FROM webhook_events
		WHERE provider_event_id = ?
		LIMIT 1
	`

	var submissionID sql.NullInt64
	var errMessage sql.NullString
	event := &entity.WebhookEvent{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, providerEventID).Scan(
		&event.ID,
		&event.ProviderEventID,
		&event.EventType,
		&submissionID,
		&event.PayloadJSON,
		&event.Status,
		&errMessage,
		&event.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	event.SubmissionID = uint64PtrFromNull(submissionID)
	event.Error = stringPtrFromNull(errMessage)
	return event, nil
}
