package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-grading/app/entity"
)

type SubmissionEventRepository struct {
	db DBTX
}

func NewSubmissionEventRepository(db DBTX) *SubmissionEventRepository {
	return &SubmissionEventRepository{db: db}
}

func (r *SubmissionEventRepository) Create(ctx context.Context, event *entity.SubmissionEvent) error {
	query := `
		INSERT INTO submission_events (
			submission_id, event_type, old_submission_status, new_submission_status,
			old_payment_status, new_payment_status, actor_id, provider_event_id, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		event.SubmissionID,
		event.EventType,
		nullableStringValue(event.OldSubmissionStatus),
		event.NewSubmissionStatus,
		nullableStringValue(event.OldPaymentStatus),
		event.NewPaymentStatus,
		event.ActorID,
		nullableStringValue(event.ProviderEventID),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}
