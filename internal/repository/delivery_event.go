package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// DeliveryEventRepository appends provider traffic records
type DeliveryEventRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewDeliveryEventRepository creates a new DeliveryEventRepository
func NewDeliveryEventRepository(db *pgxpool.Pool, logger *zap.Logger) *DeliveryEventRepository {
	return &DeliveryEventRepository{
		db:     db,
		logger: logger,
	}
}

// Record appends a delivery event
func (r *DeliveryEventRepository) Record(ctx context.Context, ev *model.DeliveryEvent) error {
	query := `
		INSERT INTO delivery_events (reminder_id, provider_message_id, kind, channel, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		ev.ReminderID,
		ev.ProviderMessageID,
		ev.Kind,
		ev.Channel,
		ev.Status,
		ev.Error,
		ev.CreatedAt,
	).Scan(&ev.ID)

	if err != nil {
		r.logger.Error("failed to record delivery event",
			zap.Error(err),
			zap.String("kind", string(ev.Kind)),
			zap.String("status", ev.Status),
		)
		return fmt.Errorf("failed to record delivery event: %w", err)
	}

	return nil
}

// ListByReminder retrieves the delivery history of a reminder, oldest first
func (r *DeliveryEventRepository) ListByReminder(ctx context.Context, reminderID string) ([]model.DeliveryEvent, error) {
	query := `
		SELECT id, reminder_id, provider_message_id, kind, channel, status, error, created_at
		FROM delivery_events
		WHERE reminder_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, reminderID)
	if err != nil {
		r.logger.Error("failed to list delivery events", zap.Error(err), zap.String("reminder_id", reminderID))
		return nil, fmt.Errorf("failed to list delivery events: %w", err)
	}
	defer rows.Close()

	var events []model.DeliveryEvent
	for rows.Next() {
		var ev model.DeliveryEvent
		err := rows.Scan(
			&ev.ID,
			&ev.ReminderID,
			&ev.ProviderMessageID,
			&ev.Kind,
			&ev.Channel,
			&ev.Status,
			&ev.Error,
			&ev.CreatedAt,
		)
		if err != nil {
			r.logger.Error("failed to scan delivery event", zap.Error(err))
			continue
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}
