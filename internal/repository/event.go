package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// EventFilter narrows event listings. Nil fields are ignored; From and To compare scheduled dates.
type EventFilter struct {
	PatientID              string
	MedicationAssignmentID *string
	From                   *time.Time
	To                     *time.Time
}

// EventRepository manages medication events
type EventRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(db *pgxpool.Pool, logger *zap.Logger) *EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

const eventColumns = `
	id, medication_assignment_id, patient_id, scheduled_time, scheduled_date, status,
	actual_time, on_time, minutes_late, reminder_id, notes, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.MedicationEvent, error) {
	var (
		ev           model.MedicationEvent
		assignmentID *string
	)
	err := row.Scan(
		&ev.ID,
		&assignmentID,
		&ev.PatientID,
		&ev.ScheduledTime,
		&ev.ScheduledDate,
		&ev.Status,
		&ev.ActualTime,
		&ev.OnTime,
		&ev.MinutesLate,
		&ev.ReminderID,
		&ev.Notes,
		&ev.CreatedAt,
		&ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ev.MedicationAssignmentID = derefString(assignmentID)
	return &ev, nil
}

func insertEvent(ctx context.Context, q querier, ev *model.MedicationEvent) error {
	query := `
		INSERT INTO medication_events (
			id, medication_assignment_id, patient_id, scheduled_time, scheduled_date, status,
			actual_time, on_time, minutes_late, reminder_id, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := q.Exec(ctx, query,
		ev.ID,
		nullableString(ev.MedicationAssignmentID),
		ev.PatientID,
		ev.ScheduledTime,
		ev.ScheduledDate,
		ev.Status,
		ev.ActualTime,
		ev.OnTime,
		ev.MinutesLate,
		ev.ReminderID,
		ev.Notes,
		ev.CreatedAt,
		ev.UpdatedAt,
	)
	return err
}

func duplicateEventError(ev *model.MedicationEvent, err error) error {
	return apperror.Conflict(fmt.Sprintf("a medication event already exists for assignment %s at %s",
		ev.MedicationAssignmentID, ev.ScheduledTime.Format(time.RFC3339)), err)
}

// Create records a new medication event. A second event for the same
// assignment and scheduled time is a conflict.
func (r *EventRepository) Create(ctx context.Context, ev *model.MedicationEvent) error {
	if err := insertEvent(ctx, r.db, ev); err != nil {
		if isUniqueViolation(err) {
			return duplicateEventError(ev, err)
		}
		r.logger.Error("failed to create medication event",
			zap.Error(err),
			zap.String("event_id", ev.ID),
			zap.String("patient_id", ev.PatientID),
		)
		return fmt.Errorf("failed to create medication event: %w", err)
	}

	return nil
}

// FindByID retrieves a medication event by ID
func (r *EventRepository) FindByID(ctx context.Context, eventID string) (*model.MedicationEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM medication_events WHERE id = $1`

	ev, err := scanEvent(r.db.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("medication event", eventID)
		}
		r.logger.Error("failed to find medication event", zap.Error(err), zap.String("event_id", eventID))
		return nil, fmt.Errorf("failed to find medication event: %w", err)
	}

	return ev, nil
}

// Update persists a corrected status, actual time and notes together with the recomputed timing fields
func (r *EventRepository) Update(ctx context.Context, ev *model.MedicationEvent) error {
	query := `
		UPDATE medication_events
		SET status = $1, actual_time = $2, on_time = $3, minutes_late = $4, notes = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := r.db.Exec(ctx, query,
		ev.Status,
		ev.ActualTime,
		ev.OnTime,
		ev.MinutesLate,
		ev.Notes,
		ev.UpdatedAt,
		ev.ID,
	)
	if err != nil {
		r.logger.Error("failed to update medication event", zap.Error(err), zap.String("event_id", ev.ID))
		return fmt.Errorf("failed to update medication event: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NotFound("medication event", ev.ID)
	}

	return nil
}

// Delete removes a medication event
func (r *EventRepository) Delete(ctx context.Context, eventID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM medication_events WHERE id = $1`, eventID)
	if err != nil {
		r.logger.Error("failed to delete medication event", zap.Error(err), zap.String("event_id", eventID))
		return fmt.Errorf("failed to delete medication event: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NotFound("medication event", eventID)
	}

	return nil
}

// List retrieves events matching the filter, most recent first
func (r *EventRepository) List(ctx context.Context, filter EventFilter) ([]model.MedicationEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM medication_events
		WHERE patient_id = $1
		  AND ($2::text IS NULL OR medication_assignment_id = $2::text)
		  AND ($3::date IS NULL OR scheduled_date >= $3::date)
		  AND ($4::date IS NULL OR scheduled_date <= $4::date)
		ORDER BY scheduled_time DESC
	`

	rows, err := r.db.Query(ctx, query, filter.PatientID, filter.MedicationAssignmentID, filter.From, filter.To)
	if err != nil {
		r.logger.Error("failed to list medication events", zap.Error(err), zap.String("patient_id", filter.PatientID))
		return nil, fmt.Errorf("failed to list medication events: %w", err)
	}
	defer rows.Close()

	var events []model.MedicationEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			r.logger.Error("failed to scan medication event", zap.Error(err))
			continue
		}
		events = append(events, *ev)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating medication events", zap.Error(err))
		return nil, fmt.Errorf("error iterating medication events: %w", err)
	}

	return events, nil
}

// ExistsTaken reports whether a taken event is already logged for the dose
func (r *EventRepository) ExistsTaken(ctx context.Context, assignmentID string, doseTime time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM medication_events
			WHERE medication_assignment_id = $1 AND scheduled_time = $2 AND status = 'taken'
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, assignmentID, doseTime).Scan(&exists); err != nil {
		r.logger.Error("failed to check taken dose",
			zap.Error(err),
			zap.String("medication_assignment_id", assignmentID),
		)
		return false, fmt.Errorf("failed to check taken dose: %w", err)
	}

	return exists, nil
}

// DailyCounts returns per-day scheduled and taken counts for days that have events
func (r *EventRepository) DailyCounts(ctx context.Context, patientID string, assignmentID *string, from, to time.Time) ([]model.DailyScore, error) {
	query := `
		SELECT scheduled_date, COUNT(*), COUNT(*) FILTER (WHERE status = 'taken')
		FROM medication_events
		WHERE patient_id = $1
		  AND ($2::text IS NULL OR medication_assignment_id = $2::text)
		  AND scheduled_date BETWEEN $3 AND $4
		GROUP BY scheduled_date
		ORDER BY scheduled_date
	`

	rows, err := r.db.Query(ctx, query, patientID, assignmentID, from, to)
	if err != nil {
		r.logger.Error("failed to aggregate daily adherence", zap.Error(err), zap.String("patient_id", patientID))
		return nil, fmt.Errorf("failed to aggregate daily adherence: %w", err)
	}
	defer rows.Close()

	var days []model.DailyScore
	for rows.Next() {
		var d model.DailyScore
		if err := rows.Scan(&d.Date, &d.TotalScheduled, &d.TotalTaken); err != nil {
			return nil, fmt.Errorf("failed to scan daily adherence: %w", err)
		}
		days = append(days, d)
	}

	return days, rows.Err()
}
