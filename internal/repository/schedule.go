package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// ScheduleRepository manages reminder schedules
type ScheduleRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewScheduleRepository creates a new ScheduleRepository
func NewScheduleRepository(db *pgxpool.Pool, logger *zap.Logger) *ScheduleRepository {
	return &ScheduleRepository{
		db:     db,
		logger: logger,
	}
}

const scheduleColumns = `
	id, patient_id, medication_assignment_id, is_active, frequency,
	reminder_times, advance_minutes, channels, auto_skip_if_taken,
	escalate_if_missed, escalate_delay_minutes, quiet_hours_start, quiet_hours_end,
	start_date, end_date, created_at, updated_at`

func scanSchedule(row pgx.Row) (*model.ReminderSchedule, error) {
	var (
		s          model.ReminderSchedule
		channels   []string
		quietStart *string
		quietEnd   *string
	)
	err := row.Scan(
		&s.ID,
		&s.PatientID,
		&s.MedicationAssignmentID,
		&s.IsActive,
		&s.Frequency,
		&s.ReminderTimes,
		&s.AdvanceMinutes,
		&channels,
		&s.AutoSkipIfTaken,
		&s.EscalateIfMissed,
		&s.EscalateDelayMinutes,
		&quietStart,
		&quietEnd,
		&s.StartDate,
		&s.EndDate,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Channels = stringsToChannels(channels)
	if quietStart != nil && quietEnd != nil {
		s.QuietHours = &model.QuietHours{Start: *quietStart, End: *quietEnd}
	}
	return &s, nil
}

func quietHoursColumns(q *model.QuietHours) (*string, *string) {
	if q == nil {
		return nil, nil
	}
	return &q.Start, &q.End
}

// Create inserts a new schedule. A second schedule for the same assignment is a conflict.
func (r *ScheduleRepository) Create(ctx context.Context, s *model.ReminderSchedule) error {
	query := `
		INSERT INTO reminder_schedules (
			id, patient_id, medication_assignment_id, is_active, frequency,
			reminder_times, advance_minutes, channels, auto_skip_if_taken,
			escalate_if_missed, escalate_delay_minutes, quiet_hours_start, quiet_hours_end,
			start_date, end_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	quietStart, quietEnd := quietHoursColumns(s.QuietHours)
	_, err := r.db.Exec(ctx, query,
		s.ID,
		s.PatientID,
		s.MedicationAssignmentID,
		s.IsActive,
		s.Frequency,
		s.ReminderTimes,
		s.AdvanceMinutes,
		channelsToStrings(s.Channels),
		s.AutoSkipIfTaken,
		s.EscalateIfMissed,
		s.EscalateDelayMinutes,
		quietStart,
		quietEnd,
		s.StartDate,
		s.EndDate,
		s.CreatedAt,
		s.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(
				fmt.Sprintf("a reminder schedule already exists for medication assignment %s", s.MedicationAssignmentID), err)
		}
		r.logger.Error("failed to create reminder schedule",
			zap.Error(err),
			zap.String("schedule_id", s.ID),
			zap.String("medication_assignment_id", s.MedicationAssignmentID),
		)
		return fmt.Errorf("failed to create reminder schedule: %w", err)
	}

	return nil
}

// FindByID retrieves a schedule by ID
func (r *ScheduleRepository) FindByID(ctx context.Context, scheduleID string) (*model.ReminderSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM reminder_schedules WHERE id = $1`

	s, err := scanSchedule(r.db.QueryRow(ctx, query, scheduleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("reminder schedule", scheduleID)
		}
		r.logger.Error("failed to find reminder schedule", zap.Error(err), zap.String("schedule_id", scheduleID))
		return nil, fmt.Errorf("failed to find reminder schedule: %w", err)
	}

	return s, nil
}

// FindByAssignment retrieves the schedule of a medication assignment
func (r *ScheduleRepository) FindByAssignment(ctx context.Context, assignmentID string) (*model.ReminderSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM reminder_schedules WHERE medication_assignment_id = $1`

	s, err := scanSchedule(r.db.QueryRow(ctx, query, assignmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("reminder schedule for medication assignment", assignmentID)
		}
		r.logger.Error("failed to find reminder schedule", zap.Error(err), zap.String("medication_assignment_id", assignmentID))
		return nil, fmt.Errorf("failed to find reminder schedule: %w", err)
	}

	return s, nil
}

// FindByPatientID retrieves all schedules of a patient
func (r *ScheduleRepository) FindByPatientID(ctx context.Context, patientID string) ([]model.ReminderSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM reminder_schedules WHERE patient_id = $1 ORDER BY created_at`
	return r.list(ctx, query, patientID)
}

// ListActive retrieves every active schedule
func (r *ScheduleRepository) ListActive(ctx context.Context) ([]model.ReminderSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM reminder_schedules WHERE is_active ORDER BY created_at`
	return r.list(ctx, query)
}

func (r *ScheduleRepository) list(ctx context.Context, query string, args ...any) ([]model.ReminderSchedule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list reminder schedules", zap.Error(err))
		return nil, fmt.Errorf("failed to list reminder schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.ReminderSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			r.logger.Error("failed to scan reminder schedule", zap.Error(err))
			continue
		}
		schedules = append(schedules, *s)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating reminder schedules", zap.Error(err))
		return nil, fmt.Errorf("error iterating reminder schedules: %w", err)
	}

	return schedules, nil
}

// Update persists every mutable field of a schedule
func (r *ScheduleRepository) Update(ctx context.Context, s *model.ReminderSchedule) error {
	query := `
		UPDATE reminder_schedules
		SET is_active = $1, frequency = $2, reminder_times = $3, advance_minutes = $4,
		    channels = $5, auto_skip_if_taken = $6, escalate_if_missed = $7,
		    escalate_delay_minutes = $8, quiet_hours_start = $9, quiet_hours_end = $10,
		    start_date = $11, end_date = $12, updated_at = $13
		WHERE id = $14
	`

	quietStart, quietEnd := quietHoursColumns(s.QuietHours)
	result, err := r.db.Exec(ctx, query,
		s.IsActive,
		s.Frequency,
		s.ReminderTimes,
		s.AdvanceMinutes,
		channelsToStrings(s.Channels),
		s.AutoSkipIfTaken,
		s.EscalateIfMissed,
		s.EscalateDelayMinutes,
		quietStart,
		quietEnd,
		s.StartDate,
		s.EndDate,
		s.UpdatedAt,
		s.ID,
	)

	if err != nil {
		r.logger.Error("failed to update reminder schedule",
			zap.Error(err),
			zap.String("schedule_id", s.ID),
		)
		return fmt.Errorf("failed to update reminder schedule: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NotFound("reminder schedule", s.ID)
	}

	return nil
}

// SetActive toggles a schedule on or off. Turning it off also cancels its
// still-pending reminders; the number cancelled is returned.
func (r *ScheduleRepository) SetActive(ctx context.Context, scheduleID string, active bool) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `UPDATE reminder_schedules SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, scheduleID)
	if err != nil {
		r.logger.Error("failed to toggle reminder schedule",
			zap.Error(err),
			zap.String("schedule_id", scheduleID),
			zap.Bool("active", active),
		)
		return 0, fmt.Errorf("failed to toggle reminder schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return 0, apperror.NotFound("reminder schedule", scheduleID)
	}

	var cancelled int64
	if !active {
		tag, err := tx.Exec(ctx, `
			UPDATE reminders SET status = 'cancelled', updated_at = NOW()
			WHERE schedule_id = $1 AND status = 'pending'
		`, scheduleID)
		if err != nil {
			r.logger.Error("failed to cancel pending reminders", zap.Error(err), zap.String("schedule_id", scheduleID))
			return 0, fmt.Errorf("failed to cancel pending reminders: %w", err)
		}
		cancelled = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return cancelled, nil
}

// Delete removes a schedule and cancels its still-pending reminders.
// It returns the number of cancelled reminders.
func (r *ScheduleRepository) Delete(ctx context.Context, scheduleID string) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cancelled, err := tx.Exec(ctx, `
		UPDATE reminders SET status = 'cancelled', updated_at = NOW()
		WHERE schedule_id = $1 AND status = 'pending'
	`, scheduleID)
	if err != nil {
		r.logger.Error("failed to cancel pending reminders", zap.Error(err), zap.String("schedule_id", scheduleID))
		return 0, fmt.Errorf("failed to cancel pending reminders: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM reminder_schedules WHERE id = $1`, scheduleID)
	if err != nil {
		r.logger.Error("failed to delete reminder schedule", zap.Error(err), zap.String("schedule_id", scheduleID))
		return 0, fmt.Errorf("failed to delete reminder schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return 0, apperror.NotFound("reminder schedule", scheduleID)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return cancelled.RowsAffected(), nil
}
