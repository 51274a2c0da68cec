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

// ErrNotClaimable is returned by ClaimPending when the reminder is locked by
// another dispatcher or has left the pending state
var ErrNotClaimable = errors.New("reminder is locked or no longer pending")

// TextCipher encrypts free text stored at rest
type TextCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// ReminderFilter narrows reminder listings. Nil fields are ignored.
type ReminderFilter struct {
	PatientID string
	Status    *model.ReminderStatus
	From      *time.Time
	To        *time.Time
	Limit     int
}

// EscalationCandidate is an unanswered reminder whose schedule asks for a follow-up
type EscalationCandidate struct {
	Reminder     model.Reminder
	DelayMinutes int
}

// ReminderClaim holds the row lock of one pending reminder until it is
// marked sent, failed, cancelled or released
type ReminderClaim interface {
	Reminder() *model.Reminder
	MarkSent(ctx context.Context, providerMessageID string, sentAt time.Time) error
	RecordFailure(ctx context.Context, reason string) (model.ReminderStatus, error)
	Cancel(ctx context.Context) error
	Release(ctx context.Context)
}

// ReminderRepository manages reminder instances
type ReminderRepository struct {
	db     *pgxpool.Pool
	cipher TextCipher
	logger *zap.Logger
}

// NewReminderRepository creates a new ReminderRepository. cipher may be nil,
// in which case response text is stored as plain text.
func NewReminderRepository(db *pgxpool.Pool, cipher TextCipher, logger *zap.Logger) *ReminderRepository {
	return &ReminderRepository{
		db:     db,
		cipher: cipher,
		logger: logger,
	}
}

const reminderColumns = `
	id, schedule_id, patient_id, medication_assignment_id, scheduled_time, actual_dose_time,
	channel, status, message_text, response_text, responded_at, sent_at, delivered_at, read_at,
	provider_message_id, retry_count, max_retries, last_error, escalated_from, escalated_at,
	created_at, updated_at`

func (r *ReminderRepository) scan(row pgx.Row) (*model.Reminder, error) {
	var (
		rem        model.Reminder
		scheduleID *string
	)
	err := row.Scan(
		&rem.ID,
		&scheduleID,
		&rem.PatientID,
		&rem.MedicationAssignmentID,
		&rem.ScheduledTime,
		&rem.ActualDoseTime,
		&rem.Channel,
		&rem.Status,
		&rem.MessageText,
		&rem.ResponseText,
		&rem.RespondedAt,
		&rem.SentAt,
		&rem.DeliveredAt,
		&rem.ReadAt,
		&rem.ProviderMessageID,
		&rem.RetryCount,
		&rem.MaxRetries,
		&rem.LastError,
		&rem.EscalatedFrom,
		&rem.EscalatedAt,
		&rem.CreatedAt,
		&rem.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rem.ScheduleID = derefString(scheduleID)

	if rem.ResponseText != nil && r.cipher != nil {
		plain, err := r.cipher.Decrypt(*rem.ResponseText)
		if err != nil {
			// rows written before encryption was enabled stay readable
			r.logger.Warn("failed to decrypt response text", zap.Error(err), zap.String("reminder_id", rem.ID))
		} else {
			rem.ResponseText = &plain
		}
	}

	return &rem, nil
}

func (r *ReminderRepository) collect(rows pgx.Rows) ([]model.Reminder, error) {
	defer rows.Close()

	var reminders []model.Reminder
	for rows.Next() {
		rem, err := r.scan(rows)
		if err != nil {
			r.logger.Error("failed to scan reminder", zap.Error(err))
			continue
		}
		reminders = append(reminders, *rem)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating reminders", zap.Error(err))
		return nil, fmt.Errorf("error iterating reminders: %w", err)
	}

	return reminders, nil
}

// ScheduledTimesBetween returns the send times already taken for an assignment within [from, to]
func (r *ReminderRepository) ScheduledTimesBetween(ctx context.Context, assignmentID string, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT scheduled_time FROM reminders
		WHERE medication_assignment_id = $1 AND scheduled_time BETWEEN $2 AND $3
	`

	rows, err := r.db.Query(ctx, query, assignmentID, from, to)
	if err != nil {
		r.logger.Error("failed to load existing reminder times",
			zap.Error(err),
			zap.String("medication_assignment_id", assignmentID),
		)
		return nil, fmt.Errorf("failed to load existing reminder times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan reminder time: %w", err)
		}
		times = append(times, t)
	}

	return times, rows.Err()
}

// InsertBatch inserts reminders in one transaction. Reminders colliding with an
// existing (medication assignment, scheduled time) are skipped; the inserted ones are returned.
func (r *ReminderRepository) InsertBatch(ctx context.Context, reminders []model.Reminder) ([]model.Reminder, error) {
	if len(reminders) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO reminders (
			id, schedule_id, patient_id, medication_assignment_id, scheduled_time, actual_dose_time,
			channel, status, message_text, retry_count, max_retries, escalated_from,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (medication_assignment_id, scheduled_time) DO NOTHING
		RETURNING id
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rem := range reminders {
		batch.Queue(query,
			rem.ID,
			nullableString(rem.ScheduleID),
			rem.PatientID,
			rem.MedicationAssignmentID,
			rem.ScheduledTime,
			rem.ActualDoseTime,
			rem.Channel,
			rem.Status,
			rem.MessageText,
			rem.RetryCount,
			rem.MaxRetries,
			rem.EscalatedFrom,
			rem.CreatedAt,
			rem.UpdatedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	inserted := make([]model.Reminder, 0, len(reminders))
	for _, rem := range reminders {
		var id string
		err := results.QueryRow().Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			results.Close()
			r.logger.Error("failed to insert reminder",
				zap.Error(err),
				zap.String("medication_assignment_id", rem.MedicationAssignmentID),
				zap.Time("scheduled_time", rem.ScheduledTime),
			)
			return nil, fmt.Errorf("failed to insert reminder: %w", err)
		}
		inserted = append(inserted, rem)
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("failed to close reminder batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reminder batch: %w", err)
	}

	return inserted, nil
}

// FindByID retrieves a reminder by ID
func (r *ReminderRepository) FindByID(ctx context.Context, reminderID string) (*model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`

	rem, err := r.scan(r.db.QueryRow(ctx, query, reminderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("reminder", reminderID)
		}
		r.logger.Error("failed to find reminder", zap.Error(err), zap.String("reminder_id", reminderID))
		return nil, fmt.Errorf("failed to find reminder: %w", err)
	}

	return rem, nil
}

// List retrieves a patient's reminders, most recent first
func (r *ReminderRepository) List(ctx context.Context, filter ReminderFilter) ([]model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders
		WHERE patient_id = $1
		  AND ($2::text IS NULL OR status = $2::text)
		  AND ($3::timestamptz IS NULL OR scheduled_time >= $3::timestamptz)
		  AND ($4::timestamptz IS NULL OR scheduled_time <= $4::timestamptz)
		ORDER BY scheduled_time DESC
		LIMIT $5
	`

	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}
	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}

	rows, err := r.db.Query(ctx, query, filter.PatientID, status, filter.From, filter.To, limit)
	if err != nil {
		r.logger.Error("failed to list reminders", zap.Error(err), zap.String("patient_id", filter.PatientID))
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}

	return r.collect(rows)
}

// DueIDs returns pending reminders whose send time is in [since, now], oldest first
func (r *ReminderRepository) DueIDs(ctx context.Context, now, since time.Time, limit int) ([]string, error) {
	query := `
		SELECT id FROM reminders
		WHERE status = 'pending' AND scheduled_time <= $1 AND scheduled_time >= $2
		ORDER BY scheduled_time
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, now, since, limit)
	if err != nil {
		r.logger.Error("failed to select due reminders", zap.Error(err))
		return nil, fmt.Errorf("failed to select due reminders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan due reminder: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ClaimPending locks a pending reminder for delivery. A reminder locked by
// another transaction is skipped rather than waited for.
func (r *ReminderRepository) ClaimPending(ctx context.Context, reminderID string) (ReminderClaim, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	query := `SELECT ` + reminderColumns + ` FROM reminders
		WHERE id = $1 AND status = 'pending'
		FOR UPDATE SKIP LOCKED`

	rem, err := r.scan(tx.QueryRow(ctx, query, reminderID))
	if err != nil {
		_ = tx.Rollback(ctx)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotClaimable
		}
		r.logger.Error("failed to claim reminder", zap.Error(err), zap.String("reminder_id", reminderID))
		return nil, fmt.Errorf("failed to claim reminder: %w", err)
	}

	return &pgReminderClaim{tx: tx, reminder: rem, logger: r.logger}, nil
}

type pgReminderClaim struct {
	tx       pgx.Tx
	reminder *model.Reminder
	logger   *zap.Logger
}

func (c *pgReminderClaim) Reminder() *model.Reminder {
	return c.reminder
}

func (c *pgReminderClaim) MarkSent(ctx context.Context, providerMessageID string, sentAt time.Time) error {
	query := `
		UPDATE reminders
		SET status = 'sent', sent_at = $2, provider_message_id = $3, last_error = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	result, err := c.tx.Exec(ctx, query, c.reminder.ID, sentAt, nullableString(providerMessageID))
	if err != nil {
		c.logger.Error("failed to mark reminder sent", zap.Error(err), zap.String("reminder_id", c.reminder.ID))
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.InvalidState("reminder %s is no longer pending", c.reminder.ID)
	}

	if err := c.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sent reminder: %w", err)
	}

	c.reminder.Status = model.ReminderStatusSent
	c.reminder.SentAt = &sentAt
	c.reminder.ProviderMessageID = nullableString(providerMessageID)
	c.reminder.LastError = nil
	return nil
}

func (c *pgReminderClaim) RecordFailure(ctx context.Context, reason string) (model.ReminderStatus, error) {
	query := `
		UPDATE reminders
		SET retry_count = retry_count + 1,
		    status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE status END,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING status, retry_count
	`

	var (
		status     model.ReminderStatus
		retryCount int
	)
	if err := c.tx.QueryRow(ctx, query, c.reminder.ID, reason).Scan(&status, &retryCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperror.InvalidState("reminder %s is no longer pending", c.reminder.ID)
		}
		c.logger.Error("failed to record delivery failure", zap.Error(err), zap.String("reminder_id", c.reminder.ID))
		return "", fmt.Errorf("failed to record delivery failure: %w", err)
	}

	if err := c.tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit delivery failure: %w", err)
	}

	c.reminder.Status = status
	c.reminder.RetryCount = retryCount
	c.reminder.LastError = &reason
	return status, nil
}

func (c *pgReminderClaim) Cancel(ctx context.Context) error {
	query := `UPDATE reminders SET status = 'cancelled', updated_at = NOW() WHERE id = $1 AND status = 'pending'`

	if _, err := c.tx.Exec(ctx, query, c.reminder.ID); err != nil {
		c.logger.Error("failed to cancel claimed reminder", zap.Error(err), zap.String("reminder_id", c.reminder.ID))
		return fmt.Errorf("failed to cancel claimed reminder: %w", err)
	}

	if err := c.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cancelled reminder: %w", err)
	}

	c.reminder.Status = model.ReminderStatusCancelled
	return nil
}

// Release drops the lock without changes; it is a no-op after a commit
func (c *pgReminderClaim) Release(ctx context.Context) {
	_ = c.tx.Rollback(ctx)
}

// Cancel moves a pending reminder to cancelled. Any other status is an invalid state.
func (r *ReminderRepository) Cancel(ctx context.Context, reminderID string) (*model.Reminder, error) {
	query := `UPDATE reminders SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + reminderColumns

	rem, err := r.scan(r.db.QueryRow(ctx, query, reminderID))
	if err == nil {
		return rem, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error("failed to cancel reminder", zap.Error(err), zap.String("reminder_id", reminderID))
		return nil, fmt.Errorf("failed to cancel reminder: %w", err)
	}

	current, err := r.FindByID(ctx, reminderID)
	if err != nil {
		return nil, err
	}
	return nil, apperror.InvalidState("reminder %s is %s; only pending reminders can be cancelled", reminderID, current.Status)
}

// ApplyDeliveryStatus moves the reminder carrying providerMessageID to status when
// the transition is legal. It returns the reminder (nil when the id is unknown)
// and whether the update was applied.
func (r *ReminderRepository) ApplyDeliveryStatus(ctx context.Context, providerMessageID string, status model.ReminderStatus, reason *string) (*model.Reminder, bool, error) {
	query := `
		UPDATE reminders
		SET status = $2::text,
		    delivered_at = CASE WHEN $2::text = 'delivered' THEN NOW() ELSE delivered_at END,
		    read_at = CASE WHEN $2::text = 'read' THEN NOW() ELSE read_at END,
		    last_error = COALESCE($3, last_error),
		    updated_at = NOW()
		WHERE provider_message_id = $1 AND status = ANY($4::text[])
		RETURNING ` + reminderColumns

	predecessors := statusesToStrings(model.PredecessorsOf(status))
	rem, err := r.scan(r.db.QueryRow(ctx, query, providerMessageID, string(status), reason, predecessors))
	if err == nil {
		return rem, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error("failed to apply delivery status",
			zap.Error(err),
			zap.String("provider_message_id", providerMessageID),
			zap.String("status", string(status)),
		)
		return nil, false, fmt.Errorf("failed to apply delivery status: %w", err)
	}

	current, err := r.scan(r.db.QueryRow(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE provider_message_id = $1`, providerMessageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to find reminder by provider message id: %w", err)
	}
	return current, false, nil
}

// FindLatestAwaitingResponse returns the patient's most recent reminder that is
// sent, delivered or read and was scheduled at or after since. It returns nil when there is none.
func (r *ReminderRepository) FindLatestAwaitingResponse(ctx context.Context, patientID string, since time.Time) (*model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders
		WHERE patient_id = $1 AND status = ANY($2::text[]) AND scheduled_time >= $3
		ORDER BY scheduled_time DESC
		LIMIT 1`

	rem, err := r.scan(r.db.QueryRow(ctx, query, patientID, statusesToStrings(model.AwaitingResponse), since))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("failed to find outstanding reminder", zap.Error(err), zap.String("patient_id", patientID))
		return nil, fmt.Errorf("failed to find outstanding reminder: %w", err)
	}

	return rem, nil
}

// RespondWithEvent marks a reminder responded and, when event is not nil, records
// the dose event in the same transaction
func (r *ReminderRepository) RespondWithEvent(ctx context.Context, reminderID, responseText string, respondedAt time.Time, event *model.MedicationEvent) (*model.Reminder, error) {
	stored := responseText
	if r.cipher != nil {
		encrypted, err := r.cipher.Encrypt(responseText)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt response text: %w", err)
		}
		stored = encrypted
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `UPDATE reminders
		SET status = 'responded', response_text = $2, responded_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($4::text[])
		RETURNING ` + reminderColumns

	rem, err := r.scan(tx.QueryRow(ctx, query, reminderID, stored, respondedAt, statusesToStrings(model.AwaitingResponse)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.InvalidState("reminder %s is no longer awaiting a response", reminderID)
		}
		r.logger.Error("failed to mark reminder responded", zap.Error(err), zap.String("reminder_id", reminderID))
		return nil, fmt.Errorf("failed to mark reminder responded: %w", err)
	}

	if event != nil {
		if err := insertEvent(ctx, tx, event); err != nil {
			if isUniqueViolation(err) {
				return nil, duplicateEventError(event, err)
			}
			r.logger.Error("failed to record response event", zap.Error(err), zap.String("reminder_id", reminderID))
			return nil, fmt.Errorf("failed to record response event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit response: %w", err)
	}

	return rem, nil
}

// ListEscalationCandidates returns unanswered first-line reminders whose
// escalation delay has elapsed at now, ignoring anything scheduled before since
func (r *ReminderRepository) ListEscalationCandidates(ctx context.Context, now, since time.Time) ([]EscalationCandidate, error) {
	query := `
		SELECT r.id, s.escalate_delay_minutes
		FROM reminders r
		JOIN reminder_schedules s ON s.id = r.schedule_id
		WHERE s.escalate_if_missed AND s.is_active
		  AND r.status = ANY($1::text[])
		  AND r.escalated_at IS NULL
		  AND r.escalated_from IS NULL
		  AND r.scheduled_time >= $3
		  AND r.scheduled_time + make_interval(mins => s.escalate_delay_minutes) <= $2
		ORDER BY r.scheduled_time
	`

	rows, err := r.db.Query(ctx, query, statusesToStrings(model.AwaitingResponse), now, since)
	if err != nil {
		r.logger.Error("failed to list escalation candidates", zap.Error(err))
		return nil, fmt.Errorf("failed to list escalation candidates: %w", err)
	}

	type pair struct {
		id    string
		delay int
	}
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.id, &p.delay); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan escalation candidate: %w", err)
		}
		pairs = append(pairs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escalation candidates: %w", err)
	}

	candidates := make([]EscalationCandidate, 0, len(pairs))
	for _, p := range pairs {
		rem, err := r.FindByID(ctx, p.id)
		if err != nil {
			r.logger.Warn("escalation candidate disappeared", zap.Error(err), zap.String("reminder_id", p.id))
			continue
		}
		candidates = append(candidates, EscalationCandidate{Reminder: *rem, DelayMinutes: p.delay})
	}

	return candidates, nil
}

// CreateEscalation marks the original reminder escalated and inserts its follow-up.
// It returns false when the original was already escalated.
func (r *ReminderRepository) CreateEscalation(ctx context.Context, originalID string, followUp *model.Reminder) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx,
		`UPDATE reminders SET escalated_at = NOW(), updated_at = NOW() WHERE id = $1 AND escalated_at IS NULL`,
		originalID)
	if err != nil {
		r.logger.Error("failed to mark reminder escalated", zap.Error(err), zap.String("reminder_id", originalID))
		return false, fmt.Errorf("failed to mark reminder escalated: %w", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reminders (
			id, schedule_id, patient_id, medication_assignment_id, scheduled_time, actual_dose_time,
			channel, status, message_text, retry_count, max_retries, escalated_from,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (medication_assignment_id, scheduled_time) DO NOTHING
	`,
		followUp.ID,
		nullableString(followUp.ScheduleID),
		followUp.PatientID,
		followUp.MedicationAssignmentID,
		followUp.ScheduledTime,
		followUp.ActualDoseTime,
		followUp.Channel,
		followUp.Status,
		followUp.MessageText,
		followUp.RetryCount,
		followUp.MaxRetries,
		followUp.EscalatedFrom,
		followUp.CreatedAt,
		followUp.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to insert follow-up reminder", zap.Error(err), zap.String("reminder_id", originalID))
		return false, fmt.Errorf("failed to insert follow-up reminder: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit escalation: %w", err)
	}

	return true, nil
}
