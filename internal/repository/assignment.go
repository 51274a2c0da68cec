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

// AssignmentRepository holds the snapshots of medication assignments pushed by the catalog
type AssignmentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewAssignmentRepository creates a new AssignmentRepository
func NewAssignmentRepository(db *pgxpool.Pool, logger *zap.Logger) *AssignmentRepository {
	return &AssignmentRepository{
		db:     db,
		logger: logger,
	}
}

const assignmentColumns = `id, patient_id, medication_name, dosage, frequency, status, created_at, updated_at`

func scanAssignment(row pgx.Row) (*model.MedicationAssignment, error) {
	var a model.MedicationAssignment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.MedicationName,
		&a.Dosage,
		&a.Frequency,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByID retrieves an assignment by ID
func (r *AssignmentRepository) FindByID(ctx context.Context, assignmentID string) (*model.MedicationAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM medication_assignments WHERE id = $1`

	a, err := scanAssignment(r.db.QueryRow(ctx, query, assignmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("medication assignment", assignmentID)
		}
		r.logger.Error("failed to find medication assignment", zap.Error(err), zap.String("medication_assignment_id", assignmentID))
		return nil, fmt.Errorf("failed to find medication assignment: %w", err)
	}

	return a, nil
}

// Upsert stores the latest snapshot of an assignment and returns the status it replaced
// (empty when the assignment is new)
func (r *AssignmentRepository) Upsert(ctx context.Context, a *model.MedicationAssignment) (model.AssignmentStatus, error) {
	query := `
		WITH previous AS (
			SELECT status FROM medication_assignments WHERE id = $1
		)
		INSERT INTO medication_assignments (
			id, patient_id, medication_name, dosage, frequency, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			medication_name = EXCLUDED.medication_name,
			dosage = EXCLUDED.dosage,
			frequency = EXCLUDED.frequency,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		RETURNING (SELECT status FROM previous)
	`

	var previous *string
	err := r.db.QueryRow(ctx, query,
		a.ID,
		a.PatientID,
		a.MedicationName,
		a.Dosage,
		a.Frequency,
		a.Status,
		a.CreatedAt,
		a.UpdatedAt,
	).Scan(&previous)

	if err != nil {
		r.logger.Error("failed to upsert medication assignment",
			zap.Error(err),
			zap.String("medication_assignment_id", a.ID),
		)
		return "", fmt.Errorf("failed to upsert medication assignment: %w", err)
	}

	return model.AssignmentStatus(derefString(previous)), nil
}

// TransitionStatus moves an assignment from one of the given statuses to next
func (r *AssignmentRepository) TransitionStatus(ctx context.Context, assignmentID string, from []model.AssignmentStatus, next model.AssignmentStatus) (*model.MedicationAssignment, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	query := `UPDATE medication_assignments SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3::text[])
		RETURNING ` + assignmentColumns

	a, err := scanAssignment(r.db.QueryRow(ctx, query, assignmentID, next, allowed))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error("failed to change medication assignment status",
			zap.Error(err),
			zap.String("medication_assignment_id", assignmentID),
		)
		return nil, fmt.Errorf("failed to change medication assignment status: %w", err)
	}

	current, err := r.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	return nil, apperror.InvalidState("medication assignment %s is already %s", assignmentID, current.Status)
}
