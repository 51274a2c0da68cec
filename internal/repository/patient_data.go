package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErasedCounts reports how many rows were removed per table
type ErasedCounts struct {
	Schedules      int64 `json:"schedules"`
	Reminders      int64 `json:"reminders"`
	Events         int64 `json:"events"`
	AdherenceStats int64 `json:"adherence_stats"`
	Reports        int64 `json:"reports"`
	Contacts       int64 `json:"contacts"`
}

// PatientDataRepository erases everything stored about a patient
type PatientDataRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPatientDataRepository creates a new PatientDataRepository
func NewPatientDataRepository(db *pgxpool.Pool, logger *zap.Logger) *PatientDataRepository {
	return &PatientDataRepository{
		db:     db,
		logger: logger,
	}
}

// Erase deletes all patient data in one transaction. Delivery events
// go with their reminders through the foreign key cascade.
func (r *PatientDataRepository) Erase(ctx context.Context, patientID string) (*ErasedCounts, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	counts := &ErasedCounts{}
	steps := []struct {
		name  string
		query string
		into  *int64
	}{
		{"medication events", "DELETE FROM medication_events WHERE patient_id = $1", &counts.Events},
		{"reminders", "DELETE FROM reminders WHERE patient_id = $1", &counts.Reminders},
		{"reminder schedules", "DELETE FROM reminder_schedules WHERE patient_id = $1", &counts.Schedules},
		{"adherence stats", "DELETE FROM adherence_stats WHERE patient_id = $1", &counts.AdherenceStats},
		{"reports", "DELETE FROM reports WHERE patient_id = $1", &counts.Reports},
		{"patient contact", "DELETE FROM patient_contacts WHERE patient_id = $1", &counts.Contacts},
	}

	for _, step := range steps {
		result, err := tx.Exec(ctx, step.query, patientID)
		if err != nil {
			r.logger.Error("failed to erase patient data",
				zap.Error(err),
				zap.String("patient_id", patientID),
				zap.String("table", step.name),
			)
			return nil, fmt.Errorf("failed to delete %s: %w", step.name, err)
		}
		*step.into = result.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return counts, nil
}
