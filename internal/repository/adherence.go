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

// AdherenceRepository stores cached adherence snapshots
type AdherenceRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewAdherenceRepository creates a new AdherenceRepository
func NewAdherenceRepository(db *pgxpool.Pool, logger *zap.Logger) *AdherenceRepository {
	return &AdherenceRepository{
		db:     db,
		logger: logger,
	}
}

const statsColumns = `
	id, patient_id, medication_assignment_id, period_type, period_start, period_end,
	total_scheduled, total_taken, total_skipped, total_missed, on_time_taken,
	adherence_score, on_time_score, current_streak, longest_streak, calculated_at`

func scanStats(row pgx.Row) (*model.AdherenceStats, error) {
	var s model.AdherenceStats
	err := row.Scan(
		&s.ID,
		&s.PatientID,
		&s.MedicationAssignmentID,
		&s.PeriodType,
		&s.PeriodStart,
		&s.PeriodEnd,
		&s.TotalScheduled,
		&s.TotalTaken,
		&s.TotalSkipped,
		&s.TotalMissed,
		&s.OnTimeTaken,
		&s.AdherenceScore,
		&s.OnTimeScore,
		&s.CurrentStreak,
		&s.LongestStreak,
		&s.CalculatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert writes the single snapshot row of a (patient, medication, period) key
func (r *AdherenceRepository) Upsert(ctx context.Context, stats *model.AdherenceStats) error {
	query := `
		INSERT INTO adherence_stats (
			patient_id, medication_assignment_id, period_type, period_start, period_end,
			total_scheduled, total_taken, total_skipped, total_missed, on_time_taken,
			adherence_score, on_time_score, current_streak, longest_streak, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT ON CONSTRAINT uq_adherence_stats_key DO UPDATE SET
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			total_scheduled = EXCLUDED.total_scheduled,
			total_taken = EXCLUDED.total_taken,
			total_skipped = EXCLUDED.total_skipped,
			total_missed = EXCLUDED.total_missed,
			on_time_taken = EXCLUDED.on_time_taken,
			adherence_score = EXCLUDED.adherence_score,
			on_time_score = EXCLUDED.on_time_score,
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			calculated_at = EXCLUDED.calculated_at
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		stats.PatientID,
		stats.MedicationAssignmentID,
		stats.PeriodType,
		stats.PeriodStart,
		stats.PeriodEnd,
		stats.TotalScheduled,
		stats.TotalTaken,
		stats.TotalSkipped,
		stats.TotalMissed,
		stats.OnTimeTaken,
		stats.AdherenceScore,
		stats.OnTimeScore,
		stats.CurrentStreak,
		stats.LongestStreak,
		stats.CalculatedAt,
	).Scan(&stats.ID)

	if err != nil {
		r.logger.Error("failed to upsert adherence stats",
			zap.Error(err),
			zap.String("patient_id", stats.PatientID),
			zap.String("period_type", string(stats.PeriodType)),
		)
		return fmt.Errorf("failed to upsert adherence stats: %w", err)
	}

	return nil
}

// Find retrieves the cached snapshot of a key. A nil assignment selects the patient-wide row.
func (r *AdherenceRepository) Find(ctx context.Context, patientID string, assignmentID *string, period model.PeriodType) (*model.AdherenceStats, error) {
	query := `SELECT ` + statsColumns + ` FROM adherence_stats
		WHERE patient_id = $1
		  AND medication_assignment_id IS NOT DISTINCT FROM $2::text
		  AND period_type = $3`

	stats, err := scanStats(r.db.QueryRow(ctx, query, patientID, assignmentID, period))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("adherence stats", fmt.Sprintf("%s/%s", patientID, period))
		}
		r.logger.Error("failed to find adherence stats", zap.Error(err), zap.String("patient_id", patientID))
		return nil, fmt.Errorf("failed to find adherence stats: %w", err)
	}

	return stats, nil
}

// ListByPatient retrieves every cached snapshot of a patient
func (r *AdherenceRepository) ListByPatient(ctx context.Context, patientID string) ([]model.AdherenceStats, error) {
	query := `SELECT ` + statsColumns + ` FROM adherence_stats WHERE patient_id = $1 ORDER BY period_type`

	rows, err := r.db.Query(ctx, query, patientID)
	if err != nil {
		r.logger.Error("failed to list adherence stats", zap.Error(err), zap.String("patient_id", patientID))
		return nil, fmt.Errorf("failed to list adherence stats: %w", err)
	}
	defer rows.Close()

	var all []model.AdherenceStats
	for rows.Next() {
		s, err := scanStats(rows)
		if err != nil {
			r.logger.Error("failed to scan adherence stats", zap.Error(err))
			continue
		}
		all = append(all, *s)
	}

	return all, rows.Err()
}
