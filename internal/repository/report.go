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

// ReportRepository manages generated adherence report records
type ReportRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(db *pgxpool.Pool, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

// Save saves a report record
func (r *ReportRepository) Save(ctx context.Context, report *model.Report) error {
	query := `
		INSERT INTO reports (
			id, patient_id, date_range_start, date_range_end,
			file_path, generated_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	_, err := r.db.Exec(ctx, query,
		report.ID,
		report.PatientID,
		report.DateRangeStart,
		report.DateRangeEnd,
		report.FilePath,
		report.GeneratedAt,
	)

	if err != nil {
		r.logger.Error("failed to save report",
			zap.Error(err),
			zap.String("report_id", report.ID),
			zap.String("patient_id", report.PatientID),
		)
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

// FindByID retrieves a report by ID
func (r *ReportRepository) FindByID(ctx context.Context, reportID string) (*model.Report, error) {
	query := `
		SELECT id, patient_id, date_range_start, date_range_end, file_path, generated_at, created_at
		FROM reports
		WHERE id = $1
	`

	var report model.Report
	err := r.db.QueryRow(ctx, query, reportID).Scan(
		&report.ID,
		&report.PatientID,
		&report.DateRangeStart,
		&report.DateRangeEnd,
		&report.FilePath,
		&report.GeneratedAt,
		&report.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("report", reportID)
		}
		r.logger.Error("failed to get report", zap.Error(err), zap.String("report_id", reportID))
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return &report, nil
}

// ListByPatient retrieves a patient's reports, newest first
func (r *ReportRepository) ListByPatient(ctx context.Context, patientID string) ([]model.Report, error) {
	query := `
		SELECT id, patient_id, date_range_start, date_range_end, file_path, generated_at, created_at
		FROM reports
		WHERE patient_id = $1
		ORDER BY generated_at DESC
	`

	rows, err := r.db.Query(ctx, query, patientID)
	if err != nil {
		r.logger.Error("failed to list reports", zap.Error(err), zap.String("patient_id", patientID))
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []model.Report{}
	for rows.Next() {
		var report model.Report
		if err := rows.Scan(
			&report.ID,
			&report.PatientID,
			&report.DateRangeStart,
			&report.DateRangeEnd,
			&report.FilePath,
			&report.GeneratedAt,
			&report.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return reports, nil
}
