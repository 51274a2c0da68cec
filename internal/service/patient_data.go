package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/azure"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// PatientDataExport represents all data stored about a patient
type PatientDataExport struct {
	PatientID      string                   `json:"patient_id"`
	Contact        *model.PatientContact    `json:"contact,omitempty"`
	Schedules      []model.ReminderSchedule `json:"schedules"`
	Reminders      []model.Reminder         `json:"reminders"`
	Events         []model.MedicationEvent  `json:"events"`
	AdherenceStats []model.AdherenceStats   `json:"adherence_stats"`
	Reports        []model.Report           `json:"reports"`
	ExportedAt     time.Time                `json:"exported_at"`
}

// ErasureResult reports what was removed for a patient
type ErasureResult struct {
	repository.ErasedCounts
	ReportFiles int `json:"report_files"`
}

// PatientDataService exports and erases patient data
type PatientDataService struct {
	schedules ScheduleRepositoryInterface
	reminders ReminderRepositoryInterface
	events    EventRepositoryInterface
	stats     AdherenceRepositoryInterface
	contacts  ContactRepositoryInterface
	reports   ReportRepositoryInterface
	data      PatientDataRepositoryInterface
	storage   azure.ReportStorage
	cache     ContactInvalidator
	audit     AuditRecorder
	now       func() time.Time
	logger    *zap.Logger
}

// NewPatientDataService creates a new PatientDataService. storage may be nil.
func NewPatientDataService(
	schedules ScheduleRepositoryInterface,
	reminders ReminderRepositoryInterface,
	events EventRepositoryInterface,
	stats AdherenceRepositoryInterface,
	contacts ContactRepositoryInterface,
	reports ReportRepositoryInterface,
	data PatientDataRepositoryInterface,
	storage azure.ReportStorage,
	cache ContactInvalidator,
	auditor AuditRecorder,
	logger *zap.Logger,
) *PatientDataService {
	return &PatientDataService{
		schedules: schedules,
		reminders: reminders,
		events:    events,
		stats:     stats,
		contacts:  contacts,
		reports:   reports,
		data:      data,
		storage:   storage,
		cache:     cache,
		audit:     auditor,
		now:       time.Now,
		logger:    logger,
	}
}

// Export collects everything stored about a patient
func (s *PatientDataService) Export(ctx context.Context, actor audit.Actor, patientID string) (*PatientDataExport, error) {
	if patientID == "" {
		return nil, apperror.Validation("patient_id is required")
	}

	export := &PatientDataExport{PatientID: patientID, ExportedAt: s.now()}

	contact, err := s.contacts.FindByPatientID(ctx, patientID)
	switch {
	case err == nil:
		export.Contact = contact
	case !apperror.Is(err, apperror.CodeNotFound):
		return nil, fmt.Errorf("failed to export contact: %w", err)
	}

	if export.Schedules, err = s.schedules.FindByPatientID(ctx, patientID); err != nil {
		return nil, fmt.Errorf("failed to export schedules: %w", err)
	}
	if export.Reminders, err = s.reminders.List(ctx, repository.ReminderFilter{PatientID: patientID}); err != nil {
		return nil, fmt.Errorf("failed to export reminders: %w", err)
	}
	if export.Events, err = s.events.List(ctx, repository.EventFilter{PatientID: patientID}); err != nil {
		return nil, fmt.Errorf("failed to export events: %w", err)
	}
	if export.AdherenceStats, err = s.stats.ListByPatient(ctx, patientID); err != nil {
		return nil, fmt.Errorf("failed to export adherence stats: %w", err)
	}
	if export.Reports, err = s.reports.ListByPatient(ctx, patientID); err != nil {
		return nil, fmt.Errorf("failed to export reports: %w", err)
	}

	if err := s.audit.Record(ctx, actor, audit.OperationRead, audit.ResourcePatientData, patientID,
		map[string]interface{}{"action": "export"}); err != nil {
		s.logger.Error("failed to log audit entry for data export", zap.Error(err), zap.String("patient_id", patientID))
	}
	s.logger.Info("patient data exported", zap.String("patient_id", patientID))

	return export, nil
}

// Erase deletes everything stored about a patient, report files included
func (s *PatientDataService) Erase(ctx context.Context, actor audit.Actor, patientID string) (*ErasureResult, error) {
	if patientID == "" {
		return nil, apperror.Validation("patient_id is required")
	}

	s.logger.Info("starting patient data erasure", zap.String("patient_id", patientID))

	counts, err := s.data.Erase(ctx, patientID)
	if err != nil {
		return nil, err
	}
	result := &ErasureResult{ErasedCounts: *counts}

	if s.storage != nil {
		files, err := s.storage.DeletePatientReports(ctx, patientID)
		if err != nil {
			return nil, fmt.Errorf("failed to delete report files: %w", err)
		}
		result.ReportFiles = files
	}
	if s.cache != nil {
		s.cache.Invalidate(patientID)
	}

	if err := s.audit.Record(ctx, actor, audit.OperationDelete, audit.ResourcePatientData, patientID, map[string]interface{}{
		"schedules": counts.Schedules,
		"reminders": counts.Reminders,
		"events":    counts.Events,
	}); err != nil {
		s.logger.Error("failed to log audit entry for data erasure", zap.Error(err), zap.String("patient_id", patientID))
	}
	s.logger.Info("patient data erased",
		zap.String("patient_id", patientID),
		zap.Int64("reminders", counts.Reminders),
		zap.Int64("events", counts.Events),
		zap.Int("report_files", result.ReportFiles),
	)

	return result, nil
}
