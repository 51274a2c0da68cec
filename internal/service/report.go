package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/azure"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/pdf"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// MaxReportDays bounds the date range of one report
const MaxReportDays = 366

// ErrReportStorageDisabled is returned when no report storage is configured
var ErrReportStorageDisabled = errors.New("report storage is not configured")

// ReportRenderer renders report data to a document
type ReportRenderer interface {
	Generate(data *pdf.ReportData) ([]byte, error)
}

// ReportService manages adherence report generation
type ReportService struct {
	reports     ReportRepositoryInterface
	events      EventRepositoryInterface
	assignments AssignmentRepositoryInterface
	contacts    ContactLookup
	storage     azure.ReportStorage
	renderer    ReportRenderer
	audit       AuditRecorder
	loc         *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

// NewReportService creates a new ReportService. storage may be nil, in which
// case generating and downloading reports fails with ErrReportStorageDisabled.
func NewReportService(
	reports ReportRepositoryInterface,
	events EventRepositoryInterface,
	assignments AssignmentRepositoryInterface,
	contacts ContactLookup,
	storage azure.ReportStorage,
	renderer ReportRenderer,
	auditor AuditRecorder,
	loc *time.Location,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		reports:     reports,
		events:      events,
		assignments: assignments,
		contacts:    contacts,
		storage:     storage,
		renderer:    renderer,
		audit:       auditor,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

// GenerateReport renders an adherence report for the dates from..to, stores it and records it
func (s *ReportService) GenerateReport(ctx context.Context, actor audit.Actor, patientID string, from, to time.Time) (*model.Report, error) {
	if s.storage == nil {
		return nil, ErrReportStorageDisabled
	}
	if patientID == "" {
		return nil, apperror.Validation("patient_id is required")
	}
	from, to = model.CivilDate(from), model.CivilDate(to)
	if to.Before(from) {
		return nil, apperror.Validation("end date must not be before start date")
	}
	if to.Sub(from) > MaxReportDays*24*time.Hour {
		return nil, apperror.Validation("a report covers at most %d days", MaxReportDays)
	}

	s.logger.Info("generating adherence report",
		zap.String("patient_id", patientID),
		zap.Time("start_date", from),
		zap.Time("end_date", to),
	)

	data, err := s.collect(ctx, patientID, from, to)
	if err != nil {
		return nil, err
	}

	pdfBytes, err := s.renderer.Generate(data)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	now := s.now()
	reportID := uuid.New().String()
	filename := fmt.Sprintf("%s_%s.pdf", reportID, now.Format("20060102"))
	blobPath, err := s.storage.UploadReport(ctx, patientID, filename, pdfBytes)
	if err != nil {
		s.logger.Error("failed to upload report", zap.Error(err), zap.String("report_id", reportID))
		return nil, fmt.Errorf("failed to upload PDF: %w", err)
	}

	report := &model.Report{
		ID:             reportID,
		PatientID:      patientID,
		DateRangeStart: from,
		DateRangeEnd:   to,
		FilePath:       blobPath,
		GeneratedAt:    now,
		CreatedAt:      now,
	}
	if err := s.reports.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report record: %w", err)
	}

	if err := s.audit.Record(ctx, actor, audit.OperationCreate, audit.ResourceReport, reportID,
		map[string]interface{}{"patient_id": patientID}); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err), zap.String("report_id", reportID))
	}
	s.logger.Info("adherence report generated",
		zap.String("report_id", reportID),
		zap.String("patient_id", patientID),
		zap.String("blob_path", blobPath),
	)

	return report, nil
}

// collect gathers everything the report shows
func (s *ReportService) collect(ctx context.Context, patientID string, from, to time.Time) (*pdf.ReportData, error) {
	// streaks look at the whole history, scores only at the range
	history, err := s.events.List(ctx, repository.EventFilter{PatientID: patientID})
	if err != nil {
		return nil, fmt.Errorf("failed to load medication events: %w", err)
	}

	counts, err := s.events.DailyCounts(ctx, patientID, nil, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily adherence: %w", err)
	}

	now := s.now()
	data := &pdf.ReportData{
		PatientName: patientID,
		From:        from,
		To:          to,
		GeneratedAt: now.In(s.loc),
		Overall:     RangeStats(patientID, nil, from, to, history, now),
		Daily:       ScoreDays(counts, from, to),
	}

	if contact, err := s.contacts.Resolve(ctx, patientID); err == nil && contact.Name != "" {
		data.PatientName = contact.Name
	}

	byAssignment := make(map[string][]model.MedicationEvent)
	var order []string
	for _, ev := range history {
		d := model.CivilDate(ev.ScheduledDate)
		if d.Before(from) || d.After(to) {
			continue
		}
		data.Events = append(data.Events, ev)
		if ev.MedicationAssignmentID == "" {
			continue
		}
		if _, seen := byAssignment[ev.MedicationAssignmentID]; !seen {
			order = append(order, ev.MedicationAssignmentID)
		}
		byAssignment[ev.MedicationAssignmentID] = append(byAssignment[ev.MedicationAssignmentID], ev)
	}

	for _, id := range order {
		summary := pdf.MedicationSummary{Name: id}
		if a, err := s.assignments.FindByID(ctx, id); err == nil {
			summary.Name = a.MedicationName
			summary.Dosage = a.Dosage
		}
		assignmentID := id
		summary.Stats = RangeStats(patientID, &assignmentID, from, to, byAssignment[id], now)
		data.Medications = append(data.Medications, summary)
	}

	return data, nil
}

// GetReport retrieves a report record and its PDF
func (s *ReportService) GetReport(ctx context.Context, reportID string) (*model.Report, []byte, error) {
	if s.storage == nil {
		return nil, nil, ErrReportStorageDisabled
	}

	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}

	pdfBytes, err := s.storage.DownloadReport(ctx, report.FilePath)
	if err != nil {
		s.logger.Error("failed to download report",
			zap.Error(err),
			zap.String("report_id", reportID),
			zap.String("blob_path", report.FilePath),
		)
		return nil, nil, fmt.Errorf("failed to download PDF: %w", err)
	}

	return report, pdfBytes, nil
}

// ListReports retrieves all reports of a patient
func (s *ReportService) ListReports(ctx context.Context, patientID string) ([]model.Report, error) {
	if patientID == "" {
		return nil, apperror.Validation("patient_id is required")
	}
	return s.reports.ListByPatient(ctx, patientID)
}
