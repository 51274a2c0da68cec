package service

import (
	"context"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// SyncResult reports what an assignment snapshot changed
type SyncResult struct {
	Assignment         *model.MedicationAssignment `json:"assignment"`
	PreviousStatus     model.AssignmentStatus      `json:"previous_status,omitempty"`
	CancelledReminders int64                       `json:"cancelled_reminders"`
}

// AssignmentService keeps the local medication assignment snapshots in step
// with the medication catalog
type AssignmentService struct {
	assignments AssignmentRepositoryInterface
	schedules   ScheduleRepositoryInterface
	generator   ReminderGeneratorInterface
	audit       AuditRecorder
	daysAhead   int
	now         func() time.Time
	logger      *zap.Logger
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(
	assignments AssignmentRepositoryInterface,
	schedules ScheduleRepositoryInterface,
	generator ReminderGeneratorInterface,
	auditor AuditRecorder,
	daysAhead int,
	logger *zap.Logger,
) *AssignmentService {
	return &AssignmentService{
		assignments: assignments,
		schedules:   schedules,
		generator:   generator,
		audit:       auditor,
		daysAhead:   daysAhead,
		now:         time.Now,
		logger:      logger,
	}
}

// Sync stores an assignment snapshot. Stopping an assignment deletes its
// schedule; pausing it deactivates the schedule.
func (s *AssignmentService) Sync(ctx context.Context, actor audit.Actor, a *model.MedicationAssignment) (*SyncResult, error) {
	if a.ID == "" {
		return nil, apperror.Validation("medication assignment id is required")
	}
	if a.PatientID == "" {
		return nil, apperror.Validation("patient_id is required")
	}
	if a.MedicationName == "" {
		return nil, apperror.Validation("medication_name is required")
	}
	if a.Status == "" {
		a.Status = model.AssignmentStatusActive
	}
	if !a.Status.Valid() {
		return nil, apperror.Validation("unknown assignment status: %q", a.Status)
	}

	now := s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	previous, err := s.assignments.Upsert(ctx, a)
	if err != nil {
		return nil, err
	}
	result := &SyncResult{Assignment: a, PreviousStatus: previous}

	if previous != a.Status {
		cancelled, err := s.applyStatus(ctx, a)
		if err != nil {
			return nil, err
		}
		result.CancelledReminders = cancelled
	}

	if err := s.audit.Record(ctx, actor, audit.OperationUpdate, audit.ResourceAssignment, a.ID, map[string]interface{}{
		"status":          string(a.Status),
		"previous_status": string(previous),
	}); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err), zap.String("medication_assignment_id", a.ID))
	}
	s.logger.Info("medication assignment synced",
		zap.String("medication_assignment_id", a.ID),
		zap.String("patient_id", a.PatientID),
		zap.String("status", string(a.Status)),
		zap.String("previous_status", string(previous)),
	)

	return result, nil
}

// applyStatus propagates an assignment status change to its schedule
func (s *AssignmentService) applyStatus(ctx context.Context, a *model.MedicationAssignment) (int64, error) {
	if a.Status == model.AssignmentStatusActive {
		return 0, nil
	}

	schedule, err := s.schedules.FindByAssignment(ctx, a.ID)
	if apperror.Is(err, apperror.CodeNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if a.Status == model.AssignmentStatusStopped {
		return s.schedules.Delete(ctx, schedule.ID)
	}
	return s.schedules.SetActive(ctx, schedule.ID, false)
}

// Confirm resumes a paused assignment and re-activates its schedule
func (s *AssignmentService) Confirm(ctx context.Context, actor audit.Actor, assignmentID string) (*model.MedicationAssignment, error) {
	a, err := s.assignments.TransitionStatus(ctx, assignmentID,
		[]model.AssignmentStatus{model.AssignmentStatusPaused}, model.AssignmentStatusActive)
	if err != nil {
		return nil, err
	}

	schedule, err := s.schedules.FindByAssignment(ctx, assignmentID)
	switch {
	case err == nil:
		if _, err := s.schedules.SetActive(ctx, schedule.ID, true); err != nil {
			return nil, err
		}
		if _, err := s.generator.Generate(ctx, schedule.ID, s.daysAhead); err != nil {
			s.logger.Warn("reminder generation after confirmation failed", zap.Error(err), zap.String("schedule_id", schedule.ID))
		}
	case !apperror.Is(err, apperror.CodeNotFound):
		return nil, err
	}

	if err := s.audit.Record(ctx, actor, audit.OperationUpdate, audit.ResourceAssignment, assignmentID,
		map[string]interface{}{"status": string(model.AssignmentStatusActive)}); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err), zap.String("medication_assignment_id", assignmentID))
	}
	s.logger.Info("medication assignment confirmed", zap.String("medication_assignment_id", assignmentID))

	return a, nil
}
