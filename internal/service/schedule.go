package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

const (
	// DefaultEscalateDelayMinutes applies when escalation is enabled without a delay
	DefaultEscalateDelayMinutes = 30

	// MaxGenerationDays bounds manual generation requests
	MaxGenerationDays = 31
)

// SchedulePatch is a partial schedule update. Nil fields are left unchanged.
type SchedulePatch struct {
	Frequency            *model.Frequency
	ReminderTimes        []string
	AdvanceMinutes       *int
	Channels             []model.Channel
	AutoSkipIfTaken      *bool
	EscalateIfMissed     *bool
	EscalateDelayMinutes *int
	QuietHours           *model.QuietHours
	ClearQuietHours      bool
	StartDate            *time.Time
	EndDate              *time.Time
	ClearEndDate         bool
}

// ValidateSchedule checks the invariants of a schedule's configuration
func ValidateSchedule(s *model.ReminderSchedule) error {
	if s.MedicationAssignmentID == "" {
		return apperror.Validation("medication assignment id is required")
	}
	if !s.Frequency.Valid() {
		return apperror.Validation("unknown frequency: %q", s.Frequency)
	}
	if len(s.ReminderTimes) == 0 {
		return apperror.Validation("at least one reminder time is required")
	}

	seen := make(map[int]bool, len(s.ReminderTimes))
	for _, raw := range s.ReminderTimes {
		ct, err := model.ParseClockTime(raw)
		if err != nil {
			return apperror.Validation("%s", err.Error())
		}
		if seen[ct.Minutes()] {
			return apperror.Validation("reminder time %s is listed twice", ct)
		}
		seen[ct.Minutes()] = true
	}

	if s.AdvanceMinutes < 0 {
		return apperror.Validation("advance minutes must not be negative")
	}
	if s.EscalateDelayMinutes < 0 {
		return apperror.Validation("escalation delay must not be negative")
	}

	if len(s.Channels) == 0 {
		return apperror.Validation("at least one channel is required")
	}
	for _, c := range s.Channels {
		if !c.Valid() {
			return apperror.Validation("unknown channel: %q", c)
		}
	}

	if q := s.QuietHours; q != nil {
		if _, err := model.ParseClockTime(q.Start); err != nil {
			return apperror.Validation("quiet hours start: %s", err.Error())
		}
		if _, err := model.ParseClockTime(q.End); err != nil {
			return apperror.Validation("quiet hours end: %s", err.Error())
		}
	}

	if s.EndDate != nil && model.CivilDate(*s.EndDate).Before(model.CivilDate(s.StartDate)) {
		return apperror.Validation("end date must not be before start date")
	}

	return nil
}

// ScheduleService manages reminder schedules
type ScheduleService struct {
	schedules   ScheduleRepositoryInterface
	assignments AssignmentRepositoryInterface
	generator   ReminderGeneratorInterface
	audit       AuditRecorder
	daysAhead   int
	loc         *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

// NewScheduleService creates a new ScheduleService. New and re-activated
// schedules get reminders for daysAhead days right away.
func NewScheduleService(
	schedules ScheduleRepositoryInterface,
	assignments AssignmentRepositoryInterface,
	generator ReminderGeneratorInterface,
	auditor AuditRecorder,
	daysAhead int,
	loc *time.Location,
	logger *zap.Logger,
) *ScheduleService {
	return &ScheduleService{
		schedules:   schedules,
		assignments: assignments,
		generator:   generator,
		audit:       auditor,
		daysAhead:   daysAhead,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

// Create validates and stores a new schedule for an active medication assignment
func (s *ScheduleService) Create(ctx context.Context, actor audit.Actor, schedule *model.ReminderSchedule) error {
	assignment, err := s.assignments.FindByID(ctx, schedule.MedicationAssignmentID)
	if err != nil {
		return err
	}
	if !assignment.IsActive() {
		return apperror.NotFound("active medication assignment", assignment.ID)
	}
	if schedule.PatientID == "" {
		schedule.PatientID = assignment.PatientID
	}
	if schedule.PatientID != assignment.PatientID {
		return apperror.Validation("medication assignment %s does not belong to patient %s", assignment.ID, schedule.PatientID)
	}

	now := s.now()
	if schedule.StartDate.IsZero() {
		schedule.StartDate = model.CivilDate(now.In(s.loc))
	}
	if schedule.EscalateIfMissed && schedule.EscalateDelayMinutes == 0 {
		schedule.EscalateDelayMinutes = DefaultEscalateDelayMinutes
	}
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}

	schedule.ID = uuid.New().String()
	schedule.IsActive = true
	schedule.StartDate = model.CivilDate(schedule.StartDate)
	if schedule.EndDate != nil {
		end := model.CivilDate(*schedule.EndDate)
		schedule.EndDate = &end
	}
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	if err := s.schedules.Create(ctx, schedule); err != nil {
		return err
	}

	s.record(ctx, actor, audit.OperationCreate, schedule.ID, map[string]interface{}{
		"medication_assignment_id": schedule.MedicationAssignmentID,
	})
	s.logger.Info("reminder schedule created",
		zap.String("schedule_id", schedule.ID),
		zap.String("patient_id", schedule.PatientID),
		zap.String("medication_assignment_id", schedule.MedicationAssignmentID),
	)

	s.generateAhead(ctx, schedule.ID)
	return nil
}

// Get retrieves a schedule by ID
func (s *ScheduleService) Get(ctx context.Context, scheduleID string) (*model.ReminderSchedule, error) {
	return s.schedules.FindByID(ctx, scheduleID)
}

// ListByPatient retrieves the schedules of a patient
func (s *ScheduleService) ListByPatient(ctx context.Context, patientID string) ([]model.ReminderSchedule, error) {
	if patientID == "" {
		return nil, apperror.Validation("patient_id is required")
	}
	schedules, err := s.schedules.FindByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

// Update applies a partial update and re-validates the schedule as a whole
func (s *ScheduleService) Update(ctx context.Context, actor audit.Actor, scheduleID string, patch SchedulePatch) (*model.ReminderSchedule, error) {
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	if patch.Frequency != nil {
		schedule.Frequency = *patch.Frequency
	}
	if patch.ReminderTimes != nil {
		schedule.ReminderTimes = patch.ReminderTimes
	}
	if patch.AdvanceMinutes != nil {
		schedule.AdvanceMinutes = *patch.AdvanceMinutes
	}
	if patch.Channels != nil {
		schedule.Channels = patch.Channels
	}
	if patch.AutoSkipIfTaken != nil {
		schedule.AutoSkipIfTaken = *patch.AutoSkipIfTaken
	}
	if patch.EscalateIfMissed != nil {
		schedule.EscalateIfMissed = *patch.EscalateIfMissed
	}
	if patch.EscalateDelayMinutes != nil {
		schedule.EscalateDelayMinutes = *patch.EscalateDelayMinutes
	}
	switch {
	case patch.ClearQuietHours:
		schedule.QuietHours = nil
	case patch.QuietHours != nil:
		schedule.QuietHours = patch.QuietHours
	}
	if patch.StartDate != nil {
		schedule.StartDate = model.CivilDate(*patch.StartDate)
	}
	switch {
	case patch.ClearEndDate:
		schedule.EndDate = nil
	case patch.EndDate != nil:
		end := model.CivilDate(*patch.EndDate)
		schedule.EndDate = &end
	}

	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	schedule.UpdatedAt = s.now()

	if err := s.schedules.Update(ctx, schedule); err != nil {
		return nil, err
	}

	s.record(ctx, actor, audit.OperationUpdate, schedule.ID, nil)
	s.logger.Info("reminder schedule updated", zap.String("schedule_id", schedule.ID))

	return schedule, nil
}

// Activate turns a schedule on and generates its upcoming reminders
func (s *ScheduleService) Activate(ctx context.Context, actor audit.Actor, scheduleID string) (*model.ReminderSchedule, error) {
	if _, err := s.schedules.SetActive(ctx, scheduleID, true); err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.OperationUpdate, scheduleID, map[string]interface{}{"is_active": true})
	s.logger.Info("reminder schedule activated", zap.String("schedule_id", scheduleID))

	s.generateAhead(ctx, scheduleID)
	return s.schedules.FindByID(ctx, scheduleID)
}

// Deactivate turns a schedule off and cancels its pending reminders
func (s *ScheduleService) Deactivate(ctx context.Context, actor audit.Actor, scheduleID string) (*model.ReminderSchedule, error) {
	cancelled, err := s.schedules.SetActive(ctx, scheduleID, false)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.OperationUpdate, scheduleID, map[string]interface{}{
		"is_active":           false,
		"cancelled_reminders": cancelled,
	})
	s.logger.Info("reminder schedule deactivated",
		zap.String("schedule_id", scheduleID),
		zap.Int64("cancelled_reminders", cancelled),
	)

	return s.schedules.FindByID(ctx, scheduleID)
}

// Delete removes a schedule and cancels its pending reminders
func (s *ScheduleService) Delete(ctx context.Context, actor audit.Actor, scheduleID string) (int64, error) {
	cancelled, err := s.schedules.Delete(ctx, scheduleID)
	if err != nil {
		return 0, err
	}

	s.record(ctx, actor, audit.OperationDelete, scheduleID, map[string]interface{}{"cancelled_reminders": cancelled})
	s.logger.Info("reminder schedule deleted",
		zap.String("schedule_id", scheduleID),
		zap.Int64("cancelled_reminders", cancelled),
	)

	return cancelled, nil
}

// Generate runs reminder generation for one schedule on demand
func (s *ScheduleService) Generate(ctx context.Context, scheduleID string, days int) ([]model.Reminder, error) {
	if days <= 0 {
		days = s.daysAhead
	}
	if days > MaxGenerationDays {
		return nil, apperror.Validation("days must be at most %d", MaxGenerationDays)
	}
	if _, err := s.schedules.FindByID(ctx, scheduleID); err != nil {
		return nil, err
	}
	return s.generator.Generate(ctx, scheduleID, days)
}

func (s *ScheduleService) generateAhead(ctx context.Context, scheduleID string) {
	if s.daysAhead <= 0 {
		return
	}
	if _, err := s.generator.Generate(ctx, scheduleID, s.daysAhead); err != nil {
		s.logger.Warn("initial reminder generation failed", zap.Error(err), zap.String("schedule_id", scheduleID))
	}
}

func (s *ScheduleService) record(ctx context.Context, actor audit.Actor, op audit.OperationType, scheduleID string, details map[string]interface{}) {
	if err := s.audit.Record(ctx, actor, op, audit.ResourceSchedule, scheduleID, details); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err), zap.String("schedule_id", scheduleID))
	}
}
