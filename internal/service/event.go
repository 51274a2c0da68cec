package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// EventPatch corrects a logged dose. Nil fields are left unchanged.
type EventPatch struct {
	Status     *model.EventStatus
	ActualTime *time.Time
	Notes      *string
}

// EventService handles manually logged medication events
type EventService struct {
	events      EventRepositoryInterface
	assignments AssignmentRepositoryInterface
	adherence   AdherenceRecomputer
	audit       AuditRecorder
	loc         *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

// NewEventService creates a new EventService
func NewEventService(
	events EventRepositoryInterface,
	assignments AssignmentRepositoryInterface,
	adherence AdherenceRecomputer,
	auditor AuditRecorder,
	loc *time.Location,
	logger *zap.Logger,
) *EventService {
	return &EventService{
		events:      events,
		assignments: assignments,
		adherence:   adherence,
		audit:       auditor,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

// Create logs a dose. A taken dose without an actual time is taken now.
func (s *EventService) Create(ctx context.Context, actor audit.Actor, ev *model.MedicationEvent) error {
	if ev.PatientID == "" {
		return apperror.Validation("patient_id is required")
	}
	if !ev.Status.Valid() {
		return apperror.Validation("unknown event status: %q", ev.Status)
	}
	if ev.ScheduledTime.IsZero() {
		return apperror.Validation("scheduled_time is required")
	}
	// Only the correlator writes general doses without an assignment
	if ev.MedicationAssignmentID == "" {
		return apperror.Validation("medication_assignment_id is required")
	}

	assignment, err := s.assignments.FindByID(ctx, ev.MedicationAssignmentID)
	if err != nil {
		return err
	}
	if assignment.PatientID != ev.PatientID {
		return apperror.Validation("medication assignment %s does not belong to patient %s", assignment.ID, ev.PatientID)
	}

	now := s.now()
	if ev.Status == model.EventStatusTaken && ev.ActualTime == nil {
		ev.ActualTime = &now
	}
	ev.ID = uuid.New().String()
	ev.ScheduledDate = model.CivilDate(ev.ScheduledTime.In(s.loc))
	ev.CreatedAt = now
	ev.UpdatedAt = now
	ApplyDoseTiming(ev)

	if err := s.events.Create(ctx, ev); err != nil {
		return err
	}

	s.record(ctx, actor, audit.OperationCreate, ev.ID, map[string]interface{}{"status": string(ev.Status)})
	s.logger.Info("medication event logged",
		zap.String("event_id", ev.ID),
		zap.String("patient_id", ev.PatientID),
		zap.String("medication_assignment_id", ev.MedicationAssignmentID),
		zap.String("status", string(ev.Status)),
	)

	s.adherence.RecomputeAfterEventWrite(ctx, ev.PatientID, ev.MedicationAssignmentID)
	return nil
}

// Update corrects the status, actual time or notes of an event and recomputes its timing
func (s *EventService) Update(ctx context.Context, actor audit.Actor, eventID string, patch EventPatch) (*model.MedicationEvent, error) {
	ev, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperror.Validation("unknown event status: %q", *patch.Status)
		}
		ev.Status = *patch.Status
	}
	if patch.ActualTime != nil {
		ev.ActualTime = patch.ActualTime
	}
	if patch.Notes != nil {
		ev.Notes = patch.Notes
	}

	now := s.now()
	if ev.Status == model.EventStatusTaken && ev.ActualTime == nil {
		ev.ActualTime = &now
	}
	ev.UpdatedAt = now
	ApplyDoseTiming(ev)

	if err := s.events.Update(ctx, ev); err != nil {
		return nil, err
	}

	s.record(ctx, actor, audit.OperationUpdate, ev.ID, map[string]interface{}{"status": string(ev.Status)})
	s.logger.Info("medication event updated", zap.String("event_id", ev.ID), zap.String("status", string(ev.Status)))

	s.adherence.RecomputeAfterEventWrite(ctx, ev.PatientID, ev.MedicationAssignmentID)
	return ev, nil
}

// Delete removes an event and refreshes the stats it contributed to
func (s *EventService) Delete(ctx context.Context, actor audit.Actor, eventID string) error {
	ev, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return err
	}

	if err := s.events.Delete(ctx, eventID); err != nil {
		return err
	}

	s.record(ctx, actor, audit.OperationDelete, eventID, nil)
	s.logger.Info("medication event deleted", zap.String("event_id", eventID))

	s.adherence.RecomputeAfterEventWrite(ctx, ev.PatientID, ev.MedicationAssignmentID)
	return nil
}

// List returns a patient's events, optionally narrowed to one medication and a date range
func (s *EventService) List(ctx context.Context, filter repository.EventFilter) ([]model.MedicationEvent, error) {
	if filter.PatientID == "" {
		return nil, apperror.Validation("patient_id is required")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperror.Validation("to must not be before from")
	}

	events, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list medication events: %w", err)
	}
	return events, nil
}

func (s *EventService) record(ctx context.Context, actor audit.Actor, op audit.OperationType, eventID string, details map[string]interface{}) {
	if err := s.audit.Record(ctx, actor, op, audit.ResourceMedicationEvent, eventID, details); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err), zap.String("event_id", eventID))
	}
}
