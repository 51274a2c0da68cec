package service

import (
	"context"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

// ScheduleRepositoryInterface defines the interface for schedule data access
type ScheduleRepositoryInterface interface {
	Create(ctx context.Context, s *model.ReminderSchedule) error
	FindByID(ctx context.Context, scheduleID string) (*model.ReminderSchedule, error)
	FindByAssignment(ctx context.Context, assignmentID string) (*model.ReminderSchedule, error)
	FindByPatientID(ctx context.Context, patientID string) ([]model.ReminderSchedule, error)
	ListActive(ctx context.Context) ([]model.ReminderSchedule, error)
	Update(ctx context.Context, s *model.ReminderSchedule) error
	SetActive(ctx context.Context, scheduleID string, active bool) (int64, error)
	Delete(ctx context.Context, scheduleID string) (int64, error)
}

// AssignmentRepositoryInterface defines the interface for medication assignment snapshots
type AssignmentRepositoryInterface interface {
	FindByID(ctx context.Context, assignmentID string) (*model.MedicationAssignment, error)
	Upsert(ctx context.Context, a *model.MedicationAssignment) (model.AssignmentStatus, error)
	TransitionStatus(ctx context.Context, assignmentID string, from []model.AssignmentStatus, next model.AssignmentStatus) (*model.MedicationAssignment, error)
}

// ReminderRepositoryInterface defines the interface for reminder data access
type ReminderRepositoryInterface interface {
	ScheduledTimesBetween(ctx context.Context, assignmentID string, from, to time.Time) ([]time.Time, error)
	InsertBatch(ctx context.Context, reminders []model.Reminder) ([]model.Reminder, error)
	FindByID(ctx context.Context, reminderID string) (*model.Reminder, error)
	List(ctx context.Context, filter repository.ReminderFilter) ([]model.Reminder, error)
	DueIDs(ctx context.Context, now, since time.Time, limit int) ([]string, error)
	ClaimPending(ctx context.Context, reminderID string) (repository.ReminderClaim, error)
	Cancel(ctx context.Context, reminderID string) (*model.Reminder, error)
	ApplyDeliveryStatus(ctx context.Context, providerMessageID string, status model.ReminderStatus, reason *string) (*model.Reminder, bool, error)
	FindLatestAwaitingResponse(ctx context.Context, patientID string, since time.Time) (*model.Reminder, error)
	RespondWithEvent(ctx context.Context, reminderID, responseText string, respondedAt time.Time, event *model.MedicationEvent) (*model.Reminder, error)
	ListEscalationCandidates(ctx context.Context, now, since time.Time) ([]repository.EscalationCandidate, error)
	CreateEscalation(ctx context.Context, originalID string, followUp *model.Reminder) (bool, error)
}

// EventRepositoryInterface defines the interface for medication event data access
type EventRepositoryInterface interface {
	Create(ctx context.Context, ev *model.MedicationEvent) error
	FindByID(ctx context.Context, eventID string) (*model.MedicationEvent, error)
	Update(ctx context.Context, ev *model.MedicationEvent) error
	Delete(ctx context.Context, eventID string) error
	List(ctx context.Context, filter repository.EventFilter) ([]model.MedicationEvent, error)
	ExistsTaken(ctx context.Context, assignmentID string, doseTime time.Time) (bool, error)
	DailyCounts(ctx context.Context, patientID string, assignmentID *string, from, to time.Time) ([]model.DailyScore, error)
}

// AdherenceRepositoryInterface defines the interface for cached adherence stats
type AdherenceRepositoryInterface interface {
	Upsert(ctx context.Context, stats *model.AdherenceStats) error
	Find(ctx context.Context, patientID string, assignmentID *string, period model.PeriodType) (*model.AdherenceStats, error)
	ListByPatient(ctx context.Context, patientID string) ([]model.AdherenceStats, error)
}

// ContactRepositoryInterface defines the interface for patient contact data access
type ContactRepositoryInterface interface {
	FindByPatientID(ctx context.Context, patientID string) (*model.PatientContact, error)
	FindByAddress(ctx context.Context, address string) (*model.PatientContact, error)
	Upsert(ctx context.Context, c *model.PatientContact) error
}

// DeliveryEventRepositoryInterface defines the interface for the delivery audit trail
type DeliveryEventRepositoryInterface interface {
	Record(ctx context.Context, ev *model.DeliveryEvent) error
	ListByReminder(ctx context.Context, reminderID string) ([]model.DeliveryEvent, error)
}

// AuditRecorder writes audit entries
type AuditRecorder interface {
	Record(ctx context.Context, actor audit.Actor, op audit.OperationType, resource audit.ResourceType, resourceID string, details map[string]interface{}) error
}

// DeliveryChannel sends a rendered message to a contact address and returns
// the provider's message id
type DeliveryChannel interface {
	Send(ctx context.Context, channel model.Channel, address, message string) (string, error)
}

// ContactLookup resolves patient contacts by patient id or by inbound sender address
type ContactLookup interface {
	Resolve(ctx context.Context, patientID string) (*model.PatientContact, error)
	ResolveSender(ctx context.Context, address string) (*model.PatientContact, error)
}

// ReminderGeneratorInterface expands one schedule into reminders
type ReminderGeneratorInterface interface {
	Generate(ctx context.Context, scheduleID string, daysAhead int) ([]model.Reminder, error)
}

// AdherenceRecomputer refreshes cached stats after an event write
type AdherenceRecomputer interface {
	RecomputeAfterEventWrite(ctx context.Context, patientID, assignmentID string)
}

// ReportRepositoryInterface defines the interface for report records
type ReportRepositoryInterface interface {
	Save(ctx context.Context, report *model.Report) error
	FindByID(ctx context.Context, reportID string) (*model.Report, error)
	ListByPatient(ctx context.Context, patientID string) ([]model.Report, error)
}

// PatientDataRepositoryInterface erases everything stored about a patient
type PatientDataRepositoryInterface interface {
	Erase(ctx context.Context, patientID string) (*repository.ErasedCounts, error)
}

// ContactInvalidator drops cached patient contacts
type ContactInvalidator interface {
	Invalidate(patientID string)
}
